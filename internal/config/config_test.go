package config

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onlytests-e2e/internal/browser"
	"onlytests-e2e/internal/logger"
)

var envVars = []string{
	"TEST_ENV", "LOCAL_BASE_URL", "LOCAL_API_URL", "PROD_BASE_URL", "PROD_API_URL",
	"TIMEOUT", "RETRIES", "WORKERS", "HEADLESS", "SCREENSHOT_ON_FAILURE",
	"VIDEO_ON_FAILURE", "TRACE_ON_FAILURE", "PARALLEL", "CI", "BROWSER_DRIVER", "SLOW_MO",
}

// clearEnv blanks every variable the loader reads; viper treats empty as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range envVars {
		t.Setenv(name, "")
	}
}

func quiet() Option {
	return WithLogger(logger.New(logger.WithOutput(io.Discard, io.Discard)))
}

func TestLoadLocalDefaults(t *testing.T) {
	clearEnv(t)

	s, err := Load(quiet())
	require.NoError(t, err)

	cfg := s.Config()
	assert.Equal(t, "http://localhost:3000", cfg.BaseURL)
	assert.Equal(t, "http://localhost:3000/api", cfg.APIURL)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 2, cfg.Retries)
	assert.Equal(t, 4, cfg.Workers)
	assert.True(t, cfg.Headless)
	assert.True(t, cfg.ScreenshotOnFailure)
	assert.True(t, cfg.Parallel)
	assert.Equal(t, browser.DriverPlaywright, cfg.Driver)
	assert.Equal(t, ProfileLocal, s.Environment())
	assert.True(t, s.IsLocal())
	assert.False(t, s.IsProduction())
	assert.False(t, s.IsCI())
	assert.Equal(t, Defaults(), cfg)
}

func TestLoadProdProfile(t *testing.T) {
	clearEnv(t)
	t.Setenv("TEST_ENV", "prod")

	s, err := Load(quiet())
	require.NoError(t, err)

	assert.Equal(t, "https://onlytests.io", s.BaseURL())
	assert.Equal(t, "https://onlytests.io/api", s.APIURL())
	assert.Equal(t, 1, s.Workers())
	assert.True(t, s.IsProduction())
}

func TestLoadUnknownProfileFallsBackToLocal(t *testing.T) {
	clearEnv(t)
	t.Setenv("TEST_ENV", "staging")
	t.Setenv("STAGING_BASE_URL", "https://staging.onlytests.io")

	s, err := Load(quiet())
	require.NoError(t, err)

	assert.Equal(t, "staging", s.Environment())
	assert.Equal(t, "https://staging.onlytests.io", s.BaseURL())
	assert.Equal(t, "http://localhost:3000/api", s.APIURL())
	assert.Equal(t, 4, s.Workers())
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOCAL_BASE_URL", "http://127.0.0.1:8080")
	t.Setenv("HEADLESS", "false")
	t.Setenv("PARALLEL", "no")
	t.Setenv("BROWSER_DRIVER", "Rod")
	t.Setenv("SLOW_MO", "250")
	t.Setenv("CI", "true")

	s, err := Load(quiet())
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:8080", s.BaseURL())
	assert.False(t, s.Headless())
	assert.True(t, s.Parallel(), "only the literal false disables a flag")
	assert.Equal(t, browser.DriverRod, s.Driver())
	assert.Equal(t, 250*time.Millisecond, s.SlowMo())
	assert.True(t, s.IsCI())
}

func TestLoadTimeoutBounds(t *testing.T) {
	tests := []struct {
		timeout string
		wantErr bool
	}{
		{"500", true},
		{"999", true},
		{"1000", false},
		{"30000", false},
		{"300000", false},
		{"300001", true},
	}
	for _, tt := range tests {
		t.Run(tt.timeout, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("TIMEOUT", tt.timeout)

			s, err := Load(quiet())
			if !tt.wantErr {
				require.NoError(t, err)
				ms, _ := strconv.Atoi(tt.timeout)
				assert.Equal(t, time.Duration(ms)*time.Millisecond, s.Timeout())
				return
			}
			var cfgErr *ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Contains(t, err.Error(), "Timeout must be between 1000ms and 300000ms, got: "+tt.timeout)
		})
	}
}

func TestLoadWorkersBounds(t *testing.T) {
	tests := []struct {
		workers string
		wantErr bool
	}{
		{"0", true},
		{"1", false},
		{"10", false},
		{"11", true},
	}
	for _, tt := range tests {
		t.Run(tt.workers, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("WORKERS", tt.workers)

			_, err := Load(quiet())
			if tt.wantErr {
				var cfgErr *ConfigurationError
				require.ErrorAs(t, err, &cfgErr)
				assert.Contains(t, err.Error(), "Workers must be between 1 and 10")
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	tests := []struct {
		name, key, value, want string
	}{
		{"non-numeric timeout", "TIMEOUT", "soon", "TIMEOUT must be an integer"},
		{"retries too high", "RETRIES", "11", "Retries must be between 0 and 10"},
		{"relative url", "LOCAL_BASE_URL", "/relative", "Base URL must be a valid URL"},
		{"ftp url", "LOCAL_API_URL", "ftp://example.com", "API URL must be a valid URL"},
		{"unknown driver", "BROWSER_DRIVER", "selenium", "Driver must be one of"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load(quiet())
			var cfgErr *ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, "load", cfgErr.Op)
			assert.Contains(t, cfgErr.Unwrap().Error(), tt.want)
		})
	}
}

func TestUpdateThenReset(t *testing.T) {
	clearEnv(t)
	s, err := Load(quiet())
	require.NoError(t, err)
	original := s.Workers()

	require.NoError(t, s.Update(func(c *EnvironmentConfig) { c.Workers = 2 }))
	assert.Equal(t, 2, s.Workers())

	require.NoError(t, s.Reset())
	assert.Equal(t, original, s.Workers())
}

func TestUpdateRejectsInvalid(t *testing.T) {
	clearEnv(t)
	s, err := Load(quiet())
	require.NoError(t, err)

	err = s.Update(func(c *EnvironmentConfig) { c.Workers = 11 })

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "update", cfgErr.Op)
	assert.Equal(t, 4, s.Workers())
}

func TestResetKeepsConfigOnFailure(t *testing.T) {
	clearEnv(t)
	s, err := Load(quiet())
	require.NoError(t, err)

	t.Setenv("WORKERS", "99")
	require.Error(t, s.Reset())
	assert.Equal(t, 4, s.Workers())
}

func TestNewValidates(t *testing.T) {
	cfg := Defaults()
	cfg.Timeout = 500 * time.Millisecond

	_, err := New(ProfileLocal, cfg, quiet())

	var cfgErr *ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestInstanceIdentity(t *testing.T) {
	clearEnv(t)

	a, err := Instance()
	require.NoError(t, err)
	b, err := Instance()
	require.NoError(t, err)

	assert.Same(t, a, b)
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("UISUITE_FROM_FILE=file\nUISUITE_PRESET=file\n"), 0o600))

	t.Setenv("UISUITE_PRESET", "process")
	t.Setenv("UISUITE_FROM_FILE", "")
	require.NoError(t, os.Unsetenv("UISUITE_FROM_FILE"))

	require.NoError(t, LoadEnvFile(path))

	assert.Equal(t, "file", os.Getenv("UISUITE_FROM_FILE"))
	assert.Equal(t, "process", os.Getenv("UISUITE_PRESET"))
}

func TestLoadEnvFileMissing(t *testing.T) {
	assert.NoError(t, LoadEnvFile(filepath.Join(t.TempDir(), "nope.env")))
	assert.NoError(t, LoadEnvFile(""))
}
