package config

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"

	"onlytests-e2e/internal/browser"
	"onlytests-e2e/internal/logger"
)

const (
	ProfileLocal = "local"
	ProfileProd  = "prod"
)

// EnvironmentConfig is the resolved runtime configuration of one profile.
type EnvironmentConfig struct {
	BaseURL             string        `validate:"required,url,startswith=http"`
	APIURL              string        `validate:"required,url,startswith=http"`
	Timeout             time.Duration `validate:"min=1s,max=5m"`
	Retries             int           `validate:"min=0,max=10"`
	Headless            bool
	ScreenshotOnFailure bool
	VideoOnFailure      bool
	TraceOnFailure      bool
	Parallel            bool
	Workers             int           `validate:"min=1,max=10"`
	Driver              string        `validate:"oneof=playwright chromedp rod"`
	SlowMo              time.Duration `validate:"min=0"`
}

type profile struct {
	baseURL string
	apiURL  string
	workers int
}

var profiles = map[string]profile{
	ProfileLocal: {baseURL: "http://localhost:3000", apiURL: "http://localhost:3000/api", workers: 4},
	ProfileProd:  {baseURL: "https://onlytests.io", apiURL: "https://onlytests.io/api", workers: 1},
}

const (
	defaultTimeoutMs = 30000
	defaultRetries   = 2
)

// Store holds the single live EnvironmentConfig. Reads are safe from any
// goroutine; Update and Reset are meant for test-time overrides.
type Store struct {
	mu  sync.RWMutex
	cfg EnvironmentConfig
	env string
	ci  bool
	log *logger.Logger
}

type Option func(*Store)

func WithLogger(l *logger.Logger) Option {
	return func(s *Store) { s.log = l }
}

// Load resolves the profile named by TEST_ENV and returns a new, validated
// Store. It does not touch the process-wide instance.
func Load(opts ...Option) (*Store, error) {
	s := &Store{log: logger.Default()}
	for _, o := range opts {
		o(s)
	}

	cfg, env, ci, err := s.load()
	if err != nil {
		return nil, err
	}
	s.cfg, s.env, s.ci = cfg, env, ci
	return s, nil
}

// New wraps an already-resolved configuration, e.g. for isolated tests.
func New(env string, cfg EnvironmentConfig, opts ...Option) (*Store, error) {
	s := &Store{log: logger.Default(), env: env}
	for _, o := range opts {
		o(s)
	}
	if err := Validate(cfg); err != nil {
		return nil, &ConfigurationError{Op: "load", Err: err}
	}
	s.cfg = cfg
	return s, nil
}

// Defaults returns the built-in local profile with no environment overrides.
func Defaults() EnvironmentConfig {
	p := profiles[ProfileLocal]
	return EnvironmentConfig{
		BaseURL:             p.baseURL,
		APIURL:              p.apiURL,
		Timeout:             defaultTimeoutMs * time.Millisecond,
		Retries:             defaultRetries,
		Headless:            true,
		ScreenshotOnFailure: true,
		VideoOnFailure:      true,
		TraceOnFailure:      true,
		Parallel:            true,
		Workers:             p.workers,
		Driver:              browser.DriverPlaywright,
	}
}

var (
	instanceOnce sync.Once
	instance     *Store
	instanceErr  error
)

// Instance returns the process-wide Store, loading the optional dotenv file
// and the environment on first use. A failed first load is remembered.
func Instance() (*Store, error) {
	instanceOnce.Do(func() {
		v := viper.New()
		v.AutomaticEnv()
		v.SetDefault("ENV_FILE", ".env")
		if instanceErr = LoadEnvFile(v.GetString("ENV_FILE")); instanceErr != nil {
			return
		}
		instance, instanceErr = Load()
	})
	return instance, instanceErr
}

func (s *Store) load() (EnvironmentConfig, string, bool, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("TEST_ENV", ProfileLocal)

	env := strings.ToLower(strings.TrimSpace(v.GetString("TEST_ENV")))
	if env == "" {
		env = ProfileLocal
	}
	s.log.Info("Loading configuration for environment: " + env)

	p, ok := profiles[env]
	if !ok {
		s.log.Warn(fmt.Sprintf("Unknown environment %q, using %s defaults", env, ProfileLocal))
		p = profiles[ProfileLocal]
	}

	prefix := strings.ToUpper(env)
	v.SetDefault(prefix+"_BASE_URL", p.baseURL)
	v.SetDefault(prefix+"_API_URL", p.apiURL)

	timeout, err := intVar(v, "TIMEOUT", defaultTimeoutMs)
	if err != nil {
		return EnvironmentConfig{}, "", false, s.fail(err)
	}
	retries, err := intVar(v, "RETRIES", defaultRetries)
	if err != nil {
		return EnvironmentConfig{}, "", false, s.fail(err)
	}
	workers, err := intVar(v, "WORKERS", p.workers)
	if err != nil {
		return EnvironmentConfig{}, "", false, s.fail(err)
	}
	slowMo, err := intVar(v, "SLOW_MO", 0)
	if err != nil {
		return EnvironmentConfig{}, "", false, s.fail(err)
	}

	driver := v.GetString("BROWSER_DRIVER")
	if driver == "" {
		driver = browser.DriverPlaywright
	}

	cfg := EnvironmentConfig{
		BaseURL:             v.GetString(prefix + "_BASE_URL"),
		APIURL:              v.GetString(prefix + "_API_URL"),
		Timeout:             time.Duration(timeout) * time.Millisecond,
		Retries:             retries,
		Headless:            v.GetString("HEADLESS") != "false",
		ScreenshotOnFailure: v.GetString("SCREENSHOT_ON_FAILURE") != "false",
		VideoOnFailure:      v.GetString("VIDEO_ON_FAILURE") != "false",
		TraceOnFailure:      v.GetString("TRACE_ON_FAILURE") != "false",
		Parallel:            v.GetString("PARALLEL") != "false",
		Workers:             workers,
		Driver:              strings.ToLower(driver),
		SlowMo:              time.Duration(slowMo) * time.Millisecond,
	}

	if err := Validate(cfg); err != nil {
		return EnvironmentConfig{}, "", false, s.fail(err)
	}

	s.log.Info("Configuration loaded successfully")
	s.log.Configuration(cfg.BaseURL)
	return cfg, env, v.GetString("CI") == "true", nil
}

func (s *Store) fail(err error) error {
	s.log.Error("Failed to load configuration", logger.Context{Err: err})
	return &ConfigurationError{Op: "load", Err: err}
}

func intVar(v *viper.Viper, key string, def int) (int, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got: %q", key, raw)
	}
	return n, nil
}

// Config returns a copy of the live configuration.
func (s *Store) Config() EnvironmentConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

func (s *Store) BaseURL() string { return s.Config().BaseURL }

func (s *Store) APIURL() string { return s.Config().APIURL }

func (s *Store) Timeout() time.Duration { return s.Config().Timeout }

func (s *Store) Retries() int { return s.Config().Retries }

func (s *Store) Headless() bool { return s.Config().Headless }

func (s *Store) ScreenshotOnFailure() bool { return s.Config().ScreenshotOnFailure }

func (s *Store) VideoOnFailure() bool { return s.Config().VideoOnFailure }

func (s *Store) TraceOnFailure() bool { return s.Config().TraceOnFailure }

func (s *Store) Parallel() bool { return s.Config().Parallel }

func (s *Store) Workers() int { return s.Config().Workers }

func (s *Store) Driver() string { return s.Config().Driver }

func (s *Store) SlowMo() time.Duration { return s.Config().SlowMo }

// Environment is the profile name the store was loaded with.
func (s *Store) Environment() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.env
}

func (s *Store) IsProduction() bool { return s.Environment() == ProfileProd }

func (s *Store) IsLocal() bool { return s.Environment() == ProfileLocal }

func (s *Store) IsCI() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ci
}

func (s *Store) Logger() *logger.Logger { return s.log }

// Update applies fn to a copy of the live configuration and installs it if
// it still validates. On error the live configuration is unchanged.
func (s *Store) Update(fn func(*EnvironmentConfig)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cfg
	fn(&next)
	if err := Validate(next); err != nil {
		s.log.Error("Configuration update rejected", logger.Context{Err: err})
		return &ConfigurationError{Op: "update", Err: err}
	}
	s.cfg = next
	s.log.Info("Configuration updated", logger.Context{Action: "CONFIG", PageURL: next.BaseURL})
	return nil
}

// Reset reloads from the environment, discarding every Update. If the reload
// fails the current configuration is kept and the error returned.
func (s *Store) Reset() error {
	cfg, env, ci, err := s.load()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.cfg, s.env, s.ci = cfg, env, ci
	s.mu.Unlock()

	s.log.Info("Configuration reset to original values")
	return nil
}
