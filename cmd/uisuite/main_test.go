package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersion(t *testing.T) {
	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "uisuite dev\n", out.String())
}

func TestCommandsRegistered(t *testing.T) {
	root := rootCmd()
	for _, name := range []string{"validate", "init", "smoke", "serve", "version"} {
		c, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, c.Name())
	}
}

func TestInitCreatesResults(t *testing.T) {
	t.Setenv("TEST_ENV", "local")
	t.Setenv("LOCAL_BASE_URL", "http://localhost:3000")
	t.Setenv("LOCAL_API_URL", "http://localhost:3000/api")
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "absent.env"))
	dir := filepath.Join(t.TempDir(), "results")

	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"init", "--results", dir})

	require.NoError(t, cmd.Execute())

	var status map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &status))
	assert.Equal(t, true, status["initialized"])
	_, err := os.Stat(filepath.Join(dir, "screenshots"))
	assert.NoError(t, err)
}
