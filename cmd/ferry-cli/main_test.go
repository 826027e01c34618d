package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ferrydl/ferry/clientcli"
)

func resetFlags(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		cfgFile, profile, endpoint, token = "", "", "", ""
	})
	t.Setenv("FERRY_ENDPOINT", "")
	t.Setenv("FERRY_TOKEN", "")
	t.Setenv("FERRY_PROFILE", "")
}

func TestBuildConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, (&clientcli.ConfigFile{Profiles: []clientcli.Profile{
		{Name: "local", Endpoint: "http://localhost:8080", Token: "local-token", Default: true},
		{Name: "prod", Endpoint: "https://dl.example.com", Token: "prod-token"},
	}}).Save(path))

	t.Run("default profile", func(t *testing.T) {
		resetFlags(t)
		cfgFile = path

		cfg, err := buildConfig()
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:8080", cfg.Endpoint)
		assert.Equal(t, "local-token", cfg.Token)
	})

	t.Run("profile from env, token from flag", func(t *testing.T) {
		resetFlags(t)
		cfgFile = path
		token = "flag-token"
		t.Setenv("FERRY_PROFILE", "prod")

		cfg, err := buildConfig()
		require.NoError(t, err)
		assert.Equal(t, "https://dl.example.com", cfg.Endpoint)
		assert.Equal(t, "flag-token", cfg.Token)
	})

	t.Run("unknown profile", func(t *testing.T) {
		resetFlags(t)
		cfgFile = path
		profile = "staging"

		_, err := buildConfig()
		assert.ErrorIs(t, err, clientcli.ErrProfileNotFound)
	})

	t.Run("missing explicit file", func(t *testing.T) {
		resetFlags(t)
		cfgFile = filepath.Join(t.TempDir(), "missing.yaml")

		_, err := buildConfig()
		assert.Error(t, err)
	})

	t.Run("no profile file falls back to env", func(t *testing.T) {
		resetFlags(t)
		t.Setenv("HOME", t.TempDir())
		t.Setenv("FERRY_ENDPOINT", "http://env:9000")

		cfg, err := buildConfig()
		require.NoError(t, err)
		assert.Equal(t, "http://env:9000", cfg.Endpoint)
	})
}
