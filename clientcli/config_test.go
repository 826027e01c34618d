package clientcli_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ferrydl/ferry/clientcli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleProfiles() *clientcli.ConfigFile {
	return &clientcli.ConfigFile{Profiles: []clientcli.Profile{
		{Name: "local", Endpoint: "http://localhost:8080"},
		{Name: "prod", Endpoint: "https://dl.example.com", Token: "prod-token", Default: true},
	}}
}

func TestConfigFile_GetProfile(t *testing.T) {
	cfg := sampleProfiles()

	t.Run("by name", func(t *testing.T) {
		p, err := cfg.GetProfile("local")
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:8080", p.Endpoint)
	})

	t.Run("empty name is default", func(t *testing.T) {
		p, err := cfg.GetProfile("")
		require.NoError(t, err)
		assert.Equal(t, "prod", p.Name)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := cfg.GetProfile("staging")
		assert.ErrorIs(t, err, clientcli.ErrProfileNotFound)
	})

	t.Run("no profiles", func(t *testing.T) {
		_, err := (&clientcli.ConfigFile{}).GetProfile("")
		assert.ErrorIs(t, err, clientcli.ErrNoProfiles)
	})

	t.Run("first profile without a default", func(t *testing.T) {
		cfg := &clientcli.ConfigFile{Profiles: []clientcli.Profile{{Name: "a"}, {Name: "b"}}}
		assert.Equal(t, "a", cfg.DefaultName())
	})
}

func TestConfigFile_Upsert(t *testing.T) {
	cfg := sampleProfiles()

	replaced := cfg.Upsert(clientcli.Profile{Name: "staging", Endpoint: "https://staging.example.com", Default: true})
	assert.False(t, replaced)
	assert.Equal(t, []string{"local", "prod", "staging"}, cfg.ProfileNames())
	assert.Equal(t, "staging", cfg.DefaultName())

	replaced = cfg.Upsert(clientcli.Profile{Name: "local", Endpoint: "http://127.0.0.1:9000"})
	assert.True(t, replaced)
	p, err := cfg.GetProfile("local")
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:9000", p.Endpoint)
	assert.Len(t, cfg.Profiles, 3)
}

func TestConfigFile_RemoveAndSetDefault(t *testing.T) {
	cfg := sampleProfiles()

	require.NoError(t, cfg.SetDefault("local"))
	assert.Equal(t, "local", cfg.DefaultName())
	assert.ErrorIs(t, cfg.SetDefault("missing"), clientcli.ErrProfileNotFound)

	require.NoError(t, cfg.RemoveProfile("local"))
	assert.Equal(t, []string{"prod"}, cfg.ProfileNames())
	assert.ErrorIs(t, cfg.RemoveProfile("local"), clientcli.ErrProfileNotFound)
}

func TestConfigFile_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "profiles.yaml")

	require.NoError(t, sampleProfiles().Save(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := clientcli.LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, sampleProfiles(), loaded)
}

func TestLoadConfigFile_Missing(t *testing.T) {
	_, err := clientcli.LoadConfigFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestConfig_WithDefaults(t *testing.T) {
	cfg := (&clientcli.Config{}).WithDefaults()
	assert.Equal(t, clientcli.DefaultEndpoint, cfg.Endpoint)

	cfg = (&clientcli.Config{Endpoint: "https://dl.example.com/"}).WithDefaults()
	assert.Equal(t, "https://dl.example.com", cfg.Endpoint)
}

func TestValidateEndpoint(t *testing.T) {
	tests := []struct {
		endpoint string
		wantErr  bool
	}{
		{"http://localhost:8080", false},
		{"https://dl.example.com", false},
		{"ftp://dl.example.com", true},
		{"localhost:8080", true},
		{"http://", true},
	}

	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			err := clientcli.ValidateEndpoint(tt.endpoint)
			if tt.wantErr {
				assert.ErrorIs(t, err, clientcli.ErrInvalidEndpoint)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestMergeConfig(t *testing.T) {
	merged := clientcli.MergeConfig(
		&clientcli.Config{Endpoint: "http://file", Token: "file-token"},
		nil,
		&clientcli.Config{Endpoint: "http://env"},
		&clientcli.Config{Token: "flag-token"},
	)

	assert.Equal(t, "http://env", merged.Endpoint)
	assert.Equal(t, "flag-token", merged.Token)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("FERRY_ENDPOINT", "http://env:8080")
	t.Setenv("FERRY_TOKEN", "env-token")
	t.Setenv("FERRY_PROFILE", "prod")

	cfg := clientcli.ConfigFromEnv()
	assert.Equal(t, "http://env:8080", cfg.Endpoint)
	assert.Equal(t, "env-token", cfg.Token)
	assert.Equal(t, "prod", clientcli.ProfileFromEnv())
}
