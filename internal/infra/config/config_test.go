package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	assert.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
spotify:
  client_id: test-id
  client_secret: test-secret
  refresh_token: test-token
suggester:
  provider: openai
  settings:
    api_key: sk-test
history:
  max_depth: 100
storage:
  path: /tmp/state.db
`)

	cfg, err := Load(path)
	assert.NoError(t, err)
	assert.Equal(t, "test-id", cfg.Spotify.ClientID)
	assert.Equal(t, "US", cfg.Spotify.Market, "market defaults when unset")
	assert.Equal(t, "openai", cfg.Suggester.Provider)
	assert.Equal(t, "sk-test", cfg.Suggester.Settings["api_key"])
	assert.Equal(t, 100, cfg.History.MaxDepth)
	assert.Equal(t, "/tmp/state.db", cfg.Storage.Path)
	assert.Equal(t, "session", cfg.Storage.Key, "blob key defaults when unset")
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
spotify:
  client_id: test-id
  client_secret: test-secret
  refresh_token: test-token
`)

	cfg, err := Load(path)
	assert.NoError(t, err)
	assert.Equal(t, "openai", cfg.Suggester.Provider)
	assert.Equal(t, 50, cfg.History.MaxDepth)
	assert.Equal(t, "setlist.db", cfg.Storage.Path)
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
spotify:
  client_id: file-id
  client_secret: file-secret
  refresh_token: file-token
`)

	t.Setenv("SPOTIFY_CLIENT_ID", "env-id")
	t.Setenv("SPOTIFY_REFRESH_TOKEN", "env-token")
	t.Setenv("OPENAI_API_KEY", "sk-env")

	cfg, err := Load(path)
	assert.NoError(t, err)
	assert.Equal(t, "env-id", cfg.Spotify.ClientID)
	assert.Equal(t, "file-secret", cfg.Spotify.ClientSecret, "unset env leaves the file value")
	assert.Equal(t, "env-token", cfg.Spotify.RefreshToken)
	assert.Equal(t, "sk-env", cfg.Suggester.Settings["api_key"])
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "missing credentials",
			content: `
spotify:
  client_id: test-id
`,
		},
		{
			name: "bad market",
			content: `
spotify:
  client_id: test-id
  client_secret: test-secret
  refresh_token: test-token
  market: USA
`,
		},
		{
			name: "unknown provider",
			content: `
spotify:
  client_id: test-id
  client_secret: test-secret
  refresh_token: test-token
suggester:
  provider: acme
`,
		},
		{
			name: "history depth out of range",
			content: `
spotify:
  client_id: test-id
  client_secret: test-secret
  refresh_token: test-token
history:
  max_depth: 2000
`,
		},
		{
			name:    "not yaml",
			content: "{{nope",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
