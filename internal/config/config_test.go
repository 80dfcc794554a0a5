package config_test

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/williamcory/skillchat/internal/config"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultBackendURL, cfg.BackendURL)
	assert.Equal(t, path, cfg.Path())
	assert.Empty(t, cfg.Cookies)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
backend_url: https://chat.example.com
api_key: from-file
last_conversation: c42
cookies:
  - name: session
    value: abc
`), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://chat.example.com", cfg.BackendURL)
	assert.Equal(t, "from-file", cfg.APIKey)
	assert.Equal(t, "c42", cfg.LastConversation)
	require.Len(t, cfg.HTTPCookies(), 1)
	assert.Equal(t, "abc", cfg.HTTPCookies()[0].Value)

	t.Setenv("SKILLCHAT_API_KEY", "from-env")
	cfg, err = config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.APIKey)
}

func TestLoadRejectsInvalidURL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend_url: ftp://nope\n"), 0o600))

	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	cfg.LastConversation = "c7"
	cfg.SetSession("ada@example.com", []*http.Cookie{{Name: "session", Value: "xyz"}})
	require.NoError(t, cfg.Save())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	loaded, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "c7", loaded.LastConversation)
	assert.Equal(t, "ada@example.com", loaded.Email)
	assert.Equal(t, []config.Cookie{{Name: "session", Value: "xyz"}}, loaded.Cookies)

	loaded.SetSession("", nil)
	assert.Nil(t, loaded.Cookies)
}

func TestSaveKeepsOverridesOffDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log_level: WARN\n"), 0o600))

	t.Setenv("SKILLCHAT_API_KEY", "from-env")
	t.Setenv("SKILLCHAT_BACKEND_URL", "https://staging.example.com")
	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.APIKey)

	// Flag overrides are applied to the loaded config the same way.
	cfg.LogLevel = "DEBUG"
	cfg.LogFile = "/tmp/skillchat.log"
	cfg.LastConversation = "c9"
	cfg.SetSession("ada@example.com", []*http.Cookie{{Name: "session", Value: "xyz"}})
	require.NoError(t, cfg.Save())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	raw := string(b)
	assert.NotContains(t, raw, "from-env")
	assert.NotContains(t, raw, "staging.example.com")
	assert.NotContains(t, raw, "DEBUG")
	assert.NotContains(t, raw, "skillchat.log")
	assert.Contains(t, raw, "log_level: WARN")
	assert.Contains(t, raw, "last_conversation: c9")

	os.Unsetenv("SKILLCHAT_API_KEY")
	os.Unsetenv("SKILLCHAT_BACKEND_URL")
	loaded, err := config.Load(path)
	require.NoError(t, err)
	assert.Empty(t, loaded.APIKey)
	assert.Equal(t, config.DefaultBackendURL, loaded.BackendURL)
	assert.Equal(t, "ada@example.com", loaded.Email)
	assert.Equal(t, "c9", loaded.LastConversation)
}
