package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8490", cfg.APIBaseURL)
	assert.Equal(t, "en", cfg.Language)
	assert.Empty(t, cfg.Token)
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `api_base_url: https://api.pattern.app/
token: tok-123
user_id: user-9
language: ko
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	// Trailing slashes are trimmed so path joins stay clean.
	assert.Equal(t, "https://api.pattern.app", cfg.APIBaseURL)
	assert.Equal(t, "tok-123", cfg.Token)
	assert.Equal(t, "user-9", cfg.UserID)
	assert.Equal(t, "ko", cfg.Language)
}

func TestLoad_EnvironmentOverridesDefault(t *testing.T) {
	t.Setenv("PATTERN_API_BASE_URL", "https://env.pattern.app")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "https://env.pattern.app", cfg.APIBaseURL)
}

func TestLoad_MalformedFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api_base_url: [unclosed"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
