package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Abhi1997-1/Lumen-sub000/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const minimalConfig = `
auth:
  jwt_secret: super-secret
providers:
  gemini:
    api_key: system-key
`

func TestLoadFromFileDefaults(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, models.ProviderGemini, cfg.Pipeline.DefaultProvider)
	assert.Equal(t, 1200, cfg.Pipeline.MaxFreeDurationSeconds)
	assert.Equal(t, 600000, cfg.Pipeline.ProcessTimeoutMs)
	assert.Equal(t, 2, cfg.Pipeline.UsageWorkerPoolSize)
	assert.Equal(t, 256, cfg.Pipeline.UsageWorkerBuffer)
	// The encryption secret falls back to the JWT secret.
	assert.Equal(t, "super-secret", cfg.Auth.KeyEncryptionSecret)
}

func TestLoadFromFileEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_JWT_SECRET", "from-env")

	content := `
server:
  port: "${TEST_PORT:-9090}"
auth:
  jwt_secret: ${TEST_JWT_SECRET}
providers:
  gemini:
    api_key: ${TEST_GEMINI_KEY:-fallback-key}
`
	cfg, err := LoadFromFile(writeConfig(t, content))
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.Equal(t, "fallback-key", cfg.SystemAPIKey(models.ProviderGemini))
}

func TestLoadFromFileNormalizesProviderKeys(t *testing.T) {
	content := `
auth:
  jwt_secret: s
providers:
  Gemini:
    api_key: k1
  OPENAI:
    api_key: k2
`
	cfg, err := LoadFromFile(writeConfig(t, content))
	require.NoError(t, err)

	_, ok := cfg.GetProviderConfig("gemini")
	assert.True(t, ok)
	_, ok = cfg.GetProviderConfig("OpenAI")
	assert.True(t, ok)
}

func TestValidateRequiresJWTSecret(t *testing.T) {
	content := `
providers:
  gemini:
    api_key: k
`
	_, err := LoadFromFile(writeConfig(t, content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt_secret")
}

func TestValidateDefaultProviderMustBeConfigured(t *testing.T) {
	content := `
auth:
  jwt_secret: s
pipeline:
  default_provider: groq
providers:
  gemini:
    api_key: k
`
	_, err := LoadFromFile(writeConfig(t, content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "default_provider")
}

func TestValidateUnknownDefaultProvider(t *testing.T) {
	content := `
auth:
  jwt_secret: s
pipeline:
  default_provider: mystery
providers:
  mystery:
    api_key: k
`
	_, err := LoadFromFile(writeConfig(t, content))
	require.Error(t, err)
}

func TestLoadFromFileRejectsNonYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))

	_, err := LoadFromFile(path)
	require.Error(t, err)
}
