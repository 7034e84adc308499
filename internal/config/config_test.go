package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRequiresCredentials(t *testing.T) {
	cfg := defaultConfig()

	err := cfg.Validate()
	require.Error(t, err, "missing telegram token must fail startup")

	cfg.Telegram.BotToken = "token"
	cfg.Telegram.ChatID = "chat"
	cfg.Classifier.APIKey = "key"
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsUnknownFallback(t *testing.T) {
	cfg := defaultConfig()
	cfg.Telegram.BotToken = "token"
	cfg.Telegram.ChatID = "chat"
	cfg.Classifier.APIKey = "key"
	cfg.Classifier.Fallback = "maybe"

	assert.Error(t, cfg.Validate())
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv(telegramTokenEnv, "env-token")
	t.Setenv(telegramChatIDEnv, "env-chat")
	t.Setenv(anthropicKeyEnv, "env-key")
	t.Setenv(ledgerPathEnv, "/tmp/custom_history.json")

	cfg := Load()

	assert.Equal(t, "env-token", cfg.Telegram.BotToken)
	assert.Equal(t, "env-chat", cfg.Telegram.ChatID)
	assert.Equal(t, "env-key", cfg.Classifier.APIKey)
	assert.Equal(t, "/tmp/custom_history.json", cfg.Ledger.Path)
	assert.NoError(t, cfg.Validate())
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `
freshness:
  maxAgeDays: 7
filter:
  defaultAccept: true
  allow: ["dpi"]
pipeline:
  postCap: 2
sources:
  - name: "Only One"
    strategy: search
    query: "topic:dpi"
    priority: 1
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))
	t.Setenv(configPathEnv, path)

	cfg := Load()

	assert.Equal(t, 7, cfg.Freshness.MaxAgeDays)
	assert.True(t, cfg.Filter.DefaultAccept)
	assert.Equal(t, []string{"dpi"}, cfg.Filter.Allow)
	assert.Equal(t, 2, cfg.Pipeline.PostCap)
	require.Len(t, cfg.Sources, 1)
	assert.Equal(t, "Only One", cfg.Sources[0].Name)
	assert.Equal(t, "reject", cfg.Classifier.Fallback, "defaults survive partial files")
}

func TestDefaultSourcesPresent(t *testing.T) {
	cfg := defaultConfig()

	require.NotEmpty(t, cfg.Sources)
	for _, src := range cfg.Sources {
		assert.Equal(t, "search", src.Strategy)
		assert.NotEmpty(t, src.Query)
	}
}
