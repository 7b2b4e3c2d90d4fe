package config

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearGeminiEnv(t *testing.T) {
	t.Helper()
	keys := []string{"TELEGRAM_TOKEN", "GEMINI_API_KEYS", "GEMINI_MODEL", "REFERRAL_THRESHOLD"}
	for i := 1; i <= numberedKeyLimit; i++ {
		keys = append(keys, fmt.Sprintf("GEMINI_API_KEY_%d", i))
	}
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	clearGeminiEnv(t)
	t.Setenv("TELEGRAM_TOKEN", "tg-token")
	t.Setenv("GEMINI_API_KEYS", "key-a,key-b")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "tg-token", cfg.TelegramToken)
	assert.Equal(t, []string{"key-a", "key-b"}, cfg.GeminiAPIKeys)
	assert.Equal(t, "gemini-1.5-flash", cfg.GeminiModel)
	assert.Equal(t, 5, cfg.ReferralThreshold)
}

func TestLoad_NumberedKeys(t *testing.T) {
	clearGeminiEnv(t)
	t.Setenv("TELEGRAM_TOKEN", "tg-token")
	t.Setenv("GEMINI_API_KEY_1", "one")
	// Gap at _2: a deleted key must not hide the ones after it.
	t.Setenv("GEMINI_API_KEY_3", "three")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "three"}, cfg.GeminiAPIKeys)
}

func TestLoad_NoKeysFailsFast(t *testing.T) {
	clearGeminiEnv(t)
	t.Setenv("TELEGRAM_TOKEN", "tg-token")

	_, err := Load("")
	require.ErrorIs(t, err, ErrNoGeminiKeys)
}

func TestLoad_MissingTelegramToken(t *testing.T) {
	clearGeminiEnv(t)
	t.Setenv("GEMINI_API_KEYS", "key-a")

	_, err := Load("")
	require.Error(t, err)
}

func TestLoad_YAMLFileWithEnvOverride(t *testing.T) {
	clearGeminiEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
telegram_token: file-token
gemini_api_keys: [file-key]
gemini_model: gemini-file
referral_threshold: 3
watermark_tag: "@filetag"
poll_timeout_seconds: 10
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("GEMINI_MODEL", "gemini-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "file-token", cfg.TelegramToken)
	assert.Equal(t, "gemini-env", cfg.GeminiModel, "environment must override the file")
	assert.Equal(t, 3, cfg.ReferralThreshold)
	assert.Equal(t, "@filetag", cfg.WatermarkTag)
}

func TestValidate_BadThreshold(t *testing.T) {
	cfg := &Config{
		TelegramToken:      "t",
		GeminiAPIKeys:      []string{"k"},
		ReferralThreshold:  0,
		PollTimeoutSeconds: 30,
	}
	require.Error(t, cfg.Validate())
}
