// Package config loads botfoundry configuration from an optional YAML
// file plus environment variables. Environment always wins over the file.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrNoGeminiKeys is the fatal configuration error raised when the
// generative credential list is empty. The process must not start.
var ErrNoGeminiKeys = errors.New("config: at least one Gemini API key is required")

// numberedKeyLimit bounds the GEMINI_API_KEY_<n> scan.
const numberedKeyLimit = 16

// Config is the full process configuration.
type Config struct {
	// TelegramToken is the master bot credential.
	TelegramToken string `yaml:"telegram_token" env:"TELEGRAM_TOKEN"`

	// GeminiAPIKeys is the ordered credential pool for the generative
	// backend. Rotation walks this list modulo its length.
	GeminiAPIKeys []string `yaml:"gemini_api_keys" env:"GEMINI_API_KEYS" envSeparator:","`

	// GeminiModel is the completion model used for every reply.
	GeminiModel string `yaml:"gemini_model" env:"GEMINI_MODEL"`

	// ReferralThreshold is the number of verified referrals a tenant
	// owner needs before the watermark is removed.
	ReferralThreshold int `yaml:"referral_threshold" env:"REFERRAL_THRESHOLD"`

	// WatermarkTag is the attribution line shown in the watermark.
	WatermarkTag string `yaml:"watermark_tag" env:"WATERMARK_TAG"`

	// PollTimeoutSeconds is the Telegram long-poll timeout per instance.
	PollTimeoutSeconds int `yaml:"poll_timeout_seconds" env:"POLL_TIMEOUT_SECONDS"`
}

// defaults seeds the fields the YAML file and environment may override.
// envDefault tags would clobber file-loaded values, so defaults live
// here instead.
func defaults() *Config {
	return &Config{
		GeminiModel:        "gemini-1.5-flash",
		ReferralThreshold:  5,
		WatermarkTag:       "@botfoundry",
		PollTimeoutSeconds: 30,
	}
}

// Load builds the configuration. A missing .env file is fine; a missing
// YAML file at an explicitly given path is not.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse environment: %w", err)
	}

	cfg.GeminiAPIKeys = append(cfg.GeminiAPIKeys, numberedGeminiKeys()...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate enforces the fail-fast startup contract.
func (c *Config) Validate() error {
	if c.TelegramToken == "" {
		return errors.New("config: TELEGRAM_TOKEN is required")
	}
	if len(c.GeminiAPIKeys) == 0 {
		return ErrNoGeminiKeys
	}
	if c.ReferralThreshold <= 0 {
		return fmt.Errorf("config: referral threshold must be positive, got %d", c.ReferralThreshold)
	}
	if c.PollTimeoutSeconds <= 0 {
		return fmt.Errorf("config: poll timeout must be positive, got %d", c.PollTimeoutSeconds)
	}
	return nil
}

// numberedGeminiKeys collects the legacy GEMINI_API_KEY_1..N variables.
// Gaps are skipped so a deleted key does not hide the ones after it.
func numberedGeminiKeys() []string {
	var keys []string
	for i := 1; i <= numberedKeyLimit; i++ {
		if v := os.Getenv(fmt.Sprintf("GEMINI_API_KEY_%d", i)); v != "" {
			keys = append(keys, v)
		}
	}
	return keys
}
