package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/titanous/json5"
)

// Default returns a Config with production defaults.
func Default() *Config {
	return &Config{
		Telegram: TelegramConfig{
			Mode:                "polling",
			WebhookPath:         "/telegram/webhook",
			SendRate:            1,
			WebhookMaxPerMinute: 30,
		},
		AI: AIConfig{
			Model:       "gpt-4o-mini",
			MaxTokens:   1024,
			Temperature: 0.7,
		},
		Buffer: BufferConfig{
			BaseDelayMs:      2000,
			MaxDelayMs:       5000,
			DelayIncrementMs: 1000,
		},
		Retry: RetryConfig{
			MaxAttempts:    3,
			BaseDelayMs:    1000,
			MaxDelayMs:     4000,
			Multiplier:     2,
			CallTimeoutSec: 8,
		},
		Gateway: GatewayConfig{
			MaxMessageAgeMinutes: 5,
			RecentUpdateCapacity: 1000,
		},
		Store: StoreConfig{
			Path: "~/.shopclaw/shopclaw.db",
		},
		Commerce: CommerceConfig{
			DefaultLanguage: "en",
			FallbackPrice:   0,
			Currency:        "USD",
			OrdersPageSize:  5,
		},
		Maintenance: MaintenanceConfig{
			Cron:       "0 4 * * *",
			RetainDays: 30,
		},
	}
}

// Load reads config from a JSON5 file, then overlays env vars.
// A missing file is not an error: defaults plus env apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnv(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnv(cfg)
	return cfg, nil
}

// applyEnv overlays SHOPCLAW_* environment variables. Secrets are env-only.
func applyEnv(cfg *Config) {
	if v := os.Getenv("SHOPCLAW_TELEGRAM_TOKEN"); v != "" {
		cfg.Telegram.Token = v
	}
	if v := os.Getenv("SHOPCLAW_WEBHOOK_SECRET"); v != "" {
		cfg.Telegram.WebhookSecret = v
	}
	if v := os.Getenv("SHOPCLAW_AI_API_KEY"); v != "" {
		cfg.AI.APIKey = v
	}
	if v := os.Getenv("SHOPCLAW_AI_BASE_URL"); v != "" {
		cfg.AI.BaseURL = v
	}
	if v := os.Getenv("SHOPCLAW_AI_MODEL"); v != "" {
		cfg.AI.Model = v
	}
	if v := os.Getenv("SHOPCLAW_STORE_KEY"); v != "" {
		cfg.Store.EncryptionKey = v
	}
	if v := os.Getenv("SHOPCLAW_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("SHOPCLAW_TELEGRAM_MODE"); v != "" {
		cfg.Telegram.Mode = v
	}
	if v := os.Getenv("SHOPCLAW_WEBHOOK_LISTEN"); v != "" {
		cfg.Telegram.WebhookListen = v
	}
	if v := os.Getenv("SHOPCLAW_MAX_MESSAGE_AGE_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Gateway.MaxMessageAgeMinutes = n
		}
	}
}

// ExpandHome expands a leading "~/" to the user's home directory.
func ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

// Validate checks that required settings are present for running the bot.
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("telegram token missing (set SHOPCLAW_TELEGRAM_TOKEN)")
	}
	if c.AI.APIKey == "" {
		return fmt.Errorf("AI API key missing (set SHOPCLAW_AI_API_KEY)")
	}
	if c.Telegram.Mode == "webhook" && c.Telegram.WebhookListen == "" {
		return fmt.Errorf("telegram.webhook_listen required in webhook mode")
	}
	return nil
}
