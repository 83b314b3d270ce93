package config

import "time"

// Config is the root configuration for the ShopClaw bot.
// Secrets (bot token, AI key, store encryption key) come from env only and
// are never read from or written to the config file.
type Config struct {
	Telegram    TelegramConfig    `json:"telegram"`
	AI          AIConfig          `json:"ai"`
	Buffer      BufferConfig      `json:"buffer"`
	Retry       RetryConfig       `json:"retry"`
	Gateway     GatewayConfig     `json:"gateway"`
	Store       StoreConfig       `json:"store"`
	Commerce    CommerceConfig    `json:"commerce"`
	Maintenance MaintenanceConfig `json:"maintenance"`
}

// TelegramConfig configures the platform channel.
type TelegramConfig struct {
	Token               string  `json:"-"`                                // env SHOPCLAW_TELEGRAM_TOKEN only
	Mode                string  `json:"mode,omitempty"`                   // "polling" (default) or "webhook"
	WebhookListen       string  `json:"webhook_listen,omitempty"`         // e.g. "0.0.0.0:8443"
	WebhookPath         string  `json:"webhook_path,omitempty"`           // e.g. "/telegram/webhook"
	WebhookSecret       string  `json:"-"`                                // env SHOPCLAW_WEBHOOK_SECRET only
	Proxy               string  `json:"proxy,omitempty"`
	SendRate            float64 `json:"send_rate,omitempty"`              // outbound messages/sec per chat
	WebhookMaxPerMinute int     `json:"webhook_max_per_minute,omitempty"` // inbound deliveries/min per source
}

// AIConfig configures the consultant model endpoint (OpenAI-compatible).
type AIConfig struct {
	APIKey      string  `json:"-"` // env SHOPCLAW_AI_API_KEY only
	BaseURL     string  `json:"base_url,omitempty"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
}

// BufferConfig controls the per-conversation debounce buffer.
type BufferConfig struct {
	BaseDelayMs      int `json:"base_delay_ms"`
	MaxDelayMs       int `json:"max_delay_ms"`
	DelayIncrementMs int `json:"delay_increment_ms"`
}

// BaseDelay returns the initial debounce delay.
func (b BufferConfig) BaseDelay() time.Duration {
	return time.Duration(b.BaseDelayMs) * time.Millisecond
}

// MaxDelay returns the debounce delay ceiling.
func (b BufferConfig) MaxDelay() time.Duration {
	return time.Duration(b.MaxDelayMs) * time.Millisecond
}

// DelayIncrement returns the per-arrival delay extension.
func (b BufferConfig) DelayIncrement() time.Duration {
	return time.Duration(b.DelayIncrementMs) * time.Millisecond
}

// RetryConfig controls the reliable dispatcher.
type RetryConfig struct {
	MaxAttempts    int     `json:"max_attempts"`
	BaseDelayMs    int     `json:"base_delay_ms"`
	MaxDelayMs     int     `json:"max_delay_ms"`
	Multiplier     float64 `json:"multiplier"`
	CallTimeoutSec int     `json:"call_timeout_sec"`
}

// GatewayConfig controls update admission.
type GatewayConfig struct {
	MaxMessageAgeMinutes int `json:"max_message_age_minutes"`
	RecentUpdateCapacity int `json:"recent_update_capacity"`
}

// MaxMessageAge returns the staleness cutoff for inbound updates.
func (g GatewayConfig) MaxMessageAge() time.Duration {
	return time.Duration(g.MaxMessageAgeMinutes) * time.Minute
}

// StoreConfig configures persistence.
type StoreConfig struct {
	Path          string `json:"path,omitempty"` // sqlite file (default ~/.shopclaw/shopclaw.db)
	EncryptionKey string `json:"-"`              // env SHOPCLAW_STORE_KEY only (owner token encryption)
}

// CommerceConfig carries business defaults used by intent handling.
type CommerceConfig struct {
	DefaultLanguage string  `json:"default_language"` // reply locale when the owner has none
	FallbackPrice   float64 `json:"fallback_price"`   // price for items recovered from malformed model output
	Currency        string  `json:"currency"`
	OrdersPageSize  int     `json:"orders_page_size"` // orders listed per FetchOrders reply
}

// MaintenanceConfig schedules the cleanup job.
type MaintenanceConfig struct {
	Cron       string `json:"cron,omitempty"`        // gron expression, empty disables
	RetainDays int    `json:"retain_days,omitempty"` // processed inbound messages kept this long
}
