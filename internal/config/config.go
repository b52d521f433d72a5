// Package config handles configuration management with validation
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the complete configuration structure for a single
// market's ladder.
type Config struct {
	App         AppConfig         `yaml:"app"`
	Exchange    ExchangeConfig    `yaml:"exchange"`
	Ladder      LadderConfig      `yaml:"ladder"`
	System      SystemConfig      `yaml:"system"`
	Timing      TimingConfig      `yaml:"timing"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	Notify      NotifyConfig      `yaml:"notify"`
}

// NotifyConfig configures the alert channels the Balance Guard (and any
// other alerting caller) fans out to. Both are optional; an empty
// webhook URL or bot token disables that channel.
type NotifyConfig struct {
	SlackWebhookURL  Secret `yaml:"slack_webhook_url"`
	TelegramBotToken Secret `yaml:"telegram_bot_token"`
	TelegramChatID   string `yaml:"telegram_chat_id"`
}

// TelemetryConfig contains telemetry settings
type TelemetryConfig struct {
	MetricsPort   int  `yaml:"metrics_port"`
	EnableMetrics bool `yaml:"enable_metrics"`
}

// AppConfig contains application-level settings
type AppConfig struct {
	Pair     string `yaml:"pair" validate:"required"`      // market pair, BASE/QUOTE
	Exchange string `yaml:"exchange" validate:"required"`  // adapter name, e.g. "bitfinex", "mock"
	Notify   string `yaml:"notify_name"`                    // notification label; not read by the alert senders
	Silent   bool   `yaml:"silent_mode"`                    // suppress notifications entirely
}

// ExchangeConfig contains exchange-specific configuration
type ExchangeConfig struct {
	APIKey     Secret `yaml:"api_key" validate:"required"`
	APISecret  Secret `yaml:"api_secret" validate:"required"`
	APIPass    Secret `yaml:"api_password"`
	BaseURL    string `yaml:"base_url"`
	FeeRate    float64 `yaml:"fee_rate" validate:"min=0,max=1"`
}

// LadderConfig contains the ladder's trading parameters. Field names
// mirror the mm_ladder* configuration options the engine recognizes.
type LadderConfig struct {
	IsActive bool `yaml:"co_is_active"`

	Count             int     `yaml:"ladder_count" validate:"required,min=1,max=500"`
	PriceStepPercent  float64 `yaml:"ladder_price_step_percent" validate:"required,gt=0"`
	Amount            float64 `yaml:"ladder_amount" validate:"required,gt=0"`
	AmountCoin        string  `yaml:"ladder_amount_coin" validate:"required,oneof=base quote"`
	AmountJitter      float64 `yaml:"ladder_amount_jitter"` // d in [1-d, 1+d], defaults to 0.02

	MidPrice     float64 `yaml:"ladder_mid_price"`
	MidPriceType string  `yaml:"ladder_mid_price_type"`

	// ReInit is a one-shot flag: when true, the next iteration cancels the
	// entire ladder and clears the flag instead of reconciling normally.
	ReInit bool `yaml:"ladder_re_init"`

	// PreviousFilledOrderStates is the configurable whitelist used by the
	// fill-demotion heuristic in the Reconciler (§4.3 step 2b). Defaults
	// to {Filled, Missed} if left empty.
	PreviousFilledOrderStates []string `yaml:"ladder_previous_filled_order_states"`
}

// SystemConfig contains system settings
type SystemConfig struct {
	LogLevel     string `yaml:"log_level" validate:"required,oneof=DEBUG INFO WARN ERROR FATAL"`
	CancelOnExit bool   `yaml:"cancel_on_exit"`
	HealthPort   string `yaml:"health_port"`
}

// TimingConfig contains timing-related settings for the Scheduler.
type TimingConfig struct {
	// MinIntervalMs is the floor of the scheduler's randomized tick
	// interval; the effective min is max(MinIntervalMs, adapter's
	// OpenOrdersCacheSec*1000).
	MinIntervalMs int `yaml:"min_interval_ms" validate:"min=1000"`
	// IntervalSpreadMs is added to MinIntervalMs to form the randomized
	// interval's upper bound.
	IntervalSpreadMs int `yaml:"interval_spread_ms" validate:"min=0"`
	// InactivePollMs is the tick interval used while the ladder is
	// inactive in configuration (purely for activation polling).
	InactivePollMs int `yaml:"inactive_poll_ms" validate:"min=100"`
	// NotifyRateLimitSeconds is not read: the Balance Guard limits its
	// alerts with a fixed one-hour window.
	NotifyRateLimitSeconds int `yaml:"notify_rate_limit_seconds" validate:"min=1"`
}

// ConcurrencyConfig contains worker pool settings for the Closer's bulk
// cancellation fan-out.
type ConcurrencyConfig struct {
	ClosePoolSize   int `yaml:"close_pool_size" validate:"min=1,max=100"`
	ClosePoolBuffer int `yaml:"close_pool_buffer" validate:"min=1,max=10000"`
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s' (value: %v): %s", e.Field, e.Value, e.Message)
}

// LoadConfig loads configuration from a YAML file with environment variable expansion
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expandedData := expandEnvVars(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	var errors []string

	if err := c.validateAppConfig(); err != nil {
		errors = append(errors, err.Error())
	}
	if err := c.validateExchangeConfig(); err != nil {
		errors = append(errors, err.Error())
	}
	if err := c.validateLadderConfig(); err != nil {
		errors = append(errors, err.Error())
	}
	if err := c.validateSystemConfig(); err != nil {
		errors = append(errors, err.Error())
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(errors, "\n"))
	}

	return nil
}

func (c *Config) validateAppConfig() error {
	if c.App.Pair == "" {
		return ValidationError{Field: "app.pair", Message: "market pair is required"}
	}
	if !strings.Contains(c.App.Pair, "/") {
		return ValidationError{Field: "app.pair", Value: c.App.Pair, Message: "must be expressed as BASE/QUOTE"}
	}
	if c.App.Exchange == "" {
		return ValidationError{Field: "app.exchange", Message: "exchange adapter name is required"}
	}
	return nil
}

func (c *Config) validateExchangeConfig() error {
	if c.App.Exchange == "mock" {
		return nil
	}
	if c.Exchange.APIKey == "" {
		return ValidationError{Field: "exchange.api_key", Message: "API key is required"}
	}
	if c.Exchange.APISecret == "" {
		return ValidationError{Field: "exchange.api_secret", Message: "API secret is required"}
	}
	return nil
}

func (c *Config) validateLadderConfig() error {
	if c.Ladder.Count <= 0 {
		return ValidationError{Field: "ladder.ladder_count", Value: c.Ladder.Count, Message: "ladder count must be positive"}
	}
	// §8 boundary: step = 0 must be rejected by configuration validation.
	if c.Ladder.PriceStepPercent <= 0 {
		return ValidationError{Field: "ladder.ladder_price_step_percent", Value: c.Ladder.PriceStepPercent, Message: "price step must be positive"}
	}
	if c.Ladder.Amount <= 0 {
		return ValidationError{Field: "ladder.ladder_amount", Value: c.Ladder.Amount, Message: "ladder amount must be positive"}
	}
	if c.Ladder.AmountCoin != "base" && c.Ladder.AmountCoin != "quote" {
		return ValidationError{Field: "ladder.ladder_amount_coin", Value: c.Ladder.AmountCoin, Message: "must be 'base' or 'quote'"}
	}
	return nil
}

func (c *Config) validateSystemConfig() error {
	validLevels := []string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}
	if !contains(validLevels, strings.ToUpper(c.System.LogLevel)) {
		return ValidationError{
			Field:   "system.log_level",
			Value:   c.System.LogLevel,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(validLevels, ", ")),
		}
	}
	return nil
}

// String returns a string representation of the configuration (with
// sensitive data masked via Secret's own redaction).
func (c *Config) String() string {
	data, _ := yaml.Marshal(c)
	return string(data)
}

// Helper functions

func expandEnvVars(s string) string {
	return os.Expand(s, func(key string) string {
		return os.Getenv(key)
	})
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// DefaultConfig returns a default configuration, useful for tests and as
// a starting point for scenario fixtures matching spec §8.
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Pair:     "BTC/USDT",
			Exchange: "mock",
			Notify:   "ladderbot",
		},
		Exchange: ExchangeConfig{
			APIKey:    "test_api_key",
			APISecret: "test_api_secret",
			FeeRate:   0.001,
		},
		Ladder: LadderConfig{
			IsActive:         true,
			Count:            4,
			PriceStepPercent: 1.0,
			Amount:           0.1,
			AmountCoin:       "base",
			AmountJitter:     0.0,
			MidPrice:         100,
			MidPriceType:     "Configured",
		},
		System: SystemConfig{
			LogLevel:     "INFO",
			CancelOnExit: true,
			HealthPort:   "8080",
		},
		Timing: TimingConfig{
			MinIntervalMs:          10000,
			IntervalSpreadMs:       5000,
			InactivePollMs:         3000,
			NotifyRateLimitSeconds: 3600,
		},
		Concurrency: ConcurrencyConfig{
			ClosePoolSize:   5,
			ClosePoolBuffer: 100,
		},
	}
}
