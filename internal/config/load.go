package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load configuration from environment variables and optionally a config file.
// Environment variables take precedence over values from config files and
// use the GLOSSARY_ prefix with underscores for nesting, e.g.
// GLOSSARY_SEED_ENABLED, GLOSSARY_BUDGET_DAILY_TOKEN_BUDGET.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("glossary")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/glossary")

	// Config file is optional; environment variables alone are enough.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("GLOSSARY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv does not surface env-only keys through Unmarshal unless
	// the keys are known to viper, so bind every key we recognize.
	for _, key := range configKeys() {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults installs production defaults. Staging overrides the budget
// ceiling with a much smaller fixed limit via GLOSSARY_BUDGET_DAILY_TOKEN_BUDGET.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8085)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_pretty", false)

	v.SetDefault("llm.model_name", "gemini-2.0-flash")
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.retry_delay_seconds", 2)
	v.SetDefault("llm.call_timeout_seconds", 60)

	v.SetDefault("seed.enabled", false)
	v.SetDefault("seed.batch_size", 10)
	v.SetDefault("seed.priority_threshold", 5)
	v.SetDefault("seed.min_quality_score", 85)
	v.SetDefault("seed.max_batch_duration_minutes", 30)

	// Half of the provider's free daily allowance, further reduced by the
	// safety margin at ledger construction.
	v.SetDefault("budget.daily_token_budget", 500000)
	v.SetDefault("budget.safety_margin_percent", 10)
	v.SetDefault("budget.per_term_token_cost", 840)
	v.SetDefault("budget.high_water_mark_percent", 90)

	v.SetDefault("recovery.max_attempts", 3)
	v.SetDefault("recovery.scan_limit", 100)
	v.SetDefault("recovery.cooldown_minutes", 5)
	v.SetDefault("recovery.backoff_base_minutes", 5)
	v.SetDefault("recovery.backoff_multiplier", 2.0)
	v.SetDefault("recovery.backoff_max_minutes", 120)
	v.SetDefault("recovery.dlq_retention_days", 30)
}

// configKeys lists every recognized configuration key for env binding.
func configKeys() []string {
	return []string{
		"server.port",
		"server.log_level",
		"server.log_pretty",
		"server.trigger_secret",
		"database.url",
		"redis.url",
		"llm.gemini_api_key",
		"llm.model_name",
		"llm.max_retries",
		"llm.retry_delay_seconds",
		"llm.call_timeout_seconds",
		"seed.enabled",
		"seed.batch_size",
		"seed.priority_threshold",
		"seed.min_quality_score",
		"seed.max_batch_duration_minutes",
		"budget.daily_token_budget",
		"budget.safety_margin_percent",
		"budget.per_term_token_cost",
		"budget.high_water_mark_percent",
		"recovery.max_attempts",
		"recovery.scan_limit",
		"recovery.cooldown_minutes",
		"recovery.backoff_base_minutes",
		"recovery.backoff_multiplier",
		"recovery.backoff_max_minutes",
		"recovery.dlq_retention_days",
	}
}
