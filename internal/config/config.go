package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
// The struct is populated once at startup and passed to components at
// construction; nothing re-reads the environment during execution.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Redis    RedisConfig    `mapstructure:"redis"`
	LLM      LLMConfig      `mapstructure:"llm"      validate:"required"`
	Seed     SeedConfig     `mapstructure:"seed"     validate:"required"`
	Budget   BudgetConfig   `mapstructure:"budget"   validate:"required"`
	Recovery RecoveryConfig `mapstructure:"recovery" validate:"required"`
}

// ServerConfig contains the trigger HTTP surface settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	// LogPretty switches to colorized terminal output for local development.
	LogPretty bool `mapstructure:"log_pretty"`
	// TriggerSecret signs and verifies the scheduler's bearer tokens for
	// the internal trigger endpoints.
	TriggerSecret string `mapstructure:"trigger_secret" validate:"required,min=32"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// RedisConfig contains the entry-cache invalidation settings. An empty URL
// disables cache invalidation.
type RedisConfig struct {
	URL string `mapstructure:"url" validate:"omitempty,uri"`
}

// LLMConfig contains all generative backend settings.
type LLMConfig struct {
	GeminiAPIKey string `mapstructure:"gemini_api_key" validate:"required"`
	ModelName    string `mapstructure:"model_name"     validate:"required"`
	// MaxRetries bounds transport-level retries inside a single backend call.
	MaxRetries        int `mapstructure:"max_retries"         validate:"gte=0,lte=10"`
	RetryDelaySeconds int `mapstructure:"retry_delay_seconds" validate:"gte=1,lte=60"`
	// CallTimeoutSeconds is the per-call deadline against the backend.
	CallTimeoutSeconds int `mapstructure:"call_timeout_seconds" validate:"gte=1,lte=600"`
}

// SeedConfig contains the queue processor settings.
type SeedConfig struct {
	// Enabled gates all seeding; when false every batch run is a no-op.
	Enabled bool `mapstructure:"enabled"`
	// BatchSize is the nominal number of backlog items per run; the budget
	// ledger may shrink it.
	BatchSize int `mapstructure:"batch_size" validate:"required,gt=0,lte=500"`
	// PriorityThreshold filters the backlog: only items at or above it are
	// picked up.
	PriorityThreshold int `mapstructure:"priority_threshold" validate:"gte=0"`
	// MinQualityScore is the quality gate: candidates scoring below it go
	// to manual review instead of the dictionary.
	MinQualityScore int `mapstructure:"min_quality_score" validate:"required,gte=0,lte=100"`
	// MaxBatchDurationMinutes bounds one batch run end to end.
	MaxBatchDurationMinutes int `mapstructure:"max_batch_duration_minutes" validate:"gte=1,lte=720"`
}

// BudgetConfig contains the daily token budget settings. The enforceable
// limit is DailyTokenBudget reduced by SafetyMarginPercent, computed once
// at ledger construction.
type BudgetConfig struct {
	// DailyTokenBudget is the nominal daily ceiling, typically a fraction
	// of the provider's free daily allowance.
	DailyTokenBudget int `mapstructure:"daily_token_budget" validate:"required,gt=0"`
	// SafetyMarginPercent shrinks the nominal ceiling to absorb overshoot
	// from overlapping runs.
	SafetyMarginPercent int `mapstructure:"safety_margin_percent" validate:"gte=0,lte=50"`
	// PerTermTokenCost is the empirical cost estimate used to size batches.
	PerTermTokenCost int `mapstructure:"per_term_token_cost" validate:"required,gt=0"`
	// HighWaterMarkPercent is the usage percentage at which a running
	// batch stops early.
	HighWaterMarkPercent int `mapstructure:"high_water_mark_percent" validate:"gte=50,lte=100"`
}

// RecoveryConfig contains the failure recovery settings.
type RecoveryConfig struct {
	// MaxAttempts is the ceiling after which failed items are demoted to
	// the dead-letter store.
	MaxAttempts int `mapstructure:"max_attempts" validate:"required,gte=1,lte=10"`
	// ScanLimit bounds how many failed items one recovery pass inspects.
	ScanLimit int `mapstructure:"scan_limit" validate:"required,gte=1,lte=1000"`
	// CooldownMinutes is the minimum wait before a failed item is
	// reconsidered.
	CooldownMinutes int `mapstructure:"cooldown_minutes" validate:"gte=1"`
	// Backoff parameters for api_error retries:
	// delay = base * multiplier^(attempts-1), capped at max.
	BackoffBaseMinutes int     `mapstructure:"backoff_base_minutes" validate:"gte=1"`
	BackoffMultiplier  float64 `mapstructure:"backoff_multiplier"   validate:"gte=1"`
	BackoffMaxMinutes  int     `mapstructure:"backoff_max_minutes"  validate:"gte=1"`
	// DLQRetentionDays is how long dead letter items are kept before
	// age-based cleanup deletes them.
	DLQRetentionDays int `mapstructure:"dlq_retention_days" validate:"required,gte=1"`
}
