package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setRequiredEnv sets the minimal environment for a valid config load.
func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("GLOSSARY_DATABASE_URL", "postgres://localhost:5432/glossary")
	t.Setenv("GLOSSARY_LLM_GEMINI_API_KEY", "test-api-key")
	t.Setenv("GLOSSARY_SERVER_TRIGGER_SECRET", "0123456789abcdef0123456789abcdef")
}

func TestLoadWithDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, 8085, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.False(t, cfg.Seed.Enabled)
	assert.Equal(t, 10, cfg.Seed.BatchSize)
	assert.Equal(t, 85, cfg.Seed.MinQualityScore)
	assert.Equal(t, 500000, cfg.Budget.DailyTokenBudget)
	assert.Equal(t, 10, cfg.Budget.SafetyMarginPercent)
	assert.Equal(t, 840, cfg.Budget.PerTermTokenCost)
	assert.Equal(t, 90, cfg.Budget.HighWaterMarkPercent)
	assert.Equal(t, 3, cfg.Recovery.MaxAttempts)
	assert.Equal(t, 100, cfg.Recovery.ScanLimit)
	assert.Equal(t, 30, cfg.Recovery.DLQRetentionDays)
	assert.Equal(t, "gemini-2.0-flash", cfg.LLM.ModelName)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("GLOSSARY_SEED_ENABLED", "true")
	t.Setenv("GLOSSARY_SEED_BATCH_SIZE", "25")
	t.Setenv("GLOSSARY_SEED_MIN_QUALITY_SCORE", "70")
	t.Setenv("GLOSSARY_SEED_PRIORITY_THRESHOLD", "8")
	t.Setenv("GLOSSARY_BUDGET_DAILY_TOKEN_BUDGET", "4500")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.Seed.Enabled)
	assert.Equal(t, 25, cfg.Seed.BatchSize)
	assert.Equal(t, 70, cfg.Seed.MinQualityScore)
	assert.Equal(t, 8, cfg.Seed.PriorityThreshold)
	assert.Equal(t, 4500, cfg.Budget.DailyTokenBudget)
}

func TestLoadStagingBudgetLimit(t *testing.T) {
	// Staging deployments pin a much smaller fixed daily limit via the
	// same override mechanism.
	setRequiredEnv(t)
	t.Setenv("GLOSSARY_BUDGET_DAILY_TOKEN_BUDGET", "20000")
	t.Setenv("GLOSSARY_BUDGET_SAFETY_MARGIN_PERCENT", "20")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 20000, cfg.Budget.DailyTokenBudget)
	assert.Equal(t, 20, cfg.Budget.SafetyMarginPercent)
}

func TestLoadFailsWithoutRequiredValues(t *testing.T) {
	t.Setenv("GLOSSARY_DATABASE_URL", "")
	t.Setenv("GLOSSARY_LLM_GEMINI_API_KEY", "")
	t.Setenv("GLOSSARY_SERVER_TRIGGER_SECRET", "")

	cfg, err := Load()
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestLoadRejectsOutOfRangeValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "quality score above 100", key: "GLOSSARY_SEED_MIN_QUALITY_SCORE", value: "150"},
		{name: "zero batch size", key: "GLOSSARY_SEED_BATCH_SIZE", value: "0"},
		{name: "short trigger secret", key: "GLOSSARY_SERVER_TRIGGER_SECRET", value: "too-short"},
		{name: "invalid log level", key: "GLOSSARY_SERVER_LOG_LEVEL", value: "loud"},
		{name: "negative budget", key: "GLOSSARY_BUDGET_DAILY_TOKEN_BUDGET", value: "-1"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tc.key, tc.value)

			cfg, err := Load()
			assert.Error(t, err)
			assert.Nil(t, cfg)
		})
	}
}
