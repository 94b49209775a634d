package gemini

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/solfege-app/glossary/internal/config"
	"github.com/solfege-app/glossary/internal/generation"
)

func TestNewClient_Validation(t *testing.T) {
	t.Parallel()

	cfg := config.LLMConfig{
		GeminiAPIKey: "test-key",
		ModelName:    "gemini-2.0-flash",
	}

	_, err := NewClient(context.Background(), nil, cfg)
	assert.Error(t, err)

	missingKey := cfg
	missingKey.GeminiAPIKey = ""
	_, err = NewClient(context.Background(), slog.Default(), missingKey)
	assert.ErrorIs(t, err, generation.ErrInvalidConfig)

	missingModel := cfg
	missingModel.ModelName = ""
	_, err = NewClient(context.Background(), slog.Default(), missingModel)
	assert.ErrorIs(t, err, generation.ErrInvalidConfig)
}
