package generation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/solfege-app/glossary/internal/domain"
)

// secondOpinion asks the backend to re-score a sub-threshold candidate.
// A candidate whose validated score clears the threshold is accepted
// without another full generation attempt.
func (e *Engine) secondOpinion(
	ctx context.Context,
	entry *domain.DictionaryEntry,
) (*validationSchema, int, error) {
	entryJSON, err := json.Marshal(map[string]any{
		"definition": entry.Definition,
		"references": entry.References,
		"type":       entry.Type,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to marshal entry for validation: %w", err)
	}

	prompt, err := renderPrompt(validatorPrompt, map[string]any{
		"Term":      entry.Term,
		"Language":  entry.Language,
		"EntryJSON": string(entryJSON),
	})
	if err != nil {
		return nil, 0, err
	}

	result, err := e.client.GenerateJSON(ctx, prompt, CallOptions{
		MaxOutputTokens: validatorMaxTokens,
		Temperature:     validatorTemperature,
	})
	tokens := 0
	if result != nil {
		tokens = result.TokensUsed
	}
	if err != nil {
		return nil, tokens, fmt.Errorf("quality validation call failed: %w", err)
	}

	verdict, err := decodeValidation(e.validate, result.Text)
	if err != nil {
		return nil, tokens, err
	}

	return verdict, tokens, nil
}
