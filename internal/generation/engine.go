package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/solfege-app/glossary/internal/domain"
)

// Config holds engine tuning parameters.
type Config struct {
	// MinQualityScore is the score the engine tries to reach before
	// giving up. Callers gate persistence against their own threshold;
	// the two are normally the same value.
	MinQualityScore int

	// MaxAttempts bounds the generate-score loop per term/language pair.
	// These attempts are internal to the engine, distinct from the queue
	// processor's item-level retry handling.
	MaxAttempts int

	// UseValidator enables the second-opinion quality validation call for
	// candidates that score below MinQualityScore.
	UseValidator bool
}

// GenerationContext carries optional editorial hints for a generation run.
type GenerationContext struct {
	Difficulty  string
	Instruments []string
	Category    string
}

// Default engine limits applied when Config leaves them zero.
const (
	defaultMaxAttempts = 3

	definitionMaxTokens = 1024
	referencesMaxTokens = 512
	validatorMaxTokens  = 256

	definitionTemperature = 0.4
	referencesTemperature = 0.2
	validatorTemperature  = 0.0
)

// Engine produces quality-scored dictionary entries via the generative
// backend.
type Engine struct {
	client   ContentClient
	validate *validator.Validate
	logger   *slog.Logger
	cfg      Config
}

// NewEngine creates an Engine with the provided backend client and
// configuration.
func NewEngine(client ContentClient, cfg Config, logger *slog.Logger) (*Engine, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: content client cannot be nil", ErrInvalidConfig)
	}
	if logger == nil {
		return nil, fmt.Errorf("%w: logger cannot be nil", ErrInvalidConfig)
	}
	if cfg.MinQualityScore < 0 || cfg.MinQualityScore > 100 {
		return nil, fmt.Errorf("%w: quality score threshold must be 0-100", ErrInvalidConfig)
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}

	return &Engine{
		client:   client,
		validate: validator.New(),
		logger:   logger.With(slog.String("component", "generation_engine")),
		cfg:      cfg,
	}, nil
}

// Generate produces a candidate dictionary entry for the term/language
// pair. It returns the candidate, the total tokens consumed across all
// backend calls (reported even when generation fails), and an error.
//
// When every attempt produces a candidate below the quality threshold,
// the best candidate is returned together with ErrQualityNotReached so
// the caller can route it to manual review; the candidate is never
// returned silently as a success. A nil candidate with an error means
// generation failed outright.
func (e *Engine) Generate(
	ctx context.Context,
	term, language string,
	genCtx GenerationContext,
) (*domain.DictionaryEntry, int, error) {
	if term == "" {
		return nil, 0, ErrEmptyTerm
	}
	if language == "" {
		return nil, 0, fmt.Errorf("%w: language cannot be empty", ErrInvalidConfig)
	}

	log := e.logger.With(
		slog.String("term", term),
		slog.String("language", language))

	totalTokens := 0
	var best *domain.DictionaryEntry
	var lastErr error

	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		log.Debug("starting generation attempt",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", e.cfg.MaxAttempts))

		entry, tokens, err := e.generateOnce(ctx, term, language, genCtx)
		totalTokens += tokens
		if err != nil {
			lastErr = err
			log.Warn("generation attempt failed",
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()))

			// Permanent backend refusals will not improve with retries.
			if errors.Is(err, ErrContentBlocked) || ctx.Err() != nil {
				return nil, totalTokens, err
			}
			continue
		}

		if best == nil || entry.QualityScore.Overall > best.QualityScore.Overall {
			best = entry
		}

		if entry.QualityScore.Overall >= e.cfg.MinQualityScore {
			log.Info("generated entry passed quality threshold",
				slog.Int("attempt", attempt),
				slog.Int("overall", entry.QualityScore.Overall))
			return entry, totalTokens, nil
		}

		// Below threshold: ask the validator for a second opinion before
		// burning another full attempt.
		if e.cfg.UseValidator {
			verdict, tokens, err := e.secondOpinion(ctx, entry)
			totalTokens += tokens
			if err != nil {
				log.Warn("quality validation call failed",
					slog.Int("attempt", attempt),
					slog.String("error", err.Error()))
			} else if verdict.Overall >= e.cfg.MinQualityScore &&
				verdict.Overall > entry.QualityScore.Overall {
				entry.QualityScore.Overall = verdict.Overall
				entry.QualityScore.DefinitionClarity = verdict.DefinitionClarity
				entry.QualityScore.AccuracyVerification = verdict.Accuracy
				entry.QualityScore.ConfidenceLevel = domain.ConfidenceForScore(verdict.Overall)
				entry.QualityScore.LastAICheck = time.Now().UTC()

				log.Info("validator accepted entry above threshold",
					slog.Int("attempt", attempt),
					slog.Int("validated_overall", verdict.Overall))
				return entry, totalTokens, nil
			}
		}

		log.Info("generated entry below quality threshold",
			slog.Int("attempt", attempt),
			slog.Int("overall", entry.QualityScore.Overall),
			slog.Int("threshold", e.cfg.MinQualityScore))
	}

	if best != nil {
		return best, totalTokens, fmt.Errorf("%w: best score %d below threshold %d after %d attempts",
			ErrQualityNotReached, best.QualityScore.Overall, e.cfg.MinQualityScore, e.cfg.MaxAttempts)
	}

	if lastErr == nil {
		lastErr = ErrQualityNotReached
	}
	return nil, totalTokens, fmt.Errorf("generation failed after %d attempts: %w",
		e.cfg.MaxAttempts, lastErr)
}

// generateOnce runs one full pipeline pass: definition, references,
// deterministic scoring, assembly.
func (e *Engine) generateOnce(
	ctx context.Context,
	term, language string,
	genCtx GenerationContext,
) (*domain.DictionaryEntry, int, error) {
	tokens := 0

	prompt, err := renderPrompt(definitionPrompt, map[string]any{
		"Term":        term,
		"Language":    language,
		"Difficulty":  genCtx.Difficulty,
		"Instruments": genCtx.Instruments,
	})
	if err != nil {
		return nil, tokens, err
	}

	result, err := e.client.GenerateJSON(ctx, prompt, CallOptions{
		MaxOutputTokens: definitionMaxTokens,
		Temperature:     definitionTemperature,
	})
	if result != nil {
		tokens += result.TokensUsed
	}
	if err != nil {
		return nil, tokens, fmt.Errorf("definition generation failed: %w", err)
	}

	defSchema, err := decodeDefinition(e.validate, result.Text)
	if err != nil {
		return nil, tokens, err
	}

	refs, refTokens := e.generateReferences(ctx, term)
	tokens += refTokens

	definition := domain.Definition{
		Concise:       defSchema.Concise,
		Detailed:      defSchema.Detailed,
		Etymology:     defSchema.Etymology,
		Pronunciation: defSchema.Pronunciation,
		UsageExample:  defSchema.UsageExample,
	}

	now := time.Now().UTC()
	entry := &domain.DictionaryEntry{
		ID:             uuid.New(),
		Term:           term,
		NormalizedTerm: domain.NormalizeTerm(term),
		Type:           defSchema.TermType,
		Language:       language,
		Definition:     definition,
		References:     refs,
		Metadata: domain.Metadata{
			Category:    genCtx.Category,
			Difficulty:  genCtx.Difficulty,
			Instruments: genCtx.Instruments,
		},
		QualityScore: scoreEntry(definition, refs),
		CreatedAt:    now,
		UpdatedAt:    now,
		Version:      1,
	}

	return entry, tokens, nil
}

// generateReferences fetches the references bundle. Best effort: any
// failure degrades to an empty bundle and never fails the attempt.
func (e *Engine) generateReferences(ctx context.Context, term string) (domain.References, int) {
	prompt, err := renderPrompt(referencesPrompt, map[string]any{"Term": term})
	if err != nil {
		e.logger.Warn("failed to render references prompt",
			slog.String("term", term),
			slog.String("error", err.Error()))
		return domain.References{}, 0
	}

	result, err := e.client.GenerateJSON(ctx, prompt, CallOptions{
		MaxOutputTokens: referencesMaxTokens,
		Temperature:     referencesTemperature,
	})
	tokens := 0
	if result != nil {
		tokens = result.TokensUsed
	}
	if err != nil {
		e.logger.Warn("references generation failed, continuing without references",
			slog.String("term", term),
			slog.String("error", err.Error()))
		return domain.References{}, tokens
	}

	schema, err := decodeReferences(e.validate, result.Text)
	if err != nil {
		e.logger.Warn("references response unparseable, continuing without references",
			slog.String("term", term),
			slog.String("error", err.Error()))
		return domain.References{}, tokens
	}

	return schema.toReferences(), tokens
}
