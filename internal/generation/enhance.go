package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/solfege-app/glossary/internal/domain"
)

// Focus areas recognized by Enhance. An empty focus list means all areas.
const (
	FocusDefinition   = "definition"
	FocusReferences   = "references"
	FocusRelatedTerms = "related_terms"
)

// Enhance regenerates the selected fields of an existing entry and merges
// the results: a non-empty field wins over an empty one, existing detail
// is preferred when both sides are populated, and references are
// de-duplicated by natural key (ISBN for books, DOI for papers, URL for
// resources). The quality score is recomputed over the merged entry.
//
// The enhanced entry is returned only if quality strictly improved, or
// held steady while previously-missing optional fields were newly
// populated. Otherwise Enhance returns nil with no error: a no-op.
// The token count is reported in all cases.
func (e *Engine) Enhance(
	ctx context.Context,
	existing *domain.DictionaryEntry,
	focusAreas []string,
) (*domain.DictionaryEntry, int, error) {
	if existing == nil {
		return nil, 0, fmt.Errorf("%w: existing entry cannot be nil", ErrInvalidConfig)
	}

	if len(focusAreas) == 0 {
		focusAreas = []string{FocusDefinition, FocusReferences, FocusRelatedTerms}
	}

	log := e.logger.With(
		slog.String("term", existing.Term),
		slog.String("language", existing.Language))

	merged := *existing
	merged.Definition = existing.Definition
	merged.References = existing.References
	merged.Metadata = existing.Metadata
	tokens := 0

	if containsFocus(focusAreas, FocusDefinition) || containsFocus(focusAreas, FocusRelatedTerms) {
		schema, used, err := e.regenerateFields(ctx, existing, focusAreas)
		tokens += used
		if err != nil {
			return nil, tokens, err
		}

		if containsFocus(focusAreas, FocusDefinition) {
			merged.Definition = mergeDefinition(existing.Definition, schema)
			if existing.Type == "" && schema.TermType != "" {
				merged.Type = schema.TermType
			}
		}
		if containsFocus(focusAreas, FocusRelatedTerms) {
			merged.Metadata.RelatedTerms = mergeStrings(
				existing.Metadata.RelatedTerms, schema.RelatedTerms)
		}
	}

	if containsFocus(focusAreas, FocusReferences) {
		refs, used := e.generateReferences(ctx, existing.Term)
		tokens += used
		merged.References = mergeReferences(existing.References, refs)
	}

	merged.QualityScore = scoreEntry(merged.Definition, merged.References)

	improved := merged.QualityScore.Overall > existing.QualityScore.Overall
	heldWithNewFields := merged.QualityScore.Overall == existing.QualityScore.Overall &&
		newlyPopulated(existing.Definition, merged.Definition)

	if !improved && !heldWithNewFields {
		log.Info("enhancement produced no improvement",
			slog.Int("existing_overall", existing.QualityScore.Overall),
			slog.Int("merged_overall", merged.QualityScore.Overall))
		return nil, tokens, nil
	}

	merged.UpdatedAt = time.Now().UTC()
	merged.Version = existing.Version + 1

	log.Info("enhancement accepted",
		slog.Int("existing_overall", existing.QualityScore.Overall),
		slog.Int("merged_overall", merged.QualityScore.Overall),
		slog.Int("version", merged.Version))
	return &merged, tokens, nil
}

// regenerateFields asks the backend for improved definition fields and
// related terms.
func (e *Engine) regenerateFields(
	ctx context.Context,
	existing *domain.DictionaryEntry,
	focusAreas []string,
) (*enhanceSchema, int, error) {
	entryJSON, err := json.Marshal(map[string]any{
		"definition":    existing.Definition,
		"type":          existing.Type,
		"related_terms": existing.Metadata.RelatedTerms,
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to marshal entry for enhancement: %w", err)
	}

	prompt, err := renderPrompt(enhancePrompt, map[string]any{
		"Term":       existing.Term,
		"Language":   existing.Language,
		"EntryJSON":  string(entryJSON),
		"FocusAreas": focusAreas,
	})
	if err != nil {
		return nil, 0, err
	}

	result, err := e.client.GenerateJSON(ctx, prompt, CallOptions{
		MaxOutputTokens: definitionMaxTokens,
		Temperature:     definitionTemperature,
	})
	tokens := 0
	if result != nil {
		tokens = result.TokensUsed
	}
	if err != nil {
		return nil, tokens, fmt.Errorf("enhancement generation failed: %w", err)
	}

	schema, err := decodeEnhancement(result.Text)
	if err != nil {
		return nil, tokens, err
	}

	return schema, tokens, nil
}

// mergeDefinition applies the merge rule per field: non-empty wins,
// existing detail is preferred when both sides are populated.
func mergeDefinition(existing domain.Definition, update *enhanceSchema) domain.Definition {
	return domain.Definition{
		Concise:       preferExisting(existing.Concise, update.Concise),
		Detailed:      preferExisting(existing.Detailed, update.Detailed),
		Etymology:     preferExisting(existing.Etymology, update.Etymology),
		Pronunciation: preferExisting(existing.Pronunciation, update.Pronunciation),
		UsageExample:  preferExisting(existing.UsageExample, update.UsageExample),
	}
}

// mergeReferences unions both bundles, de-duplicating by natural key.
// Items without a natural key fall back to their title.
func mergeReferences(existing, update domain.References) domain.References {
	merged := domain.References{}

	seenBooks := make(map[string]bool)
	for _, b := range append(existing.Books, update.Books...) {
		key := b.ISBN
		if key == "" {
			key = b.Title
		}
		if key == "" || seenBooks[key] {
			continue
		}
		seenBooks[key] = true
		merged.Books = append(merged.Books, b)
	}

	seenPapers := make(map[string]bool)
	for _, p := range append(existing.Papers, update.Papers...) {
		key := p.DOI
		if key == "" {
			key = p.Title
		}
		if key == "" || seenPapers[key] {
			continue
		}
		seenPapers[key] = true
		merged.Papers = append(merged.Papers, p)
	}

	seenResources := make(map[string]bool)
	for _, r := range append(existing.Resources, update.Resources...) {
		if r.URL == "" || seenResources[r.URL] {
			continue
		}
		seenResources[r.URL] = true
		merged.Resources = append(merged.Resources, r)
	}

	return merged
}

// mergeStrings unions two string slices preserving order of first
// occurrence.
func mergeStrings(existing, update []string) []string {
	seen := make(map[string]bool)
	var merged []string
	for _, s := range append(append([]string(nil), existing...), update...) {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		merged = append(merged, s)
	}
	return merged
}

// newlyPopulated reports whether the merged definition filled any optional
// field that was previously empty.
func newlyPopulated(existing, merged domain.Definition) bool {
	return (existing.Etymology == "" && merged.Etymology != "") ||
		(existing.Pronunciation == "" && merged.Pronunciation != "") ||
		(existing.UsageExample == "" && merged.UsageExample != "")
}

func preferExisting(existing, update string) string {
	if existing != "" {
		return existing
	}
	return update
}

func containsFocus(areas []string, focus string) bool {
	for _, a := range areas {
		if a == focus {
			return true
		}
	}
	return false
}
