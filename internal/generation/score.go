package generation

import (
	"math"
	"time"

	"github.com/solfege-app/glossary/internal/domain"
)

// Scoring weights for definition field presence. Required fields dominate;
// optional enrichments top the score up.
const (
	weightConcise       = 30
	weightDetailed      = 30
	weightEtymology     = 10
	weightPronunciation = 10
	weightUsageExample  = 20

	// baselineClarity is the fixed clarity score assigned to candidates
	// that passed schema validation. A dedicated clarity model does not
	// exist; the quality validator provides a second opinion when the
	// overall score falls short.
	baselineClarity = 75

	// referencePointValue is how much each reference contributes to the
	// reference completeness score, capped at 100.
	referencePointValue = 20
)

// scoreEntry computes the deterministic quality score for a candidate from
// completeness heuristics: weighted presence of definition fields, the
// fixed baseline clarity, and a references-count-derived score, averaged
// into the overall value.
func scoreEntry(def domain.Definition, refs domain.References) domain.QualityScore {
	completeness := 0
	if def.Concise != "" {
		completeness += weightConcise
	}
	if def.Detailed != "" {
		completeness += weightDetailed
	}
	if def.Etymology != "" {
		completeness += weightEtymology
	}
	if def.Pronunciation != "" {
		completeness += weightPronunciation
	}
	if def.UsageExample != "" {
		completeness += weightUsageExample
	}

	refScore := refs.Count() * referencePointValue
	if refScore > 100 {
		refScore = 100
	}

	overall := int(math.Round(float64(completeness+baselineClarity+refScore) / 3.0))

	return domain.QualityScore{
		Overall:               overall,
		DefinitionClarity:     baselineClarity,
		ReferenceCompleteness: refScore,
		AccuracyVerification:  completeness,
		LastAICheck:           time.Now().UTC(),
		HumanVerified:         false,
		ConfidenceLevel:       domain.ConfidenceForScore(overall),
	}
}
