package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ConfidenceLevel expresses how much trust the pipeline places in a
// generated entry's quality score.
type ConfidenceLevel string

// Possible confidence levels
const (
	ConfidenceLow    ConfidenceLevel = "low"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceHigh   ConfidenceLevel = "high"
)

// Common validation errors for DictionaryEntry
var (
	ErrEmptyEntryID       = errors.New("entry ID cannot be empty")
	ErrEmptyEntryTerm     = errors.New("entry term cannot be empty")
	ErrEmptyEntryLanguage = errors.New("entry language cannot be empty")
	ErrEmptyDefinition    = errors.New("entry definition must have concise and detailed text")
	ErrScoreOutOfRange    = errors.New("quality score must be between 0 and 100")
)

// Definition holds the generated definition texts for a term. Concise and
// Detailed are required; the remaining fields are optional enrichments.
type Definition struct {
	Concise       string `json:"concise"`
	Detailed      string `json:"detailed"`
	Etymology     string `json:"etymology,omitempty"`
	Pronunciation string `json:"pronunciation,omitempty"`
	UsageExample  string `json:"usage_example,omitempty"`
}

// BookReference is a supporting book citation, keyed by ISBN.
type BookReference struct {
	Title  string `json:"title"`
	Author string `json:"author,omitempty"`
	ISBN   string `json:"isbn,omitempty"`
	Year   int    `json:"year,omitempty"`
}

// PaperReference is a supporting academic citation, keyed by DOI.
type PaperReference struct {
	Title   string `json:"title"`
	Authors string `json:"authors,omitempty"`
	DOI     string `json:"doi,omitempty"`
	Year    int    `json:"year,omitempty"`
}

// WebResource is a supporting link, keyed by URL.
type WebResource struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// References bundles the supporting material attached to an entry.
type References struct {
	Books     []BookReference  `json:"books,omitempty"`
	Papers    []PaperReference `json:"papers,omitempty"`
	Resources []WebResource    `json:"resources,omitempty"`
}

// Count returns the total number of references across all kinds.
func (r References) Count() int {
	return len(r.Books) + len(r.Papers) + len(r.Resources)
}

// Metadata carries usage statistics and editorial context for an entry.
// Search and view counters start at zero and are maintained by the serving
// path, not by this pipeline.
type Metadata struct {
	SearchCount  int      `json:"search_count"`
	ViewCount    int      `json:"view_count"`
	RelatedTerms []string `json:"related_terms,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	Category     string   `json:"category,omitempty"`
	Difficulty   string   `json:"difficulty,omitempty"`
	Instruments  []string `json:"instruments,omitempty"`
}

// QualityScore records the quality assessment of a generated entry.
// Overall is the gating value; the component scores document how it was
// derived.
type QualityScore struct {
	Overall               int             `json:"overall"`
	DefinitionClarity     int             `json:"definition_clarity"`
	ReferenceCompleteness int             `json:"reference_completeness"`
	AccuracyVerification  int             `json:"accuracy_verification"`
	LastAICheck           time.Time       `json:"last_ai_check"`
	HumanVerified         bool            `json:"human_verified"`
	ConfidenceLevel       ConfidenceLevel `json:"confidence_level"`
}

// DictionaryEntry is the final artifact produced by the seeding pipeline.
// Entries are unique per (normalized term, language); Version increments
// on every successful enhancement.
type DictionaryEntry struct {
	ID             uuid.UUID    `json:"id"`
	Term           string       `json:"term"`
	NormalizedTerm string       `json:"normalized_term"`
	Type           string       `json:"type,omitempty"`
	Language       string       `json:"language"`
	Definition     Definition   `json:"definition"`
	References     References   `json:"references"`
	Metadata       Metadata     `json:"metadata"`
	QualityScore   QualityScore `json:"quality_score"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
	Version        int          `json:"version"`
}

// Validate checks if the DictionaryEntry has valid data.
func (e *DictionaryEntry) Validate() error {
	if e.ID == uuid.Nil {
		return ErrEmptyEntryID
	}

	if e.Term == "" || e.NormalizedTerm == "" {
		return ErrEmptyEntryTerm
	}

	if e.Language == "" {
		return ErrEmptyEntryLanguage
	}

	if e.Definition.Concise == "" || e.Definition.Detailed == "" {
		return ErrEmptyDefinition
	}

	if e.QualityScore.Overall < 0 || e.QualityScore.Overall > 100 {
		return ErrScoreOutOfRange
	}

	return nil
}

// NormalizeTerm produces the canonical lookup form of a term: lower-cased,
// trimmed, inner whitespace collapsed to single spaces.
func NormalizeTerm(term string) string {
	return strings.Join(strings.Fields(strings.ToLower(term)), " ")
}

// ConfidenceForScore derives the confidence level from an overall score.
func ConfidenceForScore(overall int) ConfidenceLevel {
	switch {
	case overall >= 80:
		return ConfidenceHigh
	case overall >= 60:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}
