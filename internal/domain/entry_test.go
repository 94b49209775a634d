package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func validEntry() *DictionaryEntry {
	return &DictionaryEntry{
		ID:             uuid.New(),
		Term:           "Cadence",
		NormalizedTerm: "cadence",
		Language:       "en",
		Definition: Definition{
			Concise:  "A melodic or harmonic close.",
			Detailed: "A cadence is a sequence of chords that brings a phrase to a point of rest.",
		},
		QualityScore: QualityScore{Overall: 88},
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
		Version:      1,
	}
}

func TestDictionaryEntry_Validate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, validEntry().Validate())

	entry := validEntry()
	entry.Language = ""
	assert.ErrorIs(t, entry.Validate(), ErrEmptyEntryLanguage)

	entry = validEntry()
	entry.Definition.Detailed = ""
	assert.ErrorIs(t, entry.Validate(), ErrEmptyDefinition)

	entry = validEntry()
	entry.QualityScore.Overall = 101
	assert.ErrorIs(t, entry.Validate(), ErrScoreOutOfRange)
}

func TestNormalizeTerm(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  string
	}{
		{"Cadence", "cadence"},
		{"  Circle  of   Fifths ", "circle of fifths"},
		{"FORTE", "forte"},
		{"a\ttempo", "a tempo"},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeTerm(tt.input), "input %q", tt.input)
	}
}

func TestConfidenceForScore(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ConfidenceHigh, ConfidenceForScore(80))
	assert.Equal(t, ConfidenceHigh, ConfidenceForScore(100))
	assert.Equal(t, ConfidenceMedium, ConfidenceForScore(79))
	assert.Equal(t, ConfidenceMedium, ConfidenceForScore(60))
	assert.Equal(t, ConfidenceLow, ConfidenceForScore(59))
	assert.Equal(t, ConfidenceLow, ConfidenceForScore(0))
}

func TestReferences_Count(t *testing.T) {
	t.Parallel()

	refs := References{
		Books:     []BookReference{{Title: "Harmony"}},
		Papers:    []PaperReference{{Title: "A"}, {Title: "B"}},
		Resources: []WebResource{{Title: "R", URL: "https://example.org"}},
	}
	assert.Equal(t, 4, refs.Count())
	assert.Zero(t, References{}.Count())
}
