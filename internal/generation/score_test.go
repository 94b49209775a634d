package generation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/solfege-app/glossary/internal/domain"
)

func fullDefinition() domain.Definition {
	return domain.Definition{
		Concise:       "A chord built from stacked thirds.",
		Detailed:      "A triad is a three-note chord consisting of a root, a third and a fifth.",
		Etymology:     "From Latin trias, a group of three.",
		Pronunciation: "/ˈtraɪæd/",
		UsageExample:  "The piece opens with a C major triad.",
	}
}

func nReferences(n int) domain.References {
	refs := domain.References{}
	for i := 0; i < n; i++ {
		refs.Resources = append(refs.Resources, domain.WebResource{
			Title: "Resource",
			URL:   "https://example.org/r",
		})
	}
	return refs
}

func TestScoreEntry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		def            domain.Definition
		refs           domain.References
		wantOverall    int
		wantConfidence domain.ConfidenceLevel
	}{
		{
			name:           "complete entry with full references",
			def:            fullDefinition(),
			refs:           nReferences(5),
			wantOverall:    92, // (100 + 75 + 100) / 3
			wantConfidence: domain.ConfidenceHigh,
		},
		{
			name: "required fields only, no references",
			def: domain.Definition{
				Concise:  "A chord built from stacked thirds.",
				Detailed: "A triad consists of a root, a third and a fifth.",
			},
			refs:           domain.References{},
			wantOverall:    45, // (60 + 75 + 0) / 3
			wantConfidence: domain.ConfidenceLow,
		},
		{
			name: "partial enrichment with some references",
			def: domain.Definition{
				Concise:      "A chord built from stacked thirds.",
				Detailed:     "A triad consists of a root, a third and a fifth.",
				UsageExample: "The piece opens with a C major triad.",
			},
			refs:           nReferences(2),
			wantOverall:    65, // (80 + 75 + 40) / 3
			wantConfidence: domain.ConfidenceMedium,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			score := scoreEntry(tt.def, tt.refs)
			assert.Equal(t, tt.wantOverall, score.Overall)
			assert.Equal(t, tt.wantConfidence, score.ConfidenceLevel)
			assert.Equal(t, baselineClarity, score.DefinitionClarity)
			assert.False(t, score.HumanVerified)
			assert.False(t, score.LastAICheck.IsZero())
		})
	}
}

func TestScoreEntry_ReferenceScoreCapped(t *testing.T) {
	t.Parallel()

	score := scoreEntry(fullDefinition(), nReferences(20))
	assert.Equal(t, 100, score.ReferenceCompleteness, "reference score never exceeds 100")
}
