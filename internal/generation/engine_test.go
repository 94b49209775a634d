package generation

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solfege-app/glossary/internal/domain"
)

// scripted is one canned backend response.
type scripted struct {
	text   string
	tokens int
	err    error
}

// fakeClient routes calls to scripted responses by recognizing which
// prompt template produced them. Definition responses are consumed in
// order so attempts can be scripted to improve.
type fakeClient struct {
	definitions []scripted
	references  scripted
	validator   scripted
	enhance     scripted

	definitionCalls int
	referenceCalls  int
	validatorCalls  int
	enhanceCalls    int
}

func (f *fakeClient) GenerateJSON(_ context.Context, prompt string, _ CallOptions) (*CallResult, error) {
	var s scripted
	switch {
	case strings.Contains(prompt, "List authoritative references"):
		f.referenceCalls++
		s = f.references
	case strings.Contains(prompt, "reviewing a machine-generated"):
		f.validatorCalls++
		s = f.validator
	case strings.Contains(prompt, "improving an existing"):
		f.enhanceCalls++
		s = f.enhance
	default:
		idx := f.definitionCalls
		f.definitionCalls++
		if idx >= len(f.definitions) {
			idx = len(f.definitions) - 1
		}
		s = f.definitions[idx]
	}

	if s.err != nil {
		return &CallResult{TokensUsed: s.tokens}, s.err
	}
	return &CallResult{Text: s.text, TokensUsed: s.tokens}, nil
}

const fullDefinitionJSON = `{
	"concise": "A chord built from stacked thirds.",
	"detailed": "A triad is a three-note chord consisting of a root, a third and a fifth.",
	"etymology": "From Latin trias.",
	"pronunciation": "/traiad/",
	"usage_example": "The piece opens with a C major triad.",
	"term_type": "noun"
}`

const sparseDefinitionJSON = `{
	"concise": "A chord built from stacked thirds.",
	"detailed": "A triad consists of a root, a third and a fifth."
}`

const richReferencesJSON = `{
	"books": [
		{"title": "Harmony", "author": "W. Piston", "isbn": "978-0393954807", "year": 1987},
		{"title": "Tonal Harmony", "author": "S. Kostka", "isbn": "978-1259447099", "year": 2017}
	],
	"papers": [{"title": "Triadic Structures", "authors": "A. Author", "doi": "10.1000/x", "year": 2001}],
	"resources": [
		{"title": "Triad", "url": "https://example.org/triad"},
		{"title": "Chords", "url": "https://example.org/chords"}
	]
}`

func newTestEngine(t *testing.T, client ContentClient, cfg Config) *Engine {
	t.Helper()
	engine, err := NewEngine(client, cfg, slog.Default())
	require.NoError(t, err)
	return engine
}

func TestNewEngine_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewEngine(nil, Config{}, slog.Default())
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewEngine(&fakeClient{}, Config{}, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewEngine(&fakeClient{}, Config{MinQualityScore: 101}, slog.Default())
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestGenerate_PassesOnFirstAttempt(t *testing.T) {
	t.Parallel()

	client := &fakeClient{
		definitions: []scripted{{text: fullDefinitionJSON, tokens: 700}},
		references:  scripted{text: richReferencesJSON, tokens: 300},
	}
	engine := newTestEngine(t, client, Config{MinQualityScore: 85, MaxAttempts: 3})

	entry, tokens, err := engine.Generate(context.Background(), "triad", "en", GenerationContext{})
	require.NoError(t, err)
	require.NotNil(t, entry)

	assert.Equal(t, "triad", entry.Term)
	assert.Equal(t, "triad", entry.NormalizedTerm)
	assert.Equal(t, "en", entry.Language)
	assert.Equal(t, "noun", entry.Type)
	assert.Equal(t, 5, entry.References.Count())
	assert.GreaterOrEqual(t, entry.QualityScore.Overall, 85)
	assert.Equal(t, domain.ConfidenceHigh, entry.QualityScore.ConfidenceLevel)
	assert.Equal(t, 1, entry.Version)

	assert.Equal(t, 1000, tokens)
	assert.Equal(t, 1, client.definitionCalls)
}

func TestGenerate_ExhaustedAttemptsReturnBestWithError(t *testing.T) {
	t.Parallel()

	client := &fakeClient{
		definitions: []scripted{{text: sparseDefinitionJSON, tokens: 500}},
		references:  scripted{text: `{"books":[],"papers":[],"resources":[]}`, tokens: 100},
	}
	engine := newTestEngine(t, client, Config{MinQualityScore: 85, MaxAttempts: 3})

	entry, tokens, err := engine.Generate(context.Background(), "triad", "en", GenerationContext{})

	// The best candidate comes back with the error so the caller can
	// route it to manual review.
	require.ErrorIs(t, err, ErrQualityNotReached)
	require.NotNil(t, entry)
	assert.Less(t, entry.QualityScore.Overall, 85)

	assert.Equal(t, 3, client.definitionCalls)
	assert.Equal(t, 1800, tokens, "all attempts' tokens are reported")
}

func TestGenerate_ValidatorRescuesSubThresholdCandidate(t *testing.T) {
	t.Parallel()

	client := &fakeClient{
		definitions: []scripted{{text: sparseDefinitionJSON, tokens: 500}},
		references:  scripted{text: `{"books":[],"papers":[],"resources":[]}`, tokens: 100},
		validator: scripted{
			text:   `{"overall": 90, "definition_clarity": 88, "accuracy": 92, "notes": "publishable"}`,
			tokens: 50,
		},
	}
	engine := newTestEngine(t, client, Config{MinQualityScore: 85, MaxAttempts: 3, UseValidator: true})

	entry, tokens, err := engine.Generate(context.Background(), "triad", "en", GenerationContext{})
	require.NoError(t, err)
	require.NotNil(t, entry)

	assert.Equal(t, 90, entry.QualityScore.Overall)
	assert.Equal(t, 88, entry.QualityScore.DefinitionClarity)
	assert.Equal(t, 92, entry.QualityScore.AccuracyVerification)
	assert.Equal(t, domain.ConfidenceHigh, entry.QualityScore.ConfidenceLevel)

	assert.Equal(t, 1, client.definitionCalls, "the validator verdict saves further attempts")
	assert.Equal(t, 1, client.validatorCalls)
	assert.Equal(t, 650, tokens)
}

func TestGenerate_ValidatorAgreeingLowScoreDoesNotRescue(t *testing.T) {
	t.Parallel()

	client := &fakeClient{
		definitions: []scripted{{text: sparseDefinitionJSON, tokens: 500}},
		references:  scripted{text: `{"books":[],"papers":[],"resources":[]}`, tokens: 100},
		validator: scripted{
			text:   `{"overall": 40, "definition_clarity": 40, "accuracy": 45, "notes": "too thin"}`,
			tokens: 50,
		},
	}
	engine := newTestEngine(t, client, Config{MinQualityScore: 85, MaxAttempts: 2, UseValidator: true})

	entry, _, err := engine.Generate(context.Background(), "triad", "en", GenerationContext{})
	require.ErrorIs(t, err, ErrQualityNotReached)
	require.NotNil(t, entry)
	assert.Equal(t, 2, client.validatorCalls)
}

func TestGenerate_ContentBlockedAbortsImmediately(t *testing.T) {
	t.Parallel()

	client := &fakeClient{
		definitions: []scripted{{tokens: 20, err: ErrContentBlocked}},
	}
	engine := newTestEngine(t, client, Config{MinQualityScore: 85, MaxAttempts: 3})

	entry, tokens, err := engine.Generate(context.Background(), "triad", "en", GenerationContext{})
	assert.ErrorIs(t, err, ErrContentBlocked)
	assert.Nil(t, entry)
	assert.Equal(t, 20, tokens)
	assert.Equal(t, 1, client.definitionCalls, "blocked content is never retried")
}

func TestGenerate_MalformedDefinitionRetries(t *testing.T) {
	t.Parallel()

	client := &fakeClient{
		definitions: []scripted{
			{text: `{"concise": "missing detailed"}`, tokens: 200},
			{text: fullDefinitionJSON, tokens: 700},
		},
		references: scripted{text: richReferencesJSON, tokens: 300},
	}
	engine := newTestEngine(t, client, Config{MinQualityScore: 85, MaxAttempts: 3})

	entry, _, err := engine.Generate(context.Background(), "triad", "en", GenerationContext{})
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, 2, client.definitionCalls)
}

func TestGenerate_ReferencesFailureDegradesGracefully(t *testing.T) {
	t.Parallel()

	client := &fakeClient{
		definitions: []scripted{{text: fullDefinitionJSON, tokens: 700}},
		references:  scripted{tokens: 40, err: ErrTransientFailure},
	}
	engine := newTestEngine(t, client, Config{MinQualityScore: 50, MaxAttempts: 1})

	entry, tokens, err := engine.Generate(context.Background(), "triad", "en", GenerationContext{})
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Zero(t, entry.References.Count())
	assert.Equal(t, 740, tokens, "failed reference call tokens still count")
}

func TestGenerate_InputValidation(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, &fakeClient{definitions: []scripted{{}}}, Config{MinQualityScore: 85})

	_, _, err := engine.Generate(context.Background(), "", "en", GenerationContext{})
	assert.ErrorIs(t, err, ErrEmptyTerm)

	_, _, err = engine.Generate(context.Background(), "triad", "", GenerationContext{})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestGenerate_NormalizesTerm(t *testing.T) {
	t.Parallel()

	client := &fakeClient{
		definitions: []scripted{{text: fullDefinitionJSON, tokens: 700}},
		references:  scripted{text: richReferencesJSON, tokens: 300},
	}
	engine := newTestEngine(t, client, Config{MinQualityScore: 50, MaxAttempts: 1})

	entry, _, err := engine.Generate(context.Background(), "  Circle  of Fifths ", "en", GenerationContext{})
	require.NoError(t, err)
	assert.Equal(t, "circle of fifths", entry.NormalizedTerm)
	assert.Equal(t, "  Circle  of Fifths ", entry.Term, "the display form is preserved")
}
