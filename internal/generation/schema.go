package generation

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/solfege-app/glossary/internal/domain"
)

// Response schemas for the backend's JSON payloads. Each response shape is
// decoded strictly: unmarshal, then struct validation, producing a tagged
// success or an ErrInvalidResponse. Field-presence guessing on loose maps
// is deliberately not done here.

// definitionSchema is the expected shape of a definition response.
type definitionSchema struct {
	Concise       string `json:"concise"        validate:"required"`
	Detailed      string `json:"detailed"       validate:"required"`
	Etymology     string `json:"etymology"`
	Pronunciation string `json:"pronunciation"`
	UsageExample  string `json:"usage_example"`
	TermType      string `json:"term_type"`
}

// referencesSchema is the expected shape of a references response.
// Everything is optional; a references call never fails the attempt.
type referencesSchema struct {
	Books []struct {
		Title  string `json:"title"`
		Author string `json:"author"`
		ISBN   string `json:"isbn"`
		Year   int    `json:"year"`
	} `json:"books"`
	Papers []struct {
		Title   string `json:"title"`
		Authors string `json:"authors"`
		DOI     string `json:"doi"`
		Year    int    `json:"year"`
	} `json:"papers"`
	Resources []struct {
		Title string `json:"title"`
		URL   string `json:"url" validate:"omitempty,url"`
	} `json:"resources"`
}

// enhanceSchema is the expected shape of an enhancement response: the
// definition fields plus optional related terms. All fields are optional;
// empty means "no improvement offered".
type enhanceSchema struct {
	Concise       string   `json:"concise"`
	Detailed      string   `json:"detailed"`
	Etymology     string   `json:"etymology"`
	Pronunciation string   `json:"pronunciation"`
	UsageExample  string   `json:"usage_example"`
	TermType      string   `json:"term_type"`
	RelatedTerms  []string `json:"related_terms"`
}

// validationSchema is the expected shape of a quality validator response.
type validationSchema struct {
	Overall           int    `json:"overall"            validate:"gte=0,lte=100"`
	DefinitionClarity int    `json:"definition_clarity" validate:"gte=0,lte=100"`
	Accuracy          int    `json:"accuracy"           validate:"gte=0,lte=100"`
	Notes             string `json:"notes"`
}

// decodeDefinition strictly decodes a definition response.
func decodeDefinition(v *validator.Validate, raw string) (*definitionSchema, error) {
	var schema definitionSchema
	if err := json.Unmarshal([]byte(raw), &schema); err != nil {
		return nil, fmt.Errorf("%w: failed to parse definition JSON: %v", ErrInvalidResponse, err)
	}

	if err := v.Struct(&schema); err != nil {
		return nil, fmt.Errorf("%w: definition missing required fields: %v", ErrInvalidResponse, err)
	}

	return &schema, nil
}

// decodeReferences strictly decodes a references response.
func decodeReferences(v *validator.Validate, raw string) (*referencesSchema, error) {
	var schema referencesSchema
	if err := json.Unmarshal([]byte(raw), &schema); err != nil {
		return nil, fmt.Errorf("%w: failed to parse references JSON: %v", ErrInvalidResponse, err)
	}

	if err := v.Struct(&schema); err != nil {
		return nil, fmt.Errorf("%w: malformed references: %v", ErrInvalidResponse, err)
	}

	return &schema, nil
}

// decodeEnhancement decodes an enhancement response. Unlike the
// definition schema, no field is required: an empty object is a valid
// "nothing to improve" answer.
func decodeEnhancement(raw string) (*enhanceSchema, error) {
	var schema enhanceSchema
	if err := json.Unmarshal([]byte(raw), &schema); err != nil {
		return nil, fmt.Errorf("%w: failed to parse enhancement JSON: %v", ErrInvalidResponse, err)
	}
	return &schema, nil
}

// decodeValidation strictly decodes a quality validator response.
func decodeValidation(v *validator.Validate, raw string) (*validationSchema, error) {
	var schema validationSchema
	if err := json.Unmarshal([]byte(raw), &schema); err != nil {
		return nil, fmt.Errorf("%w: failed to parse validation JSON: %v", ErrInvalidResponse, err)
	}

	if err := v.Struct(&schema); err != nil {
		return nil, fmt.Errorf("%w: validation scores out of range: %v", ErrInvalidResponse, err)
	}

	return &schema, nil
}

// toReferences converts a decoded references schema into the domain shape,
// dropping items without a usable title.
func (r *referencesSchema) toReferences() domain.References {
	var refs domain.References

	for _, b := range r.Books {
		if b.Title == "" {
			continue
		}
		refs.Books = append(refs.Books, domain.BookReference{
			Title:  b.Title,
			Author: b.Author,
			ISBN:   b.ISBN,
			Year:   b.Year,
		})
	}
	for _, p := range r.Papers {
		if p.Title == "" {
			continue
		}
		refs.Papers = append(refs.Papers, domain.PaperReference{
			Title:   p.Title,
			Authors: p.Authors,
			DOI:     p.DOI,
			Year:    p.Year,
		})
	}
	for _, w := range r.Resources {
		if w.Title == "" || w.URL == "" {
			continue
		}
		refs.Resources = append(refs.Resources, domain.WebResource{
			Title: w.Title,
			URL:   w.URL,
		})
	}

	return refs
}
