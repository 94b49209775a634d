package generation

import (
	"bytes"
	"fmt"
	"text/template"
)

// Prompt templates are compiled once at package init. Each instructs the
// backend to answer with a single JSON object matching the corresponding
// schema in schema.go; the decode step enforces the schema strictly.

const definitionPromptText = `You are a music reference editor writing glossary definitions.

Write a dictionary definition of the musical term "{{.Term}}" in language "{{.Language}}".
{{- if .Difficulty}}
Target audience level: {{.Difficulty}}.
{{- end}}
{{- if .Instruments}}
Where relevant, relate the term to: {{join .Instruments ", "}}.
{{- end}}

Respond with a single JSON object and nothing else:
{
  "concise": "one-sentence definition",
  "detailed": "two to four sentence explanation",
  "etymology": "origin of the term, or empty string",
  "pronunciation": "IPA or phonetic spelling, or empty string",
  "usage_example": "one sentence using the term naturally, or empty string",
  "term_type": "noun, adjective, tempo marking, dynamic marking, etc."
}
The "concise" and "detailed" fields are required and must be written in "{{.Language}}".`

const referencesPromptText = `List authoritative references for the musical term "{{.Term}}".

Respond with a single JSON object and nothing else:
{
  "books": [{"title": "...", "author": "...", "isbn": "...", "year": 2000}],
  "papers": [{"title": "...", "authors": "...", "doi": "...", "year": 2000}],
  "resources": [{"title": "...", "url": "https://..."}]
}
Include at most three of each kind. Only include references you are confident exist.
Use empty arrays when you know of none.`

const validatorPromptText = `You are reviewing a machine-generated glossary entry for the musical term "{{.Term}}" (language "{{.Language}}").

Entry under review:
{{.EntryJSON}}

Score the entry. Respond with a single JSON object and nothing else:
{
  "overall": 0,
  "definition_clarity": 0,
  "accuracy": 0,
  "notes": "one sentence"
}
All scores are integers from 0 to 100. Be strict: reserve scores above 85 for
entries you would publish unchanged.`

const enhancePromptText = `You are improving an existing glossary entry for the musical term "{{.Term}}" (language "{{.Language}}").

Current entry:
{{.EntryJSON}}

Focus on improving: {{join .FocusAreas ", "}}.

Respond with a single JSON object using the same shape as the definition
schema, containing only improved or newly filled fields:
{
  "concise": "...",
  "detailed": "...",
  "etymology": "...",
  "pronunciation": "...",
  "usage_example": "...",
  "term_type": "...",
  "related_terms": ["..."]
}
Leave a field as an empty string (or an empty array) if you cannot improve it.`

var promptFuncs = template.FuncMap{
	"join": joinStrings,
}

var (
	definitionPrompt = template.Must(
		template.New("definition").Funcs(promptFuncs).Parse(definitionPromptText))
	referencesPrompt = template.Must(
		template.New("references").Funcs(promptFuncs).Parse(referencesPromptText))
	validatorPrompt = template.Must(
		template.New("validator").Funcs(promptFuncs).Parse(validatorPromptText))
	enhancePrompt = template.Must(
		template.New("enhance").Funcs(promptFuncs).Parse(enhancePromptText))
)

// renderPrompt executes a template with the given data.
func renderPrompt(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute prompt template %q: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}

func joinStrings(items []string, sep string) string {
	var buf bytes.Buffer
	for i, item := range items {
		if i > 0 {
			buf.WriteString(sep)
		}
		buf.WriteString(item)
	}
	return buf.String()
}
