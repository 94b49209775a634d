// Package gemini implements the generation.ContentClient interface
// against Google's Gemini API. The client requests JSON-mode responses,
// reports per-call token usage from the API's usage metadata, and retries
// transient failures with exponential backoff and jitter. Safety blocks
// and structurally empty responses are permanent failures and are never
// retried.
package gemini
