package generation

import "errors"

// Errors returned by the generation pipeline and its backend client.
var (
	// ErrInvalidConfig indicates the engine or backend client was
	// constructed with invalid configuration.
	ErrInvalidConfig = errors.New("invalid generation configuration")

	// ErrInvalidResponse indicates the backend returned a response that
	// could not be decoded into the expected schema.
	ErrInvalidResponse = errors.New("invalid response from generative backend")

	// ErrContentBlocked indicates the backend refused to generate content
	// for safety reasons. Permanent for the given prompt.
	ErrContentBlocked = errors.New("content blocked by generative backend")

	// ErrTransientFailure indicates a retryable backend failure (timeout,
	// rate limit, transport error) that persisted past the retry budget.
	ErrTransientFailure = errors.New("transient generative backend failure")

	// ErrEmptyTerm indicates generation was requested for an empty term.
	ErrEmptyTerm = errors.New("term cannot be empty")

	// ErrQualityNotReached indicates all generation attempts produced
	// candidates below the quality threshold.
	ErrQualityNotReached = errors.New("failed to generate entry with acceptable quality")
)
