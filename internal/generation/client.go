package generation

import "context"

// CallOptions tunes a single backend call.
type CallOptions struct {
	// MaxOutputTokens bounds the response size.
	MaxOutputTokens int32

	// Temperature controls randomness; lower is more deterministic.
	Temperature float32
}

// CallResult is the outcome of one backend call.
type CallResult struct {
	// Text is the raw response payload, expected to be JSON.
	Text string

	// TokensUsed is the total token count the backend reported for the
	// call (prompt plus response). Zero if the backend did not report it.
	TokensUsed int
}

// ContentClient is the opaque generative backend. Implementations own
// transport-level retries and timeouts; the Engine owns pipeline-level
// attempts and quality gating. The backend is treated as unreliable:
// empty responses, malformed JSON and timeouts are expected outcomes.
type ContentClient interface {
	GenerateJSON(ctx context.Context, prompt string, opts CallOptions) (*CallResult, error)
}
