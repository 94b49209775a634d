package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/solfege-app/glossary/internal/config"
	"github.com/solfege-app/glossary/internal/generation"
	"google.golang.org/genai"
)

// Client implements the generation.ContentClient interface using Google's
// Gemini API. It owns transport-level concerns: per-call timeouts,
// exponential backoff with jitter for transient failures, and
// classification of permanent failures (safety blocks, empty responses).
type Client struct {
	logger *slog.Logger
	config config.LLMConfig
	client *genai.Client
	model  string
}

// NewClient creates a Gemini-backed content client.
//
// Parameters:
//   - ctx: Context for client initialization, which can be used for cancellation
//   - logger: A structured logger for operation logging
//   - cfg: LLM configuration containing API key, model name, and retry settings
//
// Returns a properly initialized Client or an error if initialization fails.
func NewClient(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (*Client, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}

	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", generation.ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v",
			generation.ErrInvalidConfig, err)
	}

	return &Client{
		logger: logger.With(slog.String("component", "gemini_client")),
		config: cfg,
		client: client,
		model:  cfg.ModelName,
	}, nil
}

// Ensure Client implements generation.ContentClient interface
var _ generation.ContentClient = (*Client)(nil)

// Model returns the configured model name, used by callers to tag token
// usage records.
func (c *Client) Model() string {
	return c.model
}

// GenerateJSON sends the prompt to the Gemini API in JSON response mode
// and returns the raw text payload together with the reported token usage.
//
// It attempts the call up to MaxRetries+1 times, using exponential backoff
// with jitter between retries for transient errors. Permanent errors (like
// content being blocked by safety filters or structurally empty responses)
// are returned immediately without retrying.
func (c *Client) GenerateJSON(
	ctx context.Context,
	prompt string,
	opts generation.CallOptions,
) (*generation.CallResult, error) {
	if prompt == "" {
		return nil, fmt.Errorf("%w: empty prompt", generation.ErrInvalidConfig)
	}

	maxRetries := c.config.MaxRetries
	baseDelaySeconds := c.config.RetryDelaySeconds
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	if maxRetries < 0 {
		c.logger.WarnContext(ctx, "invalid max retries value, using default", "max_retries", 3)
		maxRetries = 3
	}
	if baseDelaySeconds < 1 {
		c.logger.WarnContext(ctx, "invalid retry delay value, using default", "base_delay_seconds", 2)
		baseDelaySeconds = 2
	}

	genConfig := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		MaxOutputTokens:  opts.MaxOutputTokens,
		Temperature:      genai.Ptr(opts.Temperature),
	}

	for attempt := 0; ; attempt++ {
		attemptNum := attempt + 1
		c.logger.DebugContext(ctx, "making Gemini API call",
			"attempt", attemptNum,
			"max_attempts", maxRetries+1,
			"prompt_length", len(prompt))

		result, err := c.callOnce(ctx, prompt, genConfig)
		if err == nil {
			c.logger.DebugContext(ctx, "Gemini API call successful",
				"attempt", attemptNum,
				"tokens_used", result.TokensUsed)
			return result, nil
		}

		c.logger.ErrorContext(ctx, "Gemini API call failed",
			"attempt", attemptNum,
			"error", err)

		// Permanent errors will not improve with retries.
		if errors.Is(err, generation.ErrContentBlocked) ||
			errors.Is(err, generation.ErrInvalidResponse) {
			return nil, err
		}

		if attempt >= maxRetries {
			return nil, fmt.Errorf("%w: exceeded maximum retry attempts (%d): %v",
				generation.ErrTransientFailure, maxRetries, err)
		}

		// delay = baseDelay * (2^attempt) * (0.5 + rand(0, 0.5))
		backoffSeconds := float64(baseDelaySeconds) * math.Pow(2, float64(attempt))
		jitterFactor := 0.5 + rng.Float64()*0.5
		delay := time.Duration(backoffSeconds * jitterFactor * float64(time.Second))

		c.logger.InfoContext(ctx, "retrying Gemini API call after delay",
			"attempt", attemptNum,
			"delay", delay.String())

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", generation.ErrTransientFailure, ctx.Err())
		}
	}
}

// callOnce performs a single API call under the configured per-call
// timeout and maps the response into a CallResult.
func (c *Client) callOnce(
	ctx context.Context,
	prompt string,
	genConfig *genai.GenerateContentConfig,
) (*generation.CallResult, error) {
	callCtx := ctx
	if c.config.CallTimeoutSeconds > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(
			ctx, time.Duration(c.config.CallTimeoutSeconds)*time.Second)
		defer cancel()
	}

	resp, err := c.client.Models.GenerateContent(
		callCtx, c.model, genai.Text(prompt), genConfig)
	if err != nil {
		return nil, err
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("%w: no content generated", generation.ErrInvalidResponse)
	}

	if resp.Candidates[0].FinishReason == genai.FinishReasonSafety {
		return nil, fmt.Errorf("%w: content blocked by safety filters", generation.ErrContentBlocked)
	}

	text := resp.Text()
	if text == "" {
		return nil, fmt.Errorf("%w: empty content in response", generation.ErrInvalidResponse)
	}

	tokens := 0
	if resp.UsageMetadata != nil {
		tokens = int(resp.UsageMetadata.TotalTokenCount)
	}

	return &generation.CallResult{
		Text:       text,
		TokensUsed: tokens,
	}, nil
}
