package domain

import (
	"time"

	"github.com/google/uuid"
)

// TokenUsageRecord is an append-only ledger row recording tokens consumed
// by one batch. Date is truncated to UTC day granularity; the budget
// ledger aggregates rows by date and never rewrites them.
type TokenUsageRecord struct {
	ID             uuid.UUID `json:"id"`
	Date           time.Time `json:"date"`
	Model          string    `json:"model"`
	TokensUsed     int       `json:"tokens_used"`
	TermsProcessed int       `json:"terms_processed"`
	CreatedAt      time.Time `json:"created_at"`
}

// NewTokenUsageRecord creates a usage record dated for the current UTC day.
func NewTokenUsageRecord(model string, tokensUsed, termsProcessed int) *TokenUsageRecord {
	now := time.Now().UTC()
	return &TokenUsageRecord{
		ID:             uuid.New(),
		Date:           now.Truncate(24 * time.Hour),
		Model:          model,
		TokensUsed:     tokensUsed,
		TermsProcessed: termsProcessed,
		CreatedAt:      now,
	}
}
