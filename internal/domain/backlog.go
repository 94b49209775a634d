package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// BacklogStatus represents the processing state of a backlog item.
type BacklogStatus string

// Possible backlog status values
const (
	BacklogStatusPending    BacklogStatus = "pending"
	BacklogStatusProcessing BacklogStatus = "processing"
	BacklogStatusCompleted  BacklogStatus = "completed"
	BacklogStatusFailed     BacklogStatus = "failed"
)

// Common validation errors for BacklogItem
var (
	ErrEmptyBacklogID       = errors.New("backlog item ID cannot be empty")
	ErrEmptyBacklogTerm     = errors.New("backlog item term cannot be empty")
	ErrNoBacklogLanguages   = errors.New("backlog item must request at least one language")
	ErrInvalidBacklogStatus = errors.New("invalid backlog status")
	ErrNegativeAttempts     = errors.New("backlog attempts cannot be negative")
)

// BacklogItem is a queued request to generate a term's dictionary entry in
// one or more languages. Languages holds only the languages still pending:
// partially processed items are re-queued with the unprocessed remainder.
type BacklogItem struct {
	ID            uuid.UUID     `json:"id"`
	Term          string        `json:"term"`
	Languages     []string      `json:"languages"`
	Priority      int           `json:"priority"`
	Status        BacklogStatus `json:"status"`
	Attempts      int           `json:"attempts"`
	LastAttemptAt *time.Time    `json:"last_attempt_at,omitempty"`
	RetryAfter    *time.Time    `json:"retry_after,omitempty"`
	CompletedAt   *time.Time    `json:"completed_at,omitempty"`
	ErrorMessage  string        `json:"error_message,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

// NewBacklogItem creates a pending BacklogItem for the given term,
// languages and priority. Returns an error if validation fails.
func NewBacklogItem(term string, languages []string, priority int) (*BacklogItem, error) {
	item := &BacklogItem{
		ID:        uuid.New(),
		Term:      term,
		Languages: languages,
		Priority:  priority,
		Status:    BacklogStatusPending,
		CreatedAt: time.Now().UTC(),
	}

	if err := item.Validate(); err != nil {
		return nil, err
	}

	return item, nil
}

// Validate checks if the BacklogItem has valid data.
func (b *BacklogItem) Validate() error {
	if b.ID == uuid.Nil {
		return ErrEmptyBacklogID
	}

	if b.Term == "" {
		return ErrEmptyBacklogTerm
	}

	if len(b.Languages) == 0 {
		return ErrNoBacklogLanguages
	}

	if b.Attempts < 0 {
		return ErrNegativeAttempts
	}

	if !isValidBacklogStatus(b.Status) {
		return ErrInvalidBacklogStatus
	}

	return nil
}

// isValidBacklogStatus checks if the provided status is one of the
// defined status values.
func isValidBacklogStatus(status BacklogStatus) bool {
	switch status {
	case BacklogStatusPending,
		BacklogStatusProcessing,
		BacklogStatusCompleted,
		BacklogStatusFailed:
		return true
	default:
		return false
	}
}

// EligibleForRetryAt reports whether the item's retry window has elapsed
// at the given instant. Items without a retry_after timestamp are always
// eligible.
func (b *BacklogItem) EligibleForRetryAt(now time.Time) bool {
	return b.RetryAfter == nil || !b.RetryAfter.After(now)
}
