package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// FailureKind classifies why a backlog item failed. Classification is by
// message shape, not by Go error type: by the time the recovery service
// runs, only the stored error_message remains.
type FailureKind string

// Possible failure kinds
const (
	FailureTokenLimit    FailureKind = "token_limit"
	FailureQuality       FailureKind = "quality_failure"
	FailureAPIError      FailureKind = "api_error"
	FailureDatabaseError FailureKind = "database_error"
	FailureUnknown       FailureKind = "unknown"
)

// Common validation errors for DeadLetterItem
var (
	ErrEmptyDeadLetterID   = errors.New("dead letter item ID cannot be empty")
	ErrEmptyDeadLetterTerm = errors.New("dead letter item term cannot be empty")
)

// FailureAnalysis is the structured classification attached to a demoted
// item. EstimatedRecoveryMinutes is only meaningful for retryable kinds
// with a predictable recovery window (e.g. token_limit resets at UTC
// midnight).
type FailureAnalysis struct {
	Kind                     FailureKind `json:"kind"`
	Retryable                bool        `json:"retryable"`
	SuggestedAction          string      `json:"suggested_action"`
	EstimatedRecoveryMinutes int         `json:"estimated_recovery_minutes,omitempty"`
}

// DeadLetterItem is the terminal record of a backlog item that exhausted
// its retries or hit a non-retryable failure. OriginalID is a back
// reference for tracing, not ownership: the original BacklogItem is
// deleted on demotion.
type DeadLetterItem struct {
	ID                uuid.UUID       `json:"id"`
	OriginalID        uuid.UUID       `json:"original_id"`
	Term              string          `json:"term"`
	Languages         []string        `json:"languages"`
	Priority          int             `json:"priority"`
	FailureReason     string          `json:"failure_reason"`
	FailureAnalysis   FailureAnalysis `json:"failure_analysis"`
	Attempts          int             `json:"attempts"`
	OriginalCreatedAt time.Time       `json:"original_created_at"`
	MovedToDLQAt      time.Time       `json:"moved_to_dlq_at"`
}

// NewDeadLetterItem snapshots a failed backlog item together with its
// failure classification.
func NewDeadLetterItem(item *BacklogItem, analysis FailureAnalysis) (*DeadLetterItem, error) {
	if item == nil {
		return nil, errors.New("backlog item cannot be nil")
	}

	dl := &DeadLetterItem{
		ID:                uuid.New(),
		OriginalID:        item.ID,
		Term:              item.Term,
		Languages:         append([]string(nil), item.Languages...),
		Priority:          item.Priority,
		FailureReason:     item.ErrorMessage,
		FailureAnalysis:   analysis,
		Attempts:          item.Attempts,
		OriginalCreatedAt: item.CreatedAt,
		MovedToDLQAt:      time.Now().UTC(),
	}

	if err := dl.Validate(); err != nil {
		return nil, err
	}

	return dl, nil
}

// Validate checks if the DeadLetterItem has valid data.
func (d *DeadLetterItem) Validate() error {
	if d.ID == uuid.Nil {
		return ErrEmptyDeadLetterID
	}

	if d.Term == "" {
		return ErrEmptyDeadLetterTerm
	}

	return nil
}
