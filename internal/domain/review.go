package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ReviewStatus represents the state of a manual review item.
type ReviewStatus string

// Possible review status values
const (
	ReviewStatusPending  ReviewStatus = "pending"
	ReviewStatusApproved ReviewStatus = "approved"
	ReviewStatusRejected ReviewStatus = "rejected"
)

// Common validation errors for ManualReviewItem
var (
	ErrEmptyReviewID      = errors.New("review item ID cannot be empty")
	ErrEmptyReviewTerm    = errors.New("review item term cannot be empty")
	ErrEmptyReviewContent = errors.New("review item must carry the generated candidate")
)

// ManualReviewItem holds a generated candidate that scored below the
// quality gate. GeneratedContent is the serialized candidate entry; human
// review tooling consumes these items outside this pipeline.
type ManualReviewItem struct {
	ID               uuid.UUID    `json:"id"`
	Term             string       `json:"term"`
	Language         string       `json:"language"`
	GeneratedContent []byte       `json:"generated_content"`
	QualityScore     int          `json:"quality_score"`
	Reason           string       `json:"reason"`
	Status           ReviewStatus `json:"status"`
	CreatedAt        time.Time    `json:"created_at"`
}

// NewManualReviewItem creates a pending review item for a sub-threshold
// candidate.
func NewManualReviewItem(term, language string, content []byte, score int, reason string) (*ManualReviewItem, error) {
	item := &ManualReviewItem{
		ID:               uuid.New(),
		Term:             term,
		Language:         language,
		GeneratedContent: content,
		QualityScore:     score,
		Reason:           reason,
		Status:           ReviewStatusPending,
		CreatedAt:        time.Now().UTC(),
	}

	if err := item.Validate(); err != nil {
		return nil, err
	}

	return item, nil
}

// Validate checks if the ManualReviewItem has valid data.
func (m *ManualReviewItem) Validate() error {
	if m.ID == uuid.Nil {
		return ErrEmptyReviewID
	}

	if m.Term == "" {
		return ErrEmptyReviewTerm
	}

	if len(m.GeneratedContent) == 0 {
		return ErrEmptyReviewContent
	}

	return nil
}
