package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/solfege-app/glossary/internal/domain"
)

// BacklogStore defines the interface for persisting backlog items.
type BacklogStore interface {
	// Create persists a new backlog item.
	Create(ctx context.Context, item *domain.BacklogItem) error

	// ClaimPending atomically claims up to limit pending items whose
	// priority is at least minPriority and whose retry window has elapsed,
	// transitioning them to processing and stamping last_attempt_at.
	// Items are claimed in priority-descending, then age-ascending order.
	// The claim is a single conditional update so overlapping batch runs
	// cannot select the same item twice.
	ClaimPending(ctx context.Context, limit, minPriority int) ([]*domain.BacklogItem, error)

	// Update persists the item's mutable fields: status, languages,
	// attempts, timestamps and error message.
	Update(ctx context.Context, item *domain.BacklogItem) error

	// Delete removes a backlog item. Returns ErrBacklogItemNotFound if no
	// row matched.
	Delete(ctx context.Context, id uuid.UUID) error

	// SelectFailed returns up to limit failed items whose last attempt is
	// either unset or at least cooldown in the past, ordered by priority
	// then age.
	SelectFailed(ctx context.Context, limit int, cooldown time.Duration) ([]*domain.BacklogItem, error)

	// CountByStatus returns the number of items currently in the given status.
	CountByStatus(ctx context.Context, status domain.BacklogStatus) (int, error)

	// RecoveryRate returns the fraction of items with attempts > 1 that
	// eventually reached completed. Returns 0 when no such items exist.
	RecoveryRate(ctx context.Context) (float64, error)

	// WithTx returns a BacklogStore bound to the provided transaction.
	WithTx(tx *sql.Tx) BacklogStore
}

// DeadLetterStore defines the interface for the dead-letter holding area.
type DeadLetterStore interface {
	// Create persists a new dead letter item.
	Create(ctx context.Context, item *domain.DeadLetterItem) error

	// GetByID retrieves a dead letter item. Returns ErrDeadLetterNotFound
	// if it does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.DeadLetterItem, error)

	// Delete removes a dead letter item. Returns ErrDeadLetterNotFound if
	// no row matched.
	Delete(ctx context.Context, id uuid.UUID) error

	// DeleteOlderThan removes items moved to the dead-letter store before
	// the cutoff and returns how many were deleted.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)

	// Count returns the number of dead letter items.
	Count(ctx context.Context) (int, error)

	// TopFailureKinds returns the most frequent failure kinds with their
	// counts, most frequent first, at most limit entries.
	TopFailureKinds(ctx context.Context, limit int) (map[domain.FailureKind]int, error)

	// WithTx returns a DeadLetterStore bound to the provided transaction.
	WithTx(tx *sql.Tx) DeadLetterStore
}

// ReviewStore defines the interface for the manual review queue.
type ReviewStore interface {
	// Create persists a new manual review item.
	Create(ctx context.Context, item *domain.ManualReviewItem) error
}

// UsageStore defines the interface for the append-only token usage ledger.
type UsageStore interface {
	// Append inserts a usage record. Existing rows are never updated.
	Append(ctx context.Context, record *domain.TokenUsageRecord) error

	// TokensForDay sums tokens_used for the given UTC day across records
	// whose model matches the prefix (empty prefix matches all).
	TokensForDay(ctx context.Context, day time.Time, modelPrefix string) (int, error)
}

// EntryStore defines the interface for dictionary entry persistence.
type EntryStore interface {
	// GetByNormalizedTerm retrieves the entry for a (normalized term,
	// language) pair. Returns ErrEntryNotFound if absent.
	GetByNormalizedTerm(ctx context.Context, normalizedTerm, language string) (*domain.DictionaryEntry, error)

	// Upsert creates the entry if absent, or replaces the existing entry
	// for the same (normalized term, language) pair, incrementing its
	// version. A concurrent insert racing on the unique constraint
	// surfaces as ErrEntryExists.
	Upsert(ctx context.Context, entry *domain.DictionaryEntry) error
}

// EntryCache invalidates cached renderings of an entry on the serving path.
type EntryCache interface {
	// Invalidate drops all cached variants of the normalized term.
	Invalidate(ctx context.Context, normalizedTerm string) error
}
