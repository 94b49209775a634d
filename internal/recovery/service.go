package recovery

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/solfege-app/glossary/internal/config"
	"github.com/solfege-app/glossary/internal/domain"
	"github.com/solfege-app/glossary/internal/metrics"
	"github.com/solfege-app/glossary/internal/store"
)

// BudgetChecker reports whether the daily token budget currently allows
// work. Implemented by budget.Ledger; token-limit failures recovered
// after the quota reset are re-queued immediately instead of waiting out
// a stale recovery window.
type BudgetChecker interface {
	CanProcessTerms(ctx context.Context, count int) (bool, error)
}

// Service re-queues retryable failed backlog items, demotes exhausted or
// non-retryable ones to the dead-letter store, and ages out old dead
// letters.
type Service struct {
	db              *sql.DB
	backlogStore    store.BacklogStore
	deadLetterStore store.DeadLetterStore
	budget          BudgetChecker
	cfg             config.RecoveryConfig
	logger          *slog.Logger
}

// NewService creates a recovery service.
func NewService(
	db *sql.DB,
	backlogStore store.BacklogStore,
	deadLetterStore store.DeadLetterStore,
	budget BudgetChecker,
	cfg config.RecoveryConfig,
	logger *slog.Logger,
) (*Service, error) {
	if db == nil {
		return nil, errors.New("database handle cannot be nil")
	}
	if backlogStore == nil {
		return nil, errors.New("backlog store cannot be nil")
	}
	if deadLetterStore == nil {
		return nil, errors.New("dead letter store cannot be nil")
	}
	if budget == nil {
		return nil, errors.New("budget checker cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.MaxAttempts < 1 {
		return nil, fmt.Errorf("max attempts must be at least 1, got %d", cfg.MaxAttempts)
	}

	return &Service{
		db:              db,
		backlogStore:    backlogStore,
		deadLetterStore: deadLetterStore,
		budget:          budget,
		cfg:             cfg,
		logger:          logger.With(slog.String("component", "recovery_service")),
	}, nil
}

// Summary reports the outcome of one recovery run.
type Summary struct {
	Scanned        int   `json:"scanned"`
	Requeued       int   `json:"requeued"`
	Demoted        int   `json:"demoted"`
	CleanedUp      int   `json:"cleaned_up"`
	Errors         int   `json:"errors"`
	DurationMillis int64 `json:"duration_millis"`
}

// RecoverFailedItems runs one recovery pass: age out old dead letters,
// scan up to limit failed items past their cooldown, classify each, then
// either schedule a retry or demote to the dead-letter store. Items are
// handled independently; one item's failure does not stop the pass. A
// non-positive limit falls back to the configured scan limit.
func (s *Service) RecoverFailedItems(ctx context.Context, limit int) (*Summary, error) {
	started := time.Now()
	summary := &Summary{}

	if limit <= 0 {
		limit = s.cfg.ScanLimit
	}

	cutoff := started.UTC().AddDate(0, 0, -s.cfg.DLQRetentionDays)
	cleaned, err := s.deadLetterStore.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		// Cleanup is housekeeping; a failure must not block recovery.
		s.logger.ErrorContext(ctx, "dead letter cleanup failed",
			slog.String("error", err.Error()))
		summary.Errors++
	} else if cleaned > 0 {
		summary.CleanedUp = cleaned
		s.logger.InfoContext(ctx, "aged out old dead letter items",
			slog.Int("deleted", cleaned),
			slog.Int("retention_days", s.cfg.DLQRetentionDays))
	}

	cooldown := time.Duration(s.cfg.CooldownMinutes) * time.Minute
	items, err := s.backlogStore.SelectFailed(ctx, limit, cooldown)
	if err != nil {
		metrics.RecoveryRuns.WithLabelValues("failed").Inc()
		return summary, fmt.Errorf("failed to select failed items: %w", err)
	}
	summary.Scanned = len(items)

	for _, item := range items {
		analysis := Classify(item, time.Now())

		if item.Attempts >= s.cfg.MaxAttempts || !analysis.Retryable {
			if err := s.demote(ctx, item, analysis); err != nil {
				s.logger.ErrorContext(ctx, "failed to demote item to dead letter store",
					slog.String("item_id", item.ID.String()),
					slog.String("term", item.Term),
					slog.String("error", err.Error()))
				summary.Errors++
				continue
			}
			summary.Demoted++
			continue
		}

		if err := s.requeue(ctx, item, analysis); err != nil {
			s.logger.ErrorContext(ctx, "failed to requeue item",
				slog.String("item_id", item.ID.String()),
				slog.String("term", item.Term),
				slog.String("error", err.Error()))
			summary.Errors++
			continue
		}
		summary.Requeued++
	}

	metrics.RecoveryRuns.WithLabelValues("completed").Inc()
	summary.DurationMillis = time.Since(started).Milliseconds()
	s.logger.InfoContext(ctx, "recovery pass finished",
		slog.Int("scanned", summary.Scanned),
		slog.Int("requeued", summary.Requeued),
		slog.Int("demoted", summary.Demoted),
		slog.Int("cleaned_up", summary.CleanedUp),
		slog.Int("errors", summary.Errors))
	return summary, nil
}

// demote moves an item to the dead-letter store and removes it from the
// backlog in one transaction, so the item can never exist in both places.
func (s *Service) demote(ctx context.Context, item *domain.BacklogItem, analysis domain.FailureAnalysis) error {
	deadLetter, err := domain.NewDeadLetterItem(item, analysis)
	if err != nil {
		return fmt.Errorf("failed to build dead letter item: %w", err)
	}

	err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.deadLetterStore.WithTx(tx).Create(ctx, deadLetter); err != nil {
			return err
		}
		return s.backlogStore.WithTx(tx).Delete(ctx, item.ID)
	})
	if err != nil {
		return err
	}

	metrics.DeadLetterItems.Inc()
	s.logger.InfoContext(ctx, "demoted item to dead letter store",
		slog.String("item_id", item.ID.String()),
		slog.String("term", item.Term),
		slog.String("failure_kind", string(analysis.Kind)),
		slog.Int("attempts", item.Attempts))
	return nil
}

// requeue transitions a failed item back to pending, scheduling it
// according to its failure kind: token limit failures wait for the quota
// reset unless the ledger already has budget again, API errors back off
// exponentially, everything else is eligible immediately.
func (s *Service) requeue(ctx context.Context, item *domain.BacklogItem, analysis domain.FailureAnalysis) error {
	item.Status = domain.BacklogStatusPending
	item.RetryAfter = nil

	switch analysis.Kind {
	case domain.FailureTokenLimit:
		// The quota may have reset since the failure; the ledger is the
		// authority, the recovery-window estimate only the fallback.
		if ok, err := s.budget.CanProcessTerms(ctx, 1); err == nil && ok {
			item.ErrorMessage = ""
			break
		}
		retryAt := time.Now().UTC().Add(time.Duration(analysis.EstimatedRecoveryMinutes) * time.Minute)
		item.RetryAfter = &retryAt
	case domain.FailureAPIError:
		retryAt := time.Now().UTC().Add(s.backoffDelay(item.Attempts))
		item.RetryAfter = &retryAt
	default:
		// Immediately eligible again; the stale failure message would only
		// mislead the next classification.
		item.ErrorMessage = ""
	}

	if err := s.backlogStore.Update(ctx, item); err != nil {
		return err
	}

	attrs := []any{
		slog.String("item_id", item.ID.String()),
		slog.String("term", item.Term),
		slog.String("failure_kind", string(analysis.Kind)),
		slog.Int("attempts", item.Attempts),
	}
	if item.RetryAfter != nil {
		attrs = append(attrs, slog.Time("retry_after", *item.RetryAfter))
	}
	s.logger.InfoContext(ctx, "requeued failed item", attrs...)
	return nil
}

// backoffDelay computes base * multiplier^(attempts-1), capped at the
// configured maximum.
func (s *Service) backoffDelay(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}

	base := float64(s.cfg.BackoffBaseMinutes)
	multiplier := s.cfg.BackoffMultiplier
	if multiplier < 1 {
		multiplier = 1
	}

	minutes := base * math.Pow(multiplier, float64(attempts-1))
	if maxMinutes := float64(s.cfg.BackoffMaxMinutes); s.cfg.BackoffMaxMinutes > 0 && minutes > maxMinutes {
		minutes = maxMinutes
	}

	return time.Duration(minutes * float64(time.Minute))
}

// RetryResult reports the outcome of re-queueing one dead letter item.
type RetryResult struct {
	DeadLetterID uuid.UUID `json:"dead_letter_id"`
	Requeued     bool      `json:"requeued"`
	Error        string    `json:"error,omitempty"`
}

// RetryFromDeadLetterQueue re-queues the given dead letter items as fresh
// pending backlog items with a reset attempt count. Each id is handled in
// its own transaction: a missing or failing item does not affect the rest.
func (s *Service) RetryFromDeadLetterQueue(ctx context.Context, ids []uuid.UUID) []RetryResult {
	results := make([]RetryResult, 0, len(ids))

	for _, id := range ids {
		result := RetryResult{DeadLetterID: id}

		deadLetter, err := s.deadLetterStore.GetByID(ctx, id)
		if err != nil {
			result.Error = err.Error()
			results = append(results, result)
			continue
		}

		item, err := domain.NewBacklogItem(deadLetter.Term, deadLetter.Languages, deadLetter.Priority)
		if err != nil {
			result.Error = err.Error()
			results = append(results, result)
			continue
		}

		err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
			if err := s.backlogStore.WithTx(tx).Create(ctx, item); err != nil {
				return err
			}
			return s.deadLetterStore.WithTx(tx).Delete(ctx, id)
		})
		if err != nil {
			result.Error = err.Error()
			results = append(results, result)
			continue
		}

		s.logger.InfoContext(ctx, "requeued dead letter item",
			slog.String("dead_letter_id", id.String()),
			slog.String("term", deadLetter.Term),
			slog.String("new_item_id", item.ID.String()))
		result.Requeued = true
		results = append(results, result)
	}

	return results
}

// Stats is a point-in-time snapshot of queue and dead-letter health.
type Stats struct {
	PendingItems    int                        `json:"pending_items"`
	ProcessingItems int                        `json:"processing_items"`
	FailedItems     int                        `json:"failed_items"`
	CompletedItems  int                        `json:"completed_items"`
	DeadLetterCount int                        `json:"dead_letter_count"`
	TopFailureKinds map[domain.FailureKind]int `json:"top_failure_kinds"`
	RecoveryRate    float64                    `json:"recovery_rate"`
}

// CollectStats gathers queue counts, dead-letter volume, the dominant
// failure kinds and the retry recovery rate.
func (s *Service) CollectStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	counts := []struct {
		status domain.BacklogStatus
		target *int
	}{
		{domain.BacklogStatusPending, &stats.PendingItems},
		{domain.BacklogStatusProcessing, &stats.ProcessingItems},
		{domain.BacklogStatusFailed, &stats.FailedItems},
		{domain.BacklogStatusCompleted, &stats.CompletedItems},
	}
	for _, c := range counts {
		n, err := s.backlogStore.CountByStatus(ctx, c.status)
		if err != nil {
			return nil, fmt.Errorf("failed to count %s items: %w", c.status, err)
		}
		*c.target = n
	}

	deadLetters, err := s.deadLetterStore.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count dead letter items: %w", err)
	}
	stats.DeadLetterCount = deadLetters

	kinds, err := s.deadLetterStore.TopFailureKinds(ctx, 5)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate failure kinds: %w", err)
	}
	stats.TopFailureKinds = kinds

	rate, err := s.backlogStore.RecoveryRate(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compute recovery rate: %w", err)
	}
	stats.RecoveryRate = rate

	return stats, nil
}
