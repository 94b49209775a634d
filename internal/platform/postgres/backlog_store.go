package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/solfege-app/glossary/internal/domain"
	"github.com/solfege-app/glossary/internal/platform/logger"
	"github.com/solfege-app/glossary/internal/store"
)

// backlogColumns is the select list shared by every backlog query.
const backlogColumns = `id, term, languages, priority, status, attempts,
	last_attempt_at, retry_after, completed_at, error_message, created_at`

// PostgresBacklogStore implements the store.BacklogStore interface
// using a PostgreSQL database as the storage backend.
type PostgresBacklogStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresBacklogStore creates a new PostgreSQL implementation of the
// BacklogStore interface. It accepts a database connection or transaction
// that should be initialized and managed by the caller. If logger is nil,
// a default logger will be used.
func NewPostgresBacklogStore(db store.DBTX, logger *slog.Logger) *PostgresBacklogStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresBacklogStore{
		db:     db,
		logger: logger.With(slog.String("component", "backlog_store")),
	}
}

// Ensure PostgresBacklogStore implements store.BacklogStore interface
var _ store.BacklogStore = (*PostgresBacklogStore)(nil)

// WithTx returns a BacklogStore bound to the provided transaction.
func (s *PostgresBacklogStore) WithTx(tx *sql.Tx) store.BacklogStore {
	return &PostgresBacklogStore{db: tx, logger: s.logger}
}

// Create implements store.BacklogStore.Create.
func (s *PostgresBacklogStore) Create(ctx context.Context, item *domain.BacklogItem) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := item.Validate(); err != nil {
		log.Warn("backlog item validation failed during create",
			slog.String("error", err.Error()),
			slog.String("item_id", item.ID.String()))
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	languages, err := json.Marshal(item.Languages)
	if err != nil {
		return fmt.Errorf("failed to marshal languages: %w", err)
	}

	query := `
		INSERT INTO backlog_items
			(id, term, languages, priority, status, attempts,
			 last_attempt_at, retry_after, completed_at, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = s.db.ExecContext(
		ctx,
		query,
		item.ID,
		item.Term,
		languages,
		item.Priority,
		item.Status,
		item.Attempts,
		item.LastAttemptAt,
		item.RetryAfter,
		item.CompletedAt,
		nullIfEmpty(item.ErrorMessage),
		item.CreatedAt,
	)
	if err != nil {
		log.Error("failed to create backlog item",
			slog.String("error", err.Error()),
			slog.String("item_id", item.ID.String()),
			slog.String("term", item.Term))
		return MapError(err)
	}

	return nil
}

// ClaimPending implements store.BacklogStore.ClaimPending.
//
// The claim is a single conditional update over a locked subselect so two
// overlapping batch runs cannot both claim the same item: SKIP LOCKED makes
// a second run pass over rows the first is still claiming.
func (s *PostgresBacklogStore) ClaimPending(
	ctx context.Context,
	limit, minPriority int,
) ([]*domain.BacklogItem, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if limit <= 0 {
		return nil, nil
	}

	now := time.Now().UTC()
	query := `
		UPDATE backlog_items
		SET status = $1, last_attempt_at = $2
		WHERE id IN (
			SELECT id FROM backlog_items
			WHERE status = $3
			  AND priority >= $4
			  AND (retry_after IS NULL OR retry_after <= $2)
			ORDER BY priority DESC, created_at ASC
			LIMIT $5
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + backlogColumns

	rows, err := s.db.QueryContext(
		ctx,
		query,
		domain.BacklogStatusProcessing,
		now,
		domain.BacklogStatusPending,
		minPriority,
		limit,
	)
	if err != nil {
		log.Error("failed to claim pending backlog items",
			slog.String("error", err.Error()),
			slog.Int("limit", limit),
			slog.Int("min_priority", minPriority))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	items, err := scanBacklogRows(rows)
	if err != nil {
		log.Error("failed to scan claimed backlog items",
			slog.String("error", err.Error()))
		return nil, err
	}

	log.Debug("claimed pending backlog items",
		slog.Int("count", len(items)),
		slog.Int("limit", limit))
	return items, nil
}

// Update implements store.BacklogStore.Update.
func (s *PostgresBacklogStore) Update(ctx context.Context, item *domain.BacklogItem) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := item.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	languages, err := json.Marshal(item.Languages)
	if err != nil {
		return fmt.Errorf("failed to marshal languages: %w", err)
	}

	query := `
		UPDATE backlog_items
		SET languages = $1, priority = $2, status = $3, attempts = $4,
		    last_attempt_at = $5, retry_after = $6, completed_at = $7,
		    error_message = $8
		WHERE id = $9
	`
	result, err := s.db.ExecContext(
		ctx,
		query,
		languages,
		item.Priority,
		item.Status,
		item.Attempts,
		item.LastAttemptAt,
		item.RetryAfter,
		item.CompletedAt,
		nullIfEmpty(item.ErrorMessage),
		item.ID,
	)
	if err != nil {
		log.Error("failed to update backlog item",
			slog.String("error", err.Error()),
			slog.String("item_id", item.ID.String()))
		return MapError(err)
	}

	return CheckRowsAffected(result, "backlog item")
}

// Delete implements store.BacklogStore.Delete.
func (s *PostgresBacklogStore) Delete(ctx context.Context, id uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx, `DELETE FROM backlog_items WHERE id = $1`, id)
	if err != nil {
		log.Error("failed to delete backlog item",
			slog.String("error", err.Error()),
			slog.String("item_id", id.String()))
		return MapError(err)
	}

	return CheckRowsAffected(result, "backlog item")
}

// SelectFailed implements store.BacklogStore.SelectFailed.
func (s *PostgresBacklogStore) SelectFailed(
	ctx context.Context,
	limit int,
	cooldown time.Duration,
) ([]*domain.BacklogItem, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	cutoff := time.Now().UTC().Add(-cooldown)
	query := `
		SELECT ` + backlogColumns + `
		FROM backlog_items
		WHERE status = $1
		  AND (last_attempt_at IS NULL OR last_attempt_at <= $2)
		ORDER BY priority DESC, created_at ASC
		LIMIT $3
	`
	rows, err := s.db.QueryContext(ctx, query, domain.BacklogStatusFailed, cutoff, limit)
	if err != nil {
		log.Error("failed to select failed backlog items",
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	return scanBacklogRows(rows)
}

// CountByStatus implements store.BacklogStore.CountByStatus.
func (s *PostgresBacklogStore) CountByStatus(
	ctx context.Context,
	status domain.BacklogStatus,
) (int, error) {
	var count int
	err := s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(*) FROM backlog_items WHERE status = $1`,
		status,
	).Scan(&count)
	if err != nil {
		return 0, MapError(err)
	}
	return count, nil
}

// RecoveryRate implements store.BacklogStore.RecoveryRate.
func (s *PostgresBacklogStore) RecoveryRate(ctx context.Context) (float64, error) {
	query := `
		SELECT COALESCE(
			AVG(CASE WHEN status = $1 THEN 1.0 ELSE 0.0 END), 0
		)
		FROM backlog_items
		WHERE attempts > 1
	`
	var rate float64
	err := s.db.QueryRowContext(ctx, query, domain.BacklogStatusCompleted).Scan(&rate)
	if err != nil {
		return 0, MapError(err)
	}
	return rate, nil
}

// scanBacklogRows converts result rows into backlog items.
func scanBacklogRows(rows *sql.Rows) ([]*domain.BacklogItem, error) {
	var items []*domain.BacklogItem

	for rows.Next() {
		var (
			item          domain.BacklogItem
			languages     []byte
			lastAttemptAt sql.NullTime
			retryAfter    sql.NullTime
			completedAt   sql.NullTime
			errorMessage  sql.NullString
		)

		if err := rows.Scan(
			&item.ID,
			&item.Term,
			&languages,
			&item.Priority,
			&item.Status,
			&item.Attempts,
			&lastAttemptAt,
			&retryAfter,
			&completedAt,
			&errorMessage,
			&item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan backlog row: %w", err)
		}

		if err := json.Unmarshal(languages, &item.Languages); err != nil {
			return nil, fmt.Errorf("failed to unmarshal languages: %w", err)
		}

		if lastAttemptAt.Valid {
			item.LastAttemptAt = &lastAttemptAt.Time
		}
		if retryAfter.Valid {
			item.RetryAfter = &retryAfter.Time
		}
		if completedAt.Valid {
			item.CompletedAt = &completedAt.Time
		}
		item.ErrorMessage = errorMessage.String

		items = append(items, &item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating backlog rows: %w", err)
	}

	return items, nil
}

// nullIfEmpty converts an empty string to a SQL NULL.
func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
