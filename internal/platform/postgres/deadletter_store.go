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

// PostgresDeadLetterStore implements the store.DeadLetterStore interface
// using a PostgreSQL database as the storage backend.
type PostgresDeadLetterStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresDeadLetterStore creates a new PostgreSQL implementation of the
// DeadLetterStore interface. If logger is nil, a default logger will be used.
func NewPostgresDeadLetterStore(db store.DBTX, logger *slog.Logger) *PostgresDeadLetterStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresDeadLetterStore{
		db:     db,
		logger: logger.With(slog.String("component", "dead_letter_store")),
	}
}

// Ensure PostgresDeadLetterStore implements store.DeadLetterStore interface
var _ store.DeadLetterStore = (*PostgresDeadLetterStore)(nil)

// WithTx returns a DeadLetterStore bound to the provided transaction.
func (s *PostgresDeadLetterStore) WithTx(tx *sql.Tx) store.DeadLetterStore {
	return &PostgresDeadLetterStore{db: tx, logger: s.logger}
}

// Create implements store.DeadLetterStore.Create.
func (s *PostgresDeadLetterStore) Create(ctx context.Context, item *domain.DeadLetterItem) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := item.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	languages, err := json.Marshal(item.Languages)
	if err != nil {
		return fmt.Errorf("failed to marshal languages: %w", err)
	}

	analysis, err := json.Marshal(item.FailureAnalysis)
	if err != nil {
		return fmt.Errorf("failed to marshal failure analysis: %w", err)
	}

	query := `
		INSERT INTO dead_letter_items
			(id, original_id, term, languages, priority, failure_reason,
			 failure_analysis, attempts, original_created_at, moved_to_dlq_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = s.db.ExecContext(
		ctx,
		query,
		item.ID,
		item.OriginalID,
		item.Term,
		languages,
		item.Priority,
		item.FailureReason,
		analysis,
		item.Attempts,
		item.OriginalCreatedAt,
		item.MovedToDLQAt,
	)
	if err != nil {
		log.Error("failed to create dead letter item",
			slog.String("error", err.Error()),
			slog.String("item_id", item.ID.String()),
			slog.String("term", item.Term))
		return MapError(err)
	}

	return nil
}

// GetByID implements store.DeadLetterStore.GetByID.
func (s *PostgresDeadLetterStore) GetByID(
	ctx context.Context,
	id uuid.UUID,
) (*domain.DeadLetterItem, error) {
	query := `
		SELECT id, original_id, term, languages, priority, failure_reason,
		       failure_analysis, attempts, original_created_at, moved_to_dlq_at
		FROM dead_letter_items
		WHERE id = $1
	`

	var (
		item      domain.DeadLetterItem
		languages []byte
		analysis  []byte
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&item.ID,
		&item.OriginalID,
		&item.Term,
		&languages,
		&item.Priority,
		&item.FailureReason,
		&analysis,
		&item.Attempts,
		&item.OriginalCreatedAt,
		&item.MovedToDLQAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, store.ErrDeadLetterNotFound
		}
		return nil, MapError(err)
	}

	if err := json.Unmarshal(languages, &item.Languages); err != nil {
		return nil, fmt.Errorf("failed to unmarshal languages: %w", err)
	}
	if err := json.Unmarshal(analysis, &item.FailureAnalysis); err != nil {
		return nil, fmt.Errorf("failed to unmarshal failure analysis: %w", err)
	}

	return &item, nil
}

// Delete implements store.DeadLetterStore.Delete.
func (s *PostgresDeadLetterStore) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM dead_letter_items WHERE id = $1`, id)
	if err != nil {
		return MapError(err)
	}

	return CheckRowsAffected(result, "dead letter item")
}

// DeleteOlderThan implements store.DeadLetterStore.DeleteOlderThan.
func (s *PostgresDeadLetterStore) DeleteOlderThan(
	ctx context.Context,
	cutoff time.Time,
) (int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(
		ctx,
		`DELETE FROM dead_letter_items WHERE moved_to_dlq_at < $1`,
		cutoff,
	)
	if err != nil {
		log.Error("failed to clean up dead letter items",
			slog.String("error", err.Error()),
			slog.Time("cutoff", cutoff))
		return 0, MapError(err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(deleted), nil
}

// Count implements store.DeadLetterStore.Count.
func (s *PostgresDeadLetterStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dead_letter_items`).Scan(&count)
	if err != nil {
		return 0, MapError(err)
	}
	return count, nil
}

// TopFailureKinds implements store.DeadLetterStore.TopFailureKinds.
func (s *PostgresDeadLetterStore) TopFailureKinds(
	ctx context.Context,
	limit int,
) (map[domain.FailureKind]int, error) {
	query := `
		SELECT failure_analysis->>'kind' AS kind, COUNT(*) AS total
		FROM dead_letter_items
		GROUP BY 1
		ORDER BY total DESC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	kinds := make(map[domain.FailureKind]int)
	for rows.Next() {
		var (
			kind  string
			total int
		)
		if err := rows.Scan(&kind, &total); err != nil {
			return nil, fmt.Errorf("failed to scan failure kind row: %w", err)
		}
		kinds[domain.FailureKind(kind)] = total
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating failure kind rows: %w", err)
	}

	return kinds, nil
}
