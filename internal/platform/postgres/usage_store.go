package postgres

import (
	"context"
	"log/slog"
	"time"

	"github.com/solfege-app/glossary/internal/domain"
	"github.com/solfege-app/glossary/internal/platform/logger"
	"github.com/solfege-app/glossary/internal/store"
)

// PostgresUsageStore implements the store.UsageStore interface using a
// PostgreSQL database as the storage backend. The usage table is
// append-only: the budget ledger aggregates rows by day and never rewrites
// them.
type PostgresUsageStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresUsageStore creates a new PostgreSQL implementation of the
// UsageStore interface. If logger is nil, a default logger will be used.
func NewPostgresUsageStore(db store.DBTX, logger *slog.Logger) *PostgresUsageStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresUsageStore{
		db:     db,
		logger: logger.With(slog.String("component", "usage_store")),
	}
}

// Ensure PostgresUsageStore implements store.UsageStore interface
var _ store.UsageStore = (*PostgresUsageStore)(nil)

// Append implements store.UsageStore.Append.
func (s *PostgresUsageStore) Append(ctx context.Context, record *domain.TokenUsageRecord) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		INSERT INTO token_usage_records
			(id, date, model, tokens_used, terms_processed, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		record.ID,
		record.Date,
		record.Model,
		record.TokensUsed,
		record.TermsProcessed,
		record.CreatedAt,
	)
	if err != nil {
		log.Error("failed to append token usage record",
			slog.String("error", err.Error()),
			slog.String("model", record.Model),
			slog.Int("tokens_used", record.TokensUsed))
		return MapError(err)
	}

	return nil
}

// TokensForDay implements store.UsageStore.TokensForDay.
func (s *PostgresUsageStore) TokensForDay(
	ctx context.Context,
	day time.Time,
	modelPrefix string,
) (int, error) {
	query := `
		SELECT COALESCE(SUM(tokens_used), 0)
		FROM token_usage_records
		WHERE date = $1 AND model LIKE $2 || '%'
	`

	var total int
	err := s.db.QueryRowContext(
		ctx,
		query,
		day.UTC().Truncate(24*time.Hour),
		modelPrefix,
	).Scan(&total)
	if err != nil {
		return 0, MapError(err)
	}

	return total, nil
}
