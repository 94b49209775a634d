package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/solfege-app/glossary/internal/domain"
	"github.com/solfege-app/glossary/internal/platform/logger"
	"github.com/solfege-app/glossary/internal/store"
)

// PostgresReviewStore implements the store.ReviewStore interface using a
// PostgreSQL database as the storage backend. The pipeline only ever
// appends to the review queue; human review tooling reads and resolves it.
type PostgresReviewStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresReviewStore creates a new PostgreSQL implementation of the
// ReviewStore interface. If logger is nil, a default logger will be used.
func NewPostgresReviewStore(db store.DBTX, logger *slog.Logger) *PostgresReviewStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresReviewStore{
		db:     db,
		logger: logger.With(slog.String("component", "review_store")),
	}
}

// Ensure PostgresReviewStore implements store.ReviewStore interface
var _ store.ReviewStore = (*PostgresReviewStore)(nil)

// Create implements store.ReviewStore.Create.
func (s *PostgresReviewStore) Create(ctx context.Context, item *domain.ManualReviewItem) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := item.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	query := `
		INSERT INTO manual_review_items
			(id, term, language, generated_content, quality_score, reason, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		item.ID,
		item.Term,
		item.Language,
		item.GeneratedContent,
		item.QualityScore,
		item.Reason,
		item.Status,
		item.CreatedAt,
	)
	if err != nil {
		log.Error("failed to create manual review item",
			slog.String("error", err.Error()),
			slog.String("term", item.Term),
			slog.String("language", item.Language))
		return MapError(err)
	}

	return nil
}
