package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/solfege-app/glossary/internal/domain"
	"github.com/solfege-app/glossary/internal/platform/logger"
	"github.com/solfege-app/glossary/internal/store"
)

// PostgresEntryStore implements the store.EntryStore interface using a
// PostgreSQL database as the storage backend. The dictionary_entries table
// carries a unique constraint on (normalized_term, language); that
// constraint is the safety net against duplicate entries when batch runs
// overlap.
type PostgresEntryStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresEntryStore creates a new PostgreSQL implementation of the
// EntryStore interface. If logger is nil, a default logger will be used.
func NewPostgresEntryStore(db store.DBTX, logger *slog.Logger) *PostgresEntryStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresEntryStore{
		db:     db,
		logger: logger.With(slog.String("component", "entry_store")),
	}
}

// Ensure PostgresEntryStore implements store.EntryStore interface
var _ store.EntryStore = (*PostgresEntryStore)(nil)

// GetByNormalizedTerm implements store.EntryStore.GetByNormalizedTerm.
func (s *PostgresEntryStore) GetByNormalizedTerm(
	ctx context.Context,
	normalizedTerm, language string,
) (*domain.DictionaryEntry, error) {
	query := `
		SELECT id, term, normalized_term, type, language, definition,
		       references_data, metadata, quality_score,
		       created_at, updated_at, version
		FROM dictionary_entries
		WHERE normalized_term = $1 AND language = $2
	`

	var (
		entry      domain.DictionaryEntry
		entryType  sql.NullString
		definition []byte
		references []byte
		metadata   []byte
		quality    []byte
	)
	err := s.db.QueryRowContext(ctx, query, normalizedTerm, language).Scan(
		&entry.ID,
		&entry.Term,
		&entry.NormalizedTerm,
		&entryType,
		&entry.Language,
		&definition,
		&references,
		&metadata,
		&quality,
		&entry.CreatedAt,
		&entry.UpdatedAt,
		&entry.Version,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, store.ErrEntryNotFound
		}
		return nil, MapError(err)
	}

	entry.Type = entryType.String
	if err := json.Unmarshal(definition, &entry.Definition); err != nil {
		return nil, fmt.Errorf("failed to unmarshal definition: %w", err)
	}
	if err := json.Unmarshal(references, &entry.References); err != nil {
		return nil, fmt.Errorf("failed to unmarshal references: %w", err)
	}
	if err := json.Unmarshal(metadata, &entry.Metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	if err := json.Unmarshal(quality, &entry.QualityScore); err != nil {
		return nil, fmt.Errorf("failed to unmarshal quality score: %w", err)
	}

	return &entry, nil
}

// Upsert implements store.EntryStore.Upsert.
//
// A fresh entry is inserted with version 1; an existing entry for the same
// (normalized term, language) pair is replaced with its version bumped.
// When two runs race on the same fresh term, the loser's insert hits the
// unique constraint and surfaces as store.ErrEntryExists, which callers
// treat as a successful outcome.
func (s *PostgresEntryStore) Upsert(ctx context.Context, entry *domain.DictionaryEntry) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := entry.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	definition, err := json.Marshal(entry.Definition)
	if err != nil {
		return fmt.Errorf("failed to marshal definition: %w", err)
	}
	references, err := json.Marshal(entry.References)
	if err != nil {
		return fmt.Errorf("failed to marshal references: %w", err)
	}
	metadata, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	quality, err := json.Marshal(entry.QualityScore)
	if err != nil {
		return fmt.Errorf("failed to marshal quality score: %w", err)
	}

	now := time.Now().UTC()

	updateQuery := `
		UPDATE dictionary_entries
		SET term = $1, type = $2, definition = $3, references_data = $4,
		    metadata = $5, quality_score = $6, updated_at = $7,
		    version = version + 1
		WHERE normalized_term = $8 AND language = $9
	`
	result, err := s.db.ExecContext(
		ctx,
		updateQuery,
		entry.Term,
		nullIfEmpty(entry.Type),
		definition,
		references,
		metadata,
		quality,
		now,
		entry.NormalizedTerm,
		entry.Language,
	)
	if err != nil {
		log.Error("failed to update dictionary entry",
			slog.String("error", err.Error()),
			slog.String("normalized_term", entry.NormalizedTerm),
			slog.String("language", entry.Language))
		return MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected > 0 {
		return nil
	}

	insertQuery := `
		INSERT INTO dictionary_entries
			(id, term, normalized_term, type, language, definition,
			 references_data, metadata, quality_score, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 1)
	`
	_, err = s.db.ExecContext(
		ctx,
		insertQuery,
		entry.ID,
		entry.Term,
		entry.NormalizedTerm,
		nullIfEmpty(entry.Type),
		entry.Language,
		definition,
		references,
		metadata,
		quality,
		now,
		now,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			log.Warn("concurrent insert of dictionary entry detected",
				slog.String("normalized_term", entry.NormalizedTerm),
				slog.String("language", entry.Language))
			return fmt.Errorf("%w: %v", store.ErrEntryExists, err)
		}
		log.Error("failed to insert dictionary entry",
			slog.String("error", err.Error()),
			slog.String("normalized_term", entry.NormalizedTerm),
			slog.String("language", entry.Language))
		return MapError(err)
	}

	return nil
}
