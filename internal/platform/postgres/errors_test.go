package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/solfege-app/glossary/internal/store"
)

func TestMapError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   error
		wantIs  error
		passRaw bool
	}{
		{
			name:  "nil stays nil",
			input: nil,
		},
		{
			name:   "no rows maps to not found",
			input:  fmt.Errorf("query failed: %w", sql.ErrNoRows),
			wantIs: store.ErrNotFound,
		},
		{
			name:   "unique violation maps to duplicate",
			input:  &pgconn.PgError{Code: "23505", ConstraintName: "dictionary_entries_term_language_key"},
			wantIs: store.ErrDuplicate,
		},
		{
			name:   "foreign key violation maps to invalid entity",
			input:  &pgconn.PgError{Code: "23503", ConstraintName: "fk_original_id"},
			wantIs: store.ErrInvalidEntity,
		},
		{
			name:   "check violation maps to invalid entity",
			input:  &pgconn.PgError{Code: "23514", ConstraintName: "backlog_items_attempts_check"},
			wantIs: store.ErrInvalidEntity,
		},
		{
			name:    "other errors pass through",
			input:   errors.New("connection reset"),
			passRaw: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := MapError(tt.input)
			switch {
			case tt.input == nil:
				assert.NoError(t, got)
			case tt.passRaw:
				assert.Equal(t, tt.input, got)
			default:
				assert.ErrorIs(t, got, tt.wantIs)
			}
		})
	}
}

func TestIsUniqueViolation(t *testing.T) {
	t.Parallel()

	unique := fmt.Errorf("insert failed: %w", &pgconn.PgError{Code: "23505"})
	assert.True(t, IsUniqueViolation(unique))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsUniqueViolation(errors.New("something else")))
}

func TestIsNotFoundError(t *testing.T) {
	t.Parallel()

	assert.True(t, IsNotFoundError(sql.ErrNoRows))
	assert.True(t, IsNotFoundError(fmt.Errorf("%w: entry", store.ErrNotFound)))
	assert.True(t, IsNotFoundError(store.ErrEntryNotFound))
	assert.False(t, IsNotFoundError(errors.New("boom")))
}
