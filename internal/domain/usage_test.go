package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNewTokenUsageRecord(t *testing.T) {
	t.Parallel()

	record := NewTokenUsageRecord("gemini-2.0-flash", 1550, 2)

	assert.NotEqual(t, uuid.Nil, record.ID)
	assert.Equal(t, "gemini-2.0-flash", record.Model)
	assert.Equal(t, 1550, record.TokensUsed)
	assert.Equal(t, 2, record.TermsProcessed)

	wantDate := time.Now().UTC().Truncate(24 * time.Hour)
	assert.Equal(t, wantDate, record.Date, "date is truncated to the UTC day")
	assert.False(t, record.CreatedAt.Before(record.Date))
}
