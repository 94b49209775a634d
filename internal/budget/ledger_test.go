package budget

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solfege-app/glossary/internal/config"
	"github.com/solfege-app/glossary/internal/domain"
)

// fakeUsageStore is an in-memory UsageStore for ledger tests.
type fakeUsageStore struct {
	tokensForDay int
	readErr      error
	appendErr    error

	appended []*domain.TokenUsageRecord
}

func (f *fakeUsageStore) Append(_ context.Context, record *domain.TokenUsageRecord) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.appended = append(f.appended, record)
	return nil
}

func (f *fakeUsageStore) TokensForDay(_ context.Context, _ time.Time, _ string) (int, error) {
	if f.readErr != nil {
		return 0, f.readErr
	}
	return f.tokensForDay, nil
}

func newTestLedger(t *testing.T, usage *fakeUsageStore, cfg config.BudgetConfig) *Ledger {
	t.Helper()
	ledger, err := NewLedger(usage, cfg, "gemini", slog.Default())
	require.NoError(t, err)
	return ledger
}

func TestNewLedger_Validation(t *testing.T) {
	t.Parallel()

	cfg := config.BudgetConfig{DailyTokenBudget: 5000, SafetyMarginPercent: 10, PerTermTokenCost: 840}

	_, err := NewLedger(nil, cfg, "", slog.Default())
	assert.Error(t, err, "nil usage store should be rejected")

	_, err = NewLedger(&fakeUsageStore{}, cfg, "", nil)
	assert.Error(t, err, "nil logger should be rejected")

	bad := cfg
	bad.DailyTokenBudget = 0
	_, err = NewLedger(&fakeUsageStore{}, bad, "", slog.Default())
	assert.Error(t, err, "zero budget should be rejected")

	bad = cfg
	bad.PerTermTokenCost = 0
	_, err = NewLedger(&fakeUsageStore{}, bad, "", slog.Default())
	assert.Error(t, err, "zero per-term cost should be rejected")

	bad = cfg
	bad.SafetyMarginPercent = 60
	_, err = NewLedger(&fakeUsageStore{}, bad, "", slog.Default())
	assert.Error(t, err, "excessive safety margin should be rejected")
}

func TestLedger_DailyLimit_AppliesSafetyMargin(t *testing.T) {
	t.Parallel()

	ledger := newTestLedger(t, &fakeUsageStore{}, config.BudgetConfig{
		DailyTokenBudget:    5000,
		SafetyMarginPercent: 10,
		PerTermTokenCost:    840,
	})

	assert.Equal(t, 4500, ledger.DailyLimit())
}

func TestLedger_SafeBatchSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		used    int
		desired int
		want    int
	}{
		{
			name:    "full budget covers desired batch",
			used:    0,
			desired: 5,
			want:    5,
		},
		{
			// 100 tokens remain; a term is estimated at 840. Even a
			// single term could overshoot, so the batch shrinks to zero.
			name:    "nearly exhausted budget yields zero",
			used:    4400,
			desired: 5,
			want:    0,
		},
		{
			name:    "partial budget shrinks batch",
			used:    2000,
			desired: 5,
			want:    2, // (4500-2000)/840 = 2
		},
		{
			name:    "non-positive desired yields zero",
			used:    0,
			desired: 0,
			want:    0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			ledger := newTestLedger(t, &fakeUsageStore{tokensForDay: tt.used}, config.BudgetConfig{
				DailyTokenBudget:    5000,
				SafetyMarginPercent: 10,
				PerTermTokenCost:    840,
			})

			got, err := ledger.SafeBatchSize(context.Background(), tt.desired)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLedger_CanProcessTerms(t *testing.T) {
	t.Parallel()

	ledger := newTestLedger(t, &fakeUsageStore{tokensForDay: 4400}, config.BudgetConfig{
		DailyTokenBudget:    5000,
		SafetyMarginPercent: 10,
		PerTermTokenCost:    840,
	})

	ok, err := ledger.CanProcessTerms(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, ok, "100 remaining tokens cannot cover an 840-token term")

	ok, err = ledger.CanProcessTerms(context.Background(), 0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLedger_FailsClosedOnUnreadableUsage(t *testing.T) {
	t.Parallel()

	usage := &fakeUsageStore{readErr: errors.New("connection refused")}
	ledger := newTestLedger(t, usage, config.BudgetConfig{
		DailyTokenBudget:    5000,
		SafetyMarginPercent: 10,
		PerTermTokenCost:    840,
	})

	ctx := context.Background()

	_, err := ledger.TokensUsedToday(ctx)
	assert.ErrorIs(t, err, ErrUsageUnavailable)

	ok, err := ledger.CanProcessTerms(ctx, 1)
	assert.ErrorIs(t, err, ErrUsageUnavailable)
	assert.False(t, ok, "unknown spend must read as exhausted")

	size, err := ledger.SafeBatchSize(ctx, 5)
	assert.ErrorIs(t, err, ErrUsageUnavailable)
	assert.Zero(t, size)
}

func TestLedger_AvailableTokens_NeverNegative(t *testing.T) {
	t.Parallel()

	ledger := newTestLedger(t, &fakeUsageStore{tokensForDay: 9000}, config.BudgetConfig{
		DailyTokenBudget:    5000,
		SafetyMarginPercent: 10,
		PerTermTokenCost:    840,
	})

	remaining, err := ledger.AvailableTokens(context.Background())
	require.NoError(t, err)
	assert.Zero(t, remaining)
}

func TestLedger_RecordUsage(t *testing.T) {
	t.Parallel()

	t.Run("appends a dated record", func(t *testing.T) {
		t.Parallel()

		usage := &fakeUsageStore{}
		ledger := newTestLedger(t, usage, config.BudgetConfig{
			DailyTokenBudget:    5000,
			SafetyMarginPercent: 10,
			PerTermTokenCost:    840,
		})

		ledger.RecordUsage(context.Background(), "gemini-2.0-flash-seed", 1234, 2)

		require.Len(t, usage.appended, 1)
		record := usage.appended[0]
		assert.Equal(t, "gemini-2.0-flash-seed", record.Model)
		assert.Equal(t, 1234, record.TokensUsed)
		assert.Equal(t, 2, record.TermsProcessed)
		assert.Equal(t, record.Date, record.Date.Truncate(24*time.Hour))
	})

	t.Run("swallows append failures", func(t *testing.T) {
		t.Parallel()

		usage := &fakeUsageStore{appendErr: errors.New("disk full")}
		ledger := newTestLedger(t, usage, config.BudgetConfig{
			DailyTokenBudget:    5000,
			SafetyMarginPercent: 10,
			PerTermTokenCost:    840,
		})

		assert.NotPanics(t, func() {
			ledger.RecordUsage(context.Background(), "gemini-2.0-flash-seed", 500, 1)
		})
	})

	t.Run("skips empty usage", func(t *testing.T) {
		t.Parallel()

		usage := &fakeUsageStore{}
		ledger := newTestLedger(t, usage, config.BudgetConfig{
			DailyTokenBudget:    5000,
			SafetyMarginPercent: 10,
			PerTermTokenCost:    840,
		})

		ledger.RecordUsage(context.Background(), "gemini-2.0-flash-seed", 0, 0)
		assert.Empty(t, usage.appended)
	})
}

func TestLedger_UsagePercentage_AgainstNominalBudget(t *testing.T) {
	t.Parallel()

	ledger := newTestLedger(t, &fakeUsageStore{tokensForDay: 4500}, config.BudgetConfig{
		DailyTokenBudget:    5000,
		SafetyMarginPercent: 10,
		PerTermTokenCost:    840,
	})

	pct, err := ledger.UsagePercentage(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 90.0, pct, 0.001)
}
