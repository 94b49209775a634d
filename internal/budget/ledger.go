package budget

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/solfege-app/glossary/internal/config"
	"github.com/solfege-app/glossary/internal/domain"
	"github.com/solfege-app/glossary/internal/store"
)

// ErrUsageUnavailable indicates the usage store could not be read. The
// ledger fails closed on this error: callers must treat the budget as
// exhausted rather than risk overspending against an unknown total.
var ErrUsageUnavailable = errors.New("token usage unavailable")

// Ledger enforces the shared daily token budget. The enforceable limit is
// the nominal daily budget reduced by the safety margin, computed once at
// construction. All reads aggregate the append-only usage store for the
// current UTC day, so overlapping batch runs see each other's spend.
type Ledger struct {
	usageStore store.UsageStore
	logger     *slog.Logger

	nominalBudget int
	dailyLimit    int
	perTermCost   int
	// modelPrefix scopes usage aggregation to records written by the
	// seeding pipeline; empty matches all records.
	modelPrefix string
}

// NewLedger creates a budget ledger from the budget configuration.
func NewLedger(usageStore store.UsageStore, cfg config.BudgetConfig, modelPrefix string, logger *slog.Logger) (*Ledger, error) {
	if usageStore == nil {
		return nil, errors.New("usage store cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.DailyTokenBudget <= 0 {
		return nil, fmt.Errorf("daily token budget must be positive, got %d", cfg.DailyTokenBudget)
	}
	if cfg.PerTermTokenCost <= 0 {
		return nil, fmt.Errorf("per-term token cost must be positive, got %d", cfg.PerTermTokenCost)
	}
	if cfg.SafetyMarginPercent < 0 || cfg.SafetyMarginPercent > 50 {
		return nil, fmt.Errorf("safety margin must be 0-50 percent, got %d", cfg.SafetyMarginPercent)
	}

	dailyLimit := cfg.DailyTokenBudget * (100 - cfg.SafetyMarginPercent) / 100

	return &Ledger{
		usageStore:    usageStore,
		logger:        logger.With(slog.String("component", "budget_ledger")),
		nominalBudget: cfg.DailyTokenBudget,
		dailyLimit:    dailyLimit,
		perTermCost:   cfg.PerTermTokenCost,
		modelPrefix:   modelPrefix,
	}, nil
}

// DailyLimit returns the enforceable daily token limit (nominal budget
// minus safety margin).
func (l *Ledger) DailyLimit() int {
	return l.dailyLimit
}

// TokensUsedToday returns the tokens consumed so far in the current UTC
// day. An unreachable usage store returns ErrUsageUnavailable; the ledger
// never guesses a total.
func (l *Ledger) TokensUsedToday(ctx context.Context) (int, error) {
	day := time.Now().UTC().Truncate(24 * time.Hour)
	used, err := l.usageStore.TokensForDay(ctx, day, l.modelPrefix)
	if err != nil {
		l.logger.ErrorContext(ctx, "failed to read token usage, treating budget as exhausted",
			slog.String("error", err.Error()))
		return 0, fmt.Errorf("%w: %v", ErrUsageUnavailable, err)
	}
	return used, nil
}

// AvailableTokens returns how many tokens remain under the daily limit,
// never negative.
func (l *Ledger) AvailableTokens(ctx context.Context) (int, error) {
	used, err := l.TokensUsedToday(ctx)
	if err != nil {
		return 0, err
	}
	remaining := l.dailyLimit - used
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// CanProcessTerms reports whether the remaining budget covers count terms
// at the estimated per-term cost. Fails closed: an unreadable usage store
// yields false with ErrUsageUnavailable.
func (l *Ledger) CanProcessTerms(ctx context.Context, count int) (bool, error) {
	if count <= 0 {
		return false, nil
	}
	remaining, err := l.AvailableTokens(ctx)
	if err != nil {
		return false, err
	}
	return remaining >= count*l.perTermCost, nil
}

// SafeBatchSize returns the largest batch size not exceeding desired that
// the remaining budget can cover at the estimated per-term cost. A result
// of zero means no terms can be safely processed today.
func (l *Ledger) SafeBatchSize(ctx context.Context, desired int) (int, error) {
	if desired <= 0 {
		return 0, nil
	}
	remaining, err := l.AvailableTokens(ctx)
	if err != nil {
		return 0, err
	}

	affordable := remaining / l.perTermCost
	if affordable < desired {
		l.logger.InfoContext(ctx, "budget constrains batch size",
			slog.Int("desired", desired),
			slog.Int("affordable", affordable),
			slog.Int("remaining_tokens", remaining))
		return affordable, nil
	}
	return desired, nil
}

// RecordUsage appends the batch's actual token spend to the ledger. Usage
// is recorded regardless of how many terms succeeded; failed generation
// attempts still consumed tokens. Append failures are logged and
// swallowed: losing a usage row under-counts spend, which the safety
// margin absorbs, and must not fail an otherwise successful batch.
func (l *Ledger) RecordUsage(ctx context.Context, model string, tokensUsed, termsProcessed int) {
	if tokensUsed <= 0 && termsProcessed <= 0 {
		return
	}

	record := domain.NewTokenUsageRecord(model, tokensUsed, termsProcessed)
	if err := l.usageStore.Append(ctx, record); err != nil {
		l.logger.ErrorContext(ctx, "failed to record token usage",
			slog.String("model", model),
			slog.Int("tokens_used", tokensUsed),
			slog.Int("terms_processed", termsProcessed),
			slog.String("error", err.Error()))
		return
	}

	l.logger.InfoContext(ctx, "recorded token usage",
		slog.String("model", model),
		slog.Int("tokens_used", tokensUsed),
		slog.Int("terms_processed", termsProcessed))
}

// UsagePercentage returns today's spend as a percentage of the nominal
// daily budget. The high-water early-exit check compares against this
// figure, not the margin-reduced limit.
func (l *Ledger) UsagePercentage(ctx context.Context) (float64, error) {
	used, err := l.TokensUsedToday(ctx)
	if err != nil {
		return 0, err
	}
	return float64(used) / float64(l.nominalBudget) * 100, nil
}
