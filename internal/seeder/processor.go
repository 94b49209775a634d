package seeder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/solfege-app/glossary/internal/config"
	"github.com/solfege-app/glossary/internal/domain"
	"github.com/solfege-app/glossary/internal/generation"
	"github.com/solfege-app/glossary/internal/metrics"
	"github.com/solfege-app/glossary/internal/store"
)

// Batch outcome values reported in BatchSummary.Outcome.
const (
	OutcomeCompleted       = "completed"
	OutcomeDisabled        = "disabled"
	OutcomeBudgetExhausted = "budget_exhausted"
	OutcomeEmpty           = "empty"
)

// Generator produces a candidate entry for a term/language pair. It is
// implemented by generation.Engine.
type Generator interface {
	Generate(ctx context.Context, term, language string, genCtx generation.GenerationContext) (*domain.DictionaryEntry, int, error)
}

// BudgetLedger is the budget surface the processor consults before and
// during a batch run.
type BudgetLedger interface {
	CanProcessTerms(ctx context.Context, count int) (bool, error)
	SafeBatchSize(ctx context.Context, desired int) (int, error)
	AvailableTokens(ctx context.Context) (int, error)
	UsagePercentage(ctx context.Context) (float64, error)
	RecordUsage(ctx context.Context, model string, tokensUsed, termsProcessed int)
}

// BatchSummary reports the outcome of one batch run. QualityScores holds
// every score the generator produced this run, passing or not; Errors
// collects per-language diagnostics and batch-level failures.
type BatchSummary struct {
	Outcome        string        `json:"outcome"`
	Claimed        int           `json:"claimed"`
	Completed      int           `json:"completed"`
	Partial        int           `json:"partial"`
	Failed         int           `json:"failed"`
	SkippedPairs   int           `json:"skipped_pairs"`
	CompletedPairs int           `json:"completed_pairs"`
	ReviewPairs    int           `json:"review_pairs"`
	FailedPairs    int           `json:"failed_pairs"`
	TokensUsed     int           `json:"tokens_used"`
	QualityScores  []int         `json:"quality_scores,omitempty"`
	Errors         []string      `json:"errors,omitempty"`
	EarlyExit      bool          `json:"early_exit"`
	Duration       time.Duration `json:"duration"`
}

// Processor drains the term backlog in budget-bounded batches: claim,
// generate, gate on quality, persist, account.
type Processor struct {
	backlogStore store.BacklogStore
	entryStore   store.EntryStore
	reviewStore  store.ReviewStore
	cache        store.EntryCache
	generator    Generator
	ledger       BudgetLedger
	cfg          config.SeedConfig
	// highWaterPercent is the nominal-budget usage percentage at which a
	// running batch stops claiming further work.
	highWaterPercent int
	// usageModel tags usage ledger rows written by this processor.
	usageModel string
	logger     *slog.Logger
}

// NewProcessor creates a batch processor.
func NewProcessor(
	backlogStore store.BacklogStore,
	entryStore store.EntryStore,
	reviewStore store.ReviewStore,
	cache store.EntryCache,
	generator Generator,
	ledger BudgetLedger,
	cfg config.SeedConfig,
	highWaterPercent int,
	usageModel string,
	logger *slog.Logger,
) (*Processor, error) {
	if backlogStore == nil {
		return nil, errors.New("backlog store cannot be nil")
	}
	if entryStore == nil {
		return nil, errors.New("entry store cannot be nil")
	}
	if reviewStore == nil {
		return nil, errors.New("review store cannot be nil")
	}
	if cache == nil {
		return nil, errors.New("entry cache cannot be nil")
	}
	if generator == nil {
		return nil, errors.New("generator cannot be nil")
	}
	if ledger == nil {
		return nil, errors.New("budget ledger cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", cfg.BatchSize)
	}
	if highWaterPercent <= 0 || highWaterPercent > 100 {
		return nil, fmt.Errorf("high water mark must be 1-100 percent, got %d", highWaterPercent)
	}

	return &Processor{
		backlogStore:     backlogStore,
		entryStore:       entryStore,
		reviewStore:      reviewStore,
		cache:            cache,
		generator:        generator,
		ledger:           ledger,
		cfg:              cfg,
		highWaterPercent: highWaterPercent,
		usageModel:       usageModel,
		logger:           logger.With(slog.String("component", "seed_processor")),
	}, nil
}

// RunBatch executes one seeding batch: size the batch against the
// remaining budget, claim that many pending items, process each item's
// languages, and record the actual token spend. Tokens are recorded even
// when every term fails; failed generation attempts still cost money.
//
// The run stops early once daily usage crosses the high-water mark;
// unprocessed claimed items are released back to pending.
func (p *Processor) RunBatch(ctx context.Context) (*BatchSummary, error) {
	started := time.Now()
	summary := &BatchSummary{Outcome: OutcomeCompleted}

	if !p.cfg.Enabled {
		p.logger.InfoContext(ctx, "seeding disabled, skipping batch run")
		summary.Outcome = OutcomeDisabled
		metrics.BatchRuns.WithLabelValues(OutcomeDisabled).Inc()
		return summary, nil
	}

	if p.cfg.MaxBatchDurationMinutes > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(p.cfg.MaxBatchDurationMinutes)*time.Minute)
		defer cancel()
	}

	ok, err := p.ledger.CanProcessTerms(ctx, 1)
	if err != nil {
		// Unknown spend reads as exhausted: better to skip a run than to
		// overshoot the shared budget.
		metrics.BatchRuns.WithLabelValues(OutcomeBudgetExhausted).Inc()
		summary.Outcome = OutcomeBudgetExhausted
		summary.Errors = append(summary.Errors, "budget exhausted: "+err.Error())
		return summary, fmt.Errorf("failed to check budget: %w", err)
	}
	if !ok {
		p.logger.InfoContext(ctx, "daily token budget exhausted, skipping batch run")
		summary.Outcome = OutcomeBudgetExhausted
		summary.Errors = append(summary.Errors, "budget exhausted")
		metrics.BatchRuns.WithLabelValues(OutcomeBudgetExhausted).Inc()
		return summary, nil
	}

	batchSize, err := p.ledger.SafeBatchSize(ctx, p.cfg.BatchSize)
	if err != nil {
		metrics.BatchRuns.WithLabelValues(OutcomeBudgetExhausted).Inc()
		summary.Outcome = OutcomeBudgetExhausted
		summary.Errors = append(summary.Errors, "insufficient budget: "+err.Error())
		return summary, fmt.Errorf("failed to size batch: %w", err)
	}
	if batchSize == 0 {
		p.logger.InfoContext(ctx, "remaining budget cannot cover a single term, skipping batch run",
			slog.Int("desired_batch_size", p.cfg.BatchSize))
		summary.Outcome = OutcomeBudgetExhausted
		summary.Errors = append(summary.Errors, "insufficient budget")
		metrics.BatchRuns.WithLabelValues(OutcomeBudgetExhausted).Inc()
		return summary, nil
	}

	items, err := p.backlogStore.ClaimPending(ctx, batchSize, p.cfg.PriorityThreshold)
	if err != nil {
		summary.Errors = append(summary.Errors, "claim failed: "+err.Error())
		return summary, fmt.Errorf("failed to claim backlog items: %w", err)
	}
	summary.Claimed = len(items)
	if len(items) == 0 {
		p.logger.InfoContext(ctx, "backlog empty, nothing to seed")
		summary.Outcome = OutcomeEmpty
		metrics.BatchRuns.WithLabelValues(OutcomeEmpty).Inc()
		return summary, nil
	}

	p.logger.InfoContext(ctx, "starting seeding batch",
		slog.Int("claimed", len(items)),
		slog.Int("batch_size", batchSize))

	for i, item := range items {
		if ctx.Err() != nil {
			p.logger.WarnContext(ctx, "batch deadline reached, releasing unprocessed items",
				slog.Int("remaining", len(items)-i))
			p.releaseItems(items[i:])
			summary.EarlyExit = true
			break
		}

		p.processItem(ctx, item, summary)

		if p.pastHighWaterMark(ctx) && i < len(items)-1 {
			p.logger.InfoContext(ctx, "usage crossed high-water mark, stopping batch early",
				slog.Int("high_water_percent", p.highWaterPercent),
				slog.Int("remaining", len(items)-i-1))
			p.releaseItems(items[i+1:])
			summary.EarlyExit = true
			break
		}
	}

	termsProcessed := summary.CompletedPairs + summary.ReviewPairs
	p.ledger.RecordUsage(ctx, p.usageModel, summary.TokensUsed, termsProcessed)

	if remaining, err := p.ledger.AvailableTokens(ctx); err == nil {
		metrics.BudgetRemaining.Set(float64(remaining))
	}
	if summary.EarlyExit {
		metrics.BatchRuns.WithLabelValues("early_exit").Inc()
	} else {
		metrics.BatchRuns.WithLabelValues(OutcomeCompleted).Inc()
	}
	metrics.TokensUsed.Add(float64(summary.TokensUsed))

	summary.Duration = time.Since(started)
	metrics.BatchDuration.Observe(summary.Duration.Seconds())

	p.logger.InfoContext(ctx, "seeding batch finished",
		slog.Int("claimed", summary.Claimed),
		slog.Int("completed", summary.Completed),
		slog.Int("partial", summary.Partial),
		slog.Int("failed", summary.Failed),
		slog.Int("completed_pairs", summary.CompletedPairs),
		slog.Int("skipped_pairs", summary.SkippedPairs),
		slog.Int("review_pairs", summary.ReviewPairs),
		slog.Int("failed_pairs", summary.FailedPairs),
		slog.Int("tokens_used", summary.TokensUsed),
		slog.Bool("early_exit", summary.EarlyExit),
		slog.Duration("duration", summary.Duration))
	return summary, nil
}

// processItem handles one claimed item across all its requested
// languages. A language counts as processed only when an acceptable entry
// exists afterwards — skipped or upserted. Sub-threshold candidates go to
// review but leave their language on the item, so it is generated again
// on a later pass.
//
// Outcome classification: every language processed → completed; some
// processed → the item returns to pending carrying just the unfinished
// remainder (progress is not a failure, so attempts stay put); none
// processed → failed with the attempt counted, handing the item to the
// recovery service.
func (p *Processor) processItem(ctx context.Context, item *domain.BacklogItem, summary *BatchSummary) {
	log := p.logger.With(
		slog.String("item_id", item.ID.String()),
		slog.String("term", item.Term))

	var remaining []string
	var diagnostics []string
	processed := 0

	for _, language := range item.Languages {
		outcome, err := p.processLanguage(ctx, item.Term, language, summary)
		switch outcome {
		case pairSkipped:
			processed++
			summary.SkippedPairs++
			metrics.TermsProcessed.WithLabelValues("skipped").Inc()
		case pairCompleted:
			processed++
			summary.CompletedPairs++
			metrics.TermsProcessed.WithLabelValues("completed").Inc()
		case pairManualReview:
			summary.ReviewPairs++
			metrics.TermsProcessed.WithLabelValues("manual_review").Inc()
			remaining = append(remaining, language)
			diagnostics = append(diagnostics, fmt.Sprintf("%s: %v", language, err))
		case pairFailed:
			summary.FailedPairs++
			metrics.TermsProcessed.WithLabelValues("failed").Inc()
			remaining = append(remaining, language)
			diagnostics = append(diagnostics, fmt.Sprintf("%s: %v", language, err))
		}
	}

	summary.Errors = append(summary.Errors, diagnostics...)

	now := time.Now().UTC()
	switch {
	case len(remaining) == 0:
		item.Status = domain.BacklogStatusCompleted
		item.CompletedAt = &now
		item.ErrorMessage = ""
		summary.Completed++

	case processed > 0:
		item.Status = domain.BacklogStatusPending
		item.Languages = remaining
		item.LastAttemptAt = &now
		item.ErrorMessage = ""
		summary.Partial++
		log.InfoContext(ctx, "item partially processed, requeued for remaining languages",
			slog.Int("processed_languages", processed),
			slog.Int("unfinished_languages", len(remaining)))

	default:
		item.Status = domain.BacklogStatusFailed
		item.LastAttemptAt = &now
		item.ErrorMessage = strings.Join(diagnostics, "; ")
		item.Attempts++
		summary.Failed++
		log.WarnContext(ctx, "no language processed, item failed",
			slog.Int("attempts", item.Attempts),
			slog.String("error", item.ErrorMessage))
	}

	if err := p.backlogStore.Update(ctx, item); err != nil {
		log.ErrorContext(ctx, "failed to persist item state",
			slog.String("status", string(item.Status)),
			slog.String("error", err.Error()))
	}
}

// pairOutcome is the result of processing one term/language pair.
type pairOutcome int

const (
	pairSkipped pairOutcome = iota
	pairCompleted
	pairManualReview
	pairFailed
)

// processLanguage runs one term/language pair through the pipeline: skip
// if a good entry already exists, generate, gate on quality, persist.
// Token spend is accumulated on the summary even when generation fails.
func (p *Processor) processLanguage(ctx context.Context, term, language string, summary *BatchSummary) (pairOutcome, error) {
	log := p.logger.With(
		slog.String("term", term),
		slog.String("language", language))

	existing, err := p.entryStore.GetByNormalizedTerm(ctx, domain.NormalizeTerm(term), language)
	if err == nil && existing.QualityScore.Overall >= p.cfg.MinQualityScore {
		log.DebugContext(ctx, "acceptable entry already exists, skipping",
			slog.Int("existing_score", existing.QualityScore.Overall))
		return pairSkipped, nil
	}
	if err != nil && !errors.Is(err, store.ErrEntryNotFound) {
		return pairFailed, fmt.Errorf("database lookup failed: %w", err)
	}

	entry, tokens, err := p.generator.Generate(ctx, term, language, generation.GenerationContext{})
	summary.TokensUsed += tokens
	if entry != nil {
		summary.QualityScores = append(summary.QualityScores, entry.QualityScore.Overall)
	}
	if err != nil {
		if errors.Is(err, generation.ErrQualityNotReached) && entry != nil {
			return p.routeToReview(ctx, entry, err)
		}
		return pairFailed, err
	}

	if err := p.entryStore.Upsert(ctx, entry); err != nil {
		if errors.Is(err, store.ErrEntryExists) {
			// A concurrent run already wrote this entry; the work is done
			// either way.
			log.InfoContext(ctx, "entry already written by concurrent run")
			return pairCompleted, nil
		}
		return pairFailed, fmt.Errorf("database write failed: %w", err)
	}

	if err := p.cache.Invalidate(ctx, entry.NormalizedTerm); err != nil {
		log.WarnContext(ctx, "cache invalidation failed",
			slog.String("error", err.Error()))
	}

	log.InfoContext(ctx, "entry seeded",
		slog.Int("quality_score", entry.QualityScore.Overall),
		slog.Int("references", entry.References.Count()))
	return pairCompleted, nil
}

// routeToReview stores a sub-threshold candidate for human review instead
// of discarding the tokens spent producing it. The returned error is the
// quality diagnostic for the batch summary; the language itself stays
// unprocessed.
func (p *Processor) routeToReview(ctx context.Context, entry *domain.DictionaryEntry, genErr error) (pairOutcome, error) {
	content, err := json.Marshal(entry)
	if err != nil {
		return pairFailed, fmt.Errorf("failed to serialize candidate for review: %w", err)
	}

	review, err := domain.NewManualReviewItem(
		entry.Term, entry.Language, content, entry.QualityScore.Overall, genErr.Error())
	if err != nil {
		return pairFailed, fmt.Errorf("failed to build review item: %w", err)
	}

	if err := p.reviewStore.Create(ctx, review); err != nil {
		return pairFailed, fmt.Errorf("failed to store review item: %w", err)
	}

	p.logger.InfoContext(ctx, "candidate routed to manual review",
		slog.String("term", entry.Term),
		slog.String("language", entry.Language),
		slog.Int("quality_score", entry.QualityScore.Overall))
	return pairManualReview, genErr
}

// pastHighWaterMark reports whether today's spend has crossed the
// early-exit threshold. Unreadable usage reads as past the mark.
func (p *Processor) pastHighWaterMark(ctx context.Context) bool {
	pct, err := p.ledger.UsagePercentage(ctx)
	if err != nil {
		return true
	}
	return pct >= float64(p.highWaterPercent)
}

// releaseItems returns unprocessed claimed items to pending so the next
// run can pick them up. Releasing must not inherit the batch deadline
// that just expired, hence the fresh context.
func (p *Processor) releaseItems(items []*domain.BacklogItem) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, item := range items {
		item.Status = domain.BacklogStatusPending
		if err := p.backlogStore.Update(ctx, item); err != nil {
			p.logger.ErrorContext(ctx, "failed to release claimed item",
				slog.String("item_id", item.ID.String()),
				slog.String("error", err.Error()))
		}
	}
}
