package api

import (
	"context"
	"net/http"

	"github.com/solfege-app/glossary/internal/api/shared"
	"github.com/solfege-app/glossary/internal/seeder"
)

// BatchRunner runs one seeding batch. Implemented by seeder.Processor.
type BatchRunner interface {
	RunBatch(ctx context.Context) (*seeder.BatchSummary, error)
}

// SeedHandler exposes the batch trigger endpoint. The scheduler calls it
// once a day; runs are safe to trigger more often because the budget
// ledger and the atomic claim keep overlapping runs from doing duplicate
// work.
type SeedHandler struct {
	runner BatchRunner
}

// NewSeedHandler creates a new SeedHandler.
func NewSeedHandler(runner BatchRunner) *SeedHandler {
	return &SeedHandler{runner: runner}
}

// RunBatch handles POST /internal/seed/run.
func (h *SeedHandler) RunBatch(w http.ResponseWriter, r *http.Request) {
	summary, err := h.runner.RunBatch(r.Context())
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Batch run failed", err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, summary)
}
