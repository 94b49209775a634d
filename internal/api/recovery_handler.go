package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/solfege-app/glossary/internal/api/shared"
	"github.com/solfege-app/glossary/internal/recovery"
)

// Recoverer runs recovery passes and dead-letter operations. Implemented
// by recovery.Service.
type Recoverer interface {
	RecoverFailedItems(ctx context.Context, limit int) (*recovery.Summary, error)
	RetryFromDeadLetterQueue(ctx context.Context, ids []uuid.UUID) []recovery.RetryResult
	CollectStats(ctx context.Context) (*recovery.Stats, error)
}

// RecoveryHandler exposes the recovery trigger and dead-letter endpoints.
type RecoveryHandler struct {
	recoverer Recoverer
	scanLimit int
}

// NewRecoveryHandler creates a new RecoveryHandler. scanLimit is the
// default number of failed items one triggered pass inspects; callers
// may override it per request.
func NewRecoveryHandler(recoverer Recoverer, scanLimit int) *RecoveryHandler {
	return &RecoveryHandler{recoverer: recoverer, scanLimit: scanLimit}
}

// Run handles POST /internal/recovery/run. An optional limit query
// parameter overrides the configured scan limit for this pass.
func (h *RecoveryHandler) Run(w http.ResponseWriter, r *http.Request) {
	limit := h.scanLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Limit must be a positive integer")
			return
		}
		limit = parsed
	}

	summary, err := h.recoverer.RecoverFailedItems(r.Context(), limit)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Recovery run failed", err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, summary)
}

// retryRequest is the body of a dead-letter retry request.
type retryRequest struct {
	IDs []uuid.UUID `json:"ids"`
}

// retryResponse wraps the per-id results of a dead-letter retry.
type retryResponse struct {
	Results []recovery.RetryResult `json:"results"`
}

// RetryDeadLetters handles POST /internal/deadletter/retry.
func (h *RecoveryHandler) RetryDeadLetters(w http.ResponseWriter, r *http.Request) {
	var req retryRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.IDs) == 0 {
		shared.RespondWithError(w, r, http.StatusBadRequest, "At least one dead letter id is required")
		return
	}

	results := h.recoverer.RetryFromDeadLetterQueue(r.Context(), req.IDs)
	shared.RespondWithJSON(w, r, http.StatusOK, retryResponse{Results: results})
}

// Stats handles GET /internal/recovery/stats.
func (h *RecoveryHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.recoverer.CollectStats(r.Context())
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to collect stats", err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, stats)
}
