package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solfege-app/glossary/internal/api/middleware"
	"github.com/solfege-app/glossary/internal/recovery"
	"github.com/solfege-app/glossary/internal/seeder"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// fakeBatchRunner scripts the seed trigger.
type fakeBatchRunner struct {
	summary *seeder.BatchSummary
	err     error
}

func (f *fakeBatchRunner) RunBatch(_ context.Context) (*seeder.BatchSummary, error) {
	return f.summary, f.err
}

// fakeRecoverer scripts the recovery endpoints.
type fakeRecoverer struct {
	summary  *recovery.Summary
	runErr   error
	results  []recovery.RetryResult
	stats    *recovery.Stats
	statsErr error

	retriedIDs []uuid.UUID
	runLimit   int
}

func (f *fakeRecoverer) RecoverFailedItems(_ context.Context, limit int) (*recovery.Summary, error) {
	f.runLimit = limit
	return f.summary, f.runErr
}

func (f *fakeRecoverer) RetryFromDeadLetterQueue(_ context.Context, ids []uuid.UUID) []recovery.RetryResult {
	f.retriedIDs = ids
	return f.results
}

func (f *fakeRecoverer) CollectStats(_ context.Context) (*recovery.Stats, error) {
	return f.stats, f.statsErr
}

func newTestServer(t *testing.T, runner *fakeBatchRunner, recoverer *fakeRecoverer) *httptest.Server {
	t.Helper()

	router := NewRouter(
		NewSeedHandler(runner),
		NewRecoveryHandler(recoverer, 100),
		middleware.NewAuthMiddleware(testSecret),
		nil,
	)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func authedRequest(t *testing.T, method, url string, body []byte) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	require.NoError(t, err)

	token, err := middleware.NewTriggerToken(testSecret, time.Minute)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestSeedRun_ReturnsSummary(t *testing.T) {
	runner := &fakeBatchRunner{summary: &seeder.BatchSummary{
		Outcome:        seeder.OutcomeCompleted,
		Claimed:        3,
		Completed:      3,
		CompletedPairs: 5,
		TokensUsed:     4100,
	}}
	srv := newTestServer(t, runner, &fakeRecoverer{})

	resp := authedRequest(t, http.MethodPost, srv.URL+"/internal/seed/run", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var summary seeder.BatchSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&summary))
	assert.Equal(t, seeder.OutcomeCompleted, summary.Outcome)
	assert.Equal(t, 4100, summary.TokensUsed)
}

func TestSeedRun_ErrorIsSanitized(t *testing.T) {
	runner := &fakeBatchRunner{err: errors.New("pq: connection to postgres://u:p@db:5432 failed")}
	srv := newTestServer(t, runner, &fakeRecoverer{})

	resp := authedRequest(t, http.MethodPost, srv.URL+"/internal/seed/run", nil)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "Batch run failed", body["error"])
	assert.NotContains(t, body["error"], "postgres://", "raw errors never reach the client")
}

func TestSeedRun_RequiresAuth(t *testing.T) {
	srv := newTestServer(t, &fakeBatchRunner{}, &fakeRecoverer{})

	resp, err := http.Post(srv.URL+"/internal/seed/run", "application/json", nil)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRecoveryRun_ReturnsSummary(t *testing.T) {
	recoverer := &fakeRecoverer{summary: &recovery.Summary{Scanned: 4, Requeued: 3, Demoted: 1}}
	srv := newTestServer(t, &fakeBatchRunner{}, recoverer)

	resp := authedRequest(t, http.MethodPost, srv.URL+"/internal/recovery/run", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var summary recovery.Summary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&summary))
	assert.Equal(t, 3, summary.Requeued)
	assert.Equal(t, 1, summary.Demoted)
	assert.Equal(t, 100, recoverer.runLimit, "the configured scan limit is the default")
}

func TestRecoveryRun_LimitOverride(t *testing.T) {
	recoverer := &fakeRecoverer{summary: &recovery.Summary{}}
	srv := newTestServer(t, &fakeBatchRunner{}, recoverer)

	resp := authedRequest(t, http.MethodPost, srv.URL+"/internal/recovery/run?limit=25", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 25, recoverer.runLimit)

	resp = authedRequest(t, http.MethodPost, srv.URL+"/internal/recovery/run?limit=nope", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = authedRequest(t, http.MethodPost, srv.URL+"/internal/recovery/run?limit=0", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRetryDeadLetters(t *testing.T) {
	id := uuid.New()
	recoverer := &fakeRecoverer{results: []recovery.RetryResult{{DeadLetterID: id, Requeued: true}}}
	srv := newTestServer(t, &fakeBatchRunner{}, recoverer)

	body, err := json.Marshal(map[string]any{"ids": []uuid.UUID{id}})
	require.NoError(t, err)

	resp := authedRequest(t, http.MethodPost, srv.URL+"/internal/deadletter/retry", body)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var decoded struct {
		Results []recovery.RetryResult `json:"results"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	require.Len(t, decoded.Results, 1)
	assert.True(t, decoded.Results[0].Requeued)
	assert.Equal(t, []uuid.UUID{id}, recoverer.retriedIDs)
}

func TestRetryDeadLetters_BadRequest(t *testing.T) {
	srv := newTestServer(t, &fakeBatchRunner{}, &fakeRecoverer{})

	resp := authedRequest(t, http.MethodPost, srv.URL+"/internal/deadletter/retry", []byte("{not json"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = authedRequest(t, http.MethodPost, srv.URL+"/internal/deadletter/retry", []byte(`{"ids":[]}`))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRecoveryStats(t *testing.T) {
	recoverer := &fakeRecoverer{stats: &recovery.Stats{
		PendingItems:    12,
		FailedItems:     2,
		DeadLetterCount: 1,
		RecoveryRate:    0.75,
	}}
	srv := newTestServer(t, &fakeBatchRunner{}, recoverer)

	resp := authedRequest(t, http.MethodGet, srv.URL+"/internal/recovery/stats", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats recovery.Stats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, 12, stats.PendingItems)
	assert.InDelta(t, 0.75, stats.RecoveryRate, 0.0001)
}

func TestHealthz_NoAuthRequired(t *testing.T) {
	srv := newTestServer(t, &fakeBatchRunner{}, &fakeRecoverer{})

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
