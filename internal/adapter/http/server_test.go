package http_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	httpadapter "github.com/couchcryptid/adsb-aircraft-db/internal/adapter/http"
	"github.com/couchcryptid/adsb-aircraft-db/internal/domain"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockStatus struct {
	err  error
	last *domain.BuildOutcome
}

func (m *mockStatus) CheckReadiness(_ context.Context) error { return m.err }

func (m *mockStatus) LastBuild() (domain.BuildOutcome, bool) {
	if m.last == nil {
		return domain.BuildOutcome{}, false
	}
	return *m.last, true
}

func newTestServer(status *mockStatus) *httpadapter.Server {
	return httpadapter.NewServer(":0", status, slog.Default())
}

func get(t *testing.T, srv *httpadapter.Server, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]any
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestHealthzReturns200(t *testing.T) {
	rec, body := get(t, newTestServer(&mockStatus{}), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	rec, body := get(t, newTestServer(&mockStatus{}), "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", body["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	rec, body := get(t, newTestServer(&mockStatus{err: fmt.Errorf("no build yet")}), "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "no build yet", body["error"])
}

func TestStatusBeforeFirstBuild(t *testing.T) {
	rec, body := get(t, newTestServer(&mockStatus{}), "/status")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "no build yet", body["status"])
}

func TestStatusReportsLastBuild(t *testing.T) {
	status := &mockStatus{last: &domain.BuildOutcome{
		Summary: domain.BuildSummary{RunID: "run-1", Aircraft: 42, Partitions: []domain.PartitionKey{"A1"}},
	}}
	rec, body := get(t, newTestServer(status), "/status")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])

	build, ok := body["build"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "run-1", build["run_id"])
	assert.InDelta(t, 42, build["aircraft"], 0)
}

func TestStatusReportsFailedBuild(t *testing.T) {
	status := &mockStatus{last: &domain.BuildOutcome{
		Summary: domain.BuildSummary{RunID: "run-2"},
		Err:     errors.Join(domain.ErrFetch, errors.New("status 503")),
	}}
	rec, body := get(t, newTestServer(status), "/status")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "failed", body["status"])
	assert.Contains(t, body["error"], "status 503")
}

func TestMetricsEndpoint(t *testing.T) {
	rec, _ := get(t, newTestServer(&mockStatus{}), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
