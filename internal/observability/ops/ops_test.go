package ops

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hwbot/internal/poller"
	"hwbot/internal/storage"
	logx "hwbot/pkg/logx"
)

type staticSource poller.Snapshot

func (s staticSource) Snapshot() poller.Snapshot { return poller.Snapshot(s) }

type stubJournal struct{ cycles []storage.Cycle }

func (j *stubJournal) AppendCycle(context.Context, storage.Cycle) error { return nil }
func (j *stubJournal) Recent(_ context.Context, limit int) ([]storage.Cycle, error) {
	if limit < len(j.cycles) {
		return j.cycles[:limit], nil
	}
	return j.cycles, nil
}
func (j *stubJournal) Close() error { return nil }

func TestHealthz(t *testing.T) {
	t.Parallel()
	s := New(Config{}, staticSource{Cursor: 100, Cycles: 2, LastOK: false, LastError: "boom"}, nil, logx.Nop())

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body healthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, int64(100), body.Poller.Cursor)
	assert.Equal(t, "boom", body.Poller.LastError)
}

func TestCycles(t *testing.T) {
	t.Parallel()
	j := &stubJournal{cycles: []storage.Cycle{{CursorAfter: 3, OK: true}, {CursorAfter: 2}, {CursorAfter: 1}}}
	h := New(Config{}, staticSource{}, j, logx.Nop()).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cycles?limit=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var got []storage.Cycle
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	require.Len(t, got, 2)
	assert.Equal(t, int64(3), got[0].CursorAfter)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cycles?limit=zero", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCyclesWithoutJournal(t *testing.T) {
	t.Parallel()
	rec := httptest.NewRecorder()
	New(Config{}, staticSource{}, nil, logx.Nop()).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cycles", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPprofOnlyWhenEnabled(t *testing.T) {
	t.Parallel()
	rec := httptest.NewRecorder()
	New(Config{}, staticSource{}, nil, logx.Nop()).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	New(Config{Pprof: true}, staticSource{}, nil, logx.Nop()).Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRunStopsOnCancel(t *testing.T) {
	t.Parallel()
	s := New(Config{Addr: "127.0.0.1:0"}, staticSource{}, nil, logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()
	require.NoError(t, <-done)
}
