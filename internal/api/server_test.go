// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/listflow/internal/health"
	"github.com/ManuGH/listflow/internal/liststore"
	"github.com/ManuGH/listflow/internal/model"
)

func newTestServer(t *testing.T, cfg Config) (*Server, *liststore.MemoryStore) {
	t.Helper()
	store := liststore.NewMemoryStore()
	ctx := context.Background()
	for _, rec := range []model.ListRecord{
		{Name: "groceries", Status: model.ListActive},
		{Name: "chores", Status: model.ListActive},
		{Name: "old", Status: model.ListDeleted},
	} {
		require.NoError(t, store.Apply(ctx, rec))
	}
	hm := health.NewManager("test")
	hm.RegisterChecker(health.NewStoreChecker(store, time.Second))
	return New(cfg, store, hm), store
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.RemoteAddr = "10.0.0.1:5555"
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestListLists(t *testing.T) {
	s, _ := newTestServer(t, Config{})

	w := get(t, s.Handler(), "/api/v1/lists")
	require.Equal(t, http.StatusOK, w.Code)
	var resp listsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Count)
	assert.Equal(t, "chores", resp.Lists[0].Name)

	w = get(t, s.Handler(), "/api/v1/lists?status=DELETED")
	require.Equal(t, http.StatusOK, w.Code)
	resp = listsResponse{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []model.ListRecord{{Name: "old", Status: model.ListDeleted}}, resp.Lists)
}

func TestListListsRejectsUnknownStatus(t *testing.T) {
	s, _ := newTestServer(t, Config{})
	w := get(t, s.Handler(), "/api/v1/lists?status=active")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "unknown list status")
}

func TestGetList(t *testing.T) {
	s, _ := newTestServer(t, Config{})

	w := get(t, s.Handler(), "/api/v1/lists/groceries")
	require.Equal(t, http.StatusOK, w.Code)
	var rec model.ListRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.Equal(t, model.ListRecord{Name: "groceries", Status: model.ListActive}, rec)

	w = get(t, s.Handler(), "/api/v1/lists/missing")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStats(t *testing.T) {
	s, _ := newTestServer(t, Config{})
	w := get(t, s.Handler(), "/api/v1/stats")
	require.Equal(t, http.StatusOK, w.Code)
	var resp statsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(3), resp.ApproximateCount)
}

func TestClosedStoreIsUnavailable(t *testing.T) {
	s, store := newTestServer(t, Config{})
	require.NoError(t, store.Close())

	assert.Equal(t, http.StatusServiceUnavailable, get(t, s.Handler(), "/api/v1/stats").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, s.Handler(), "/api/v1/lists").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, s.Handler(), "/readyz").Code)
	assert.Equal(t, http.StatusOK, get(t, s.Handler(), "/healthz").Code)
}

func TestOpsEndpoints(t *testing.T) {
	s, _ := newTestServer(t, Config{})

	assert.Equal(t, http.StatusOK, get(t, s.Handler(), "/healthz").Code)
	assert.Equal(t, http.StatusOK, get(t, s.Handler(), "/readyz").Code)

	w := get(t, s.Handler(), "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "listflow_http_request_duration_seconds")
}

func TestRateLimitAppliesToAPIOnly(t *testing.T) {
	s, _ := newTestServer(t, Config{RateLimit: 2, RateLimitWindow: time.Minute})

	assert.Equal(t, http.StatusOK, get(t, s.Handler(), "/api/v1/stats").Code)
	assert.Equal(t, http.StatusOK, get(t, s.Handler(), "/api/v1/stats").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(t, s.Handler(), "/api/v1/stats").Code)

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, get(t, s.Handler(), "/healthz").Code)
	}
}

func TestServeShutsDownOnCancel(t *testing.T) {
	s, _ := newTestServer(t, Config{ShutdownTimeout: time.Second})
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
