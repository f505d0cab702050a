// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/listflow/internal/liststore"
	"github.com/ManuGH/listflow/internal/log"
	"github.com/ManuGH/listflow/internal/model"
)

type listsResponse struct {
	Lists []model.ListRecord `json:"lists"`
	Count int                `json:"count"`
}

type statsResponse struct {
	ApproximateCount int64 `json:"approximateCount"`
}

// handleListLists scans the table, optionally filtered by ?status=.
func (s *Server) handleListLists(w http.ResponseWriter, r *http.Request) {
	var filter model.ListStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		st, err := model.ParseListStatus(raw)
		if err != nil {
			writeError(w, err)
			return
		}
		filter = st
	}

	out := make([]model.ListRecord, 0)
	err := s.store.Scan(r.Context(), func(rec model.ListRecord) error {
		if filter == "" || rec.Status == filter {
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		s.storeFailure(r.Context(), w, "scan", err)
		return
	}
	writeJSON(w, http.StatusOK, listsResponse{Lists: out, Count: len(out)})
}

func (s *Server) handleGetList(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	rec, ok, err := s.store.Get(r.Context(), name)
	if err != nil {
		s.storeFailure(r.Context(), w, "get", err)
		return
	}
	if !ok {
		writeNotFound(w)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	n, err := s.store.ApproximateCount(r.Context())
	if err != nil {
		s.storeFailure(r.Context(), w, "count", err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{ApproximateCount: n})
}

func (s *Server) storeFailure(ctx context.Context, w http.ResponseWriter, op string, err error) {
	logger := log.WithComponentFromContext(ctx, "api")
	logger.Error().Err(err).Str("op", op).Msg("list store query failed")
	if errors.Is(err, liststore.ErrClosed) {
		writeServiceUnavailable(w, err)
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "list store query failed"})
}
