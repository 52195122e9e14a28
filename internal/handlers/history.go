package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lurewatch/lurewatch/internal/db"
	"github.com/lurewatch/lurewatch/internal/features"
	"github.com/lurewatch/lurewatch/internal/heuristics"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
)

// HistoryHandler serves the scan history. All endpoints answer 503 when the
// service runs without a database.
type HistoryHandler struct {
	store  Store
	logger *slog.Logger
}

func NewHistoryHandler(store Store, logger *slog.Logger) *HistoryHandler {
	return &HistoryHandler{store: store, logger: logger}
}

func (hh *HistoryHandler) available(w http.ResponseWriter) bool {
	if hh.store == nil {
		jsonError(w, "scan history not configured", http.StatusServiceUnavailable)
		return false
	}
	return true
}

// Stats handles GET /api/stats.
func (hh *HistoryHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if !hh.available(w) {
		return
	}
	stats, err := hh.store.Stats(r.Context())
	if err != nil {
		hh.logger.Error("failed to fetch stats", "err", err)
		jsonError(w, "failed to fetch stats", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
		*db.Stats
		NumFeatures int            `json:"num_features"`
		Tables      map[string]int `json:"tables"`
	}{
		Success:     true,
		Stats:       stats,
		NumFeatures: len(features.Names),
		Tables:      heuristics.TableSizes(),
	})
}

// History handles GET /api/history?limit=N.
func (hh *HistoryHandler) History(w http.ResponseWriter, r *http.Request) {
	if !hh.available(w) {
		return
	}
	limit := defaultHistoryLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			jsonError(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	scans, err := hh.store.RecentScans(r.Context(), limit)
	if err != nil {
		hh.logger.Error("failed to fetch history", "err", err)
		jsonError(w, "failed to fetch history", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "scans": scans})
}

// GetScan handles GET /api/scans/{id}.
func (hh *HistoryHandler) GetScan(w http.ResponseWriter, r *http.Request) {
	if !hh.available(w) {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		jsonError(w, "invalid scan id", http.StatusBadRequest)
		return
	}

	scan, err := hh.store.GetScan(r.Context(), id.String())
	if errors.Is(err, db.ErrNotFound) {
		jsonError(w, "scan not found", http.StatusNotFound)
		return
	}
	if err != nil {
		hh.logger.Error("failed to fetch scan", "id", id, "err", err)
		jsonError(w, "failed to fetch scan", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, scan)
}
