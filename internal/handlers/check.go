package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/lurewatch/lurewatch/internal/classify"
	"github.com/lurewatch/lurewatch/internal/db"
	"github.com/lurewatch/lurewatch/internal/features"
	"github.com/lurewatch/lurewatch/internal/sse"
)

// Store is the scan history the handlers read and write.
type Store interface {
	InsertScan(ctx context.Context, s *db.Scan) error
	GetScan(ctx context.Context, id string) (*db.Scan, error)
	RecentScans(ctx context.Context, limit int) ([]db.Scan, error)
	Stats(ctx context.Context) (*db.Stats, error)
}

// CheckHandler serves the URL check, feature and model endpoints.
type CheckHandler struct {
	pipeline *classify.Pipeline
	store    Store
	hub      *sse.Hub
	logger   *slog.Logger
}

// NewCheckHandler creates a CheckHandler. store may be nil, in which case
// scans are published straight to hub instead of through the database.
func NewCheckHandler(pipeline *classify.Pipeline, store Store, hub *sse.Hub, logger *slog.Logger) *CheckHandler {
	return &CheckHandler{pipeline: pipeline, store: store, hub: hub, logger: logger}
}

type urlRequest struct {
	URL string `json:"url"`
}

type checkResponse struct {
	Success bool `json:"success"`
	*classify.Result
}

// CheckURL handles POST /api/check-url.
func (ch *CheckHandler) CheckURL(w http.ResponseWriter, r *http.Request) {
	var req urlRequest
	if err := decodeBody(w, r, &req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		jsonError(w, "URL is required", http.StatusBadRequest)
		return
	}

	res, err := ch.pipeline.Check(r.Context(), req.URL)
	if err != nil {
		ch.logger.Error("url check failed", "url", req.URL, "err", err)
		jsonError(w, "URL check failed", http.StatusInternalServerError)
		return
	}

	ch.record(r.Context(), res)
	writeJSON(w, http.StatusOK, checkResponse{Success: true, Result: res})
}

// scanEvent mirrors the payload of the url_scans NOTIFY trigger.
type scanEvent struct {
	ID         string    `json:"id"`
	URL        string    `json:"url"`
	Domain     string    `json:"domain"`
	Result     string    `json:"result"`
	Final      string    `json:"final"`
	Phishing   float64   `json:"phishing"`
	Legitimate float64   `json:"legitimate"`
	CheckedAt  time.Time `json:"checked_at"`
}

// record persists the scan, or publishes it directly when there is no store.
// Failures are logged; the caller already has its answer.
func (ch *CheckHandler) record(ctx context.Context, res *classify.Result) {
	if ch.store != nil {
		if err := ch.store.InsertScan(ctx, db.NewScan(res)); err != nil {
			ch.logger.Error("failed to store scan", "id", res.ID, "err", err)
		}
		return
	}
	if ch.hub == nil {
		return
	}
	data, err := json.Marshal(scanEvent{
		ID:         res.ID,
		URL:        res.URL,
		Domain:     res.Features.Domain,
		Result:     string(res.Result),
		Final:      string(res.Final),
		Phishing:   res.Confidence.Phishing,
		Legitimate: res.Confidence.Legitimate,
		CheckedAt:  res.CheckedAt,
	})
	if err != nil {
		ch.logger.Warn("encode scan event failed", "err", err)
		return
	}
	ch.hub.Publish(sse.TopicScans, sse.Event{Type: "scan", Data: data})
}

// Features handles POST /api/features.
func (ch *CheckHandler) Features(w http.ResponseWriter, r *http.Request) {
	var req urlRequest
	if err := decodeBody(w, r, &req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		jsonError(w, "URL is required", http.StatusBadRequest)
		return
	}

	target := classify.NormalizeURL(req.URL)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"url":           target,
		"feature_names": features.Names,
		"features":      features.Extract(target).Vector(),
	})
}

// Predict handles POST /api/predict with caller-supplied feature values.
func (ch *CheckHandler) Predict(w http.ResponseWriter, r *http.Request) {
	if !ch.pipeline.HasModel() {
		jsonError(w, "model not configured", http.StatusServiceUnavailable)
		return
	}

	var req struct {
		Features map[string]float64 `json:"features"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	v, err := ch.pipeline.Predict(r.Context(), features.FromValues(req.Features))
	if err != nil {
		if errors.Is(err, classify.ErrNoModel) {
			jsonError(w, "model not configured", http.StatusServiceUnavailable)
			return
		}
		ch.logger.Error("model prediction failed", "err", err)
		jsonError(w, "model unavailable", http.StatusBadGateway)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"prediction":      v.Prediction,
		"legitimate_prob": v.LegitimateProb,
		"phishing_prob":   v.PhishingProb,
		"result":          v.Result,
	})
}
