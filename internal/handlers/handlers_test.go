package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lurewatch/lurewatch/internal/classify"
	"github.com/lurewatch/lurewatch/internal/db"
	"github.com/lurewatch/lurewatch/internal/features"
	"github.com/lurewatch/lurewatch/internal/sse"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type memStore struct {
	mu    sync.Mutex
	scans []db.Scan
	err   error
}

func (m *memStore) InsertScan(_ context.Context, s *db.Scan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.scans = append([]db.Scan{*s}, m.scans...)
	return nil
}

func (m *memStore) GetScan(_ context.Context, id string) (*db.Scan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.scans {
		if s.ID == id {
			return &s, nil
		}
	}
	return nil, db.ErrNotFound
}

func (m *memStore) RecentScans(_ context.Context, limit int) ([]db.Scan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]db.Scan{}, m.scans[:min(limit, len(m.scans))]...), nil
}

func (m *memStore) Stats(context.Context) (*db.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &db.Stats{TotalScans: int64(len(m.scans))}
	for _, scan := range m.scans {
		switch scan.Final {
		case "Phishing":
			s.Phishing++
		case "Legitimate":
			s.Legitimate++
		}
	}
	return s, nil
}

type stubModel struct {
	err error
}

func (s stubModel) Predict(_ context.Context, vector []float64) (*classify.Prediction, error) {
	if s.err != nil {
		return nil, s.err
	}
	if vector[0] > 100 {
		return &classify.Prediction{Label: 1, Probabilities: [2]float64{0.1, 0.9}}, nil
	}
	return &classify.Prediction{Label: 0, Probabilities: [2]float64{0.8, 0.2}}, nil
}

func post(t *testing.T, h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %s: %v", rec.Body.String(), err)
	}
	return out
}

func TestCheckURL(t *testing.T) {
	store := &memStore{}
	ch := NewCheckHandler(classify.NewPipeline(nil, nil, quiet), store, nil, quiet)

	rec := post(t, ch.CheckURL, `{"url":"paypa1-secure.tk/login"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	out := decode(t, rec)

	if out["success"] != true || out["url"] != "https://paypa1-secure.tk/login" {
		t.Errorf("unexpected envelope %v", out)
	}
	if out["result"] != "Phishing" || out["final"] != "Phishing" || out["prediction"] != float64(1) {
		t.Errorf("unexpected verdict %v/%v/%v", out["result"], out["final"], out["prediction"])
	}
	for _, key := range []string{"id", "confidence", "features", "risk_factors", "trust_factors"} {
		if _, ok := out[key]; !ok {
			t.Errorf("missing %q in response", key)
		}
	}
	if _, ok := out["model"]; ok {
		t.Error("model must be omitted without a model")
	}
	feats := out["features"].(map[string]any)
	if feats["Domain"] != "paypa1-secure.tk" || feats["KnownPhishingPattern"] == nil {
		t.Errorf("unexpected features %v", feats)
	}

	if len(store.scans) != 1 || store.scans[0].ID != out["id"] {
		t.Fatalf("scan not stored: %+v", store.scans)
	}
}

func TestCheckURL_BadRequests(t *testing.T) {
	ch := NewCheckHandler(classify.NewPipeline(nil, nil, quiet), nil, nil, quiet)
	for _, body := range []string{`{}`, `{"url":"   "}`, `not json`} {
		rec := post(t, ch.CheckURL, body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: status %d, want 400", body, rec.Code)
		}
		if _, ok := decode(t, rec)["error"]; !ok {
			t.Errorf("body %q: missing error field", body)
		}
	}
}

func TestCheckURL_StoreFailureStillAnswers(t *testing.T) {
	store := &memStore{err: errors.New("db down")}
	ch := NewCheckHandler(classify.NewPipeline(nil, nil, quiet), store, nil, quiet)

	rec := post(t, ch.CheckURL, `{"url":"https://google.com"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if decode(t, rec)["result"] != "Legitimate" {
		t.Error("expected Legitimate")
	}
}

func TestCheckURL_PublishesWithoutStore(t *testing.T) {
	hub := sse.NewHub(quiet)
	events, cancel := hub.Subscribe(sse.TopicScans)
	defer cancel()

	ch := NewCheckHandler(classify.NewPipeline(nil, nil, quiet), nil, hub, quiet)
	rec := post(t, ch.CheckURL, `{"url":"https://google.com"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}

	select {
	case ev := <-events:
		var payload scanEvent
		if err := json.Unmarshal(ev.Data, &payload); err != nil {
			t.Fatal(err)
		}
		if ev.Type != "scan" || payload.Domain != "google.com" || payload.Final != "Legitimate" {
			t.Errorf("unexpected event %s %+v", ev.Type, payload)
		}
	case <-time.After(time.Second):
		t.Fatal("no event published")
	}
}

func TestFeatures(t *testing.T) {
	ch := NewCheckHandler(classify.NewPipeline(nil, nil, quiet), nil, nil, quiet)
	rec := post(t, ch.Features, `{"url":"example.com"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	out := decode(t, rec)
	names := out["feature_names"].([]any)
	values := out["features"].([]any)
	if len(names) != len(features.Names) || len(values) != len(names) {
		t.Fatalf("got %d names and %d values", len(names), len(values))
	}
	if values[0] != float64(len("https://example.com")) {
		t.Errorf("URLLength = %v", values[0])
	}
}

func TestPredict(t *testing.T) {
	tests := []struct {
		name   string
		model  classify.Model
		body   string
		status int
		result string
	}{
		{"no model", nil, `{"features":{}}`, http.StatusServiceUnavailable, ""},
		{"legitimate", stubModel{}, `{"features":{"URLLength":20}}`, http.StatusOK, "Legitimate"},
		{"phishing", stubModel{}, `{"features":{"URLLength":300,"Bogus":1}}`, http.StatusOK, "Phishing"},
		{"model down", stubModel{err: errors.New("timeout")}, `{"features":{}}`, http.StatusBadGateway, ""},
		{"bad body", stubModel{}, `[`, http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := NewCheckHandler(classify.NewPipeline(tt.model, nil, quiet), nil, nil, quiet)
			rec := post(t, ch.Predict, tt.body)
			if rec.Code != tt.status {
				t.Fatalf("status %d, want %d: %s", rec.Code, tt.status, rec.Body.String())
			}
			if tt.result != "" && decode(t, rec)["result"] != tt.result {
				t.Errorf("result = %v, want %s", decode(t, rec)["result"], tt.result)
			}
		})
	}
}

func historyRouter(store Store) http.Handler {
	hh := NewHistoryHandler(store, quiet)
	r := chi.NewRouter()
	r.Get("/api/stats", hh.Stats)
	r.Get("/api/history", hh.History)
	r.Get("/api/scans/{id}", hh.GetScan)
	return r
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHistory_NoStore(t *testing.T) {
	r := historyRouter(nil)
	for _, path := range []string{"/api/stats", "/api/history", "/api/scans/6f1c1d1e-0000-4000-8000-000000000000"} {
		if rec := get(t, r, path); rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: status %d, want 503", path, rec.Code)
		}
	}
}

func TestHistory(t *testing.T) {
	store := &memStore{}
	ch := NewCheckHandler(classify.NewPipeline(nil, nil, quiet), store, nil, quiet)
	for _, u := range []string{"https://google.com", "http://paypa1.tk", "https://github.com"} {
		post(t, ch.CheckURL, `{"url":"`+u+`"}`)
	}
	r := historyRouter(store)

	rec := get(t, r, "/api/history?limit=2")
	if rec.Code != http.StatusOK {
		t.Fatalf("history status %d", rec.Code)
	}
	scans := decode(t, rec)["scans"].([]any)
	if len(scans) != 2 {
		t.Fatalf("expected 2 scans, got %d", len(scans))
	}
	newest := scans[0].(map[string]any)
	if newest["url"] != "https://github.com" {
		t.Errorf("expected newest first, got %v", newest["url"])
	}

	for _, bad := range []string{"0", "-3", "lots"} {
		if rec := get(t, r, "/api/history?limit="+bad); rec.Code != http.StatusBadRequest {
			t.Errorf("limit=%s: status %d, want 400", bad, rec.Code)
		}
	}

	rec = get(t, r, "/api/stats")
	stats := decode(t, rec)
	if stats["total_scans"] != float64(3) || stats["phishing"] != float64(1) || stats["num_features"] != float64(50) {
		t.Errorf("unexpected stats %v", stats)
	}

	id := newest["id"].(string)
	if rec := get(t, r, "/api/scans/"+id); rec.Code != http.StatusOK {
		t.Errorf("get scan status %d", rec.Code)
	}
	if rec := get(t, r, "/api/scans/not-a-uuid"); rec.Code != http.StatusBadRequest {
		t.Errorf("bad id status %d", rec.Code)
	}
	if rec := get(t, r, "/api/scans/6f1c1d1e-0000-4000-8000-000000000000"); rec.Code != http.StatusNotFound {
		t.Errorf("unknown id status %d", rec.Code)
	}
}

func TestHandleSSE(t *testing.T) {
	hub := sse.NewHub(quiet)
	store := &memStore{scans: []db.Scan{{ID: "hydrated", URL: "https://example.com"}}}
	srv := httptest.NewServer(http.HandlerFunc(NewStreamHandler(hub, store).HandleSSE))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type %q", ct)
	}

	lines := bufio.NewScanner(resp.Body)
	var seen []string
	for lines.Scan() {
		line := lines.Text()
		seen = append(seen, line)
		if line == ": connected" {
			break
		}
	}
	joined := strings.Join(seen, "\n")
	if !strings.Contains(joined, "event: stats") || !strings.Contains(joined, `"id":"hydrated"`) {
		t.Fatalf("missing hydration in %q", joined)
	}

	hub.Publish(sse.TopicScans, sse.Event{Type: "scan", Data: []byte(`{"id":"live"}`)})

	for lines.Scan() {
		if lines.Text() == `data: {"id":"live"}` {
			return
		}
	}
	t.Fatal("live event not received")
}
