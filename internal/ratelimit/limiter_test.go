package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

func TestAllow_SlidingWindow(t *testing.T) {
	l := New(nil)
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return clock }
	b := Bucket{MaxRequests: 2, Window: time.Minute}

	if !l.Allow("k", b) || !l.Allow("k", b) {
		t.Fatal("first two requests must pass")
	}
	if l.Allow("k", b) {
		t.Fatal("third request must be limited")
	}
	if !l.Allow("other", b) {
		t.Fatal("keys are independent")
	}

	clock = clock.Add(61 * time.Second)
	if !l.Allow("k", b) {
		t.Fatal("window should have slid")
	}
}

func TestNew_Overrides(t *testing.T) {
	l := New(map[string]Bucket{"check": {MaxRequests: 5, Window: time.Second}})
	if b := l.Bucket("check"); b.MaxRequests != 5 {
		t.Errorf("override not applied: %+v", b)
	}
	if b := l.Bucket("predict"); b.MaxRequests != 60 {
		t.Errorf("default lost: %+v", b)
	}
	if b := l.Bucket("nope"); b != fallbackBucket {
		t.Errorf("expected fallback, got %+v", b)
	}
	if DefaultBuckets["check"].MaxRequests != 30 {
		t.Error("overrides must not mutate DefaultBuckets")
	}
}

func TestSweep(t *testing.T) {
	l := New(nil)
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return clock }
	b := Bucket{MaxRequests: 10, Window: time.Minute}

	l.Allow("stale", b)
	clock = clock.Add(2 * time.Minute)
	l.Allow("fresh", b)

	if n := l.Sweep(time.Minute); n != 1 {
		t.Errorf("expected 1 key swept, got %d", n)
	}
	if _, ok := l.hits["fresh"]; !ok {
		t.Error("fresh key removed")
	}
}

func TestMiddleware(t *testing.T) {
	l := New(map[string]Bucket{"check": {MaxRequests: 1, Window: time.Minute}})
	h := l.Middleware("check")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/check-url", nil)
	req.RemoteAddr = "203.0.113.7"

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("first request: got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q", rec.Header().Get("Retry-After"))
	}
	if want := `{"error":"Rate limited","retry_after_seconds":60}`; rec.Body.String() != want {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestMiddleware_KeysByIPNotConnection(t *testing.T) {
	l := New(map[string]Bucket{"check": {MaxRequests: 1, Window: time.Minute}})
	h := middleware.RealIP(l.Middleware("check")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	tests := []struct {
		remoteAddr string
		want       int
	}{
		{"203.0.113.7:40001", http.StatusNoContent},
		{"203.0.113.7:40002", http.StatusTooManyRequests},
		{"203.0.113.7:40003", http.StatusTooManyRequests},
		{"198.51.100.9:40001", http.StatusNoContent},
		{"[2001:db8::1]:5000", http.StatusNoContent},
		{"[2001:db8::1]:5001", http.StatusTooManyRequests},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodPost, "/api/check-url", nil)
		req.RemoteAddr = tt.remoteAddr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != tt.want {
			t.Errorf("%s: got %d, want %d", tt.remoteAddr, rec.Code, tt.want)
		}
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		remoteAddr, want string
	}{
		{"203.0.113.7:40001", "203.0.113.7"},
		{"[2001:db8::1]:443", "2001:db8::1"},
		{"203.0.113.7", "203.0.113.7"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tt.remoteAddr
		if got := clientIP(req); got != tt.want {
			t.Errorf("clientIP(%q) = %q, want %q", tt.remoteAddr, got, tt.want)
		}
	}
}
