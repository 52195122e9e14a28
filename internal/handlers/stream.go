package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/lurewatch/lurewatch/internal/sse"
)

// StreamHandler serves the live scan feed over SSE.
type StreamHandler struct {
	hub       *sse.Hub
	store     Store
	keepalive time.Duration
}

// NewStreamHandler creates a new StreamHandler. store may be nil.
func NewStreamHandler(hub *sse.Hub, store Store) *StreamHandler {
	return &StreamHandler{hub: hub, store: store, keepalive: 30 * time.Second}
}

// HandleSSE handles GET /api/stream/events.
// It hydrates with stats and recent scans when history is available, then
// streams live events with periodic keepalives.
func (sh *StreamHandler) HandleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	// Subscribe before hydrating so nothing falls in between.
	ch, cancel := sh.hub.Subscribe(sse.TopicScans)
	defer cancel()

	if sh.store != nil {
		if stats, err := sh.store.Stats(r.Context()); err == nil {
			data, _ := json.Marshal(stats)
			fmt.Fprintf(w, "event: stats\ndata: %s\n\n", data)
		}
		recent, _ := sh.store.RecentScans(r.Context(), defaultHistoryLimit)
		for i := len(recent) - 1; i >= 0; i-- {
			data, _ := json.Marshal(recent[i])
			fmt.Fprintf(w, "event: scan\ndata: %s\n\n", data)
		}
	}
	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	keepalive := time.NewTicker(sh.keepalive)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, event.Data)
			flusher.Flush()
		case <-keepalive.C:
			fmt.Fprintf(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}
