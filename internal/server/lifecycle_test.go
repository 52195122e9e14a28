package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestBackoffFor(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{4, 8 * time.Second},
		{9, 256 * time.Second},
		{10, 5 * time.Minute},
		{64, 5 * time.Minute},
	}
	for _, tt := range tests {
		if got := backoffFor(tt.attempt, time.Second); got != tt.want {
			t.Errorf("backoffFor(%d) = %s, want %s", tt.attempt, got, tt.want)
		}
	}
}

func TestRunWithRecovery_RestartsAfterPanic(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	done := make(chan struct{})
	go func() {
		defer close(done)
		runWithRecovery(ctx, quiet, "test", func(ctx context.Context) {
			if calls.Add(1) == 3 {
				cancel()
				return
			}
			panic("boom")
		}, time.Millisecond)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("runWithRecovery did not stop")
	}
	if n := calls.Load(); n != 3 {
		t.Errorf("expected 3 runs, got %d", n)
	}
}

func TestRunWithRecovery_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := false
	RunWithRecovery(ctx, quiet, "test", func(context.Context) { ran = true })
	if ran {
		t.Error("fn must not run after cancellation")
	}
}

func TestEvery(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	done := make(chan struct{})
	go func() {
		defer close(done)
		Every(ctx, quiet, "tick", time.Millisecond, func(context.Context) error {
			if calls.Add(1) >= 3 {
				cancel()
			}
			return errors.New("ignored")
		})
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Every did not stop")
	}
	if calls.Load() < 3 {
		t.Errorf("expected at least 3 ticks, got %d", calls.Load())
	}
}

func TestSetupLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupLogger("WARN", &buf)

	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected one JSON record, got %q: %v", buf.String(), err)
	}
	if rec["msg"] != "shown" || rec["k"] != "v" {
		t.Errorf("unexpected record %v", rec)
	}
}
