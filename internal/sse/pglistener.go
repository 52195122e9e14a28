package sse

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ScanChannel is the PostgreSQL NOTIFY channel the url_scans trigger uses.
const ScanChannel = "scan_stream"

// PGListener subscribes to the scan NOTIFY channel and fans out
// notifications to the SSE hub.
type PGListener struct {
	pool   *pgxpool.Pool
	hub    *Hub
	logger *slog.Logger
}

// NewPGListener creates a new PGListener that bridges PostgreSQL notifications to SSE.
func NewPGListener(pool *pgxpool.Pool, hub *Hub, logger *slog.Logger) *PGListener {
	return &PGListener{pool: pool, hub: hub, logger: logger}
}

// Listen blocks until ctx is cancelled or the connection fails.
// It should be run inside RunWithRecovery so it auto-restarts on failure.
func (pl *PGListener) Listen(ctx context.Context) {
	conn, err := pl.pool.Acquire(ctx)
	if err != nil {
		pl.logger.Error("pg-listen: acquire connection failed", "err", err)
		return
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+ScanChannel); err != nil {
		pl.logger.Error("pg-listen: LISTEN failed", "channel", ScanChannel, "err", err)
		return
	}
	pl.logger.Info("pg-listen: subscribed", "channel", ScanChannel)

	for {
		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return // graceful shutdown
			}
			pl.logger.Error("pg-listen: notification error", "err", err)
			return // RunWithRecovery will reconnect
		}

		payload := []byte(notification.Payload)
		if !json.Valid(payload) {
			pl.logger.Warn("pg-listen: invalid payload", "channel", notification.Channel)
			continue
		}
		pl.hub.Publish(TopicScans, Event{Type: "scan", Data: payload})
	}
}
