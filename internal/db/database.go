// Package db persists the scan history in PostgreSQL.
package db

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a queried entity does not exist.
var ErrNotFound = errors.New("not found")

//go:embed migrations/*.sql
var migrations embed.FS

// DB wraps a pgx connection pool and provides the scan history queries.
type DB struct {
	Pool   *pgxpool.Pool
	logger *slog.Logger
}

// Connect creates a new DB instance, connects to PostgreSQL, and runs migrations.
func Connect(ctx context.Context, dsn string, logger *slog.Logger) (*DB, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	config.MaxConns = 20
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	db := &DB{Pool: pool, logger: logger}
	if err := db.Migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Migrate executes the embedded SQL migration files in name order.
func (db *DB) Migrate(ctx context.Context) error {
	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	for _, e := range entries {
		sql, err := migrations.ReadFile("migrations/" + e.Name())
		if err != nil {
			return fmt.Errorf("read migration %s: %w", e.Name(), err)
		}
		if _, err := db.Pool.Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("exec migration %s: %w", e.Name(), err)
		}
	}
	db.logger.Info("database migrated", "migrations", len(entries))
	return nil
}

// Close shuts down the connection pool.
func (db *DB) Close() {
	db.Pool.Close()
}

// PingContext checks the database connection.
func (db *DB) PingContext(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// InsertScan stores one scan. The insert trigger announces it on scan_stream.
func (db *DB) InsertScan(ctx context.Context, s *Scan) error {
	var model, review *string
	if s.ModelResult != "" {
		model = &s.ModelResult
	}
	if s.ReviewResult != "" {
		review = &s.ReviewResult
	}
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO url_scans (id, checked_at, url, domain, result, final, phishing_pct, legitimate_pct,
		                        risk_factors, trust_factors, model_result, review_result, response_time_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		s.ID, s.CheckedAt, s.URL, s.Domain, s.Result, s.Final, s.PhishingPct, s.LegitimatePct,
		nonNil(s.RiskFactors), nonNil(s.TrustFactors), model, review, s.ResponseTimeMs)
	if err != nil {
		return fmt.Errorf("insert scan: %w", err)
	}
	return nil
}

const scanColumns = `id::text, checked_at, url, domain, result, final, phishing_pct, legitimate_pct,
	risk_factors, trust_factors, model_result, review_result, response_time_ms`

// GetScan retrieves one scan by id.
func (db *DB) GetScan(ctx context.Context, id string) (*Scan, error) {
	row := db.Pool.QueryRow(ctx, `SELECT `+scanColumns+` FROM url_scans WHERE id = $1`, id)
	s, err := scanRow(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get scan: %w", err)
	}
	return s, nil
}

// RecentScans retrieves the most recent scans, newest first.
func (db *DB) RecentScans(ctx context.Context, limit int) ([]Scan, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT `+scanColumns+` FROM url_scans ORDER BY checked_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent scans: %w", err)
	}
	defer rows.Close()

	scans := []Scan{}
	for rows.Next() {
		s, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("recent scans: %w", err)
		}
		scans = append(scans, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("recent scans: %w", err)
	}
	return scans, nil
}

// Stats returns totals per final verdict across the whole history.
func (db *DB) Stats(ctx context.Context) (*Stats, error) {
	var s Stats
	err := db.Pool.QueryRow(ctx,
		`SELECT
		    COUNT(*),
		    COUNT(*) FILTER (WHERE final = 'Phishing'),
		    COUNT(*) FILTER (WHERE final = 'Legitimate'),
		    COUNT(*) FILTER (WHERE final = 'Suspicious'),
		    COUNT(*) FILTER (WHERE review_result IS NOT NULL),
		    COALESCE(AVG(response_time_ms), 0),
		    MAX(checked_at)
		 FROM url_scans`,
	).Scan(&s.TotalScans, &s.Phishing, &s.Legitimate, &s.Suspicious, &s.Reviewed, &s.AvgResponseMs, &s.LastScanAt)
	if err != nil {
		return nil, fmt.Errorf("scan stats: %w", err)
	}
	return &s, nil
}

// PruneScans deletes scans checked before cutoff and returns how many went.
func (db *DB) PruneScans(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := db.Pool.Exec(ctx, `DELETE FROM url_scans WHERE checked_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune scans: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanRow(row pgx.Row) (*Scan, error) {
	var s Scan
	var model, review *string
	if err := row.Scan(&s.ID, &s.CheckedAt, &s.URL, &s.Domain, &s.Result, &s.Final,
		&s.PhishingPct, &s.LegitimatePct, &s.RiskFactors, &s.TrustFactors,
		&model, &review, &s.ResponseTimeMs); err != nil {
		return nil, err
	}
	if model != nil {
		s.ModelResult = *model
	}
	if review != nil {
		s.ReviewResult = *review
	}
	return &s, nil
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
