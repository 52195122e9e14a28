package ratelimit

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// Bucket defines rate limit parameters.
type Bucket struct {
	MaxRequests int
	Window      time.Duration
}

// DefaultBuckets are the limits used when the service is not configured otherwise.
var DefaultBuckets = map[string]Bucket{
	"check":   {MaxRequests: 30, Window: time.Minute},
	"predict": {MaxRequests: 60, Window: time.Minute},
	"api":     {MaxRequests: 60, Window: time.Minute},
}

var fallbackBucket = Bucket{MaxRequests: 60, Window: time.Minute}

// Limiter is an in-memory sliding-window rate limiter per key.
type Limiter struct {
	mu      sync.Mutex
	hits    map[string][]time.Time
	buckets map[string]Bucket
	now     func() time.Time
}

// New creates a rate limiter. overrides replace entries in DefaultBuckets.
func New(overrides map[string]Bucket) *Limiter {
	buckets := make(map[string]Bucket, len(DefaultBuckets)+len(overrides))
	for name, b := range DefaultBuckets {
		buckets[name] = b
	}
	for name, b := range overrides {
		buckets[name] = b
	}
	return &Limiter{
		hits:    make(map[string][]time.Time),
		buckets: buckets,
		now:     time.Now,
	}
}

// Bucket returns the limits for name.
func (l *Limiter) Bucket(name string) Bucket {
	if b, ok := l.buckets[name]; ok {
		return b
	}
	return fallbackBucket
}

// Allow checks if a request identified by key is within the rate limit for the
// given bucket. Returns true if allowed.
func (l *Limiter) Allow(key string, bucket Bucket) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	pruned := prune(l.hits[key], now.Add(-bucket.Window))

	if len(pruned) >= bucket.MaxRequests {
		l.hits[key] = pruned
		return false
	}

	l.hits[key] = append(pruned, now)
	return true
}

// Sweep drops keys with no hits inside maxWindow.
func (l *Limiter) Sweep(maxWindow time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-maxWindow)
	removed := 0
	for key, times := range l.hits {
		if pruned := prune(times, cutoff); len(pruned) == 0 {
			delete(l.hits, key)
			removed++
		} else {
			l.hits[key] = pruned
		}
	}
	return removed
}

// SweepLoop sweeps once a minute until ctx is cancelled.
func (l *Limiter) SweepLoop(ctx context.Context) {
	var widest time.Duration
	for _, b := range l.buckets {
		widest = max(widest, b.Window)
	}
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep(widest)
		}
	}
}

// Middleware rejects requests over the named bucket's limit with a JSON 429.
// Clients are keyed by RemoteAddr without the port, so mount it after
// middleware.RealIP.
func (l *Limiter) Middleware(bucketName string) func(http.Handler) http.Handler {
	bucket := l.Bucket(bucketName)
	retry := strconv.Itoa(int(bucket.Window.Seconds()))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if l.Allow(bucketName+":"+clientIP(r), bucket) {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("Retry-After", retry)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"Rate limited","retry_after_seconds":` + retry + `}`))
		})
	}
}

func clientIP(r *http.Request) string {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return ip
}

func prune(times []time.Time, cutoff time.Time) []time.Time {
	kept := times[:0]
	for _, t := range times {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}
