package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config is one named limiter table: at most Limit requests per Window.
type Config struct {
	Limit  int
	Window time.Duration
}

// Named configurations. Refund and PreviewRecord are deliberately tight
// because those operations carry direct financial exposure.
var (
	Strict        = Config{Limit: 5, Window: time.Minute}
	Standard      = Config{Limit: 30, Window: time.Minute}
	Relaxed       = Config{Limit: 100, Window: time.Minute}
	Refund        = Config{Limit: 5, Window: 10 * time.Minute}
	PreviewRecord = Config{Limit: 2, Window: 24 * time.Hour}
)

// Result is the outcome of one limiter check.
type Result struct {
	Allowed   bool
	Remaining int
	ResetIn   time.Duration
}

// Store counts requests per key within fixed windows. Incr returns the
// count including the current request and the end of the current window.
type Store interface {
	Incr(ctx context.Context, key string, window time.Duration) (count int, resetAt time.Time, err error)
}

// Limiter is a fixed-window request throttle. Windows are keyed by
// (purpose, identifier). The fixed-window algorithm admits up to twice the
// limit across a window boundary; callers needing strict sliding-window
// semantics must layer an additional check.
type Limiter struct {
	store  Store
	logger zerolog.Logger
}

// New creates a Limiter over the given store.
func New(store Store, logger zerolog.Logger) *Limiter {
	return &Limiter{
		store:  store,
		logger: logger.With().Str("service", "RateLimiter").Logger(),
	}
}

// Check records one request for the identifier and reports whether it is
// within the configured limit. Store failures fail open: the limiter
// protects cost, not correctness, and must never block legitimate traffic
// on its own error.
func (l *Limiter) Check(ctx context.Context, purpose, identifier string, cfg Config) Result {
	key := purpose + ":" + identifier
	count, resetAt, err := l.store.Incr(ctx, key, cfg.Window)
	if err != nil {
		l.logger.Warn().Err(err).Str("purpose", purpose).Msg("Limiter store failed, allowing request")
		return Result{Allowed: true, Remaining: cfg.Limit - 1, ResetIn: cfg.Window}
	}
	resetIn := time.Until(resetAt)
	if resetIn < 0 {
		resetIn = 0
	}
	if count > cfg.Limit {
		return Result{Allowed: false, Remaining: 0, ResetIn: resetIn}
	}
	return Result{Allowed: true, Remaining: cfg.Limit - count, ResetIn: resetIn}
}

type window struct {
	count   int
	resetAt time.Time
}

// MemoryStore keeps per-instance windows in a map. In a multi-instance
// deployment this yields an approximate per-instance limit, which is
// acceptable for abuse damping; billing precision lives in the ledger.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*window
	stopCh  chan struct{}
	sweep   time.Duration
}

// NewMemoryStore creates a MemoryStore and starts its expiry sweep.
func NewMemoryStore(sweepEvery time.Duration) *MemoryStore {
	s := &MemoryStore{
		windows: make(map[string]*window),
		stopCh:  make(chan struct{}),
		sweep:   sweepEvery,
	}
	go s.sweepLoop()
	return s
}

func (s *MemoryStore) Incr(_ context.Context, key string, windowDur time.Duration) (int, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	w, ok := s.windows[key]
	if !ok || now.After(w.resetAt) {
		w = &window{count: 1, resetAt: now.Add(windowDur)}
		s.windows[key] = w
		return w.count, w.resetAt, nil
	}
	w.count++
	return w.count, w.resetAt, nil
}

func (s *MemoryStore) sweepLoop() {
	ticker := time.NewTicker(s.sweep)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.removeExpired()
		case <-s.stopCh:
			return
		}
	}
}

// removeExpired purges windows whose reset time has passed, bounding memory.
func (s *MemoryStore) removeExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for key, w := range s.windows {
		if now.After(w.resetAt) {
			delete(s.windows, key)
		}
	}
}

// Stop terminates the expiry sweep.
func (s *MemoryStore) Stop() {
	close(s.stopCh)
}
