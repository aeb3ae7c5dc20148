// Package limiter provides sliding-window rate limiting keyed by arbitrary
// strings (acting principals or delivery destinations). Two implementations
// exist: an in-memory window for single-node deployments and tests, and a
// Redis-backed window for shared deployments. Both are atomic per key: the
// read-then-append sequence can never admit two callers over budget.
package limiter

import (
	"context"
	"sync"
	"time"

	"github.com/showdeck/access/internal/apperr"
)

// Limiter admits or rejects one event for a key. A nil error means the event
// was counted and admitted; apperr.ErrRateLimit means the budget for the
// trailing window is already spent and nothing was recorded.
type Limiter interface {
	Allow(ctx context.Context, key string) error
}

// window holds the admitted timestamps for a single key. Each key has its
// own mutex so a slow key never serializes unrelated keys.
type window struct {
	mu     sync.Mutex
	stamps []time.Time
}

// SlidingWindow is the in-memory limiter. Budget events are admitted per key
// within the trailing Window duration.
type SlidingWindow struct {
	budget int
	span   time.Duration
	now    func() time.Time

	mu   sync.RWMutex
	keys map[string]*window
}

// NewSlidingWindow builds an in-memory limiter admitting budget events per
// key within span.
func NewSlidingWindow(budget int, span time.Duration) *SlidingWindow {
	return &SlidingWindow{
		budget: budget,
		span:   span,
		now:    time.Now,
		keys:   make(map[string]*window),
	}
}

// WithClock replaces the time source; tests use this to move the window
// deterministically.
func (l *SlidingWindow) WithClock(now func() time.Time) *SlidingWindow {
	l.now = now
	return l
}

func (l *SlidingWindow) get(key string) *window {
	l.mu.RLock()
	w, ok := l.keys[key]
	l.mu.RUnlock()
	if ok {
		return w
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if w, ok = l.keys[key]; ok {
		return w
	}
	w = &window{}
	l.keys[key] = w
	return w
}

// Allow discards timestamps older than the window, compares the remainder
// against the budget, and appends the current instant only when under
// budget. The whole sequence runs under the key's lock.
func (l *SlidingWindow) Allow(_ context.Context, key string) error {
	w := l.get(key)
	w.mu.Lock()
	defer w.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.span)
	kept := w.stamps[:0]
	for _, t := range w.stamps {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	w.stamps = kept

	if len(w.stamps) >= l.budget {
		return apperr.ErrRateLimit
	}
	w.stamps = append(w.stamps, now)
	return nil
}
