package repair

import (
	"sync"
	"time"
)

// ClientLimiter gates repair requests per client key.
type ClientLimiter interface {
	// Allow reports whether the client identified by key may make another
	// request right now. A true result consumes one slot.
	Allow(key string) bool
}

// SlidingWindowLimiter allows at most limit requests per key within a
// sliding window. A denied request does not consume a slot.
type SlidingWindowLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	hits   map[string][]time.Time
	now    func() time.Time
}

// NewSlidingWindowLimiter creates a limiter allowing limit requests per
// window for each distinct key.
func NewSlidingWindowLimiter(limit int, window time.Duration) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		limit:  limit,
		window: window,
		hits:   make(map[string][]time.Time),
		now:    time.Now,
	}
}

// Allow implements ClientLimiter.
func (l *SlidingWindowLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	recent := l.hits[key][:0]
	for _, t := range l.hits[key] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= l.limit {
		l.hits[key] = recent
		return false
	}

	l.hits[key] = append(recent, now)
	return true
}
