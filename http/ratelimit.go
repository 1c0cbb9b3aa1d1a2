package http

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter manages per-domain request rate limiting using a token bucket.
// The oEmbed endpoint and the Data API get independent buckets so a burst of
// metadata probes cannot starve status lookups.
type RateLimiter struct {
	limiters     map[string]*rate.Limiter
	backoffState map[string]*BackoffState
	mu           sync.RWMutex
	config       RateLimiterConfig
}

// BackoffState tracks rate limit backoff for a domain.
type BackoffState struct {
	// CurrentBackoff is the current backoff duration
	CurrentBackoff time.Duration
	// LastError is when the last rate limit error occurred
	LastError time.Time
	// ConsecutiveErrors is the count of consecutive rate limit errors
	ConsecutiveErrors int
}

// Backoff tuning for upstream rate limit responses.
const (
	// RateLimitInitialBackoff is the first backoff applied after a 429/503.
	RateLimitInitialBackoff = 1 * time.Second
	// RateLimitMaxBackoff caps the exponential backoff.
	RateLimitMaxBackoff = 60 * time.Second
	// RateLimitBackoffMultiplier is the exponential backoff multiplier.
	RateLimitBackoffMultiplier = 2.0
	// BackoffCooldownPeriod is how long after the last error before resetting backoff.
	BackoffCooldownPeriod = 5 * time.Minute
)

// RateLimiterConfig defines rate limiting behavior.
type RateLimiterConfig struct {
	// OEmbedRPS is requests per second for the public oEmbed endpoint (default: 2.5)
	OEmbedRPS float64
	// DataAPIRPS is requests per second for the YouTube Data API (default: 1.0)
	DataAPIRPS float64
	// DefaultRPS is requests per second for any other host (0 = unlimited).
	// Generic catalog links resolve to arbitrary third-party hosts, so they
	// are unthrottled by default.
	DefaultRPS float64
	// CustomRates maps domains to RPS values
	CustomRates map[string]float64
}

// DefaultRateLimiterConfig returns conservative defaults for YouTube's endpoints.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		OEmbedRPS:   2.5,
		DataAPIRPS:  1.0,
		DefaultRPS:  0,
		CustomRates: make(map[string]float64),
	}
}

// NewRateLimiter creates a new rate limiter with the given configuration.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	if cfg.OEmbedRPS == 0 {
		cfg.OEmbedRPS = DefaultRateLimiterConfig().OEmbedRPS
	}
	if cfg.DataAPIRPS == 0 {
		cfg.DataAPIRPS = DefaultRateLimiterConfig().DataAPIRPS
	}
	if cfg.CustomRates == nil {
		cfg.CustomRates = make(map[string]float64)
	}

	return &RateLimiter{
		limiters:     make(map[string]*rate.Limiter),
		backoffState: make(map[string]*BackoffState),
		config:       cfg,
	}
}

// Wait waits until the rate limit allows a request for the given URL.
// Returns an error if the context is canceled or exceeded deadline.
func (rl *RateLimiter) Wait(ctx context.Context, urlStr string) error {
	if rl == nil {
		return nil
	}

	limiter := rl.getLimiter(urlStr)
	if limiter == nil {
		// No rate limiting for this domain
		return nil
	}

	if !limiter.Allow() {
		reservation := limiter.Reserve()
		if !reservation.OK() {
			return fmt.Errorf("rate limit: cannot reserve token")
		}

		select {
		case <-time.After(reservation.Delay()):
			return nil
		case <-ctx.Done():
			reservation.Cancel()
			return ctx.Err()
		}
	}

	return nil
}

// getLimiter returns the rate limiter for a given URL, creating one if necessary.
func (rl *RateLimiter) getLimiter(urlStr string) *rate.Limiter {
	domain := rl.extractDomain(urlStr)
	rps := rl.getRPS(domain)

	// Unlimited (0 RPS)
	if rps == 0 {
		return nil
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if limiter, ok := rl.limiters[domain]; ok {
		return limiter
	}

	// Token bucket: burst of 1, refill at rps
	limiter := rate.NewLimiter(rate.Limit(rps), 1)
	rl.limiters[domain] = limiter
	return limiter
}

// getRPS returns the requests per second for a given domain.
func (rl *RateLimiter) getRPS(domain string) float64 {
	if rps, ok := rl.config.CustomRates[domain]; ok {
		return rps
	}

	switch domain {
	case "www.youtube.com", "youtube.com", "www.youtube-nocookie.com":
		// oEmbed metadata probes
		return rl.config.OEmbedRPS
	case "www.googleapis.com", "googleapis.com":
		// YouTube Data API
		return rl.config.DataAPIRPS
	default:
		return rl.config.DefaultRPS
	}
}

// extractDomain extracts the domain from a URL string.
func (rl *RateLimiter) extractDomain(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil {
		return "unknown"
	}

	host := u.Host
	if host == "" {
		return "unknown"
	}

	// Remove port if present
	if idx := strings.IndexByte(host, ':'); idx != -1 {
		host = host[:idx]
	}

	return host
}

// SetCustomRate sets a custom rate limit for a specific domain.
func (rl *RateLimiter) SetCustomRate(domain string, rps float64) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.config.CustomRates[domain] = rps

	// Clear existing limiter to force recreation with new rate
	delete(rl.limiters, domain)
}

// RecordRateLimitError records a rate limit error for a domain and updates
// backoff state. Call this when a 429/503 response is received.
// Returns the recommended backoff duration before retrying.
func (rl *RateLimiter) RecordRateLimitError(urlStr string, retryAfter time.Duration) time.Duration {
	if rl == nil {
		if retryAfter > 0 {
			return retryAfter
		}
		return RateLimitInitialBackoff
	}

	domain := rl.extractDomain(urlStr)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	state, exists := rl.backoffState[domain]
	if !exists {
		state = &BackoffState{
			CurrentBackoff: RateLimitInitialBackoff,
			LastError:      time.Now(),
		}
		rl.backoffState[domain] = state
	}

	state.LastError = time.Now()
	state.ConsecutiveErrors++

	// 1s → 2s → 4s → ... → max
	if state.ConsecutiveErrors > 1 {
		state.CurrentBackoff = time.Duration(float64(state.CurrentBackoff) * RateLimitBackoffMultiplier)
		if state.CurrentBackoff > RateLimitMaxBackoff {
			state.CurrentBackoff = RateLimitMaxBackoff
		}
	}

	// Honor a server-specified Retry-After if it is longer
	effectiveBackoff := state.CurrentBackoff
	if retryAfter > effectiveBackoff {
		effectiveBackoff = retryAfter
		state.CurrentBackoff = retryAfter
	}

	return effectiveBackoff
}

// RecordSuccess records a successful request, potentially resetting backoff state.
func (rl *RateLimiter) RecordSuccess(urlStr string) {
	if rl == nil {
		return
	}

	domain := rl.extractDomain(urlStr)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	state, exists := rl.backoffState[domain]
	if !exists {
		return
	}

	// Full reset once the domain has been quiet long enough
	if time.Since(state.LastError) > BackoffCooldownPeriod {
		delete(rl.backoffState, domain)
		return
	}

	// Gradually forgive consecutive errors on success
	if state.ConsecutiveErrors > 0 {
		state.ConsecutiveErrors--
		if state.ConsecutiveErrors == 0 {
			delete(rl.backoffState, domain)
		}
	}
}

// GetBackoffState returns a copy of the current backoff state for a domain,
// or nil if no backoff state exists.
func (rl *RateLimiter) GetBackoffState(urlStr string) *BackoffState {
	if rl == nil {
		return nil
	}

	domain := rl.extractDomain(urlStr)

	rl.mu.RLock()
	defer rl.mu.RUnlock()

	if state, ok := rl.backoffState[domain]; ok {
		copied := *state
		return &copied
	}
	return nil
}

// IsBackedOff returns true if the domain is currently in a backoff state.
func (rl *RateLimiter) IsBackedOff(urlStr string) bool {
	state := rl.GetBackoffState(urlStr)
	if state == nil {
		return false
	}
	return time.Since(state.LastError) < state.CurrentBackoff
}

// WaitForBackoff waits for the current backoff period to expire.
// Returns immediately if not in backoff state.
func (rl *RateLimiter) WaitForBackoff(ctx context.Context, urlStr string) error {
	state := rl.GetBackoffState(urlStr)
	if state == nil {
		return nil
	}

	remaining := state.CurrentBackoff - time.Since(state.LastError)
	if remaining <= 0 {
		return nil
	}

	select {
	case <-time.After(remaining):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
