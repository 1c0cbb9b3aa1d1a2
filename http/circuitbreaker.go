package http

import (
	"errors"
	"sync"
	"time"
)

// ErrBreakerOpen is returned by Allow while traffic to a host is
// suspended after a streak of transient failures.
var ErrBreakerOpen = errors.New("host suspended by circuit breaker")

// BreakerState is the lifecycle state of a single host's circuit.
type BreakerState int

const (
	// BreakerClosed lets traffic through normally.
	BreakerClosed BreakerState = iota
	// BreakerOpen rejects traffic until the cooldown elapses.
	BreakerOpen
	// BreakerHalfOpen lets a limited number of trial requests through.
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Breaker defaults. Five consecutive transport failures against one host
// means the host itself is struggling, not an individual video.
const (
	DefaultTripThreshold  = 5
	DefaultCooldownPeriod = 30 * time.Second
	DefaultProbeAllowance = 1
)

// BreakerConfig configures per-host failure handling.
type BreakerConfig struct {
	// TripThreshold is the consecutive-failure streak that suspends a host.
	// Default: 5
	TripThreshold int
	// CooldownPeriod is how long a suspended host is left alone before a
	// trial request is let through. Default: 30 seconds
	CooldownPeriod time.Duration
	// ProbeAllowance is how many trial requests may run while half-open.
	// Default: 1
	ProbeAllowance int
	// IsTransient reports whether an error counts toward the failure
	// streak. Errors it rejects, such as a 404 for a deleted video, are
	// answers about one resource and say nothing about host health.
	// If nil, every error counts.
	IsTransient func(error) bool
}

// DefaultBreakerConfig returns the defaults used by the resolver's client.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		TripThreshold:  DefaultTripThreshold,
		CooldownPeriod: DefaultCooldownPeriod,
		ProbeAllowance: DefaultProbeAllowance,
	}
}

// hostCircuit tracks the failure streak for one upstream host.
type hostCircuit struct {
	state     BreakerState
	streak    int
	changedAt time.Time
	trials    int
}

// Breaker suspends traffic to an upstream host after repeated transient
// failures, so an outage fails fast instead of burning a retry schedule
// per video. The resolver talks to a small fixed set of hosts, mainly
// www.youtube.com for oEmbed and www.googleapis.com for the Data API,
// and each gets its own circuit: a Data API outage never blocks oEmbed
// probes, and vice versa.
type Breaker struct {
	mu     sync.Mutex
	hosts  map[string]*hostCircuit
	config BreakerConfig
	now    func() time.Time
}

// NewBreaker creates a breaker with the given configuration, filling in
// defaults for zero values.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.TripThreshold <= 0 {
		cfg.TripThreshold = DefaultTripThreshold
	}
	if cfg.CooldownPeriod <= 0 {
		cfg.CooldownPeriod = DefaultCooldownPeriod
	}
	if cfg.ProbeAllowance <= 0 {
		cfg.ProbeAllowance = DefaultProbeAllowance
	}

	return &Breaker{
		hosts:  make(map[string]*hostCircuit),
		config: cfg,
		now:    time.Now,
	}
}

// Allow reports whether a request to host may proceed. It returns
// ErrBreakerOpen while the host is suspended. After the cooldown it
// admits up to ProbeAllowance trial requests; their outcome, reported
// via RecordSuccess or RecordFailure, decides whether the host reopens
// for traffic or stays suspended.
func (b *Breaker) Allow(host string) error {
	if b == nil {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	c := b.host(host)

	switch c.state {
	case BreakerOpen:
		if b.now().Sub(c.changedAt) < b.config.CooldownPeriod {
			return ErrBreakerOpen
		}
		// Cooldown over. This request becomes the first trial.
		c.state = BreakerHalfOpen
		c.changedAt = b.now()
		c.trials = 1
		return nil

	case BreakerHalfOpen:
		if c.trials >= b.config.ProbeAllowance {
			return ErrBreakerOpen
		}
		c.trials++
		return nil

	default:
		return nil
	}
}

// RecordSuccess clears the host's failure streak. A successful trial
// while half-open restores the host to normal traffic.
func (b *Breaker) RecordSuccess(host string) {
	if b == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	c := b.host(host)
	if c.state == BreakerHalfOpen {
		c.changedAt = b.now()
	}
	c.state = BreakerClosed
	c.streak = 0
	c.trials = 0
}

// RecordFailure counts a failed request against the host. Errors the
// configured IsTransient classifier rejects are ignored. Reaching the
// trip threshold, or failing a trial while half-open, suspends the host.
func (b *Breaker) RecordFailure(host string, err error) {
	if b == nil {
		return
	}
	if b.config.IsTransient != nil && !b.config.IsTransient(err) {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	c := b.host(host)
	c.streak++

	switch c.state {
	case BreakerClosed:
		if c.streak >= b.config.TripThreshold {
			c.state = BreakerOpen
			c.changedAt = b.now()
		}
	case BreakerHalfOpen:
		c.state = BreakerOpen
		c.changedAt = b.now()
	}
}

// State returns the host's current state. A suspended host whose
// cooldown has elapsed reports BreakerHalfOpen.
func (b *Breaker) State(host string) BreakerState {
	if b == nil {
		return BreakerClosed
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.hosts[host]
	if !ok {
		return BreakerClosed
	}
	if c.state == BreakerOpen && b.now().Sub(c.changedAt) >= b.config.CooldownPeriod {
		return BreakerHalfOpen
	}
	return c.state
}

// Reset forgets everything recorded about a host.
func (b *Breaker) Reset(host string) {
	if b == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.hosts, host)
}

// host returns the circuit for a host, creating it closed. Callers hold b.mu.
func (b *Breaker) host(name string) *hostCircuit {
	c, ok := b.hosts[name]
	if !ok {
		c = &hostCircuit{state: BreakerClosed, changedAt: b.now()}
		b.hosts[name] = c
	}
	return c
}

// IsTransientHTTPError classifies probe errors for the breaker. Rate
// limiting, 5xx responses, and transport-level failures count toward a
// host's streak; any other 4xx is a per-video answer (private, deleted,
// embedding disabled) and leaves the circuit alone.
func IsTransientHTTPError(err error) bool {
	if err == nil {
		return false
	}

	var rateLimitErr *RateLimitError
	if errors.As(err, &rateLimitErr) {
		return true
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= 500 || httpErr.StatusCode == 429
	}

	return true
}
