// Package breaker implements a per-upstream circuit breaker: Closed,
// Open, and HalfOpen states backed entirely by lock-free atomics, so
// state checks never block.
package breaker

import (
	"sync/atomic"
	"time"
)

// State is one of Closed, Open, HalfOpen.
type State uint32

// Recognized states.
const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Config tunes a Breaker's thresholds and timing.
type Config struct {
	FailureThreshold   uint32        `yaml:"failure_threshold" json:"failure_threshold" desc:"consecutive failures to open the circuit" default:"5"`
	SuccessThreshold   uint32        `yaml:"success_threshold" json:"success_threshold" desc:"half-open successes to close the circuit" default:"2"`
	TimeoutDuration    time.Duration `yaml:"timeout_duration" json:"timeout_duration" desc:"open-state cooldown before a half-open probe" default:"60s"`
	HalfOpenMaxRequest uint32        `yaml:"half_open_max_requests" json:"half_open_max_requests" desc:"concurrent probes admitted in half-open" default:"3"`
}

// New builds a Breaker from cfg, immutable after construction.
func (cfg Config) New() *Breaker {
	b := &Breaker{config: cfg}
	b.state.Store(uint32(Closed))
	b.lastTransitionMs.Store(nowMs())
	return b
}

// Breaker guards one upstream. All fields are safe for concurrent use
// and cheap to clone (a Breaker is itself a small value referencing
// only atomics and an immutable config, so callers may pass it by
// pointer across goroutines without additional locking).
type Breaker struct {
	state            atomic.Uint32
	failureCount     atomic.Uint64
	successCount     atomic.Uint64
	halfOpenInFlight atomic.Uint64
	lastTransitionMs atomic.Uint64
	config           Config
}

func nowMs() uint64 {
	return uint64(time.Now().UnixMilli())
}

// State returns the current circuit state.
func (b *Breaker) State() State {
	return State(b.state.Load())
}

// FailureCount returns the current consecutive-failure count.
func (b *Breaker) FailureCount() uint64 {
	return b.failureCount.Load()
}

// SuccessCount returns the current half-open success count.
func (b *Breaker) SuccessCount() uint64 {
	return b.successCount.Load()
}

// ShouldAllowRequest reports whether a new request should be let
// through. In Open state it also performs the Open→HalfOpen transition
// once the configured timeout has elapsed, admitting the request that
// triggered the transition.
func (b *Breaker) ShouldAllowRequest() bool {

	switch b.State() {
	case Closed:
		return true

	case Open:
		last := b.lastTransitionMs.Load()
		elapsed := nowMs() - last
		if elapsed >= uint64(b.config.TimeoutDuration.Milliseconds()) {
			b.transitionTo(HalfOpen)
			return true
		}
		return false

	case HalfOpen:
		return b.halfOpenInFlight.Load() < uint64(b.config.HalfOpenMaxRequest)

	default:
		return false
	}
}

// StartHalfOpenRequest marks one probe as in flight. Callers must call
// this after ShouldAllowRequest admits a request while the circuit is
// HalfOpen, and must pair it with RecordSuccess or RecordFailure.
func (b *Breaker) StartHalfOpenRequest() {
	if b.State() == HalfOpen {
		b.halfOpenInFlight.Add(1)
	}
}

// RecordSuccess reports a successful upstream call.
func (b *Breaker) RecordSuccess() {

	switch b.State() {
	case Closed:
		b.failureCount.Store(0)

	case HalfOpen:
		decrNonNegative(&b.halfOpenInFlight)
		successes := b.successCount.Add(1)
		if successes >= uint64(b.config.SuccessThreshold) {
			b.transitionTo(Closed)
		}

	case Open:
		// unexpected: requests shouldn't complete while open
	}
}

// RecordFailure reports a failed upstream call.
func (b *Breaker) RecordFailure() {

	switch b.State() {
	case Closed:
		failures := b.failureCount.Add(1)
		if failures >= uint64(b.config.FailureThreshold) {
			b.transitionTo(Open)
		}

	case HalfOpen:
		decrNonNegative(&b.halfOpenInFlight)
		b.transitionTo(Open)

	case Open:
		// unexpected: requests shouldn't complete while open
	}
}

// transitionTo zeroes the counters relevant to the new state then
// stores the state with release ordering, so any reader observing the
// new state (via acquire) also observes the zeroed counters.
func (b *Breaker) transitionTo(s State) {
	b.successCount.Store(0)
	b.halfOpenInFlight.Store(0)
	if s != HalfOpen {
		b.failureCount.Store(0)
	}
	b.lastTransitionMs.Store(nowMs())
	b.state.Store(uint32(s))
}

func decrNonNegative(u *atomic.Uint64) {
	for {
		cur := u.Load()
		if cur == 0 {
			return
		}
		if u.CompareAndSwap(cur, cur-1) {
			return
		}
	}
}
