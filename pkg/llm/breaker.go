package llm

import (
	"sync"
	"time"
)

// CircuitState is the breaker's current phase. Grounded on the three-state
// shape of itsneelabh-gomind/resilience/circuit_breaker.go, simplified from
// its sliding-window error-rate model to a consecutive-failure counter:
// this core's call volume per provider is far lower than the service mesh
// that breaker was built for, so a simple counter is the right fit.
type CircuitState int

const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// breakerConfig controls when the breaker opens and how long it stays open
// before probing again. Values match spec.md's stated resilience numbers.
type breakerConfig struct {
	FailureThreshold int           // consecutive failures before opening
	FailureWindow    time.Duration // a failure streak older than this restarts the count; zero disables the window
	CooldownPeriod   time.Duration // time in open state before a half-open probe is allowed
}

func defaultBreakerConfig() breakerConfig {
	return breakerConfig{
		FailureThreshold: 5,
		FailureWindow:    60 * time.Second,
		CooldownPeriod:   30 * time.Second,
	}
}

// breaker is a per-provider-instance circuit breaker. State mutation is
// guarded by a single mutex; call volume per provider is low enough that
// lock contention is not a concern, unlike the atomic-heavy gomind breaker
// built for high-throughput service meshes.
type breaker struct {
	mu sync.Mutex

	cfg breakerConfig

	state           CircuitState
	consecutiveFail int
	streakStart     time.Time
	openedAt        time.Time
	halfOpenInFlight bool
}

func newBreaker(cfg breakerConfig) *breaker {
	return &breaker{cfg: cfg, state: StateClosed}
}

// Allow reports whether a call may proceed, and if the breaker was open but
// its cooldown has elapsed, transitions it to half-open and grants exactly
// one in-flight probe.
func (b *breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateHalfOpen:
		if b.halfOpenInFlight {
			return false
		}
		b.halfOpenInFlight = true
		return true
	case StateOpen:
		if time.Since(b.openedAt) < b.cfg.CooldownPeriod {
			return false
		}
		b.state = StateHalfOpen
		b.halfOpenInFlight = true
		return true
	default:
		return false
	}
}

// RecordSuccess closes the breaker immediately, per spec.md's "closes on a
// single success" rule — no gradual recovery window.
func (b *breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.consecutiveFail = 0
	b.halfOpenInFlight = false
}

// RecordFailure increments the consecutive-failure counter and opens the
// breaker once it reaches the threshold within FailureWindow of the
// streak's first failure; a failure after the window starts a new streak.
// A failed half-open probe reopens the breaker and restarts its cooldown
// immediately.
func (b *breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.halfOpenInFlight = false
		b.state = StateOpen
		b.openedAt = time.Now()
		b.consecutiveFail = b.cfg.FailureThreshold
		return
	}

	now := time.Now()
	if b.consecutiveFail == 0 || (b.cfg.FailureWindow > 0 && now.Sub(b.streakStart) > b.cfg.FailureWindow) {
		b.consecutiveFail = 0
		b.streakStart = now
	}
	b.consecutiveFail++
	if b.consecutiveFail >= b.cfg.FailureThreshold {
		b.state = StateOpen
		b.openedAt = now
	}
}

func (b *breaker) State() CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
