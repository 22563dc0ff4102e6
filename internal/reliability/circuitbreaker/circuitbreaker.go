// Package circuitbreaker fast-fails calls to the community platform once it
// starts failing repeatedly, so sign-ins never queue up behind a dead
// upstream.
package circuitbreaker

import (
	"sync"
	"time"
)

// State represents the circuit breaker state
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
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

// Breaker trips open after a run of failures and probes the upstream again
// once the cool-off window has passed
type Breaker struct {
	mu               sync.Mutex
	state            State
	failures         int
	successes        int
	lastFailure      time.Time
	failureThreshold int
	successThreshold int
	coolOff          time.Duration
	onStateChange    func(from, to State)
}

// New creates a breaker that opens after failureThreshold consecutive
// failures and closes again after successThreshold successful probes
func New(failureThreshold, successThreshold int, coolOff time.Duration) *Breaker {
	return &Breaker{
		state:            StateClosed,
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		coolOff:          coolOff,
	}
}

// OnStateChange registers a callback for state transitions
func (b *Breaker) OnStateChange(fn func(from, to State)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onStateChange = fn
}

// Allow reports whether a call may proceed. An open breaker transitions to
// half-open when the cool-off window has elapsed.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed, StateHalfOpen:
		return true
	default:
		if time.Since(b.lastFailure) > b.coolOff {
			b.transition(StateHalfOpen)
			b.failures = 0
			b.successes = 0
			return true
		}
		return false
	}
}

// RecordSuccess notes a successful call
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateHalfOpen:
		b.successes++
		if b.successes >= b.successThreshold {
			b.transition(StateClosed)
			b.failures = 0
			b.successes = 0
		}
	case StateClosed:
		b.failures = 0
	}
}

// RecordFailure notes a failed call and may trip the breaker open
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastFailure = time.Now()
	switch b.state {
	case StateClosed:
		b.failures++
		if b.failures >= b.failureThreshold {
			b.transition(StateOpen)
			b.failures = 0
			b.successes = 0
		}
	case StateHalfOpen:
		b.transition(StateOpen)
		b.failures = 0
		b.successes = 0
	}
}

// CurrentState returns the breaker's state
func (b *Breaker) CurrentState() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) transition(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	if b.onStateChange != nil {
		b.onStateChange(from, to)
	}
}
