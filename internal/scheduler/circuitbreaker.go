package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/looplab/fsm"
)

const (
	StateClosed   = "closed"
	StateOpen     = "open"
	StateHalfOpen = "half_open"
)

const (
	eventFail         = "fail"
	eventSucceed      = "succeed"
	eventTimerElapsed = "timer_elapsed"
)

// CircuitBreaker tracks ASR call health for one admin's scheduler and guards
// the consumer loop against hammering a provider that is already down.
// Closed -> Open after FailureThreshold consecutive failures. Open refuses
// work until RecoveryTimeout elapses, then HalfOpen admits exactly the next
// item: success resets to Closed, failure reopens and restarts the timer.
type CircuitBreaker struct {
	FailureThreshold int
	RecoveryTimeout  time.Duration

	mu              sync.Mutex
	machine         *fsm.FSM
	consecutiveFail int
	openedAt        time.Time
}

func NewCircuitBreaker(failureThreshold int, recoveryTimeout time.Duration) *CircuitBreaker {
	cb := &CircuitBreaker{
		FailureThreshold: failureThreshold,
		RecoveryTimeout:  recoveryTimeout,
	}
	cb.machine = fsm.NewFSM(
		StateClosed,
		fsm.Events{
			{Name: eventFail, Src: []string{StateClosed}, Dst: StateClosed},
			{Name: "trip", Src: []string{StateClosed}, Dst: StateOpen},
			{Name: eventTimerElapsed, Src: []string{StateOpen}, Dst: StateHalfOpen},
			{Name: eventSucceed, Src: []string{StateHalfOpen}, Dst: StateClosed},
			{Name: eventFail, Src: []string{StateHalfOpen}, Dst: StateOpen},
		},
		fsm.Callbacks{},
	)
	return cb
}

// Allow reports whether the caller may attempt work right now. Once the
// recovery timeout has elapsed it promotes Open to HalfOpen and admits that
// one caller as the probe; further calls are refused until the probe's
// result is recorded.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.machine.Is(StateOpen) && time.Since(cb.openedAt) >= cb.RecoveryTimeout {
		_ = cb.machine.Event(context.Background(), eventTimerElapsed)
		return true
	}
	return cb.machine.Is(StateClosed)
}

// RecordSuccess reports a successful call, resetting the failure counter and
// closing the circuit if it was HalfOpen.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFail = 0
	if cb.machine.Is(StateHalfOpen) {
		_ = cb.machine.Event(context.Background(), eventSucceed)
	}
}

// RecordFailure reports a failed call. From Closed it trips the breaker
// after FailureThreshold consecutive failures; from HalfOpen a single
// failure reopens it and restarts the recovery timer.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.machine.Is(StateHalfOpen) {
		_ = cb.machine.Event(context.Background(), eventFail)
		cb.openedAt = time.Now()
		cb.consecutiveFail = cb.FailureThreshold
		return
	}

	cb.consecutiveFail++
	if cb.consecutiveFail >= cb.FailureThreshold {
		_ = cb.machine.Event(context.Background(), "trip")
		cb.openedAt = time.Now()
	}
}

// State returns the breaker's current state name, for metrics/status
// reporting (/api/ai/status).
func (cb *CircuitBreaker) State() string {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.machine.Is(StateOpen) && time.Since(cb.openedAt) >= cb.RecoveryTimeout {
		return StateHalfOpen
	}
	return cb.machine.Current()
}

// FailureCount returns the consecutive-failure counter, for metrics.
func (cb *CircuitBreaker) FailureCount() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.consecutiveFail
}
