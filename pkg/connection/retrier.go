package connection

import (
	"errors"
	"time"

	"github.com/mash-protocol/scriptnet/pkg/evloop"
)

// Retrier errors.
var (
	ErrRetrierClosed    = errors.New("retrier closed")
	ErrAlreadyStarted   = errors.New("retrier already started")
	ErrAttemptsExceeded = errors.New("retry attempts exceeded")
)

// State represents the retrier state.
type State uint8

const (
	// StateDisconnected indicates no attempt has been made or retries gave up.
	StateDisconnected State = iota

	// StateConnecting indicates an attempt is in progress.
	StateConnecting

	// StateConnected indicates the last attempt succeeded.
	StateConnected

	// StateWaiting indicates a retry is scheduled.
	StateWaiting

	// StateClosed indicates the retrier has been stopped.
	StateClosed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateWaiting:
		return "WAITING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// AttemptFunc starts one connection attempt. It must eventually call done on
// the loop goroutine with nil once connected or with the failure.
type AttemptFunc func(done func(err error))

// Retrier repeats connection attempts with backoff, scheduling retries on
// loop timers. Transports never retry on their own; a Retrier is what a
// caller wraps around them.
//
// All methods must be called on the loop goroutine.
type Retrier struct {
	loop    *evloop.Loop
	backoff *Backoff
	attempt AttemptFunc

	state State
	timer *evloop.Timer
	seq   uint64

	onStateChange func(oldState, newState State)
	onRetry       func(attempt int, delay time.Duration, cause error)
	onGiveUp      func(err error)
}

// NewRetrier creates a retrier. A nil backoff uses NewBackoff.
func NewRetrier(loop *evloop.Loop, backoff *Backoff, attempt AttemptFunc) *Retrier {
	if backoff == nil {
		backoff = NewBackoff()
	}
	return &Retrier{
		loop:    loop,
		backoff: backoff,
		attempt: attempt,
	}
}

// OnStateChange sets a callback for state changes.
func (r *Retrier) OnStateChange(fn func(oldState, newState State)) {
	r.onStateChange = fn
}

// OnRetry sets a callback invoked when a retry is scheduled.
func (r *Retrier) OnRetry(fn func(attempt int, delay time.Duration, cause error)) {
	r.onRetry = fn
}

// OnGiveUp sets a callback invoked when the backoff is exhausted. err wraps
// ErrAttemptsExceeded and the last failure.
func (r *Retrier) OnGiveUp(fn func(err error)) {
	r.onGiveUp = fn
}

// State returns the current state.
func (r *Retrier) State() State {
	return r.state
}

// Attempts returns the number of retries since the last success.
func (r *Retrier) Attempts() int {
	return r.backoff.Attempts()
}

// Start runs the first attempt immediately.
func (r *Retrier) Start() error {
	switch r.state {
	case StateClosed:
		return ErrRetrierClosed
	case StateDisconnected:
	default:
		return ErrAlreadyStarted
	}
	r.run()
	return nil
}

// ConnectionLost reports that an established connection dropped. A retry
// is scheduled unless the retrier was stopped.
func (r *Retrier) ConnectionLost(cause error) {
	if r.state != StateConnected {
		return
	}
	r.schedule(cause)
}

// Stop cancels any pending retry and ignores the outcome of an attempt in
// flight. Idempotent.
func (r *Retrier) Stop() {
	if r.state == StateClosed {
		return
	}
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.seq++
	r.setState(StateClosed)
}

func (r *Retrier) run() {
	r.seq++
	seq := r.seq
	r.setState(StateConnecting)
	r.attempt(func(err error) {
		if seq != r.seq || r.state != StateConnecting {
			return
		}
		if err == nil {
			r.backoff.Reset()
			r.setState(StateConnected)
			return
		}
		r.schedule(err)
	})
}

func (r *Retrier) schedule(cause error) {
	if r.backoff.Exhausted() {
		r.setState(StateDisconnected)
		if r.onGiveUp != nil {
			r.onGiveUp(errors.Join(ErrAttemptsExceeded, cause))
		}
		return
	}

	delay := r.backoff.Next()
	r.setState(StateWaiting)
	if r.onRetry != nil {
		r.onRetry(r.backoff.Attempts(), delay, cause)
	}
	r.timer = r.loop.AfterFunc(delay, func() {
		r.timer = nil
		if r.state == StateWaiting {
			r.run()
		}
	})
}

func (r *Retrier) setState(s State) {
	if r.state == s {
		return
	}
	old := r.state
	r.state = s
	if r.onStateChange != nil {
		r.onStateChange(old, s)
	}
}
