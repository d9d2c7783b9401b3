package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/mash-protocol/scriptnet/pkg/connection"
	"github.com/mash-protocol/scriptnet/pkg/evloop"
	"github.com/mash-protocol/scriptnet/pkg/transport"
)

var errNotConnected = errors.New("not connected")

// session drives one stream transport for the connect command. Fields are
// owned by the loop goroutine except the channels.
type session struct {
	loop   *evloop.Loop
	kind   transport.Kind
	opts   []transport.Option
	host   string
	port   int
	out    io.Writer
	status io.Writer
	logger *slog.Logger

	tr        *transport.Transport
	retrier   *connection.Retrier
	connected bool
	verify    string
	started   bool
	finished  bool

	up    chan struct{} // closed on the first CONNECTED
	ready chan struct{} // signaled on READY
	done  chan error    // receives the session outcome once
}

func newSession(l *evloop.Loop, kind transport.Kind, host string, port int, opts []transport.Option) *session {
	return &session{
		loop:   l,
		kind:   kind,
		opts:   opts,
		host:   host,
		port:   port,
		out:    io.Discard,
		status: io.Discard,
		logger: slog.Default(),
		up:     make(chan struct{}),
		ready:  make(chan struct{}, 1),
		done:   make(chan error, 1),
	}
}

// withRetry reconnects with backoff until the backoff is exhausted.
func (s *session) withRetry(backoff *connection.Backoff) {
	s.retrier = connection.NewRetrier(s.loop, backoff, s.attempt)
	s.retrier.OnRetry(func(attempt int, delay time.Duration, cause error) {
		s.logger.Info("retrying", "attempt", attempt, "delay", delay, "cause", cause)
		fmt.Fprintf(s.status, "retry %d in %s: %v\n", attempt, delay.Round(time.Millisecond), cause)
	})
	s.retrier.OnGiveUp(s.finish)
}

// start begins connecting. Called on the loop goroutine.
func (s *session) start() {
	if s.retrier != nil {
		if err := s.retrier.Start(); err != nil {
			s.finish(err)
		}
		return
	}
	s.attempt(func(err error) {
		if err != nil {
			s.finish(err)
		}
	})
}

// attempt opens a fresh transport and reports the connect outcome to done.
func (s *session) attempt(done func(err error)) {
	tr := transport.New(s.kind, s.opts...)
	s.tr = tr
	s.connected = false

	h := transport.HandlerFuncs{
		Event: func(ev transport.Event) { s.onEvent(tr, ev, done) },
		Input: func(data []byte, err error) { s.onInput(tr, data, err) },
	}
	if err := tr.Init(s.loop, h); err != nil {
		done(err)
		return
	}
	if err := tr.Connect(s.host, s.port); err != nil {
		tr.Destroy()
		done(err)
	}
}

func (s *session) onEvent(tr *transport.Transport, ev transport.Event, done func(err error)) {
	if tr != s.tr || s.finished {
		return
	}
	switch ev.Kind {
	case transport.EventConnected:
		s.connected = true
		s.verify = ev.Verify
		fmt.Fprintf(s.status, "connected to %s:%d (%s)\n", s.host, s.port, s.kind)
		if ev.Verify != "" {
			fmt.Fprintf(s.status, "warning: certificate not verified: %s\n", ev.Verify)
		}
		if !s.started {
			s.started = true
			close(s.up)
		}
		done(nil)

	case transport.EventReady:
		s.signalReady()

	case transport.EventError:
		err := fmt.Errorf("%s: %w", ev.Op, ev.Err)
		if !s.connected {
			done(err)
			return
		}
		s.lost(err)
	}
}

func (s *session) onInput(tr *transport.Transport, data []byte, err error) {
	if tr != s.tr || s.finished {
		return
	}
	if err != nil {
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(s.status, "connection closed by peer")
		}
		s.lost(err)
		return
	}
	if _, werr := s.out.Write(data); werr != nil {
		s.finish(fmt.Errorf("failed to write output: %w", werr))
	}
}

// lost handles the end of an established connection.
func (s *session) lost(cause error) {
	s.tr.Destroy()
	s.connected = false
	s.signalReady()

	if s.retrier != nil {
		s.retrier.ConnectionLost(cause)
		return
	}
	if errors.Is(cause, io.EOF) {
		cause = nil
	}
	s.finish(cause)
}

// finish ends the session. Called on the loop goroutine; idempotent.
func (s *session) finish(err error) {
	if s.finished {
		return
	}
	s.finished = true
	if s.retrier != nil {
		s.retrier.Stop()
	}
	if s.tr != nil {
		s.tr.Destroy()
	}
	s.signalReady()
	s.done <- err
}

func (s *session) signalReady() {
	select {
	case s.ready <- struct{}{}:
	default:
	}
}

// write sends data on the current transport. Called on the loop goroutine.
func (s *session) write(data []byte) (transport.WriteStatus, error) {
	if s.finished || s.tr == nil || !s.connected {
		return transport.WriteSent, errNotConnected
	}
	// Drop a READY left over from an earlier write.
	select {
	case <-s.ready:
	default:
	}
	return s.tr.Write(data)
}

// send writes data from a non-loop goroutine and waits for READY when the
// write was queued. It returns false once the session is over.
func (s *session) send(ctx context.Context, data []byte) bool {
	chunk := append([]byte(nil), data...)
	var st transport.WriteStatus
	var err error
	if derr := s.loop.Do(func() { st, err = s.write(chunk) }); derr != nil {
		return false
	}
	if err != nil {
		s.logger.Warn("input dropped", "bytes", len(chunk), "error", err)
		return true
	}
	if st == transport.WriteQueued {
		select {
		case <-s.ready:
		case <-ctx.Done():
			return false
		}
	}
	return true
}

// pump copies r to the peer once the first connection is up.
func (s *session) pump(ctx context.Context, r io.Reader) {
	select {
	case <-s.up:
	case <-ctx.Done():
		return
	}

	buf := make([]byte, 16*1024)
	for {
		n, err := r.Read(buf)
		if n > 0 && !s.send(ctx, buf[:n]) {
			return
		}
		if err != nil {
			return
		}
	}
}

// describe returns a one-line status summary. Called on the loop goroutine.
func (s *session) describe() string {
	if s.tr == nil {
		return "no transport"
	}
	line := fmt.Sprintf("%s %s:%d state=%s id=%s", s.kind, s.host, s.port, s.tr.State(), s.tr.ConnectionID())
	if s.retrier != nil {
		line += fmt.Sprintf(" retry=%s", s.retrier.State())
	}
	if s.verify != "" {
		line += " verify=" + s.verify
	}
	return line
}
