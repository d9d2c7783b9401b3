package evloop

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// Loop errors.
var (
	ErrLoopClosed  = errors.New("event loop closed")
	ErrLoopRunning = errors.New("event loop already running")
	ErrClosed      = errors.New("handle closed")
	ErrCanceled    = errors.New("operation canceled")
)

// Resolver looks up the addresses of a host.
// Implemented by *net.Resolver.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// Dialer opens stream connections.
// Implemented by *net.Dialer.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Option configures a Loop.
type Option func(*Loop)

// WithResolver replaces the resolver used by Resolve.
func WithResolver(r Resolver) Option {
	return func(l *Loop) { l.resolver = r }
}

// WithDialer replaces the dialer used by Dial.
func WithDialer(d Dialer) Option {
	return func(l *Loop) { l.dialer = d }
}

// WithLogger sets the operational logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loop) { l.logger = logger }
}

// WithReadBufferSize sets the size of the buffer handed to each stream read.
func WithReadBufferSize(size int) Option {
	return func(l *Loop) {
		if size > 0 {
			l.readBufferSize = size
		}
	}
}

// DefaultReadBufferSize is the per-read buffer size for streams and datagrams.
const DefaultReadBufferSize = 64 * 1024

// Loop is a single-threaded callback scheduler.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	stopped bool

	running atomic.Bool
	done    chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	resolver       Resolver
	dialer         Dialer
	logger         *slog.Logger
	readBufferSize int
}

// New creates a loop. The loop does nothing until Run is called.
func New(opts ...Option) *Loop {
	ctx, cancel := context.WithCancel(context.Background())
	l := &Loop{
		wake:           make(chan struct{}, 1),
		done:           make(chan struct{}),
		ctx:            ctx,
		cancel:         cancel,
		resolver:       net.DefaultResolver,
		dialer:         &net.Dialer{},
		logger:         slog.Default(),
		readBufferSize: DefaultReadBufferSize,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Logger returns the loop's operational logger.
func (l *Loop) Logger() *slog.Logger {
	return l.logger
}

// Post schedules fn to run on the loop goroutine. Safe for concurrent use.
// Returns false if the loop has been stopped.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Do runs fn on the loop goroutine and waits for it to return.
// It must not be called from the loop goroutine itself.
func (l *Loop) Do(fn func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrLoopClosed
	}
	select {
	case <-finished:
		return nil
	case <-l.done:
		// Run may have drained the task before returning.
		select {
		case <-finished:
			return nil
		default:
			return ErrLoopClosed
		}
	}
}

// Run executes posted callbacks until ctx is canceled or Stop is called.
// After Stop, callbacks that were already queued still run.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrLoopRunning
	}
	defer close(l.done)

	for {
		l.mu.Lock()
		tasks := l.queue
		l.queue = nil
		stopped := l.stopped
		l.mu.Unlock()

		for _, fn := range tasks {
			fn()
		}
		if len(tasks) > 0 {
			continue
		}
		if stopped {
			return nil
		}

		select {
		case <-l.wake:
		case <-ctx.Done():
			l.Stop()
			return ctx.Err()
		}
	}
}

// Stop makes Run return once the queue is empty and rejects further posts.
// Helper goroutines are released.
func (l *Loop) Stop() {
	l.mu.Lock()
	l.stopped = true
	l.mu.Unlock()
	l.cancel()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Close stops the loop. Kept as an alias so a Loop can be deferred like other
// closers.
func (l *Loop) Close() error {
	l.Stop()
	return nil
}

// Done is closed when Run returns.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Timer is a one-shot loop timer.
type Timer struct {
	t       *time.Timer
	stopped bool
}

// AfterFunc runs fn on the loop goroutine after d.
func (l *Loop) AfterFunc(d time.Duration, fn func()) *Timer {
	timer := &Timer{}
	timer.t = time.AfterFunc(d, func() {
		l.Post(func() {
			if timer.stopped {
				return
			}
			timer.stopped = true
			fn()
		})
	})
	return timer
}

// Stop cancels the timer. Must be called on the loop goroutine.
// Returns false if the timer already fired or was stopped.
func (t *Timer) Stop() bool {
	if t.stopped {
		return false
	}
	t.stopped = true
	t.t.Stop()
	return true
}
