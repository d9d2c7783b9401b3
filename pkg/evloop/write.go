package evloop

import (
	"net/netip"
	"sync"
)

// WriteRequest owns a copy of the bytes of one queued write.
type WriteRequest struct {
	data []byte
	to   netip.AddrPort
	cb   func(err error)
}

// NewWriteRequest copies data into a new request.
func NewWriteRequest(data []byte) *WriteRequest {
	buf := make([]byte, len(data))
	copy(buf, data)
	return &WriteRequest{data: buf}
}

// Len returns the number of bytes the request carries.
func (r *WriteRequest) Len() int {
	return len(r.data)
}

// writeQueue serializes blocking writes onto one helper goroutine and posts
// completions back to the loop in submission order.
type writeQueue struct {
	loop  *Loop
	write func(r *WriteRequest) error

	mu      sync.Mutex
	reqs    []*WriteRequest
	signal  chan struct{}
	stopped bool
	started bool
	done    chan struct{}
}

func newWriteQueue(l *Loop, write func(r *WriteRequest) error) *writeQueue {
	return &writeQueue{
		loop:   l,
		write:  write,
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// submit hands req to the writer goroutine, starting it on first use.
// Called on the loop goroutine.
func (q *writeQueue) submit(req *WriteRequest) {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		q.loop.Post(func() { req.cb(ErrCanceled) })
		return
	}
	q.reqs = append(q.reqs, req)
	if !q.started {
		q.started = true
		go q.run()
	}
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *writeQueue) run() {
	defer close(q.done)

	var failed error
	for {
		q.mu.Lock()
		for len(q.reqs) == 0 && !q.stopped {
			q.mu.Unlock()
			<-q.signal
			q.mu.Lock()
		}
		if len(q.reqs) == 0 {
			q.mu.Unlock()
			return
		}
		req := q.reqs[0]
		q.reqs = q.reqs[1:]
		stopped := q.stopped
		q.mu.Unlock()

		var err error
		switch {
		case stopped:
			err = ErrCanceled
		case failed != nil:
			err = failed
		default:
			if err = q.write(req); err != nil {
				failed = err
			}
		}
		q.loop.Post(func() { req.cb(err) })
	}
}

// stop cancels pending requests and makes the writer goroutine exit.
// Returns a channel closed once the writer is gone.
func (q *writeQueue) stop() <-chan struct{} {
	q.mu.Lock()
	q.stopped = true
	started := q.started
	q.mu.Unlock()

	if !started {
		done := make(chan struct{})
		close(done)
		return done
	}
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return q.done
}
