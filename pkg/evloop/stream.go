package evloop

import (
	"net"
)

// TryWriter is implemented by connections that can attempt a write without
// blocking. Stream prefers it over the platform try-write.
type TryWriter interface {
	// TryWrite writes as much of p as possible without blocking and returns
	// the number of bytes accepted.
	TryWrite(p []byte) (int, error)
}

// Stream is a connected byte stream owned by a loop.
//
// All methods must be called on the loop goroutine.
type Stream struct {
	loop *Loop
	conn net.Conn

	writes     *writeQueue
	queued     int
	pending    int
	reading    bool
	readerDone chan struct{}
	closing    bool
	closed     bool
}

// NewStream wraps an established connection.
func NewStream(l *Loop, conn net.Conn) *Stream {
	s := &Stream{
		loop: l,
		conn: conn,
	}
	s.writes = newWriteQueue(l, func(r *WriteRequest) error {
		_, err := conn.Write(r.data)
		return err
	})
	return s
}

// Conn returns the underlying connection.
func (s *Stream) Conn() net.Conn {
	return s.conn
}

// LocalAddr returns the local address of the connection.
func (s *Stream) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

// RemoteAddr returns the remote address of the connection.
func (s *Stream) RemoteAddr() net.Addr {
	return s.conn.RemoteAddr()
}

// TryWrite writes as much of p as the socket accepts without blocking.
// It returns 0 while queued writes are outstanding so bytes never overtake
// the queue.
func (s *Stream) TryWrite(p []byte) (int, error) {
	if s.closing {
		return 0, ErrClosed
	}
	if len(p) == 0 || s.pending > 0 {
		return 0, nil
	}
	if tw, ok := s.conn.(TryWriter); ok {
		return tw.TryWrite(p)
	}
	return tryWrite(s.conn, p)
}

// Write queues req. cb runs on the loop goroutine once the bytes were handed
// to the kernel or the write failed; completions arrive in submission order.
func (s *Stream) Write(req *WriteRequest, cb func(err error)) {
	s.queued += len(req.data)
	s.pending++
	n := len(req.data)
	req.cb = func(err error) {
		s.queued -= n
		s.pending--
		cb(err)
	}
	if s.closing {
		s.loop.Post(func() { req.cb(ErrClosed) })
		return
	}
	s.writes.submit(req)
}

// WriteQueueSize returns the number of bytes waiting in the write queue.
func (s *Stream) WriteQueueSize() int {
	return s.queued
}

// StartRead starts the read pump. Each chunk is delivered in a freshly
// allocated buffer owned by the callee. The first error (io.EOF included) is
// delivered once and ends the pump.
func (s *Stream) StartRead(cb func(data []byte, err error)) error {
	if s.closing {
		return ErrClosed
	}
	if s.reading {
		return nil
	}
	s.reading = true
	s.readerDone = make(chan struct{})

	size := s.loop.readBufferSize
	go func() {
		defer close(s.readerDone)
		for {
			buf := make([]byte, size)
			n, err := s.conn.Read(buf)
			if n > 0 {
				data := buf[:n]
				s.loop.Post(func() {
					if !s.closing {
						cb(data, nil)
					}
				})
			}
			if err != nil {
				s.loop.Post(func() {
					if !s.closing {
						cb(nil, err)
					}
				})
				return
			}
		}
	}()
	return nil
}

// IsClosing reports whether Close was called.
func (s *Stream) IsClosing() bool {
	return s.closing
}

// Close closes the connection. Queued writes complete with ErrCanceled or
// the write error caused by the close, then cb runs on the loop goroutine.
// Calling Close again is a no-op.
func (s *Stream) Close(cb func()) {
	if s.closing {
		return
	}
	s.closing = true

	s.conn.Close()
	writerDone := s.writes.stop()
	readerDone := s.readerDone

	go func() {
		<-writerDone
		if readerDone != nil {
			<-readerDone
		}
		s.loop.Post(func() {
			s.closed = true
			if cb != nil {
				cb()
			}
		})
	}()
}
