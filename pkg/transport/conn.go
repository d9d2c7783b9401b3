package transport

import (
	"log/slog"
	"net"
	"net/netip"

	"github.com/google/uuid"

	"github.com/mash-protocol/scriptnet/pkg/evloop"
	"github.com/mash-protocol/scriptnet/pkg/log"
)

// streamConn is the socket layer shared by the TCP and TLS transports:
// resolve, dial, read pump, inline-then-queued writes, failure and close.
// The owning transport installs the hooks.
type streamConn struct {
	kind   Kind
	opts   *options
	id     string
	logger *slog.Logger
	cap    capture

	loop       *evloop.Loop
	handler    Handler
	state      ReadyState
	connecting bool
	req        *evloop.Request
	stream     *evloop.Stream
	wantReady  bool

	// onSocket runs once the socket is connected and reading.
	onSocket func()
	// onRead receives every raw chunk or the read error.
	onRead func(data []byte, err error)
	// release runs before the socket is closed.
	release func()
}

func newStreamConn(kind Kind, opts *options) *streamConn {
	id := uuid.NewString()
	return &streamConn{
		kind:   kind,
		opts:   opts,
		id:     id,
		logger: opts.logger.With("conn_id", id, "kind", kind.String()),
		cap: capture{
			logger: opts.protocolLogger,
			connID: id,
			kind:   kind.String(),
		},
	}
}

func (c *streamConn) init(loop *evloop.Loop, h Handler) error {
	switch {
	case loop == nil:
		return ErrNoLoop
	case h == nil:
		return ErrNoHandler
	case c.state >= StateClosing:
		return ErrClosed
	case c.loop != nil:
		return ErrAlreadyInitialized
	}
	c.loop = loop
	c.handler = h
	return nil
}

func (c *streamConn) checkConnect() error {
	switch {
	case c.state >= StateClosing:
		return ErrClosed
	case c.loop == nil:
		return ErrNotInitialized
	case c.connecting:
		return ErrAlreadyConnecting
	}
	return nil
}

func (c *streamConn) connect(host string, port int) error {
	if err := c.checkConnect(); err != nil {
		return err
	}
	c.connecting = true
	c.cap.host = host

	c.logger.Debug("resolving", "host", host, "port", port)
	c.req = c.loop.Resolve(host, port, func(addrs []netip.AddrPort, err error) {
		c.req = nil
		if err != nil {
			c.fail("getaddrinfo", err)
			return
		}
		c.dial(addrs[0])
	})
	return nil
}

func (c *streamConn) dial(addr netip.AddrPort) {
	c.logger.Debug("connecting", "addr", addr)
	c.req = c.loop.Dial(addr, func(s *evloop.Stream, err error) {
		c.req = nil
		if err != nil {
			c.fail("connect", err)
			return
		}
		c.stream = s
		c.cap.remote = addr.String()
		if err := s.StartRead(c.read); err != nil {
			c.fail("read", err)
			return
		}
		c.onSocket()
	})
}

func (c *streamConn) read(data []byte, err error) {
	if c.handler == nil {
		return
	}
	c.onRead(data, err)
}

// open enters OPEN and emits ev, which must be a CONNECTED event.
func (c *streamConn) open(ev Event) {
	c.setState(StateOpen, "connected")
	c.opts.metrics.Opened(c.kind.String())
	c.emit(ev)
}

func (c *streamConn) emit(ev Event) {
	if c.handler != nil {
		c.handler.OnEvent(ev)
	}
}

func (c *streamConn) input(data []byte, err error) {
	if c.handler != nil {
		c.handler.OnInput(data, err)
	}
}

func (c *streamConn) writable() error {
	switch c.state {
	case StateOpen:
		return nil
	case StateConnecting:
		return ErrNotOpen
	default:
		return ErrClosed
	}
}

// send writes data inline as far as the socket allows and queues the rest.
// On failure the transport has already failed.
func (c *streamConn) send(data []byte) (WriteStatus, error) {
	n, err := c.stream.TryWrite(data)
	if err != nil {
		c.fail("write", err)
		return WriteSent, err
	}
	if n == len(data) {
		return WriteSent, nil
	}

	req := evloop.NewWriteRequest(data[n:])
	size := req.Len()
	kind := c.kind.String()
	c.opts.metrics.QueueDelta(kind, size)
	c.stream.Write(req, func(err error) {
		c.opts.metrics.QueueDelta(kind, -size)
		if c.state >= StateClosing {
			return
		}
		if err != nil {
			c.fail("write", err)
			return
		}
		if c.wantReady && c.stream.WriteQueueSize() == 0 {
			c.wantReady = false
			c.opts.metrics.Ready(kind)
			c.emit(Event{Kind: EventReady})
		}
	})
	return WriteQueued, nil
}

// wrote accounts for a caller write of plain that completed with st.
func (c *streamConn) wrote(plain []byte, st WriteStatus) {
	queued := st == WriteQueued
	if queued {
		c.wantReady = true
	}
	kind := c.kind.String()
	c.opts.metrics.BytesOut(kind, len(plain))
	c.opts.metrics.Write(kind, queued)
	c.cap.frame(log.LayerTransport, log.DirectionOut, plain, queued)
}

func (c *streamConn) isReady() bool {
	return c.stream == nil || c.stream.WriteQueueSize() == 0
}

// fail emits the single ERROR event and moves straight to CLOSED.
func (c *streamConn) fail(op string, err error) {
	if c.state >= StateClosing {
		return
	}
	h := c.handler
	c.handler = nil
	wasOpen := c.state == StateOpen

	c.logger.Error("transport failed", "op", op, "error", err)
	c.cap.error(opLayer(op), op, err)
	kind := c.kind.String()
	c.opts.metrics.Failed(kind, op, wasOpen)
	if wasOpen {
		c.opts.metrics.Closed(kind)
	}

	c.shutdown(nil)
	c.setState(StateClosed, op+": "+err.Error())
	if h != nil {
		h.OnEvent(Event{Kind: EventError, Err: err, Op: op})
	}
}

func (c *streamConn) destroy() {
	if c.state >= StateClosing {
		return
	}
	c.handler = nil
	if c.state == StateOpen {
		c.opts.metrics.Closed(c.kind.String())
	}

	if c.stream == nil {
		c.shutdown(nil)
		c.setState(StateClosed, "destroyed")
		return
	}
	c.setState(StateClosing, "destroyed")
	c.shutdown(func() {
		c.setState(StateClosed, "socket closed")
	})
}

// shutdown cancels a pending resolve or dial, releases the owner's state
// and closes the socket. closed runs once the socket is gone.
func (c *streamConn) shutdown(closed func()) {
	if c.req != nil {
		c.req.Cancel()
		c.req = nil
	}
	if c.release != nil {
		c.release()
	}
	if c.stream != nil {
		c.stream.Close(closed)
	}
}

func (c *streamConn) setState(s ReadyState, reason string) {
	old := c.state
	if old == s {
		return
	}
	c.state = s
	c.logger.Debug("state change", "old", old, "new", s, "reason", reason)
	c.cap.state(old, s, reason)
}

func (c *streamConn) localAddr() net.Addr {
	if c.stream == nil {
		return nil
	}
	return c.stream.LocalAddr()
}

func (c *streamConn) remoteAddr() net.Addr {
	if c.stream == nil {
		return nil
	}
	return c.stream.RemoteAddr()
}

func opLayer(op string) log.Layer {
	switch op {
	case "handshake", "push", "encode":
		return log.LayerTLS
	case "getaddrinfo":
		return log.LayerTransport
	default:
		return log.LayerSocket
	}
}
