package transport

import (
	"net"

	"github.com/mash-protocol/scriptnet/pkg/evloop"
	"github.com/mash-protocol/scriptnet/pkg/log"
)

// TCP is a plain stream transport.
type TCP struct {
	conn *streamConn
}

// NewTCP creates a TCP transport. No I/O happens until Connect.
func NewTCP(opts ...Option) *TCP {
	t := &TCP{conn: newStreamConn(KindPlain, newOptions(opts))}
	t.conn.onSocket = t.connected
	t.conn.onRead = t.read
	return t
}

// Init binds the transport to loop and h.
func (t *TCP) Init(loop *evloop.Loop, h Handler) error {
	return t.conn.init(loop, h)
}

// Connect resolves host and connects to the first address. The outcome is
// reported through CONNECTED or ERROR. Only one call is permitted.
func (t *TCP) Connect(host string, port int) error {
	return t.conn.connect(host, port)
}

func (t *TCP) connected() {
	t.conn.open(Event{Kind: EventConnected})
}

func (t *TCP) read(data []byte, err error) {
	if err != nil {
		t.conn.input(nil, err)
		return
	}
	t.conn.opts.metrics.BytesIn(t.conn.kind.String(), len(data))
	t.conn.cap.frame(log.LayerTransport, log.DirectionIn, data, false)
	t.conn.input(data, nil)
}

// Write sends data, queuing whatever the socket does not take inline.
func (t *TCP) Write(data []byte) (WriteStatus, error) {
	if err := t.conn.writable(); err != nil {
		return WriteSent, err
	}
	st, err := t.conn.send(data)
	if err != nil {
		return st, err
	}
	t.conn.wrote(data, st)
	return st, nil
}

// IsReady reports whether the write queue is empty.
func (t *TCP) IsReady() bool {
	return t.conn.isReady()
}

// Destroy suppresses further callbacks and closes the socket. Idempotent
// and safe to call from a callback.
func (t *TCP) Destroy() {
	t.conn.destroy()
}

// State returns the ready state.
func (t *TCP) State() ReadyState {
	return t.conn.state
}

// ConnectionID returns the unique id used in logs.
func (t *TCP) ConnectionID() string {
	return t.conn.id
}

// LocalAddr returns the local socket address, or nil before connecting.
func (t *TCP) LocalAddr() net.Addr {
	return t.conn.localAddr()
}

// RemoteAddr returns the peer address, or nil before connecting.
func (t *TCP) RemoteAddr() net.Addr {
	return t.conn.remoteAddr()
}
