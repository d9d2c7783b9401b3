package transport

import (
	"fmt"
	"log/slog"
	"net/netip"

	"github.com/google/uuid"

	"github.com/mash-protocol/scriptnet/pkg/evloop"
	"github.com/mash-protocol/scriptnet/pkg/log"
)

// UDP is a datagram transport. It has no handshake, no write queue and no
// READY event.
type UDP struct {
	opts   *options
	id     string
	logger *slog.Logger
	cap    capture

	loop    *evloop.Loop
	handler Handler
	dgram   DatagramHandler
	handle  *evloop.UDPHandle
	closed  bool
}

// NewUDP creates a UDP transport.
func NewUDP(opts ...Option) *UDP {
	o := newOptions(opts)
	id := uuid.NewString()
	return &UDP{
		opts:   o,
		id:     id,
		logger: o.logger.With("conn_id", id, "kind", "udp"),
		cap: capture{
			logger: o.protocolLogger,
			connID: id,
			kind:   "udp",
		},
	}
}

// Init binds the transport to loop and h. If h implements DatagramHandler
// datagrams are delivered with their sender.
func (u *UDP) Init(loop *evloop.Loop, h Handler) error {
	switch {
	case loop == nil:
		return ErrNoLoop
	case h == nil:
		return ErrNoHandler
	case u.closed:
		return ErrClosed
	case u.loop != nil:
		return ErrAlreadyInitialized
	}
	u.loop = loop
	u.handler = h
	u.dgram, _ = h.(DatagramHandler)
	return nil
}

// Bind binds to host:port with address reuse and starts receiving. An
// empty host binds all interfaces.
func (u *UDP) Bind(host string, port int) error {
	switch {
	case u.closed:
		return ErrClosed
	case u.loop == nil:
		return ErrNotInitialized
	case u.handle != nil:
		return ErrAlreadyBound
	}
	if port < 0 || port > 65535 {
		return fmt.Errorf("%w: port %d", ErrInvalidAddress, port)
	}
	ip := netip.IPv4Unspecified()
	if host != "" {
		var err error
		if ip, err = netip.ParseAddr(host); err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidAddress, host)
		}
	}
	addr := netip.AddrPortFrom(ip, uint16(port))

	handle, err := u.loop.ListenUDP(addr, true)
	if err != nil {
		u.cap.error(log.LayerSocket, "bind", err)
		return fmt.Errorf("bind %s: %w", addr, err)
	}
	if err := handle.StartRecv(u.recv); err != nil {
		handle.Close(nil)
		return fmt.Errorf("recv: %w", err)
	}
	u.handle = handle
	u.logger.Debug("bound", "addr", handle.LocalAddr())
	return nil
}

func (u *UDP) recv(data []byte, from netip.AddrPort, err error) {
	if u.closed || u.handler == nil {
		return
	}
	if err != nil {
		u.logger.Debug("receive failed", "error", err)
		u.cap.error(log.LayerSocket, "recv", err)
	} else {
		u.opts.metrics.Datagram("in", len(data))
		u.cap.remote = from.String()
		u.cap.frame(log.LayerSocket, log.DirectionIn, data, false)
	}

	if u.dgram != nil {
		u.dgram.OnDatagram(data, from, err)
		return
	}
	u.handler.OnInput(data, err)
}

// Send copies data and submits one datagram to address:port. address must
// be an IP literal: host names are not resolved, and a name or malformed
// address fails with ErrInvalidAddress before anything is sent. An unbound transport is bound to an ephemeral port
// on the wildcard address of the destination's family first. Send
// failures are logged, not reported.
func (u *UDP) Send(address string, port int, data []byte) error {
	if u.closed {
		return ErrClosed
	}
	ip, err := netip.ParseAddr(address)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	if port <= 0 || port > 65535 {
		return fmt.Errorf("%w: port %d", ErrInvalidAddress, port)
	}
	to := netip.AddrPortFrom(ip, uint16(port))

	if u.handle == nil {
		wildcard := ""
		if ip.Is6() && !ip.Is4In6() {
			wildcard = "::"
		}
		if err := u.Bind(wildcard, 0); err != nil {
			return err
		}
	}

	u.handle.Send(to, evloop.NewWriteRequest(data), func(err error) {
		if err == nil || u.closed {
			return
		}
		u.logger.Warn("datagram send failed", "to", to, "error", err)
		u.cap.error(log.LayerSocket, "send", err)
	})
	u.opts.metrics.Datagram("out", len(data))
	u.cap.remote = to.String()
	u.cap.frame(log.LayerSocket, log.DirectionOut, data, false)
	return nil
}

// Destroy closes the socket and suppresses further callbacks. Idempotent.
func (u *UDP) Destroy() {
	if u.closed {
		return
	}
	u.closed = true
	u.handler = nil
	u.dgram = nil
	if u.handle != nil {
		u.handle.Close(nil)
	}
}

// IsClosed reports whether Destroy was called.
func (u *UDP) IsClosed() bool {
	return u.closed
}

// LocalAddr returns the bound address, or the zero value when unbound.
func (u *UDP) LocalAddr() netip.AddrPort {
	if u.handle == nil {
		return netip.AddrPort{}
	}
	return u.handle.LocalAddr()
}

// ConnectionID returns the unique id used in logs.
func (u *UDP) ConnectionID() string {
	return u.id
}
