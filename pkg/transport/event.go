package transport

import (
	"net/netip"
)

// ReadyState is the lifecycle state of a stream transport.
type ReadyState uint8

const (
	// StateConnecting is the initial state until the socket (and for TLS
	// the handshake) is established.
	StateConnecting ReadyState = iota

	// StateOpen indicates an established transport.
	StateOpen

	// StateClosing indicates Destroy was called and the socket is closing.
	StateClosing

	// StateClosed is terminal.
	StateClosed
)

// String returns the state name.
func (s ReadyState) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateOpen:
		return "OPEN"
	case StateClosing:
		return "CLOSING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// EventKind identifies a transport event.
type EventKind uint8

const (
	// EventUnknown is never emitted.
	EventUnknown EventKind = iota

	// EventLookup is reserved for name resolution progress. No transport
	// emits it; a successful lookup is followed directly by the dial.
	EventLookup

	// EventConnected is emitted once when the transport becomes OPEN.
	EventConnected

	// EventReady is emitted when a queued write drained the write queue.
	EventReady

	// EventError is emitted once on a fatal failure.
	EventError
)

// String returns the event name.
func (k EventKind) String() string {
	switch k {
	case EventLookup:
		return "LOOKUP"
	case EventConnected:
		return "CONNECTED"
	case EventReady:
		return "READY"
	case EventError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Event is delivered to Handler.OnEvent.
type Event struct {
	Kind EventKind

	// Err is the failure on EventError, nil otherwise.
	Err error

	// Op names the failing operation on EventError ("getaddrinfo",
	// "connect", "read", "write", "handshake", "push", "encode").
	Op string

	// Verify is the advisory certificate verification failure reported
	// with EventConnected by TLS transports. Empty when the peer verified.
	Verify string
}

// Handler receives transport callbacks on the loop goroutine.
type Handler interface {
	// OnEvent is called for lifecycle events.
	OnEvent(ev Event)

	// OnInput is called with received bytes. The callee owns data. A non-nil
	// err (io.EOF included) ends the input and data is nil.
	OnInput(data []byte, err error)
}

// DatagramHandler is an optional extension of Handler. A UDP transport
// whose handler implements it delivers datagrams with their sender.
type DatagramHandler interface {
	OnDatagram(data []byte, from netip.AddrPort, err error)
}

// HandlerFuncs adapts a pair of functions to Handler. Nil fields are
// ignored.
type HandlerFuncs struct {
	Event func(ev Event)
	Input func(data []byte, err error)
}

// OnEvent calls f.Event.
func (f HandlerFuncs) OnEvent(ev Event) {
	if f.Event != nil {
		f.Event(ev)
	}
}

// OnInput calls f.Input.
func (f HandlerFuncs) OnInput(data []byte, err error) {
	if f.Input != nil {
		f.Input(data, err)
	}
}

// DatagramFuncs adapts functions to Handler and DatagramHandler.
type DatagramFuncs struct {
	HandlerFuncs
	Datagram func(data []byte, from netip.AddrPort, err error)
}

// OnDatagram calls f.Datagram.
func (f DatagramFuncs) OnDatagram(data []byte, from netip.AddrPort, err error) {
	if f.Datagram != nil {
		f.Datagram(data, from, err)
	}
}

// WriteStatus tells how a successful write completed.
type WriteStatus int

const (
	// WriteSent means every byte was handed to the socket inline.
	WriteSent WriteStatus = 0

	// WriteQueued means some bytes were queued; READY follows once the
	// queue drains.
	WriteQueued WriteStatus = 1
)

// String returns the status name.
func (s WriteStatus) String() string {
	switch s {
	case WriteSent:
		return "sent"
	case WriteQueued:
		return "queued"
	default:
		return "unknown"
	}
}
