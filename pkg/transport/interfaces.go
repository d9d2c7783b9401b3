package transport

import (
	"github.com/mash-protocol/scriptnet/pkg/evloop"
)

// Conn is the contract shared by the stream transports.
// Implemented by TCP, TLS and Transport.
type Conn interface {
	// Init binds the transport to an event loop and a handler.
	Init(loop *evloop.Loop, h Handler) error

	// Connect starts the asynchronous connect.
	Connect(host string, port int) error

	// Write sends data inline or queues it.
	Write(data []byte) (WriteStatus, error)

	// IsReady reports whether the write queue is empty.
	IsReady() bool

	// Destroy closes the transport.
	Destroy()

	// State returns the ready state.
	State() ReadyState

	// ConnectionID returns the id used in logs.
	ConnectionID() string
}

// Compile-time interface satisfaction checks.
var (
	_ Conn            = (*TCP)(nil)
	_ Conn            = (*TLS)(nil)
	_ Conn            = (*Transport)(nil)
	_ Handler         = HandlerFuncs{}
	_ DatagramHandler = DatagramFuncs{}
)
