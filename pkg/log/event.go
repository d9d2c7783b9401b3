package log

import (
	"time"
)

// MaxFrameData is the largest payload copied into a FrameEvent.
const MaxFrameData = 4096

// Event represents a protocol log event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID uniquely identifies the transport instance (UUID).
	ConnectionID string `cbor:"2,keyasint"`

	// Direction indicates data flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// Kind is the transport kind ("tcp", "tls", "udp").
	Kind string `cbor:"6,keyasint,omitempty"`

	// RemoteAddr is the peer address (IP:port).
	RemoteAddr string `cbor:"7,keyasint,omitempty"`

	// Host is the name the transport was asked to connect to.
	Host string `cbor:"8,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Frame       *FrameEvent       `cbor:"10,keyasint,omitempty"` // Data in/out
	StateChange *StateChangeEvent `cbor:"11,keyasint,omitempty"` // Ready state
	Handshake   *HandshakeEvent   `cbor:"12,keyasint,omitempty"` // TLS outcome
	Error       *ErrorEventData   `cbor:"13,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of data flow.
type Direction uint8

const (
	// DirectionIn indicates incoming data.
	DirectionIn Direction = 0
	// DirectionOut indicates outgoing data.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which layer captured the event.
type Layer uint8

const (
	// LayerSocket is the raw socket (ciphertext for TLS).
	LayerSocket Layer = 0
	// LayerTLS is the TLS engine.
	LayerTLS Layer = 1
	// LayerTransport is the transport facing the caller (plaintext).
	LayerTransport Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerSocket:
		return "SOCKET"
	case LayerTLS:
		return "TLS"
	case LayerTransport:
		return "TRANSPORT"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryData indicates bytes moving in or out.
	CategoryData Category = 0
	// CategoryState indicates a state change.
	CategoryState Category = 1
	// CategoryHandshake indicates a TLS handshake outcome.
	CategoryHandshake Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryData:
		return "DATA"
	case CategoryState:
		return "STATE"
	case CategoryHandshake:
		return "HANDSHAKE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures bytes passing a layer.
type FrameEvent struct {
	// Size is the number of bytes.
	Size int `cbor:"1,keyasint"`

	// Data is a copy of the bytes (truncated to MaxFrameData).
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"3,keyasint,omitempty"`

	// Queued is set for outbound data that did not go out inline.
	Queued bool `cbor:"4,keyasint,omitempty"`
}

// NewFrameEvent copies up to MaxFrameData bytes of data.
func NewFrameEvent(data []byte) *FrameEvent {
	n := min(len(data), MaxFrameData)
	return &FrameEvent{
		Size:      len(data),
		Data:      append([]byte(nil), data[:n]...),
		Truncated: n < len(data),
	}
}

// StateChangeEvent captures transport lifecycle transitions.
type StateChangeEvent struct {
	// OldState is the previous state (may be empty).
	OldState string `cbor:"1,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"2,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"3,keyasint,omitempty"`
}

// HandshakeEvent captures the outcome of a TLS handshake.
type HandshakeEvent struct {
	// Version is the negotiated protocol version (e.g. "TLS 1.3").
	Version string `cbor:"1,keyasint,omitempty"`

	// CipherSuite is the negotiated cipher suite name.
	CipherSuite string `cbor:"2,keyasint,omitempty"`

	// ALPN is the negotiated application protocol.
	ALPN string `cbor:"3,keyasint,omitempty"`

	// ServerName is the name sent as SNI and verified.
	ServerName string `cbor:"4,keyasint,omitempty"`

	// VerifyCode is the advisory verification code (0 = verified).
	VerifyCode int `cbor:"5,keyasint,omitempty"`

	// VerifyReason describes a verification failure.
	VerifyReason string `cbor:"6,keyasint,omitempty"`

	// Records is the number of inbound records seen during the handshake.
	Records int `cbor:"7,keyasint,omitempty"`

	// Duration from connect completion to handshake completion.
	// Stored as nanoseconds.
	Duration time.Duration `cbor:"8,keyasint,omitempty"`
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Op is the failing operation ("getaddrinfo", "connect", "handshake", ...).
	Op string `cbor:"3,keyasint,omitempty"`
}
