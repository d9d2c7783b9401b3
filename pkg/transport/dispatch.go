package transport

import (
	"fmt"
	"strings"

	"github.com/mash-protocol/scriptnet/pkg/evloop"
)

// Kind selects the stream transport variant.
type Kind uint8

const (
	// KindPlain is an unencrypted TCP stream.
	KindPlain Kind = iota

	// KindTLS is a TLS client stream.
	KindTLS
)

// String returns "tcp" or "tls".
func (k Kind) String() string {
	switch k {
	case KindPlain:
		return "tcp"
	case KindTLS:
		return "tls"
	default:
		return "unknown"
	}
}

// ParseKind parses "tcp" (or "plain") and "tls".
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "tcp", "plain":
		return KindPlain, nil
	case "tls":
		return KindTLS, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// Transport presents one contract over either stream kind. Exactly one of
// the variant fields is set, chosen by kind.
type Transport struct {
	kind  Kind
	plain *TCP
	tls   *TLS
}

// New creates a transport of the given kind. No I/O happens until Connect.
// An unknown kind yields a transport whose operations fail with
// ErrUnknownKind.
func New(kind Kind, opts ...Option) *Transport {
	t := &Transport{kind: kind}
	switch kind {
	case KindPlain:
		t.plain = NewTCP(opts...)
	case KindTLS:
		t.tls = NewTLS(opts...)
	}
	return t
}

// Kind returns the variant tag.
func (t *Transport) Kind() Kind {
	return t.kind
}

// Init stores h and initializes the variant against loop.
func (t *Transport) Init(loop *evloop.Loop, h Handler) error {
	switch t.kind {
	case KindPlain:
		return t.plain.Init(loop, h)
	case KindTLS:
		return t.tls.Init(loop, h)
	}
	return ErrUnknownKind
}

// Connect starts the asynchronous connect. Only one call is permitted.
func (t *Transport) Connect(host string, port int) error {
	switch t.kind {
	case KindPlain:
		return t.plain.Connect(host, port)
	case KindTLS:
		return t.tls.Connect(host, port)
	}
	return ErrUnknownKind
}

// Write sends data and reports whether it went out inline or was queued.
func (t *Transport) Write(data []byte) (WriteStatus, error) {
	switch t.kind {
	case KindPlain:
		return t.plain.Write(data)
	case KindTLS:
		return t.tls.Write(data)
	}
	return WriteSent, ErrUnknownKind
}

// IsReady reports whether the outbound queue is empty.
func (t *Transport) IsReady() bool {
	switch t.kind {
	case KindPlain:
		return t.plain.IsReady()
	case KindTLS:
		return t.tls.IsReady()
	}
	return false
}

// Destroy closes the transport. Idempotent.
func (t *Transport) Destroy() {
	switch t.kind {
	case KindPlain:
		t.plain.Destroy()
	case KindTLS:
		t.tls.Destroy()
	}
}

// State returns the ready state.
func (t *Transport) State() ReadyState {
	switch t.kind {
	case KindPlain:
		return t.plain.State()
	case KindTLS:
		return t.tls.State()
	}
	return StateClosed
}

// ConnectionID returns the unique id used in logs.
func (t *Transport) ConnectionID() string {
	switch t.kind {
	case KindPlain:
		return t.plain.ConnectionID()
	case KindTLS:
		return t.tls.ConnectionID()
	}
	return ""
}

// TLS returns the TLS variant, or nil for other kinds.
func (t *Transport) TLS() *TLS {
	return t.tls
}

// TCP returns the plain variant, or nil for other kinds.
func (t *Transport) TCP() *TCP {
	return t.plain
}
