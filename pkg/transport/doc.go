// Package transport provides callback-driven TCP, TLS and UDP transports
// running on an evloop.Loop.
//
// Every transport method must be called on the loop goroutine, and every
// callback runs there. Nothing blocks: connect, write and close complete
// through later callbacks.
//
// # Lifecycle
//
//	CONNECTING ──► OPEN ──► CLOSING ──► CLOSED
//	     │                                 ▲
//	     └──────────── ERROR ──────────────┘
//
// A stream transport starts in CONNECTING. Connect resolves the host and
// dials the first address. For TLS the handshake runs on the connected
// socket before OPEN is reached. CONNECTED is emitted on entering OPEN;
// for TLS it carries the advisory certificate verification result, and no
// input is delivered before it. CONNECTED is the first event a transport
// emits; LOOKUP is reserved and never delivered.
//
// A fatal failure emits exactly one ERROR event naming the failing
// operation and moves the transport to CLOSED. No callback fires after
// that, and none fires after Destroy.
//
// # Writes
//
// Write first tries a non-blocking inline write. When the socket takes
// everything it returns WriteSent; otherwise the unsent tail is copied into
// a write request and WriteQueued is returned. READY is emitted once the
// queue has drained. For TLS the plaintext is encrypted first and READY
// reflects the ciphertext queue.
//
// # Dispatch
//
// Transport wraps either kind behind one contract:
//
//	t := transport.New(transport.KindTLS, transport.WithServerName("example.com"))
//	if err := t.Init(loop, handler); err != nil { ... }
//	if err := t.Connect("203.0.113.7", 443); err != nil { ... }
//
// # Datagrams
//
// UDP.Send takes an IP literal and never resolves host names. Callers with
// a name resolve it first with evloop.Loop.Resolve.
//
// Transports never retry; see package connection for a caller-side policy.
package transport
