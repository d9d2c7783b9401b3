// Package tlsengine provides a socket-free TLS session.
//
// An Engine never touches a network connection. The owner feeds it
// ciphertext received from the wire (Push), drives the handshake
// (Handshake), drains decrypted application data (Read), encrypts outbound
// application data (Encode) and ships whatever ciphertext the engine
// produced (Output). Every call returns once the engine has consumed all
// input it can, so an Engine fits inside a single-threaded event loop.
//
// # State Machine
//
//	INIT ──Setup──▶ HANDSHAKING ──complete──▶ IO
//	  │                  │                     │
//	  └──────────────────┴──────Destroy────────┴──▶ CLOSING
//
// Exactly one handshake runs per engine. CLOSING is terminal.
//
// # Verification
//
// Client engines verify the peer chain against the system roots plus any
// anchors added with SetCACerts, and check the host name passed to
// SetupClient. The result is advisory: a failed verification does not abort
// the handshake, it is reported through VerifyResult.
//
// # Buffering
//
// Inbound ciphertext is held in a Cursor. A TLS record split across several
// pushes is decoded only once its last byte arrives.
package tlsengine
