// Package log provides structured protocol logging for the transports.
//
// This package defines the Logger interface and Event types for capturing
// transport events at three layers (socket, TLS, transport). It is separate
// from operational logging (slog): protocol capture provides a complete
// machine-readable trace of what went over each connection.
//
// # Basic Usage
//
//	// For development: log to console via slog
//	t := transport.New(transport.KindTLS, transport.WithProtocolLogger(log.NewSlogAdapter(slog.Default())))
//
//	// For analysis: write to binary file
//	fl, _ := log.NewFileLogger("/tmp/session.tlog")
//
//	// Both: use MultiLogger
//	log.NewMultiLogger(log.NewSlogAdapter(slog.Default()), fl)
//
// # Event Types
//
//   - Data: bytes in and out (FrameEvent), ciphertext at the socket
//     layer, plaintext at the transport layer
//   - State: ready-state transitions (StateChangeEvent)
//   - Handshake: negotiated parameters and the advisory verify result
//     (HandshakeEvent)
//   - Error: failures with the operation that failed (ErrorEventData)
//
// # File Format
//
// Log files are a stream of CBOR-encoded events with integer keys, using the
// .tlog extension. The scriptnet-log tool views, filters and summarizes them.
package log
