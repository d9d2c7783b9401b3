// Package connection provides caller-side retry policy for transports.
//
// Transports report a failure exactly once and never retry. Callers that
// want to reconnect wrap their connect sequence in a Retrier, which schedules
// attempts on event loop timers:
//
//  1. First attempt runs immediately
//  2. Initial retry delay: 1 second
//  3. Exponential increase: 2s, 4s, 8s, 16s, 32s
//  4. Maximum delay: 60 seconds
//  5. Reset to 1s after a successful attempt
//
// # Jitter
//
// To prevent thundering herd when many clients reconnect:
//
//	actual_delay = base_delay + random(0, base_delay * 0.25)
//
// # Success Criteria
//
// An attempt is successful when the transport emits CONNECTED (for TLS,
// after the handshake completed). An advisory verification failure does not
// make the attempt fail; the caller decides whether to destroy.
package connection
