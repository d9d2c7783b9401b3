// Package evloop provides the single-threaded event loop the transports are
// driven by.
//
// A Loop owns one callback queue. Every callback handed out by this package
// (resolution results, dial completions, read data, write completions,
// timers, close notifications) runs on the goroutine executing Loop.Run, one
// at a time and in the order the completions were posted. Blocking OS work
// (DNS lookups, dials, socket reads and writes) happens on helper goroutines
// which never touch caller state; they only post completions back.
//
// # Primitives
//
//   - Resolve: asynchronous name resolution
//   - Dial: asynchronous stream connect producing a Stream
//   - Stream: non-blocking TryWrite, queued Write with a byte-counted write
//     queue, read pump, Close
//   - ListenUDP: bound datagram handle with a receive pump and queued sends
//   - AfterFunc: one-shot timers
//
// Callers that live on other goroutines (stdin readers, tests) enter the loop
// through Post or Do.
package evloop
