package tlsengine

import (
	"net"
	"time"
)

// pipeConn is the net.Conn a crypto/tls session runs on. Reads are served
// from the engine's inbound cursor and park the session goroutine while the
// cursor is empty; writes append to the engine's outbound buffer.
//
// The session goroutine and the owner never run at the same time: control
// moves between them only through the engine's resume and yield channels.
type pipeConn struct {
	e *Engine
}

var _ net.Conn = (*pipeConn)(nil)

func (p *pipeConn) Read(b []byte) (int, error) {
	e := p.e
	for e.in.Len() == 0 {
		if e.closed {
			return 0, net.ErrClosed
		}
		e.yield <- struct{}{}
		<-e.resume
	}
	if e.closed {
		return 0, net.ErrClosed
	}
	return e.in.Read(b), nil
}

func (p *pipeConn) Write(b []byte) (int, error) {
	e := p.e
	if e.closed {
		return 0, net.ErrClosed
	}
	e.out = append(e.out, b...)
	return len(b), nil
}

func (p *pipeConn) Close() error                     { return nil }
func (p *pipeConn) LocalAddr() net.Addr              { return pipeAddr{} }
func (p *pipeConn) RemoteAddr() net.Addr             { return pipeAddr{} }
func (p *pipeConn) SetDeadline(time.Time) error      { return nil }
func (p *pipeConn) SetReadDeadline(time.Time) error  { return nil }
func (p *pipeConn) SetWriteDeadline(time.Time) error { return nil }

type pipeAddr struct{}

func (pipeAddr) Network() string { return "tlsengine" }
func (pipeAddr) String() string  { return "tlsengine" }
