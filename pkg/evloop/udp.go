package evloop

import (
	"context"
	"net"
	"net/netip"
)

// UDPHandle is a bound datagram socket owned by a loop.
//
// All methods must be called on the loop goroutine.
type UDPHandle struct {
	loop *Loop
	conn *net.UDPConn

	sends      *writeQueue
	receiving  bool
	readerDone chan struct{}
	closing    bool
}

// ListenUDP binds a datagram socket synchronously. With reuse set the
// address is bound with SO_REUSEADDR.
func (l *Loop) ListenUDP(addr netip.AddrPort, reuse bool) (*UDPHandle, error) {
	lc := net.ListenConfig{}
	if reuse {
		lc.Control = reuseAddrControl
	}
	pc, err := lc.ListenPacket(context.Background(), "udp", addr.String())
	if err != nil {
		return nil, err
	}
	conn := pc.(*net.UDPConn)

	u := &UDPHandle{loop: l, conn: conn}
	u.sends = newWriteQueue(l, func(r *WriteRequest) error {
		_, err := conn.WriteToUDPAddrPort(r.data, r.to)
		return err
	})
	return u, nil
}

// LocalAddr returns the bound address.
func (u *UDPHandle) LocalAddr() netip.AddrPort {
	if a, ok := u.conn.LocalAddr().(*net.UDPAddr); ok {
		return a.AddrPort()
	}
	return netip.AddrPort{}
}

// StartRecv starts the receive pump. Receive errors are delivered and the
// pump keeps going until the handle is closed.
func (u *UDPHandle) StartRecv(cb func(data []byte, from netip.AddrPort, err error)) error {
	if u.closing {
		return ErrClosed
	}
	if u.receiving {
		return nil
	}
	u.receiving = true
	u.readerDone = make(chan struct{})

	size := u.loop.readBufferSize
	go func() {
		defer close(u.readerDone)
		for {
			buf := make([]byte, size)
			n, from, err := u.conn.ReadFromUDPAddrPort(buf)
			if err != nil {
				if u.loop.ctx.Err() != nil {
					return
				}
				closed := make(chan bool, 1)
				u.loop.Post(func() {
					closed <- u.closing
					if !u.closing {
						cb(nil, netip.AddrPort{}, err)
					}
				})
				// A closed socket fails forever; stop once the loop agrees.
				select {
				case c := <-closed:
					if c {
						return
					}
				case <-u.loop.done:
					return
				}
				continue
			}
			data := buf[:n]
			u.loop.Post(func() {
				if !u.closing {
					cb(data, from, nil)
				}
			})
		}
	}()
	return nil
}

// Send queues one datagram to addr. cb runs on the loop goroutine.
func (u *UDPHandle) Send(to netip.AddrPort, req *WriteRequest, cb func(err error)) {
	req.to = to
	req.cb = cb
	if u.closing {
		u.loop.Post(func() { cb(ErrClosed) })
		return
	}
	u.sends.submit(req)
}

// IsClosing reports whether Close was called.
func (u *UDPHandle) IsClosing() bool {
	return u.closing
}

// Close closes the socket; cb runs on the loop goroutine once the helper
// goroutines are gone. Calling Close again is a no-op.
func (u *UDPHandle) Close(cb func()) {
	if u.closing {
		return
	}
	u.closing = true
	u.conn.Close()
	sendsDone := u.sends.stop()
	readerDone := u.readerDone

	go func() {
		<-sendsDone
		if readerDone != nil {
			<-readerDone
		}
		u.loop.Post(func() {
			if cb != nil {
				cb()
			}
		})
	}()
}
