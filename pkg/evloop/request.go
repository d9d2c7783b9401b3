package evloop

import (
	"fmt"
	"net"
	"net/netip"
	"strconv"
)

// Request is an in-flight resolution or dial. Completions of a canceled
// request are dropped on the loop goroutine.
type Request struct {
	canceled bool
}

// Cancel drops the completion callback of the request. Must be called on the
// loop goroutine.
func (r *Request) Cancel() {
	if r != nil {
		r.canceled = true
	}
}

// Canceled reports whether Cancel was called.
func (r *Request) Canceled() bool {
	return r != nil && r.canceled
}

// Resolve looks up host asynchronously and calls cb on the loop goroutine
// with the resolved endpoints, IPv4 addresses first.
func (l *Loop) Resolve(host string, port int, cb func(addrs []netip.AddrPort, err error)) *Request {
	req := &Request{}
	if port < 0 || port > 65535 {
		err := fmt.Errorf("invalid port %d", port)
		l.Post(func() {
			if !req.canceled {
				cb(nil, err)
			}
		})
		return req
	}

	go func() {
		addrs, err := l.lookup(host, uint16(port))
		l.Post(func() {
			if req.canceled {
				return
			}
			cb(addrs, err)
		})
	}()
	return req
}

func (l *Loop) lookup(host string, port uint16) ([]netip.AddrPort, error) {
	if ip, err := netip.ParseAddr(host); err == nil {
		return []netip.AddrPort{netip.AddrPortFrom(ip.Unmap(), port)}, nil
	}

	ipAddrs, err := l.resolver.LookupIPAddr(l.ctx, host)
	if err != nil {
		return nil, err
	}

	var v4, v6 []netip.AddrPort
	for _, a := range ipAddrs {
		ip, ok := netip.AddrFromSlice(a.IP)
		if !ok {
			continue
		}
		ip = ip.Unmap()
		if ip.Is4() {
			v4 = append(v4, netip.AddrPortFrom(ip, port))
		} else {
			v6 = append(v6, netip.AddrPortFrom(ip.WithZone(a.Zone), port))
		}
	}
	addrs := append(v4, v6...)
	if len(addrs) == 0 {
		return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
	}
	return addrs, nil
}

// Dial connects a stream to addr asynchronously and calls cb on the loop
// goroutine. If the request was canceled the connection is closed instead.
func (l *Loop) Dial(addr netip.AddrPort, cb func(s *Stream, err error)) *Request {
	req := &Request{}
	go func() {
		conn, err := l.dialer.DialContext(l.ctx, "tcp", net.JoinHostPort(addr.Addr().String(), strconv.Itoa(int(addr.Port()))))
		posted := l.Post(func() {
			if req.canceled {
				if conn != nil {
					conn.Close()
				}
				return
			}
			if err != nil {
				cb(nil, err)
				return
			}
			cb(NewStream(l, conn), nil)
		})
		if !posted && conn != nil {
			conn.Close()
		}
	}()
	return req
}
