package evloop

import (
	"context"
	"errors"
	"io"
	"net"
	"net/netip"
	"sync"
	"testing"
	"time"
)

// runLoop starts l on a background goroutine and stops it at test cleanup.
func runLoop(t *testing.T, l *Loop) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-l.Done()
	})
}

func TestLoopRunsPostedCallbacksInOrder(t *testing.T) {
	l := New()
	runLoop(t, l)

	var got []int
	for i := 0; i < 100; i++ {
		i := i
		l.Post(func() { got = append(got, i) })
	}

	if err := l.Do(func() {}); err != nil {
		t.Fatalf("Do failed: %v", err)
	}

	var n int
	l.Do(func() { n = len(got) })
	if n != 100 {
		t.Fatalf("ran %d callbacks, want 100", n)
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("callback %d ran as %d", i, v)
		}
	}
}

func TestLoopRunTwice(t *testing.T) {
	l := New()
	runLoop(t, l)
	l.Do(func() {})

	if err := l.Run(context.Background()); !errors.Is(err, ErrLoopRunning) {
		t.Errorf("second Run = %v, want ErrLoopRunning", err)
	}
}

func TestLoopStopRejectsPosts(t *testing.T) {
	l := New()
	done := make(chan error, 1)
	go func() { done <- l.Run(context.Background()) }()

	l.Do(func() {})
	l.Stop()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}

	if l.Post(func() {}) {
		t.Error("Post succeeded after Stop")
	}
	if err := l.Do(func() {}); !errors.Is(err, ErrLoopClosed) {
		t.Errorf("Do after Stop = %v, want ErrLoopClosed", err)
	}
}

func TestTimer(t *testing.T) {
	l := New()
	runLoop(t, l)

	fired := make(chan struct{})
	l.Do(func() {
		l.AfterFunc(10*time.Millisecond, func() { close(fired) })
	})

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}

	t.Run("Stop", func(t *testing.T) {
		var timer *Timer
		ran := false
		l.Do(func() {
			timer = l.AfterFunc(20*time.Millisecond, func() { ran = true })
		})
		var stopped bool
		l.Do(func() { stopped = timer.Stop() })
		if !stopped {
			t.Fatal("Stop returned false for pending timer")
		}

		time.Sleep(50 * time.Millisecond)
		var r bool
		l.Do(func() { r = ran })
		if r {
			t.Error("stopped timer fired")
		}
	})
}

type staticResolver map[string][]net.IPAddr

func (r staticResolver) LookupIPAddr(_ context.Context, host string) ([]net.IPAddr, error) {
	addrs, ok := r[host]
	if !ok {
		return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
	}
	return addrs, nil
}

func TestResolve(t *testing.T) {
	resolver := staticResolver{
		"dual.test": {{IP: net.ParseIP("::1")}, {IP: net.ParseIP("127.0.0.1")}},
	}
	l := New(WithResolver(resolver))
	runLoop(t, l)

	type result struct {
		addrs []netip.AddrPort
		err   error
	}

	resolve := func(host string, port int) result {
		ch := make(chan result, 1)
		l.Do(func() {
			l.Resolve(host, port, func(addrs []netip.AddrPort, err error) {
				ch <- result{addrs, err}
			})
		})
		select {
		case r := <-ch:
			return r
		case <-time.After(time.Second):
			t.Fatal("resolution did not complete")
			return result{}
		}
	}

	t.Run("IPv4First", func(t *testing.T) {
		r := resolve("dual.test", 80)
		if r.err != nil {
			t.Fatalf("Resolve failed: %v", r.err)
		}
		want := netip.MustParseAddrPort("127.0.0.1:80")
		if len(r.addrs) != 2 || r.addrs[0] != want {
			t.Errorf("addrs = %v, want %v first", r.addrs, want)
		}
	})

	t.Run("Literal", func(t *testing.T) {
		r := resolve("10.1.2.3", 8080)
		if r.err != nil {
			t.Fatalf("Resolve failed: %v", r.err)
		}
		if r.addrs[0] != netip.MustParseAddrPort("10.1.2.3:8080") {
			t.Errorf("addrs = %v", r.addrs)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		r := resolve("missing.test", 80)
		var dnsErr *net.DNSError
		if !errors.As(r.err, &dnsErr) {
			t.Errorf("err = %v, want *net.DNSError", r.err)
		}
	})

	t.Run("BadPort", func(t *testing.T) {
		if r := resolve("127.0.0.1", 70000); r.err == nil {
			t.Error("expected error for out-of-range port")
		}
	})
}

func TestResolveCanceled(t *testing.T) {
	l := New()
	runLoop(t, l)

	called := false
	l.Do(func() {
		req := l.Resolve("127.0.0.1", 1, func([]netip.AddrPort, error) { called = true })
		req.Cancel()
	})
	time.Sleep(50 * time.Millisecond)

	var c bool
	l.Do(func() { c = called })
	if c {
		t.Error("canceled resolution invoked its callback")
	}
}

// limitedConn accepts a fixed number of bytes through TryWrite and records
// everything written.
type limitedConn struct {
	net.Conn

	mu     sync.Mutex
	inline int
	buf    []byte
}

func (c *limitedConn) TryWrite(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := min(c.inline, len(p))
	c.inline -= n
	c.buf = append(c.buf, p[:n]...)
	return n, nil
}

func (c *limitedConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buf = append(c.buf, p...)
	return len(p), nil
}

func (c *limitedConn) bytes() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.buf...)
}

func TestStreamTryWriteThenQueue(t *testing.T) {
	l := New()
	runLoop(t, l)

	a, b := net.Pipe()
	defer b.Close()
	conn := &limitedConn{Conn: a, inline: 3}

	payload := []byte("abcdefgh")
	done := make(chan error, 1)
	var s *Stream
	var n, queuedAfter int

	l.Do(func() {
		s = NewStream(l, conn)
		n, _ = s.TryWrite(payload)
		s.Write(NewWriteRequest(payload[n:]), func(err error) { done <- err })
		queuedAfter = s.WriteQueueSize()
	})

	if n != 3 {
		t.Fatalf("TryWrite = %d, want 3", n)
	}
	if queuedAfter != 5 {
		t.Errorf("WriteQueueSize = %d, want 5", queuedAfter)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("queued write failed: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("queued write did not complete")
	}

	var size int
	l.Do(func() { size = s.WriteQueueSize() })
	if size != 0 {
		t.Errorf("WriteQueueSize after completion = %d, want 0", size)
	}
	if got := string(conn.bytes()); got != "abcdefgh" {
		t.Errorf("written = %q, want %q", got, "abcdefgh")
	}

	l.Do(func() { s.Close(nil) })
}

func TestStreamTryWriteDefersToQueue(t *testing.T) {
	l := New()
	runLoop(t, l)

	a, b := net.Pipe()
	defer b.Close()
	conn := &limitedConn{Conn: a, inline: 100}

	var n int
	l.Do(func() {
		s := NewStream(l, conn)
		s.pending = 1 // a queued write is outstanding
		n, _ = s.TryWrite([]byte("late"))
	})
	if n != 0 {
		t.Errorf("TryWrite with pending writes = %d, want 0", n)
	}
}

func TestStreamReadAndClose(t *testing.T) {
	l := New()
	runLoop(t, l)

	a, b := net.Pipe()
	type chunk struct {
		data []byte
		err  error
	}
	chunks := make(chan chunk, 8)

	var s *Stream
	l.Do(func() {
		s = NewStream(l, a)
		s.StartRead(func(data []byte, err error) { chunks <- chunk{data, err} })
	})

	go func() {
		b.Write([]byte("hello"))
		b.Close()
	}()

	var got []byte
	var eof int
	timeout := time.After(time.Second)
	for eof == 0 {
		select {
		case c := <-chunks:
			if c.err != nil {
				if !errors.Is(c.err, io.EOF) {
					t.Fatalf("read error = %v, want io.EOF", c.err)
				}
				eof++
				continue
			}
			got = append(got, c.data...)
		case <-timeout:
			t.Fatal("timed out waiting for EOF")
		}
	}
	if string(got) != "hello" {
		t.Errorf("read %q, want %q", got, "hello")
	}

	closed := make(chan struct{})
	l.Do(func() {
		s.Close(func() { close(closed) })
		s.Close(func() { t.Error("second Close ran its callback") })
	})
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("close callback did not run")
	}

	select {
	case c := <-chunks:
		t.Errorf("unexpected delivery after EOF: %+v", c)
	default:
	}
}

func TestStreamCloseCancelsQueuedWrites(t *testing.T) {
	l := New()
	runLoop(t, l)

	// The peer never reads, so the queued write blocks until Close.
	a, b := net.Pipe()
	defer b.Close()

	results := make(chan error, 1)
	closed := make(chan struct{})
	l.Do(func() {
		s := NewStream(l, a)
		s.Write(NewWriteRequest([]byte("stuck")), func(err error) { results <- err })
		s.Close(func() { close(closed) })
	})

	select {
	case err := <-results:
		if err == nil {
			t.Error("queued write succeeded after Close")
		}
	case <-time.After(time.Second):
		t.Fatal("queued write never completed")
	}
	<-closed
}

func TestUDPRoundTrip(t *testing.T) {
	l := New()
	runLoop(t, l)

	type datagram struct {
		data []byte
		from netip.AddrPort
	}
	got := make(chan datagram, 1)

	var recv, send *UDPHandle
	l.Do(func() {
		var err error
		recv, err = l.ListenUDP(netip.MustParseAddrPort("127.0.0.1:0"), true)
		if err != nil {
			t.Errorf("ListenUDP failed: %v", err)
			return
		}
		send, err = l.ListenUDP(netip.MustParseAddrPort("127.0.0.1:0"), false)
		if err != nil {
			t.Errorf("ListenUDP failed: %v", err)
			return
		}
		recv.StartRecv(func(data []byte, from netip.AddrPort, err error) {
			if err == nil {
				got <- datagram{data, from}
			}
		})
		send.Send(recv.LocalAddr(), NewWriteRequest([]byte("ping")), func(err error) {
			if err != nil {
				t.Errorf("send failed: %v", err)
			}
		})
	})
	if t.Failed() {
		t.FailNow()
	}

	select {
	case d := <-got:
		if string(d.data) != "ping" {
			t.Errorf("received %q, want %q", d.data, "ping")
		}
		var sendAddr netip.AddrPort
		l.Do(func() { sendAddr = send.LocalAddr() })
		if d.from != sendAddr {
			t.Errorf("from = %v, want %v", d.from, sendAddr)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("datagram not received")
	}

	done := make(chan struct{}, 2)
	l.Do(func() {
		recv.Close(func() { done <- struct{}{} })
		send.Close(func() { done <- struct{}{} })
	})
	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("UDP close did not complete")
		}
	}
}
