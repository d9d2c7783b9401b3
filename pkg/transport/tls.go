package transport

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/mash-protocol/scriptnet/pkg/cert"
	"github.com/mash-protocol/scriptnet/pkg/evloop"
	"github.com/mash-protocol/scriptnet/pkg/log"
	"github.com/mash-protocol/scriptnet/pkg/tlsengine"
)

// TLS is a stream transport that runs a client TLS session over TCP.
type TLS struct {
	conn   *streamConn
	engine *tlsengine.Engine

	hostname  string
	port      int
	socketAt  time.Time
	connected bool
	inputDone bool
}

// NewTLS creates a TLS transport. No I/O happens until Connect.
func NewTLS(opts ...Option) *TLS {
	t := &TLS{conn: newStreamConn(KindTLS, newOptions(opts))}
	t.conn.onSocket = t.socketConnected
	t.conn.onRead = t.read
	t.conn.release = t.release
	return t
}

// Init binds the transport to loop and h and creates the TLS engine with
// the configured trust anchors.
func (t *TLS) Init(loop *evloop.Loop, h Handler) error {
	if t.engine != nil {
		return ErrAlreadyInitialized
	}
	engine, err := tlsengine.New(t.conn.opts.tls)
	if err != nil {
		return fmt.Errorf("tls engine: %w", err)
	}
	for _, pem := range t.conn.opts.caCerts {
		if err := engine.SetCACerts(pem); err != nil {
			engine.Destroy()
			return fmt.Errorf("trust anchors: %w", err)
		}
	}
	if err := t.conn.init(loop, h); err != nil {
		engine.Destroy()
		return err
	}
	t.engine = engine
	return nil
}

// SetCACerts adds PEM trust anchors. Only effective before Connect.
func (t *TLS) SetCACerts(pem []byte) error {
	if t.engine == nil {
		return ErrNotInitialized
	}
	return t.engine.SetCACerts(pem)
}

// Connect configures the engine as a client for host (or the server-name
// override), then resolves and connects like TCP. CONNECTED follows the
// completed handshake.
func (t *TLS) Connect(host string, port int) error {
	if err := t.conn.checkConnect(); err != nil {
		return err
	}
	name := t.conn.opts.serverName
	if name == "" {
		name = host
	}
	if err := t.engine.SetupClient(name); err != nil {
		return err
	}
	t.hostname = name
	t.port = port
	return t.conn.connect(host, port)
}

func (t *TLS) socketConnected() {
	t.socketAt = time.Now()
	t.advance()
}

// advance drives the handshake with the buffered input and sends whatever
// it produced.
func (t *TLS) advance() {
	status, err := t.engine.Handshake()
	if err != nil {
		t.alert()
		t.conn.fail("handshake", err)
		return
	}
	if !t.flush() {
		return
	}
	if status == tlsengine.HandshakeComplete {
		t.established()
	}
}

func (t *TLS) established() {
	code, reason := t.engine.VerifyResult()
	hs := &log.HandshakeEvent{
		ServerName:   t.hostname,
		VerifyCode:   code,
		VerifyReason: reason,
		Records:      t.engine.Records(),
		Duration:     time.Since(t.socketAt),
	}
	if cs, ok := t.engine.ConnectionState(); ok {
		hs.Version = tls.VersionName(cs.Version)
		hs.CipherSuite = tls.CipherSuiteName(cs.CipherSuite)
		hs.ALPN = cs.NegotiatedProtocol
	}
	t.conn.cap.handshake(hs)
	t.conn.opts.metrics.Handshake(t.conn.kind.String(), hs.Duration)
	t.conn.logger.Debug("handshake complete", "version", hs.Version, "cipher", hs.CipherSuite, "duration", hs.Duration)

	if code != 0 {
		vc := cert.VerifyCode(code)
		t.conn.opts.metrics.VerifyFailure(vc.String())
		t.conn.logger.Warn("certificate verification failed", "server_name", t.hostname, "code", vc.String(), "reason", reason)
	}

	t.connected = true
	t.conn.open(Event{Kind: EventConnected, Verify: reason})
}

func (t *TLS) read(data []byte, err error) {
	if err != nil {
		if !t.connected {
			t.conn.fail("read", err)
			return
		}
		t.endInput(err)
		return
	}

	t.conn.cap.frame(log.LayerSocket, log.DirectionIn, data, false)
	if err := t.engine.Push(data); err != nil {
		t.conn.fail("push", err)
		return
	}
	if !t.connected {
		t.advance()
		if !t.connected || t.conn.handler == nil {
			return
		}
	}
	t.drain()
}

// drain delivers all decrypted input. The engine is destroyed when the
// handler destroys the transport from inside OnInput.
func (t *TLS) drain() {
	kind := t.conn.kind.String()
	err := t.engine.Read(func(p []byte) {
		t.conn.opts.metrics.BytesIn(kind, len(p))
		t.conn.cap.frame(log.LayerTransport, log.DirectionIn, p, false)
		t.conn.input(p, nil)
	})
	if errors.Is(err, tlsengine.ErrClosed) {
		return
	}
	if !t.flush() {
		return
	}
	if err != nil {
		t.endInput(err)
	}
}

func (t *TLS) endInput(err error) {
	if t.inputDone {
		return
	}
	t.inputDone = true
	t.conn.input(nil, err)
}

// flush sends pending ciphertext. It returns false if the transport failed.
func (t *TLS) flush() bool {
	out := t.engine.Output()
	if len(out) == 0 {
		return true
	}
	st, err := t.conn.send(out)
	if err != nil {
		return false
	}
	t.conn.cap.frame(log.LayerSocket, log.DirectionOut, out, st == WriteQueued)
	return true
}

// alert writes the pending alert record only if the socket takes it inline.
// A queued alert would be cancelled by the close that follows.
func (t *TLS) alert() {
	out := t.engine.Output()
	if len(out) == 0 || t.conn.stream == nil {
		return
	}
	if n, err := t.conn.stream.TryWrite(out); err == nil && n > 0 {
		t.conn.cap.frame(log.LayerSocket, log.DirectionOut, out[:n], false)
	}
}

// Write encrypts data and sends the records like TCP.Write.
func (t *TLS) Write(data []byte) (WriteStatus, error) {
	if err := t.conn.writable(); err != nil {
		return WriteSent, err
	}
	if err := t.engine.Encode(data); err != nil {
		t.conn.fail("encode", err)
		return WriteSent, err
	}
	out := t.engine.Output()
	st, err := t.conn.send(out)
	if err != nil {
		return st, err
	}
	t.conn.cap.frame(log.LayerSocket, log.DirectionOut, out, st == WriteQueued)
	t.conn.wrote(data, st)
	return st, nil
}

// IsReady reports whether the ciphertext write queue is empty.
func (t *TLS) IsReady() bool {
	return t.conn.isReady()
}

// Destroy releases the TLS session, then closes the socket. Idempotent and
// safe to call from a callback.
func (t *TLS) Destroy() {
	t.conn.destroy()
}

func (t *TLS) release() {
	if t.engine != nil {
		t.engine.Destroy()
	}
}

// State returns the ready state.
func (t *TLS) State() ReadyState {
	return t.conn.state
}

// ConnectionID returns the unique id used in logs.
func (t *TLS) ConnectionID() string {
	return t.conn.id
}

// Hostname returns the name used for SNI and verification.
func (t *TLS) Hostname() string {
	return t.hostname
}

// Port returns the port passed to Connect.
func (t *TLS) Port() int {
	return t.port
}

// VerifyResult returns the advisory verification code and reason; see
// tlsengine.Engine.VerifyResult.
func (t *TLS) VerifyResult() (int, string) {
	if t.engine == nil {
		return int(cert.VerifyPending), "not initialized"
	}
	return t.engine.VerifyResult()
}

// ConnectionState returns the negotiated session parameters once OPEN.
func (t *TLS) ConnectionState() (tls.ConnectionState, bool) {
	if t.engine == nil || t.conn.state != StateOpen {
		return tls.ConnectionState{}, false
	}
	return t.engine.ConnectionState()
}

// LocalAddr returns the local socket address, or nil before connecting.
func (t *TLS) LocalAddr() net.Addr {
	return t.conn.localAddr()
}

// RemoteAddr returns the peer address, or nil before connecting.
func (t *TLS) RemoteAddr() net.Addr {
	return t.conn.remoteAddr()
}
