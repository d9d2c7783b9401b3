package tlsengine

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"time"

	"github.com/mash-protocol/scriptnet/pkg/cert"
)

// Engine errors.
var (
	ErrNotSetup         = errors.New("engine not set up")
	ErrAlreadySetup     = errors.New("engine already set up")
	ErrHandshakeStarted = errors.New("handshake already started")
	ErrNotReady         = errors.New("handshake not complete")
	ErrClosed           = errors.New("engine closed")
	ErrHandshake        = errors.New("handshake failed")
)

// State is the engine lifecycle state.
type State uint8

const (
	StateInit State = iota
	StateHandshaking
	StateIO
	StateClosing
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateHandshaking:
		return "HANDSHAKING"
	case StateIO:
		return "IO"
	case StateClosing:
		return "CLOSING"
	default:
		return "UNKNOWN"
	}
}

// HandshakeStatus is the non-error outcome of a Handshake call.
type HandshakeStatus int

const (
	HandshakeWantInput HandshakeStatus = 0
	HandshakeComplete  HandshakeStatus = 1
)

// Role selects the side of the handshake.
type Role uint8

const (
	RoleNone Role = iota
	RoleClient
	RoleServer
)

// Engine is a TLS session driven entirely by its owner.
//
// Engine is not safe for concurrent use. All methods must be called from one
// goroutine at a time, typically the event loop goroutine.
type Engine struct {
	cfg   Config
	state State
	role  Role

	hostname string
	anchors  []*x509.Certificate

	in    Cursor
	out   []byte
	plain []byte

	conn   *tls.Conn
	resume chan struct{}
	yield  chan struct{}

	started  bool
	finished bool
	closed   bool

	hsDone  bool
	hsErr   error
	readErr error
	failed  error

	verified  bool
	verifyErr error

	records recordScanner
}

// New creates an engine in INIT state.
func New(cfg Config) (*Engine, error) {
	cfg.applyDefaults()
	e := &Engine{
		cfg:    cfg,
		resume: make(chan struct{}),
		yield:  make(chan struct{}),
	}
	e.records.onRecord = cfg.RecordHook
	if len(cfg.CACertPEM) > 0 {
		if err := e.SetCACerts(cfg.CACertPEM); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// SetupClient prepares a client session. hostname is sent as SNI and checked
// against the peer certificate; an empty hostname skips the name check.
func (e *Engine) SetupClient(hostname string) error {
	if err := e.checkSetup(); err != nil {
		return err
	}
	e.hostname = hostname
	e.role = RoleClient
	e.conn = tls.Client(&pipeConn{e: e}, newClientTLSConfig(&e.cfg, hostname, e.verifyConnection))
	e.state = StateHandshaking
	return nil
}

// SetupServer prepares a server session presenting cfg.Certificates.
func (e *Engine) SetupServer() error {
	if err := e.checkSetup(); err != nil {
		return err
	}
	tlsConfig, err := newServerTLSConfig(&e.cfg)
	if err != nil {
		return err
	}
	e.role = RoleServer
	e.conn = tls.Server(&pipeConn{e: e}, tlsConfig)
	e.state = StateHandshaking
	return nil
}

func (e *Engine) checkSetup() error {
	switch e.state {
	case StateInit:
		return nil
	case StateClosing:
		return ErrClosed
	default:
		return ErrAlreadySetup
	}
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	return e.state
}

// Role returns the handshake side chosen at setup.
func (e *Engine) Role() Role {
	return e.role
}

// Hostname returns the name passed to SetupClient.
func (e *Engine) Hostname() string {
	return e.hostname
}

// Push appends ciphertext received from the peer. It never decrypts; the
// bytes are consumed by the next Handshake or Read.
func (e *Engine) Push(data []byte) error {
	switch e.state {
	case StateInit:
		return ErrNotSetup
	case StateClosing:
		return ErrClosed
	}
	if err := e.in.Append(data); err != nil {
		return err
	}
	e.records.scan(data)
	return nil
}

// Handshake advances the handshake with the buffered input. It returns
// HandshakeComplete once the session is established and on every later
// call, HandshakeWantInput while more peer data is needed, or an error
// wrapping ErrHandshake on a fatal failure. Produced handshake messages are
// available through Output.
func (e *Engine) Handshake() (HandshakeStatus, error) {
	switch e.state {
	case StateInit:
		return HandshakeWantInput, ErrNotSetup
	case StateClosing:
		return HandshakeWantInput, ErrClosed
	case StateIO:
		return HandshakeComplete, nil
	}
	if e.failed != nil {
		return HandshakeWantInput, e.failed
	}

	e.step()

	if e.hsDone {
		e.state = StateIO
		return HandshakeComplete, nil
	}
	if e.finished {
		e.failed = fmt.Errorf("%w: %w", ErrHandshake, e.hsErr)
		return HandshakeWantInput, e.failed
	}
	return HandshakeWantInput, nil
}

// Read decrypts all complete records in the input buffer and passes the
// plaintext to fn in chunks of at most Config.ReadBufferSize bytes. fn may
// keep the slices. A record whose tail has not arrived stays buffered.
//
// Once the peer closed the session (io.EOF) or sent a fatal alert, Read
// returns that error after delivering any remaining plaintext.
func (e *Engine) Read(fn func([]byte)) error {
	switch e.state {
	case StateInit, StateHandshaking:
		return ErrNotReady
	case StateClosing:
		return ErrClosed
	}

	if e.in.Len() > 0 {
		e.step()
	}

	for len(e.plain) > 0 {
		n := min(len(e.plain), e.cfg.ReadBufferSize)
		chunk := e.plain[:n:n]
		e.plain = e.plain[n:]
		fn(chunk)
		if e.state == StateClosing {
			return ErrClosed
		}
	}
	e.plain = nil
	return e.readErr
}

// Encode encrypts plaintext and appends the resulting records to the
// output buffer. Large inputs are split into several records.
func (e *Engine) Encode(plaintext []byte) error {
	switch e.state {
	case StateInit, StateHandshaking:
		return ErrNotReady
	case StateClosing:
		return ErrClosed
	}
	if len(plaintext) == 0 {
		return nil
	}
	if _, err := e.conn.Write(plaintext); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// CloseNotify appends a close_notify alert to the output buffer. The peer's
// Read then reports io.EOF.
func (e *Engine) CloseNotify() error {
	switch e.state {
	case StateInit, StateHandshaking:
		return ErrNotReady
	case StateClosing:
		return ErrClosed
	}
	return e.conn.CloseWrite()
}

// Output returns the ciphertext produced since the last call and clears it.
func (e *Engine) Output() []byte {
	out := e.out
	e.out = nil
	return out
}

// TakeOutput is an alias for Output.
func (e *Engine) TakeOutput() []byte {
	return e.Output()
}

// Pending returns the number of ciphertext bytes waiting in the output
// buffer.
func (e *Engine) Pending() int {
	return len(e.out)
}

// Buffered returns the number of ciphertext bytes pushed but not yet
// consumed by the session.
func (e *Engine) Buffered() int {
	return e.in.Len()
}

// Records returns the number of complete inbound TLS records pushed so far.
func (e *Engine) Records() int {
	return e.records.count
}

// SetCACerts adds the certificates of a PEM bundle to the trust anchors.
// Calls accumulate. A trailing NUL terminator is ignored. Anchors can only
// be added before the handshake starts.
func (e *Engine) SetCACerts(pemData []byte) error {
	if e.state == StateClosing {
		return ErrClosed
	}
	if e.started {
		return ErrHandshakeStarted
	}
	certs, err := cert.DecodeCertsPEM(pemData)
	if err != nil {
		return err
	}
	e.anchors = append(e.anchors, certs...)
	return nil
}

// VerifyResult reports the advisory verification outcome: 0 when the peer
// chain and host name were accepted, otherwise a cert.VerifyCode value and
// a human-readable reason. Server engines, which do not verify their peer,
// always report 0.
func (e *Engine) VerifyResult() (int, string) {
	if e.role != RoleClient {
		return 0, ""
	}
	if !e.verified {
		return int(cert.VerifyPending), "verification pending"
	}
	if e.verifyErr == nil {
		return 0, ""
	}
	return int(cert.Classify(e.verifyErr)), e.verifyErr.Error()
}

// VerifyError returns the verification failure, or nil.
func (e *Engine) VerifyError() error {
	return e.verifyErr
}

// ConnectionState returns the negotiated session parameters. ok is false
// until the handshake completed.
func (e *Engine) ConnectionState() (cs tls.ConnectionState, ok bool) {
	if e.state != StateIO {
		return tls.ConnectionState{}, false
	}
	return e.conn.ConnectionState(), true
}

// Destroy releases the session. Safe in any state, including before setup,
// and idempotent.
func (e *Engine) Destroy() {
	if e.state == StateClosing {
		return
	}
	e.state = StateClosing
	if e.started && !e.finished {
		e.closed = true
		e.step()
	}
	e.in.Reset()
	e.out = nil
	e.plain = nil
}

// step runs the session goroutine until it needs more input or exits.
func (e *Engine) step() {
	if !e.started {
		e.started = true
		go e.run()
	}
	if e.finished {
		return
	}
	e.resume <- struct{}{}
	<-e.yield
}

// run is the session goroutine.
func (e *Engine) run() {
	<-e.resume
	defer func() {
		e.finished = true
		e.yield <- struct{}{}
	}()

	if err := e.conn.Handshake(); err != nil {
		e.hsErr = err
		return
	}
	e.hsDone = true

	buf := make([]byte, e.cfg.ReadBufferSize)
	for {
		n, err := e.conn.Read(buf)
		if n > 0 {
			e.plain = append(e.plain, buf[:n]...)
		}
		if err != nil {
			e.readErr = err
			return
		}
	}
}

func (e *Engine) verifyConnection(cs tls.ConnectionState) error {
	e.verifyErr = cert.VerifyPeer(cs.PeerCertificates, e.trustPool(), e.hostname, time.Now())
	e.verified = true
	return nil
}

func (e *Engine) trustPool() *x509.CertPool {
	var pool *x509.CertPool
	if e.cfg.SystemRoots {
		if sys, err := x509.SystemCertPool(); err == nil {
			pool = sys
		}
	}
	if pool == nil {
		pool = x509.NewCertPool()
	}
	for _, c := range e.anchors {
		pool.AddCert(c)
	}
	return pool
}
