package cmd

import (
	"bytes"
	"crypto/tls"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mash-protocol/scriptnet/pkg/cert"
	"github.com/mash-protocol/scriptnet/pkg/config"
	"github.com/mash-protocol/scriptnet/pkg/connection"
	"github.com/mash-protocol/scriptnet/pkg/log"
)

// syncBuffer is a bytes.Buffer safe for use from the loop goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func resetFlags() {
	cfgFile, logLevel, logFormat, protocolLog, metricsAddr = "", "", "", "", ""
	connectTLSFlag, connectRetryFlag, connectInteractiveFlag = false, false, false
	connectServerNameFlag, connectCAFileFlag = "", ""
	connectMaxAttemptsFlag = 0
	udpCountFlag = 0
	udpWaitFlag = 500 * time.Millisecond
	udpBindFlag = ""
	gencertOutFlag = "."
	gencertCANameFlag = "scriptnet test CA"
}

func executeCommand(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	resetFlags()
	var out, errOut syncBuffer
	root := RootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	if cerr := closeAll(); err == nil {
		err = cerr
	}
	return out.String(), errOut.String(), err
}

// serveOnce accepts one connection on ln and answers want with reply
// before closing.
func serveOnce(t *testing.T, ln net.Listener, want, reply string) {
	t.Helper()
	t.Cleanup(func() { ln.Close() })
	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		buf := make([]byte, len(want))
		if _, err := io.ReadFull(c, buf); err != nil || string(buf) != want {
			return
		}
		c.Write([]byte(reply))
	}()
}

func TestConnectTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	serveOnce(t, ln, "hello", "world")
	port := ln.Addr().(*net.TCPAddr).Port

	out, status, err := executeCommand(t, "hello", "connect", "127.0.0.1", itoa(port))
	require.NoError(t, err)
	assert.Equal(t, "world", out)
	assert.Contains(t, status, "connected to 127.0.0.1")
	assert.Contains(t, status, "connection closed by peer")
}

func TestGencertAndConnectTLS(t *testing.T) {
	dir := t.TempDir()
	out, _, err := executeCommand(t, "", "gencert", "--out", dir)
	require.NoError(t, err)
	for _, name := range []string{"ca.pem", "ca-key.pem", "server.pem", "server-key.pem"} {
		assert.Contains(t, out, filepath.Join(dir, name))
		assert.FileExists(t, filepath.Join(dir, name))
	}

	pair, err := cert.LoadKeyPair(filepath.Join(dir, "server.pem"), filepath.Join(dir, "server-key.pem"))
	require.NoError(t, err)
	ln, err := tls.Listen("tcp", "127.0.0.1:0", &tls.Config{Certificates: []tls.Certificate{pair}})
	require.NoError(t, err)
	serveOnce(t, ln, "ping", "pong")
	port := ln.Addr().(*net.TCPAddr).Port

	capture := filepath.Join(dir, "session.tlog")
	out, status, err := executeCommand(t, "ping",
		"connect", "--tls", "--ca-file", filepath.Join(dir, "ca.pem"),
		"--protocol-log", capture,
		"127.0.0.1", itoa(port))
	require.NoError(t, err)
	assert.Equal(t, "pong", out)
	assert.Contains(t, status, "(tls)")
	assert.NotContains(t, status, "warning")

	reader, err := log.NewReader(capture)
	require.NoError(t, err)
	defer reader.Close()
	var handshakes int
	for {
		ev, err := reader.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		if ev.Handshake != nil {
			handshakes++
			assert.Zero(t, ev.Handshake.VerifyCode)
		}
	}
	assert.Equal(t, 1, handshakes)
}

func TestConnectRefused(t *testing.T) {
	port := closedPort(t)
	_, _, err := executeCommand(t, "", "connect", "127.0.0.1", itoa(port))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect")
}

func TestConnectRetryGivesUp(t *testing.T) {
	port := closedPort(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("retry:\n  initial: 10ms\n  max: 20ms\n"), 0644))

	_, status, err := executeCommand(t, "", "--config", path, "connect", "--retry", "--max-attempts", "2", "127.0.0.1", itoa(port))
	assert.ErrorIs(t, err, connection.ErrAttemptsExceeded)
	assert.Contains(t, status, "retry 1")
	assert.Contains(t, status, "retry 2")
}

func TestConnectArguments(t *testing.T) {
	_, _, err := executeCommand(t, "", "connect", "127.0.0.1")
	assert.ErrorContains(t, err, "port is required")

	_, _, err = executeCommand(t, "", "connect", "127.0.0.1", "http")
	assert.ErrorContains(t, err, "invalid port")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("transport:\n  kind: udp\n"), 0644))
	_, _, err = executeCommand(t, "", "--config", path, "connect", "127.0.0.1", "9")
	assert.ErrorContains(t, err, "connect supports tcp and tls")
}

func TestUDPSend(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { pc.Close() })
	go func() {
		buf := make([]byte, 1500)
		n, from, err := pc.ReadFrom(buf)
		if err != nil {
			return
		}
		pc.WriteTo(bytes.ToUpper(buf[:n]), from)
	}()
	port := pc.LocalAddr().(*net.UDPAddr).Port

	out, _, err := executeCommand(t, "", "udp", "send", "--wait", "1s", "127.0.0.1", itoa(port), "hello")
	require.NoError(t, err)
	assert.Equal(t, "HELLO", out)

	_, _, err = executeCommand(t, "", "udp", "send", "localhost", itoa(port), "hello")
	assert.ErrorContains(t, err, "failed to send")
}

func TestUDPListen(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	port := pc.LocalAddr().(*net.UDPAddr).Port
	pc.Close()

	type result struct {
		out, status string
		err         error
	}
	done := make(chan result, 1)
	go func() {
		out, status, err := executeCommand(t, "", "udp", "listen", "--count", "1", "127.0.0.1", itoa(port))
		done <- result{out, status, err}
	}()

	sender, err := net.Dial("udp", net.JoinHostPort("127.0.0.1", itoa(port)))
	require.NoError(t, err)
	defer sender.Close()

	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case r := <-done:
			require.NoError(t, r.err)
			assert.Equal(t, "datagram", r.out)
			assert.Contains(t, r.status, "listening on 127.0.0.1:"+itoa(port))
			return
		case <-tick.C:
			sender.Write([]byte("datagram"))
		case <-deadline:
			t.Fatal("listen did not return")
		}
	}
}

func TestRootConfigErrors(t *testing.T) {
	_, _, err := executeCommand(t, "", "--config", filepath.Join(t.TempDir(), "missing.yaml"), "gencert", "--out", t.TempDir())
	assert.ErrorContains(t, err, "failed to load config")

	_, _, err = executeCommand(t, "", "--log-format", "xml", "gencert", "--out", t.TempDir())
	assert.ErrorContains(t, err, "unknown log format")

	_, _, err = executeCommand(t, "", "--log-level", "loud", "gencert", "--out", t.TempDir())
	assert.ErrorIs(t, err, config.ErrInvalidLevel)
}

func TestProtocolLoggerSinks(t *testing.T) {
	t.Cleanup(func() { closeAll() })
	info := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelInfo}))
	debug := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
	dir := t.TempDir()

	pl, err := newProtocolLogger(info, "")
	require.NoError(t, err)
	assert.Nil(t, pl)

	pl, err = newProtocolLogger(debug, "")
	require.NoError(t, err)
	assert.IsType(t, &log.SlogAdapter{}, pl)

	pl, err = newProtocolLogger(info, filepath.Join(dir, "info.tlog"))
	require.NoError(t, err)
	assert.IsType(t, &log.FileLogger{}, pl)

	pl, err = newProtocolLogger(debug, filepath.Join(dir, "debug.tlog"))
	require.NoError(t, err)
	require.IsType(t, &log.MultiLogger{}, pl)
	assert.Equal(t, 2, pl.(*log.MultiLogger).Len())
}

func TestConnectDebugLogsCaptureEvents(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	serveOnce(t, ln, "hello", "world")
	port := ln.Addr().(*net.TCPAddr).Port
	capture := filepath.Join(t.TempDir(), "debug.tlog")

	out, status, err := executeCommand(t, "hello",
		"--log-level", "debug", "--protocol-log", capture,
		"connect", "127.0.0.1", itoa(port))
	require.NoError(t, err)
	assert.Equal(t, "world", out)
	assert.Contains(t, status, "msg=protocol")
	assert.Contains(t, status, "new_state=OPEN")

	reader, err := log.NewReader(capture)
	require.NoError(t, err)
	defer reader.Close()
	ev, err := reader.Next()
	require.NoError(t, err)
	assert.NotEmpty(t, ev.ConnectionID)
}

func TestParsePort(t *testing.T) {
	p, err := parsePort("443", false)
	require.NoError(t, err)
	assert.Equal(t, 443, p)

	p, err = parsePort("0", true)
	require.NoError(t, err)
	assert.Zero(t, p)

	for _, s := range []string{"0", "-1", "65536", "https"} {
		_, err := parsePort(s, false)
		assert.Error(t, err, s)
	}
}

func closedPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
