package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/mash-protocol/scriptnet/pkg/cert"
	"github.com/mash-protocol/scriptnet/pkg/evloop"
	"github.com/mash-protocol/scriptnet/pkg/tlsengine"
	"github.com/mash-protocol/scriptnet/pkg/transport"
)

// startLoop runs an event loop in the background. The returned context is
// canceled on SIGINT or SIGTERM; the loop itself keeps running until
// shutdown is called so transports can still be destroyed.
func startLoop(parent context.Context) (l *evloop.Loop, ctx context.Context, shutdown func()) {
	loopCtx, cancelLoop := context.WithCancel(context.Background())
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)

	l = evloop.New(evloop.WithLogger(logger))
	go l.Run(loopCtx)

	return l, ctx, func() {
		stop()
		cancelLoop()
		<-l.Done()
	}
}

// transportOptions builds transport options from the loaded configuration.
func transportOptions() ([]transport.Option, error) {
	opts := []transport.Option{
		transport.WithSlog(logger),
		transport.WithMetrics(stats),
	}
	if protocolLogger != nil {
		opts = append(opts, transport.WithProtocolLogger(protocolLogger))
	}

	version, err := cfg.TLS.Version()
	if err != nil {
		return nil, err
	}
	tc := tlsengine.DefaultConfig()
	tc.MinVersion = version
	tc.SystemRoots = cfg.TLS.UseSystemRoots()

	if cfg.TLS.CertFile != "" || cfg.TLS.KeyFile != "" {
		pair, err := cert.LoadKeyPair(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}
		tc.Certificates = append(tc.Certificates, pair)
	}
	opts = append(opts, transport.WithTLSConfig(tc))

	if cfg.TLS.CAFile != "" {
		pem, err := os.ReadFile(cfg.TLS.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file: %w", err)
		}
		opts = append(opts, transport.WithCACerts(pem))
	}
	if cfg.TLS.ServerName != "" {
		opts = append(opts, transport.WithServerName(cfg.TLS.ServerName))
	}
	return opts, nil
}

// endpoint resolves host and port from positional args, falling back to
// the configuration.
func endpoint(args []string) (string, int, error) {
	host, port := cfg.Transport.Host, cfg.Transport.Port
	if len(args) > 0 {
		host = args[0]
	}
	if len(args) > 1 {
		p, err := parsePort(args[1], false)
		if err != nil {
			return "", 0, err
		}
		port = p
	}
	if port == 0 {
		return "", 0, fmt.Errorf("port is required")
	}
	return host, port, nil
}

// parsePort parses a port argument.
func parsePort(s string, allowZero bool) (int, error) {
	port, err := strconv.Atoi(s)
	if err != nil || port < 0 || port > 65535 || (port == 0 && !allowZero) {
		return 0, fmt.Errorf("invalid port: %s", s)
	}
	return port, nil
}
