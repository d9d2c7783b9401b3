package transport

import (
	"log/slog"

	"github.com/mash-protocol/scriptnet/pkg/log"
	"github.com/mash-protocol/scriptnet/pkg/metrics"
	"github.com/mash-protocol/scriptnet/pkg/tlsengine"
)

// Option configures a transport at construction.
type Option func(*options)

type options struct {
	tls        tlsengine.Config
	serverName string
	caCerts    [][]byte

	logger         *slog.Logger
	protocolLogger log.Logger
	metrics        *metrics.Metrics
}

func newOptions(opts []Option) *options {
	o := &options{
		tls:    tlsengine.DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithTLSConfig sets the TLS engine configuration. Ignored by TCP and UDP.
func WithTLSConfig(cfg tlsengine.Config) Option {
	return func(o *options) { o.tls = cfg }
}

// WithServerName overrides the name sent as SNI and verified against the
// peer certificate. By default the Connect host is used.
func WithServerName(name string) Option {
	return func(o *options) { o.serverName = name }
}

// WithCACerts adds PEM trust anchors. May be given several times.
func WithCACerts(pem []byte) Option {
	return func(o *options) { o.caCerts = append(o.caCerts, pem) }
}

// WithSlog sets the operational logger.
func WithSlog(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithProtocolLogger captures state changes, handshakes, frames and errors.
func WithProtocolLogger(logger log.Logger) Option {
	return func(o *options) { o.protocolLogger = logger }
}

// WithMetrics records transport metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}
