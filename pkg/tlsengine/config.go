package tlsengine

import (
	"crypto/tls"
	"errors"
)

// DefaultReadBufferSize is the largest plaintext chunk handed to a Read
// callback.
const DefaultReadBufferSize = 4096

// Config holds the settings an Engine is created with.
type Config struct {
	// Certificates are presented to the peer. Required for server engines,
	// optional for clients.
	Certificates []tls.Certificate

	// MinVersion and MaxVersion bound the negotiated protocol version.
	// Zero MinVersion means TLS 1.2; zero MaxVersion means the highest
	// version crypto/tls supports.
	MinVersion uint16
	MaxVersion uint16

	// NextProtos is the ALPN protocol list, in preference order.
	NextProtos []string

	// SystemRoots seeds the trust store with the host's root certificates.
	SystemRoots bool

	// CACertPEM holds additional PEM trust anchors. Equivalent to a
	// SetCACerts call before the handshake.
	CACertPEM []byte

	// ReadBufferSize caps the plaintext chunk size delivered by Read.
	ReadBufferSize int

	// RecordHook, when set, is called for every complete inbound record.
	RecordHook func(Record)
}

// DefaultConfig returns the configuration used by transports that were not
// given one.
func DefaultConfig() Config {
	return Config{
		MinVersion:     tls.VersionTLS12,
		SystemRoots:    true,
		ReadBufferSize: DefaultReadBufferSize,
	}
}

func (c *Config) applyDefaults() {
	if c.MinVersion == 0 {
		c.MinVersion = tls.VersionTLS12
	}
	if c.ReadBufferSize <= 0 {
		c.ReadBufferSize = DefaultReadBufferSize
	}
}

// newClientTLSConfig creates the crypto/tls configuration for a client
// engine. Chain and host name checks run in verify and never fail the
// handshake.
func newClientTLSConfig(cfg *Config, serverName string, verify func(tls.ConnectionState) error) *tls.Config {
	return &tls.Config{
		MinVersion: cfg.MinVersion,
		MaxVersion: cfg.MaxVersion,

		// Client certificates, if any
		Certificates: cfg.Certificates,

		// SNI; crypto/tls omits it for IP literals
		ServerName: serverName,

		NextProtos: cfg.NextProtos,

		// Curve preferences for key exchange
		CurvePreferences: []tls.CurveID{
			tls.X25519,
			tls.CurveP256,
		},

		// Session tickets disabled (no resumption)
		SessionTicketsDisabled: true,

		// Verification is advisory and done by the engine
		InsecureSkipVerify: true,
		VerifyConnection:   verify,
	}
}

// newServerTLSConfig creates the crypto/tls configuration for a server
// engine.
func newServerTLSConfig(cfg *Config) (*tls.Config, error) {
	if len(cfg.Certificates) == 0 {
		return nil, errors.New("server certificate is required")
	}

	return &tls.Config{
		MinVersion: cfg.MinVersion,
		MaxVersion: cfg.MaxVersion,

		Certificates: cfg.Certificates,

		NextProtos: cfg.NextProtos,

		CurvePreferences: []tls.CurveID{
			tls.X25519,
			tls.CurveP256,
		},

		SessionTicketsDisabled: true,
	}, nil
}
