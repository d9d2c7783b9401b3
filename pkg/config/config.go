// Package config loads the YAML configuration used by the scriptnet CLI.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config errors.
var (
	ErrInvalidKind    = errors.New("invalid transport kind")
	ErrInvalidPort    = errors.New("invalid port")
	ErrInvalidVersion = errors.New("invalid TLS version")
	ErrInvalidLevel   = errors.New("invalid log level")
)

// Config is the top-level configuration.
type Config struct {
	Transport TransportConfig `yaml:"transport"`
	TLS       TLSConfig       `yaml:"tls"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Retry     RetryConfig     `yaml:"retry"`
}

// TransportConfig selects the transport and the remote endpoint.
type TransportConfig struct {
	Kind      string `yaml:"kind"` // tcp, tls or udp
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	LocalAddr string `yaml:"local_addr"` // UDP bind address
}

// TLSConfig configures the TLS transport.
type TLSConfig struct {
	ServerName  string `yaml:"server_name"`
	CAFile      string `yaml:"ca_file"`
	CertFile    string `yaml:"cert_file"`
	KeyFile     string `yaml:"key_file"`
	MinVersion  string `yaml:"min_version"` // "1.2" or "1.3"
	SystemRoots *bool  `yaml:"system_roots"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level       string `yaml:"level"`  // debug, info, warn, error
	Format      string `yaml:"format"` // text or json
	ProtocolLog string `yaml:"protocol_log"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// RetryConfig configures reconnect behavior.
type RetryConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxAttempts int           `yaml:"max_attempts"`
	Initial     time.Duration `yaml:"initial"`
	Max         time.Duration `yaml:"max"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Transport: TransportConfig{
			Kind: "tcp",
			Host: "localhost",
		},
		TLS: TLSConfig{
			MinVersion: "1.2",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Addr: ":9090",
		},
		Retry: RetryConfig{
			Initial: time.Second,
			Max:     60 * time.Second,
		},
	}
}

// Load reads path and overlays it on Default.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML data on top of Default and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field values. A zero port is allowed so the CLI can take
// it from the command line.
func (c *Config) Validate() error {
	c.Transport.Kind = strings.ToLower(c.Transport.Kind)
	switch c.Transport.Kind {
	case "tcp", "tls", "udp":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidKind, c.Transport.Kind)
	}
	if c.Transport.Port < 0 || c.Transport.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.Transport.Port)
	}
	if _, err := c.TLS.Version(); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLevel, c.Log.Level)
	}
	return nil
}

// Version maps MinVersion to the crypto/tls constant value.
func (t TLSConfig) Version() (uint16, error) {
	switch t.MinVersion {
	case "", "1.2":
		return 0x0303, nil
	case "1.3":
		return 0x0304, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidVersion, t.MinVersion)
	}
}

// UseSystemRoots reports whether system trust roots are consulted. Unset
// means true.
func (t TLSConfig) UseSystemRoots() bool {
	return t.SystemRoots == nil || *t.SystemRoots
}
