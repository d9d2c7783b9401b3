package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "tcp", cfg.Transport.Kind)
	assert.True(t, cfg.TLS.UseSystemRoots())
	v, err := cfg.TLS.Version()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0303), v)
}

func TestParse(t *testing.T) {
	data := []byte(`
transport:
  kind: TLS
  host: example.com
  port: 443
tls:
  server_name: override.example.com
  min_version: "1.3"
  system_roots: false
log:
  level: debug
  protocol_log: /tmp/session.tlog
metrics:
  enabled: true
retry:
  enabled: true
  max_attempts: 5
  initial: 250ms
`)
	cfg, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, "tls", cfg.Transport.Kind)
	assert.Equal(t, "example.com", cfg.Transport.Host)
	assert.Equal(t, 443, cfg.Transport.Port)
	assert.Equal(t, "override.example.com", cfg.TLS.ServerName)
	assert.False(t, cfg.TLS.UseSystemRoots())
	v, err := cfg.TLS.Version()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0304), v)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format, "defaults survive overlay")
	assert.Equal(t, ":9090", cfg.Metrics.Addr)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Retry.Initial)
	assert.Equal(t, 60*time.Second, cfg.Retry.Max)
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name string
		data string
		want error
	}{
		{"Kind", "transport: {kind: quic}", ErrInvalidKind},
		{"Port", "transport: {port: 70000}", ErrInvalidPort},
		{"Version", "tls: {min_version: '1.1'}", ErrInvalidVersion},
		{"Level", "log: {level: loud}", ErrInvalidLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := Parse([]byte("transport: [1, 2"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scriptnet.yaml")
	require.NoError(t, os.WriteFile(path, []byte("transport:\n  kind: udp\n  port: 5683\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "udp", cfg.Transport.Kind)
	assert.Equal(t, 5683, cfg.Transport.Port)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
