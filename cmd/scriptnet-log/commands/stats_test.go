package commands

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/mash-protocol/scriptnet/pkg/log"
)

func TestStatsCountsGroups(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	path := createTestLogFile(t, sampleSession(ts))

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	output := buf.String()

	for _, want := range []string{"Total Events: 4", "TRANSPORT", "TLS", "HANDSHAKE", "STATE", "ERROR", "Errors: 1"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output:\n%s", want, output)
		}
	}
}

func TestStatsConnections(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 0, 0, 0, time.UTC)
	events := append(sampleSession(ts),
		log.Event{
			Timestamp:    ts.Add(time.Second),
			ConnectionID: "ffff0000-1111",
			Kind:         "tcp",
			Host:         "localhost",
			Direction:    log.DirectionIn,
			Layer:        log.LayerTransport,
			Category:     log.CategoryData,
			Frame:        log.NewFrameEvent(make([]byte, 100)),
		},
		log.Event{
			Timestamp:    ts.Add(time.Second),
			ConnectionID: "ffff0000-1111",
			Kind:         "tcp",
			Direction:    log.DirectionIn,
			Layer:        log.LayerSocket,
			Category:     log.CategoryData,
			Frame:        log.NewFrameEvent(make([]byte, 100)),
		},
	)
	path := createTestLogFile(t, events)

	stats, err := collectStats(path)
	if err != nil {
		t.Fatalf("collectStats failed: %v", err)
	}
	if len(stats.Connections) != 2 {
		t.Fatalf("expected 2 connections, got %d", len(stats.Connections))
	}

	tlsConn := stats.Connections["abc12345-0000"]
	if tlsConn.Kind != "tls" || tlsConn.Host != "example.com" {
		t.Errorf("unexpected tls connection: %+v", tlsConn)
	}
	if tlsConn.BytesOut != 18 || tlsConn.Handshakes != 1 || tlsConn.VerifyCode != 62 {
		t.Errorf("unexpected tls counters: %+v", tlsConn)
	}
	if tlsConn.LastState != "OPEN" || tlsConn.Errors != 1 {
		t.Errorf("unexpected tls state: %+v", tlsConn)
	}

	tcpConn := stats.Connections["ffff0000-1111"]
	if tcpConn.BytesIn != 100 {
		t.Errorf("expected 100 bytes in (socket frames not counted), got %d", tcpConn.BytesIn)
	}

	var buf bytes.Buffer
	printStats(&buf, stats)
	output := buf.String()
	for _, want := range []string{"Connections: 2", "abc12345", "ffff0000", "example.com", "code 62"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output:\n%s", want, output)
		}
	}
}

func TestStatsEmptyFile(t *testing.T) {
	path := createTestLogFile(t, nil)

	var buf bytes.Buffer
	if err := RunStats(path, &buf); err != nil {
		t.Fatalf("RunStats failed: %v", err)
	}
	if !strings.Contains(buf.String(), "Total Events: 0") {
		t.Errorf("unexpected output:\n%s", buf.String())
	}
	if !strings.Contains(buf.String(), "Connections: 0") {
		t.Errorf("unexpected output:\n%s", buf.String())
	}
}
