package log

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func createTestLogFile(t *testing.T, events []Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.tlog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create test log: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	logger.Close()
	return path
}

func readAllEvents(t *testing.T, path string, filter Filter) []Event {
	t.Helper()
	reader, err := NewFilteredReader(path, filter)
	if err != nil {
		t.Fatalf("NewFilteredReader failed: %v", err)
	}
	defer reader.Close()

	var events []Event
	for {
		event, err := reader.Next()
		if err == io.EOF {
			return events
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		events = append(events, event)
	}
}

func TestFileLoggerAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.tlog")

	for i, id := range []string{"first", "second"} {
		logger, err := NewFileLogger(path)
		if err != nil {
			t.Fatalf("NewFileLogger #%d failed: %v", i, err)
		}
		logger.Log(Event{Timestamp: time.Now(), ConnectionID: id})
		logger.Close()
	}

	events := readAllEvents(t, path, Filter{})
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].ConnectionID != "first" || events[1].ConnectionID != "second" {
		t.Errorf("events out of order: %q, %q", events[0].ConnectionID, events[1].ConnectionID)
	}
}

func TestFileLoggerThreadSafe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.tlog")
	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}

	const numGoroutines = 10
	const eventsPerGoroutine = 100

	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()
			for j := 0; j < eventsPerGoroutine; j++ {
				logger.Log(Event{
					Timestamp:    time.Now(),
					ConnectionID: "conn-" + string(rune('A'+id)),
					Category:     CategoryData,
				})
			}
		}(i)
	}
	wg.Wait()
	logger.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	decoder := NewDecoder(bytes.NewReader(data))
	count := 0
	for {
		var event Event
		if err := decoder.Decode(&event); err != nil {
			break
		}
		count++
	}
	if count != numGoroutines*eventsPerGoroutine {
		t.Errorf("event count: got %d, want %d", count, numGoroutines*eventsPerGoroutine)
	}
}

func TestFileLoggerClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.tlog")
	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}

	if err := logger.Close(); err != nil {
		t.Errorf("first Close failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}

	// Logging after close is ignored.
	logger.Log(Event{ConnectionID: "late"})
	if events := readAllEvents(t, path, Filter{}); len(events) != 0 {
		t.Errorf("got %d events after close, want 0", len(events))
	}
}

func TestReaderTruncatedFile(t *testing.T) {
	path := createTestLogFile(t, []Event{{Timestamp: time.Now(), ConnectionID: "whole"}})
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, append(data, data[:len(data)/2]...), 0644); err != nil {
		t.Fatal(err)
	}

	reader, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer reader.Close()

	if _, err := reader.Next(); err != nil {
		t.Fatalf("first Next failed: %v", err)
	}
	if _, err := reader.Next(); err == nil || err == io.EOF {
		t.Errorf("Next on truncated event = %v, want decode error", err)
	}
}

func TestReaderFilters(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	events := []Event{
		{Timestamp: base, ConnectionID: "a", Kind: "tcp", Host: "one.test", Direction: DirectionOut, Layer: LayerSocket, Category: CategoryData},
		{Timestamp: base.Add(time.Second), ConnectionID: "a", Kind: "tcp", Host: "one.test", Direction: DirectionOut, Layer: LayerTransport, Category: CategoryState},
		{Timestamp: base.Add(2 * time.Second), ConnectionID: "b", Kind: "tls", Host: "two.test", Direction: DirectionIn, Layer: LayerTLS, Category: CategoryHandshake},
		{Timestamp: base.Add(3 * time.Second), ConnectionID: "b", Kind: "tls", Host: "two.test", Direction: DirectionIn, Layer: LayerTransport, Category: CategoryData},
		{Timestamp: base.Add(4 * time.Second), ConnectionID: "c", Kind: "udp", Direction: DirectionOut, Layer: LayerSocket, Category: CategoryError},
	}
	path := createTestLogFile(t, events)

	in := DirectionIn
	transport := LayerTransport
	data := CategoryData
	start := base.Add(time.Second)
	end := base.Add(3 * time.Second)

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"All", Filter{}, []string{"a", "a", "b", "b", "c"}},
		{"ConnectionID", Filter{ConnectionID: "b"}, []string{"b", "b"}},
		{"Direction", Filter{Direction: &in}, []string{"b", "b"}},
		{"Layer", Filter{Layer: &transport}, []string{"a", "b"}},
		{"Category", Filter{Category: &data}, []string{"a", "b"}},
		{"TimeRange", Filter{TimeStart: &start, TimeEnd: &end}, []string{"a", "b"}},
		{"Kind", Filter{Kind: "udp"}, []string{"c"}},
		{"Host", Filter{Host: "one.test"}, []string{"a", "a"}},
		{"Combined", Filter{Kind: "tls", Category: &data}, []string{"b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := readAllEvents(t, path, tt.filter)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d events, want %d", len(got), len(tt.want))
			}
			for i, e := range got {
				if e.ConnectionID != tt.want[i] {
					t.Errorf("event %d: got %q, want %q", i, e.ConnectionID, tt.want[i])
				}
			}
		})
	}
}

func TestReaderPayloadFilters(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	queued := NewFrameEvent([]byte("tail"))
	queued.Queued = true
	events := []Event{
		{Timestamp: base, ConnectionID: "ok", Handshake: &HandshakeEvent{Version: "TLS 1.3"}},
		{Timestamp: base, ConnectionID: "bad", Handshake: &HandshakeEvent{Version: "TLS 1.3", VerifyCode: 62, VerifyReason: "hostname mismatch"}},
		{Timestamp: base, ConnectionID: "bad", Frame: NewFrameEvent([]byte("head"))},
		{Timestamp: base, ConnectionID: "bad", Frame: queued},
		{Timestamp: base, ConnectionID: "gone", Error: &ErrorEventData{Layer: LayerTransport, Op: "getaddrinfo", Message: "no such host"}},
		{Timestamp: base, ConnectionID: "ok", Error: &ErrorEventData{Layer: LayerSocket, Op: "read", Message: "reset"}},
	}
	path := createTestLogFile(t, events)

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"VerifyFailed", Filter{VerifyFailed: true}, []string{"bad"}},
		{"Queued", Filter{Queued: true}, []string{"bad"}},
		{"Op", Filter{Op: "getaddrinfo"}, []string{"gone"}},
		{"Connections", Filter{Connections: map[string]bool{"ok": true, "gone": true}}, []string{"ok", "gone", "ok"}},
		{"NoConnections", Filter{Connections: map[string]bool{}}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := readAllEvents(t, path, tt.filter)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d events, want %d", len(got), len(tt.want))
			}
			for i, e := range got {
				if e.ConnectionID != tt.want[i] {
					t.Errorf("event %d: got %q, want %q", i, e.ConnectionID, tt.want[i])
				}
			}
		})
	}
}

func TestScanConnections(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	path := createTestLogFile(t, []Event{
		{Timestamp: base, ConnectionID: "a", Handshake: &HandshakeEvent{VerifyCode: 2}},
		{Timestamp: base, ConnectionID: "b", Handshake: &HandshakeEvent{}},
		{Timestamp: base, ConnectionID: "a", Frame: NewFrameEvent([]byte("x"))},
		{Timestamp: base, ConnectionID: "c", Error: &ErrorEventData{Op: "connect"}},
	})

	ids, err := ScanConnections(path, Filter{VerifyFailed: true})
	if err != nil {
		t.Fatalf("ScanConnections failed: %v", err)
	}
	if len(ids) != 1 || !ids["a"] {
		t.Errorf("ids = %v, want only a", ids)
	}

	// The scan result selects whole sessions.
	got := readAllEvents(t, path, Filter{Connections: ids})
	if len(got) != 2 {
		t.Errorf("got %d events for connection a, want 2", len(got))
	}

	if _, err := ScanConnections(filepath.Join(t.TempDir(), "missing.tlog"), Filter{}); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestReaderEachStopsOnError(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	path := createTestLogFile(t, []Event{
		{Timestamp: base, ConnectionID: "1"},
		{Timestamp: base, ConnectionID: "2"},
		{Timestamp: base, ConnectionID: "3"},
	})
	r, err := NewReader(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	stop := errors.New("stop")
	var seen int
	err = r.Each(func(e Event) error {
		seen++
		if e.ConnectionID == "2" {
			return stop
		}
		return nil
	})
	if !errors.Is(err, stop) || seen != 2 {
		t.Errorf("Each = %v after %d events, want stop after 2", err, seen)
	}
}

func TestReaderMissingFile(t *testing.T) {
	if _, err := NewReader(filepath.Join(t.TempDir(), "missing.tlog")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestFileLoggerCreatesDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "session.tlog")
	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	defer logger.Close()

	logger.Log(Event{ConnectionID: "one"})
	logger.Log(Event{ConnectionID: "two"})

	if logger.Path() != path {
		t.Errorf("Path = %q, want %q", logger.Path(), path)
	}
	if logger.Written() != 2 {
		t.Errorf("Written = %d, want 2", logger.Written())
	}
}

func TestOrNoop(t *testing.T) {
	if _, ok := OrNoop(nil).(NoopLogger); !ok {
		t.Error("OrNoop(nil) should return NoopLogger")
	}
	m := NewMultiLogger()
	if OrNoop(m) != Logger(m) {
		t.Error("OrNoop should return a non-nil logger unchanged")
	}
}
