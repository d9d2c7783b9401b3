package log

import (
	"errors"
	"io"
	"os"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Filter selects events from a capture. Zero-valued fields match every
// event.
type Filter struct {
	ConnectionID string

	// Connections restricts events to a set of connection IDs. A nil map
	// matches every connection, an empty one matches none.
	Connections map[string]bool

	Kind      string
	Host      string
	Direction *Direction
	Layer     *Layer
	Category  *Category

	// TimeStart is inclusive, TimeEnd exclusive.
	TimeStart *time.Time
	TimeEnd   *time.Time

	// Op keeps only error events whose failing operation is Op
	// ("getaddrinfo", "connect", "handshake", ...).
	Op string

	// Queued keeps only frames that did not fit the socket inline.
	Queued bool

	// VerifyFailed keeps only handshakes that completed with an advisory
	// certificate verification failure.
	VerifyFailed bool
}

// Matches reports whether event satisfies every criterion of f.
func (f *Filter) Matches(event Event) bool {
	return f.matchesConnection(event) &&
		f.matchesClass(event) &&
		f.matchesTime(event.Timestamp) &&
		f.matchesPayload(event)
}

func (f *Filter) matchesConnection(e Event) bool {
	if f.ConnectionID != "" && e.ConnectionID != f.ConnectionID {
		return false
	}
	if f.Connections != nil && !f.Connections[e.ConnectionID] {
		return false
	}
	return (f.Kind == "" || e.Kind == f.Kind) && (f.Host == "" || e.Host == f.Host)
}

func (f *Filter) matchesClass(e Event) bool {
	switch {
	case f.Direction != nil && e.Direction != *f.Direction:
		return false
	case f.Layer != nil && e.Layer != *f.Layer:
		return false
	case f.Category != nil && e.Category != *f.Category:
		return false
	}
	return true
}

func (f *Filter) matchesTime(ts time.Time) bool {
	if f.TimeStart != nil && ts.Before(*f.TimeStart) {
		return false
	}
	return f.TimeEnd == nil || ts.Before(*f.TimeEnd)
}

func (f *Filter) matchesPayload(e Event) bool {
	if f.Op != "" && (e.Error == nil || e.Error.Op != f.Op) {
		return false
	}
	if f.Queued && (e.Frame == nil || !e.Frame.Queued) {
		return false
	}
	if f.VerifyFailed && (e.Handshake == nil || e.Handshake.VerifyCode == 0) {
		return false
	}
	return true
}

// Reader streams events from a capture file.
type Reader struct {
	file    *os.File
	decoder *cbor.Decoder
	filter  Filter
}

// NewReader opens path for reading every event.
func NewReader(path string) (*Reader, error) {
	return NewFilteredReader(path, Filter{})
}

// NewFilteredReader opens path for reading the events that match filter.
func NewFilteredReader(path string, filter Filter) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{file: f, decoder: NewDecoder(f), filter: filter}, nil
}

// Next returns the next matching event, or io.EOF at the end of the file.
// A partially written trailing event yields a decode error.
func (r *Reader) Next() (Event, error) {
	for {
		var event Event
		if err := r.decoder.Decode(&event); err != nil {
			return Event{}, err
		}
		if r.filter.Matches(event) {
			return event, nil
		}
	}
}

// Each calls fn for every remaining matching event. It stops at the end
// of the file or at the first error from the file or from fn.
func (r *Reader) Each(fn func(Event) error) error {
	for {
		event, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(event); err != nil {
			return err
		}
	}
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}

// ScanConnections returns the IDs of connections that have at least one
// event matching filter. The result plugs into Filter.Connections to
// select whole sessions, e.g. every event of connections whose handshake
// failed verification.
func ScanConnections(path string, filter Filter) (map[string]bool, error) {
	r, err := NewFilteredReader(path, filter)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	ids := make(map[string]bool)
	err = r.Each(func(e Event) error {
		ids[e.ConnectionID] = true
		return nil
	})
	return ids, err
}
