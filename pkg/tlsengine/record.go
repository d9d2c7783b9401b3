package tlsengine

import (
	"fmt"

	"golang.org/x/crypto/cryptobyte"
)

// RecordHeaderLen is the size of a TLS record header.
const RecordHeaderLen = 5

// Record content types.
const (
	RecordChangeCipherSpec uint8 = 20
	RecordAlert            uint8 = 21
	RecordHandshake        uint8 = 22
	RecordApplicationData  uint8 = 23
)

// Record describes one complete inbound TLS record.
type Record struct {
	Type    uint8
	Version uint16
	Length  int
}

// TypeName returns a short name for the record content type.
func (r Record) TypeName() string {
	switch r.Type {
	case RecordChangeCipherSpec:
		return "change_cipher_spec"
	case RecordAlert:
		return "alert"
	case RecordHandshake:
		return "handshake"
	case RecordApplicationData:
		return "application_data"
	default:
		return fmt.Sprintf("type(%d)", r.Type)
	}
}

// recordScanner follows record boundaries across arbitrarily split input.
type recordScanner struct {
	header    []byte
	current   Record
	remaining int
	inBody    bool
	count     int
	onRecord  func(Record)
}

// scan consumes p, reporting every record whose last byte is in p.
func (s *recordScanner) scan(p []byte) {
	for len(p) > 0 {
		if !s.inBody {
			need := RecordHeaderLen - len(s.header)
			take := min(need, len(p))
			s.header = append(s.header, p[:take]...)
			p = p[take:]
			if len(s.header) < RecordHeaderLen {
				return
			}
			s.current = parseRecordHeader(s.header)
			s.header = s.header[:0]
			s.remaining = s.current.Length
			s.inBody = true
		}

		take := min(s.remaining, len(p))
		s.remaining -= take
		p = p[take:]
		if s.remaining == 0 {
			s.inBody = false
			s.count++
			if s.onRecord != nil {
				s.onRecord(s.current)
			}
		}
	}
}

func parseRecordHeader(b []byte) Record {
	var (
		typ     uint8
		version uint16
		length  uint16
	)
	in := cryptobyte.String(b)
	if !in.ReadUint8(&typ) || !in.ReadUint16(&version) || !in.ReadUint16(&length) {
		return Record{}
	}
	return Record{Type: typ, Version: version, Length: int(length)}
}
