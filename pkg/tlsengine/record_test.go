package tlsengine

import (
	"testing"
)

func TestRecordScanner(t *testing.T) {
	stream := []byte{
		22, 3, 3, 0, 2, 'a', 'b', // handshake, 2 bytes
		23, 3, 3, 0, 0, // empty application data
		21, 3, 3, 0, 3, 1, 2, 3, // alert, 3 bytes
	}

	for _, chunk := range []int{1, 2, 3, 5, len(stream)} {
		var got []Record
		s := recordScanner{onRecord: func(r Record) { got = append(got, r) }}
		for off := 0; off < len(stream); off += chunk {
			s.scan(stream[off:min(off+chunk, len(stream))])
		}

		if s.count != 3 || len(got) != 3 {
			t.Fatalf("chunk %d: count=%d records=%d, want 3", chunk, s.count, len(got))
		}
		want := []Record{
			{Type: RecordHandshake, Version: 0x0303, Length: 2},
			{Type: RecordApplicationData, Version: 0x0303, Length: 0},
			{Type: RecordAlert, Version: 0x0303, Length: 3},
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("chunk %d: record %d = %+v, want %+v", chunk, i, got[i], want[i])
			}
		}
	}
}

func TestRecordScannerPartial(t *testing.T) {
	var s recordScanner
	s.scan([]byte{23, 3, 3})
	if s.count != 0 {
		t.Fatalf("count after partial header = %d", s.count)
	}
	s.scan([]byte{0, 4, 'd', 'a', 't'})
	if s.count != 0 {
		t.Fatalf("count after partial body = %d", s.count)
	}
	s.scan([]byte{'a'})
	if s.count != 1 {
		t.Fatalf("count after full record = %d, want 1", s.count)
	}
}

func TestRecordTypeName(t *testing.T) {
	if got := (Record{Type: 99}).TypeName(); got != "type(99)" {
		t.Errorf("TypeName = %q", got)
	}
}
