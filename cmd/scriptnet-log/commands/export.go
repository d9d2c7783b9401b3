package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/mash-protocol/scriptnet/pkg/log"
)

// ExportOptions configures RunExport. Select narrows the exported events
// the same way the filter command does; its Output field is ignored.
type ExportOptions struct {
	Format string
	Output string
	Select FilterOptions
}

// column is one CSV field derived from an event.
type column struct {
	name  string
	value func(log.Event) string
}

var csvColumns = []column{
	{"timestamp", func(e log.Event) string { return e.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z") }},
	{"connection_id", func(e log.Event) string { return e.ConnectionID }},
	{"kind", func(e log.Event) string { return e.Kind }},
	{"direction", func(e log.Event) string { return e.Direction.String() }},
	{"layer", func(e log.Event) string { return e.Layer.String() }},
	{"category", func(e log.Event) string { return e.Category.String() }},
	{"host", func(e log.Event) string { return e.Host }},
	{"remote_addr", func(e log.Event) string { return e.RemoteAddr }},
	{"type", eventType},
	{"size", func(e log.Event) string {
		if e.Frame == nil {
			return ""
		}
		return strconv.Itoa(e.Frame.Size)
	}},
	{"detail", eventDetail},
	{"queued", func(e log.Event) string {
		if e.Frame == nil {
			return ""
		}
		return strconv.FormatBool(e.Frame.Queued)
	}},
	{"verify_code", func(e log.Event) string {
		if e.Handshake == nil {
			return ""
		}
		return strconv.Itoa(e.Handshake.VerifyCode)
	}},
}

func eventDetail(e log.Event) string {
	switch {
	case e.StateChange != nil:
		return e.StateChange.NewState
	case e.Handshake != nil:
		if e.Handshake.VerifyCode != 0 {
			return e.Handshake.Version + "; " + e.Handshake.VerifyReason
		}
		return e.Handshake.Version
	case e.Error != nil:
		return e.Error.Op + ": " + e.Error.Message
	}
	return ""
}

// RunExport writes the selected events of path as JSON lines or CSV to
// opts.Output, or to stdout when it is empty.
func RunExport(path string, opts ExportOptions) error {
	var write func(io.Writer, *log.Reader) error
	switch opts.Format {
	case "jsonl":
		write = exportJSONL
	case "csv":
		write = exportCSV
	default:
		return fmt.Errorf("unknown format: %s (supported: jsonl, csv)", opts.Format)
	}

	filter, err := buildFilter(path, opts.Select)
	if err != nil {
		return err
	}
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	if opts.Output == "" {
		return write(os.Stdout, reader)
	}
	f, err := os.Create(opts.Output)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := write(f, reader); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func exportJSONL(w io.Writer, reader *log.Reader) error {
	enc := json.NewEncoder(w)
	return reader.Each(func(e log.Event) error {
		if err := enc.Encode(e); err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
		return nil
	})
}

func exportCSV(w io.Writer, reader *log.Reader) error {
	cw := csv.NewWriter(w)

	row := make([]string, len(csvColumns))
	for i, c := range csvColumns {
		row[i] = c.name
	}
	if err := cw.Write(row); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	err := reader.Each(func(e log.Event) error {
		for i, c := range csvColumns {
			row[i] = c.value(e)
		}
		return cw.Write(row)
	})
	if err != nil {
		return fmt.Errorf("failed to export event: %w", err)
	}
	cw.Flush()
	return cw.Error()
}
