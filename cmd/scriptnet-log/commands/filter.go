package commands

import (
	"fmt"
	"time"

	"github.com/mash-protocol/scriptnet/pkg/log"
)

// FilterOptions holds the selection flags shared by filter and export.
type FilterOptions struct {
	Output    string
	ConnID    string
	Kind      string
	Host      string
	TimeStart string
	TimeEnd   string
	Layer     string
	Direction string
	Category  string

	// Op keeps error events of one failing operation.
	Op string
	// Queued keeps frames that were queued behind the socket.
	Queued bool
	// Unverified keeps whole sessions whose handshake failed verification.
	Unverified bool
	// Failed keeps whole sessions that ended with an error.
	Failed bool
}

// buildFilter turns opts into a log filter. Session selection needs a
// first pass over path to collect the matching connection IDs.
func buildFilter(path string, opts FilterOptions) (log.Filter, error) {
	filter := log.Filter{
		ConnectionID: opts.ConnID,
		Kind:         opts.Kind,
		Host:         opts.Host,
		Op:           opts.Op,
		Queued:       opts.Queued,
	}

	var err error
	if filter.TimeStart, err = parseTime("time-start", opts.TimeStart); err != nil {
		return filter, err
	}
	if filter.TimeEnd, err = parseTime("time-end", opts.TimeEnd); err != nil {
		return filter, err
	}
	if opts.Layer != "" {
		l, err := parseLayer(opts.Layer)
		if err != nil {
			return filter, err
		}
		filter.Layer = &l
	}
	if opts.Direction != "" {
		d, err := parseDirection(opts.Direction)
		if err != nil {
			return filter, err
		}
		filter.Direction = &d
	}
	if opts.Category != "" {
		c, err := parseCategory(opts.Category)
		if err != nil {
			return filter, err
		}
		filter.Category = &c
	}

	if opts.Unverified {
		if filter.Connections, err = sessions(path, nil, log.Filter{VerifyFailed: true}); err != nil {
			return filter, err
		}
	}
	if opts.Failed {
		errCat := log.CategoryError
		if filter.Connections, err = sessions(path, filter.Connections, log.Filter{Category: &errCat}); err != nil {
			return filter, err
		}
	}
	return filter, nil
}

// sessions returns the connections with an event matching f, narrowed to
// within when within is non-nil.
func sessions(path string, within map[string]bool, f log.Filter) (map[string]bool, error) {
	f.Connections = within
	ids, err := log.ScanConnections(path, f)
	if err != nil {
		return nil, fmt.Errorf("failed to scan log file: %w", err)
	}
	return ids, nil
}

func parseTime(flag, s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, fmt.Errorf("invalid %s format: %w", flag, err)
	}
	return &t, nil
}

// RunFilter copies the events of path selected by opts into opts.Output
// and returns how many were written.
func RunFilter(path string, opts FilterOptions) (int, error) {
	filter, err := buildFilter(path, opts)
	if err != nil {
		return 0, err
	}

	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	out, err := log.NewFileLogger(opts.Output)
	if err != nil {
		return 0, fmt.Errorf("failed to create output logger: %w", err)
	}
	defer out.Close()

	err = reader.Each(func(e log.Event) error {
		out.Log(e)
		return nil
	})
	if err != nil {
		return out.Written(), fmt.Errorf("failed to read event: %w", err)
	}
	return out.Written(), nil
}
