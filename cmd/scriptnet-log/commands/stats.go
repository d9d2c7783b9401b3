package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/table"

	"github.com/mash-protocol/scriptnet/pkg/log"
)

// Stats holds aggregate statistics about a log file.
type Stats struct {
	TotalEvents       int
	EventsByLayer     map[log.Layer]int
	EventsByCategory  map[log.Category]int
	EventsByDirection map[log.Direction]int
	Connections       map[string]*ConnectionStats
	Errors            int
	TimeRange         struct {
		Start time.Time
		End   time.Time
	}
}

// ConnectionStats holds statistics for a single connection.
type ConnectionStats struct {
	FirstSeen  time.Time
	LastSeen   time.Time
	Events     int
	Kind       string
	Host       string
	BytesIn    int
	BytesOut   int
	Errors     int
	VerifyCode int
	LastState  string
	Handshakes int
}

// RunStats analyzes the log file and prints statistics.
func RunStats(path string, w io.Writer) error {
	stats, err := collectStats(path)
	if err != nil {
		return err
	}
	printStats(w, stats)
	return nil
}

func collectStats(path string) (*Stats, error) {
	reader, err := log.NewReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats := &Stats{
		EventsByLayer:     make(map[log.Layer]int),
		EventsByCategory:  make(map[log.Category]int),
		EventsByDirection: make(map[log.Direction]int),
		Connections:       make(map[string]*ConnectionStats),
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read event: %w", err)
		}

		stats.TotalEvents++
		stats.EventsByLayer[event.Layer]++
		stats.EventsByCategory[event.Category]++
		stats.EventsByDirection[event.Direction]++

		if stats.TimeRange.Start.IsZero() || event.Timestamp.Before(stats.TimeRange.Start) {
			stats.TimeRange.Start = event.Timestamp
		}
		if event.Timestamp.After(stats.TimeRange.End) {
			stats.TimeRange.End = event.Timestamp
		}

		conn, ok := stats.Connections[event.ConnectionID]
		if !ok {
			conn = &ConnectionStats{
				FirstSeen: event.Timestamp,
				LastSeen:  event.Timestamp,
			}
			stats.Connections[event.ConnectionID] = conn
		}
		conn.Events++
		if event.Timestamp.After(conn.LastSeen) {
			conn.LastSeen = event.Timestamp
		}
		if conn.Kind == "" {
			conn.Kind = event.Kind
		}
		if conn.Host == "" {
			conn.Host = event.Host
		}

		switch {
		case event.Frame != nil && event.Layer == log.LayerTransport:
			// Only caller-facing bytes; socket frames double count TLS traffic.
			if event.Direction == log.DirectionIn {
				conn.BytesIn += event.Frame.Size
			} else {
				conn.BytesOut += event.Frame.Size
			}
		case event.StateChange != nil:
			conn.LastState = event.StateChange.NewState
		case event.Handshake != nil:
			conn.Handshakes++
			conn.VerifyCode = event.Handshake.VerifyCode
		case event.Error != nil:
			conn.Errors++
			stats.Errors++
		}
	}

	return stats, nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== Transport Log Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	counts := table.NewWriter()
	counts.SetStyle(table.StyleRounded)
	counts.AppendHeader(table.Row{"Group", "Value", "Events"})
	for _, layer := range []log.Layer{log.LayerSocket, log.LayerTLS, log.LayerTransport} {
		if count := stats.EventsByLayer[layer]; count > 0 {
			counts.AppendRow(table.Row{"layer", layer.String(), count})
		}
	}
	for _, cat := range []log.Category{log.CategoryData, log.CategoryState, log.CategoryHandshake, log.CategoryError} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			counts.AppendRow(table.Row{"category", cat.String(), count})
		}
	}
	for _, dir := range []log.Direction{log.DirectionIn, log.DirectionOut} {
		if count := stats.EventsByDirection[dir]; count > 0 {
			counts.AppendRow(table.Row{"direction", dir.String(), count})
		}
	}
	if stats.TotalEvents > 0 {
		fmt.Fprintln(w, counts.Render())
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Connections: %d\n", len(stats.Connections))
	if len(stats.Connections) > 0 {
		type connInfo struct {
			id    string
			stats *ConnectionStats
		}
		conns := make([]connInfo, 0, len(stats.Connections))
		for id, cs := range stats.Connections {
			conns = append(conns, connInfo{id, cs})
		}
		sort.Slice(conns, func(i, j int) bool {
			return conns[i].stats.FirstSeen.Before(conns[j].stats.FirstSeen)
		})

		t := table.NewWriter()
		t.SetStyle(table.StyleRounded)
		t.AppendHeader(table.Row{"Connection", "Kind", "Host", "Events", "In", "Out", "State", "Verify", "Errors", "Duration"})
		for _, c := range conns {
			verify := "-"
			if c.stats.Handshakes > 0 {
				verify = "ok"
				if c.stats.VerifyCode != 0 {
					verify = fmt.Sprintf("code %d", c.stats.VerifyCode)
				}
			}
			t.AppendRow(table.Row{
				shortenConnID(c.id),
				c.stats.Kind,
				c.stats.Host,
				c.stats.Events,
				c.stats.BytesIn,
				c.stats.BytesOut,
				c.stats.LastState,
				verify,
				c.stats.Errors,
				c.stats.LastSeen.Sub(c.stats.FirstSeen).Round(time.Millisecond),
			})
		}
		fmt.Fprintln(w, t.Render())
	}

	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}
