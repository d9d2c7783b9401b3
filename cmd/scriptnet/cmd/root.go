package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/mash-protocol/scriptnet/pkg/config"
	"github.com/mash-protocol/scriptnet/pkg/log"
	"github.com/mash-protocol/scriptnet/pkg/metrics"
)

var (
	// Global flags
	cfgFile     string
	logLevel    string
	logFormat   string
	protocolLog string
	metricsAddr string

	// Shared state set during PersistentPreRun
	cfg            *config.Config
	logger         *slog.Logger
	protocolLogger log.Logger
	stats          *metrics.Metrics

	closers []func() error
)

// rootCmd is the base command for scriptnet.
var rootCmd = &cobra.Command{
	Use:   "scriptnet",
	Short: "Open TCP, TLS and UDP transports from the command line",
	Long: `scriptnet drives the callback transports from a terminal. It connects
over plain TCP or TLS, exchanges datagrams over UDP and reports the
transport events (CONNECTED, READY, ERROR) as they happen.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
		} else {
			cfg = config.Default()
		}

		// Override config with flags
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		if logFormat != "" {
			cfg.Log.Format = logFormat
		}
		if protocolLog != "" {
			cfg.Log.ProtocolLog = protocolLog
		}
		if metricsAddr != "" {
			cfg.Metrics.Enabled = true
			cfg.Metrics.Addr = metricsAddr
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		logger, err = newLogger(cmd.ErrOrStderr(), cfg.Log)
		if err != nil {
			return err
		}
		slog.SetDefault(logger)

		protocolLogger, err = newProtocolLogger(logger, cfg.Log.ProtocolLog)
		if err != nil {
			return err
		}

		stats = nil
		if cfg.Metrics.Enabled {
			reg := prometheus.NewRegistry()
			stats = metrics.New(reg)
			stop := serveMetrics(cfg.Metrics.Addr, reg)
			closers = append(closers, stop)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeAll()
	},
}

// Execute runs the root command.
func Execute() {
	err := rootCmd.Execute()
	if cerr := closeAll(); err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// RootCmd returns the root cobra.Command for testing purposes.
func RootCmd() *cobra.Command {
	return rootCmd
}

func closeAll() error {
	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		errs = append(errs, closers[i]())
	}
	closers = nil
	return errors.Join(errs...)
}

// newLogger builds the operational logger from the log settings.
func newLogger(w io.Writer, lc config.LogConfig) (*slog.Logger, error) {
	var level slog.Level
	if lc.Level == "" {
		level = slog.LevelInfo
	} else if err := level.UnmarshalText([]byte(lc.Level)); err != nil {
		return nil, fmt.Errorf("%w: %s", config.ErrInvalidLevel, lc.Level)
	}
	opts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(lc.Format) {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format: %s (must be text or json)", lc.Format)
	}
}

// newProtocolLogger builds the sink for transport capture events: the
// capture file when path is set, and the console when logger is at debug
// level. It returns nil when neither applies.
func newProtocolLogger(logger *slog.Logger, path string) (log.Logger, error) {
	var sinks []log.Logger
	if path != "" {
		fl, err := log.NewFileLogger(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open protocol log: %w", err)
		}
		closers = append(closers, fl.Close)
		logger.Info("protocol logging enabled", "path", fl.Path())
		sinks = append(sinks, fl)
	}
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		sinks = append(sinks, log.NewSlogAdapter(logger))
	}

	switch len(sinks) {
	case 0:
		return nil, nil
	case 1:
		return sinks[0], nil
	default:
		return log.NewMultiLogger(sinks...), nil
	}
}

// serveMetrics exposes reg on addr under /metrics and returns a shutdown
// function.
func serveMetrics(addr string, reg *prometheus.Registry) func() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("starting metrics server", "addr", addr)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return server.Shutdown(ctx)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (default \"info\")")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text, json (default \"text\")")
	rootCmd.PersistentFlags().StringVar(&protocolLog, "protocol-log", "", "capture transport events to this file (view with scriptnet-log)")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
}
