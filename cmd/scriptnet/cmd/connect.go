package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/mash-protocol/scriptnet/pkg/connection"
	"github.com/mash-protocol/scriptnet/pkg/transport"
)

var (
	connectTLSFlag         bool
	connectServerNameFlag  string
	connectCAFileFlag      string
	connectRetryFlag       bool
	connectMaxAttemptsFlag int
	connectInteractiveFlag bool
)

var connectCmd = &cobra.Command{
	Use:   "connect [host] [port]",
	Short: "Connect over TCP or TLS and relay stdin/stdout",
	Long: `Connect opens a stream transport to host:port. Bytes read from stdin are
written to the peer and bytes received are written to stdout. The command
exits when the peer closes the connection or on interrupt.

With --tls the peer certificate is verified against --ca-file (and the
system roots unless disabled in the config). A verification failure is
reported but does not close the connection.`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if connectTLSFlag {
			cfg.Transport.Kind = "tls"
		}
		if connectServerNameFlag != "" {
			cfg.TLS.ServerName = connectServerNameFlag
		}
		if connectCAFileFlag != "" {
			cfg.TLS.CAFile = connectCAFileFlag
		}
		if connectRetryFlag {
			cfg.Retry.Enabled = true
		}
		if connectMaxAttemptsFlag > 0 {
			cfg.Retry.MaxAttempts = connectMaxAttemptsFlag
		}

		kind, err := transport.ParseKind(cfg.Transport.Kind)
		if err != nil {
			return fmt.Errorf("connect supports tcp and tls: %w", err)
		}
		host, port, err := endpoint(args)
		if err != nil {
			return err
		}
		opts, err := transportOptions()
		if err != nil {
			return err
		}

		l, ctx, shutdown := startLoop(cmd.Context())
		defer shutdown()

		s := newSession(l, kind, host, port, opts)
		s.out = cmd.OutOrStdout()
		s.status = cmd.ErrOrStderr()
		s.logger = logger

		var rl *readline.Instance
		if connectInteractiveFlag {
			rl, err = readline.NewEx(&readline.Config{
				Prompt:          fmt.Sprintf("%s:%d> ", host, port),
				InterruptPrompt: "^C",
				EOFPrompt:       "exit",
			})
			if err != nil {
				return fmt.Errorf("failed to create readline: %w", err)
			}
			defer rl.Close()
			s.out = rl.Stdout()
			s.status = rl.Stderr()
		}

		if cfg.Retry.Enabled {
			s.withRetry(connection.NewBackoffWithConfig(connection.BackoffConfig{
				Initial:     cfg.Retry.Initial,
				Max:         cfg.Retry.Max,
				Jitter:      connection.JitterFactor,
				MaxAttempts: cfg.Retry.MaxAttempts,
			}))
		}

		if err := l.Do(s.start); err != nil {
			return err
		}

		if rl != nil {
			go s.interactive(ctx, rl)
		} else {
			go s.pump(ctx, cmd.InOrStdin())
		}

		select {
		case err := <-s.done:
			return err
		case <-ctx.Done():
			l.Do(func() { s.finish(nil) })
			return nil
		}
	},
}

// interactive sends each line typed at the prompt. Lines starting with a
// slash are local commands.
func (s *session) interactive(ctx context.Context, rl *readline.Instance) {
	select {
	case <-s.up:
	case <-ctx.Done():
		return
	}

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err != nil {
			s.loop.Do(func() { s.finish(nil) })
			return
		}

		switch strings.TrimSpace(line) {
		case "/quit", "/exit":
			s.loop.Do(func() { s.finish(nil) })
			return
		case "/status":
			var status string
			s.loop.Do(func() { status = s.describe() })
			fmt.Fprintln(rl.Stdout(), status)
			continue
		case "/help":
			fmt.Fprintln(rl.Stdout(), "/status  show transport state\n/quit    close the connection")
			continue
		}

		if !s.send(ctx, []byte(line+"\n")) {
			return
		}
	}
}

func init() {
	connectCmd.Flags().BoolVar(&connectTLSFlag, "tls", false, "use TLS")
	connectCmd.Flags().StringVar(&connectServerNameFlag, "server-name", "", "name sent as SNI and verified (default: host)")
	connectCmd.Flags().StringVar(&connectCAFileFlag, "ca-file", "", "PEM file with trust anchors")
	connectCmd.Flags().BoolVar(&connectRetryFlag, "retry", false, "reconnect with exponential backoff")
	connectCmd.Flags().IntVar(&connectMaxAttemptsFlag, "max-attempts", 0, "retries before giving up (0: unlimited)")
	connectCmd.Flags().BoolVarP(&connectInteractiveFlag, "interactive", "i", false, "line-oriented prompt")

	rootCmd.AddCommand(connectCmd)
}
