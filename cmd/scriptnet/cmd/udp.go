package cmd

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/spf13/cobra"

	"github.com/mash-protocol/scriptnet/pkg/transport"
)

var (
	udpCountFlag int
	udpWaitFlag  time.Duration
	udpBindFlag  string
)

var udpCmd = &cobra.Command{
	Use:   "udp",
	Short: "Send and receive UDP datagrams",
}

var udpListenCmd = &cobra.Command{
	Use:   "listen <host> <port>",
	Short: "Bind a local address and print received datagrams",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		port, err := parsePort(args[1], true)
		if err != nil {
			return err
		}
		opts, err := transportOptions()
		if err != nil {
			return err
		}

		l, ctx, shutdown := startLoop(cmd.Context())
		defer shutdown()

		out := cmd.OutOrStdout()
		status := cmd.ErrOrStderr()
		done := make(chan error, 1)
		u := transport.NewUDP(opts...)
		received := 0
		stop := func(err error) {
			if u.IsClosed() {
				return
			}
			u.Destroy()
			done <- err
		}

		h := transport.DatagramFuncs{Datagram: func(data []byte, from netip.AddrPort, err error) {
			if err != nil {
				stop(fmt.Errorf("receive: %w", err))
				return
			}
			fmt.Fprintf(status, "%d bytes from %s\n", len(data), from)
			out.Write(data)
			received++
			if udpCountFlag > 0 && received == udpCountFlag {
				stop(nil)
			}
		}}

		var bindErr error
		var local netip.AddrPort
		if err := l.Do(func() {
			if bindErr = u.Init(l, h); bindErr != nil {
				return
			}
			if bindErr = u.Bind(args[0], port); bindErr != nil {
				u.Destroy()
				return
			}
			local = u.LocalAddr()
		}); err != nil {
			return err
		}
		if bindErr != nil {
			return fmt.Errorf("failed to bind: %w", bindErr)
		}
		fmt.Fprintf(status, "listening on %s\n", local)

		select {
		case err := <-done:
			return err
		case <-ctx.Done():
			l.Do(u.Destroy)
			return nil
		}
	},
}

var udpSendCmd = &cobra.Command{
	Use:   "send <host> <port> <message>",
	Short: "Send one datagram and print replies until --wait elapses",
	Long: `Send transmits message to host:port, which must be an IP literal. Replies
arriving within --wait are written to stdout.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		port, err := parsePort(args[1], false)
		if err != nil {
			return err
		}
		opts, err := transportOptions()
		if err != nil {
			return err
		}

		l, ctx, shutdown := startLoop(cmd.Context())
		defer shutdown()

		out := cmd.OutOrStdout()
		u := transport.NewUDP(opts...)
		h := transport.HandlerFuncs{Input: func(data []byte, err error) {
			if err == nil {
				out.Write(data)
			}
		}}

		var sendErr error
		if err := l.Do(func() {
			if sendErr = u.Init(l, h); sendErr != nil {
				return
			}
			if udpBindFlag != "" {
				if sendErr = u.Bind(udpBindFlag, 0); sendErr != nil {
					return
				}
			}
			sendErr = u.Send(args[0], port, []byte(args[2]))
		}); err != nil {
			return err
		}
		if sendErr != nil {
			l.Do(u.Destroy)
			return fmt.Errorf("failed to send: %w", sendErr)
		}

		select {
		case <-time.After(udpWaitFlag):
		case <-ctx.Done():
		}
		l.Do(u.Destroy)
		return nil
	},
}

func init() {
	udpListenCmd.Flags().IntVar(&udpCountFlag, "count", 0, "exit after this many datagrams (0: run until interrupted)")
	udpSendCmd.Flags().DurationVar(&udpWaitFlag, "wait", 500*time.Millisecond, "how long to wait for replies")
	udpSendCmd.Flags().StringVar(&udpBindFlag, "bind", "", "local IP to bind before sending")

	udpCmd.AddCommand(udpListenCmd)
	udpCmd.AddCommand(udpSendCmd)
	rootCmd.AddCommand(udpCmd)
}
