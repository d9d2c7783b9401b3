package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mash-protocol/scriptnet/pkg/cert"
)

var (
	gencertOutFlag    string
	gencertHostsFlag  []string
	gencertCANameFlag string
)

var gencertCmd = &cobra.Command{
	Use:   "gencert",
	Short: "Generate a test CA and a server certificate",
	Long: `Gencert writes ca.pem, ca-key.pem, server.pem and server-key.pem to --out.
The server certificate is valid for every --host. Pass ca.pem to
"connect --tls --ca-file" to verify a server using server.pem.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(gencertHostsFlag) == 0 {
			return fmt.Errorf("at least one --host is required")
		}
		if err := os.MkdirAll(gencertOutFlag, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}

		ca, err := cert.GenerateCA(gencertCANameFlag)
		if err != nil {
			return fmt.Errorf("failed to generate CA: %w", err)
		}
		leaf, err := cert.IssueLeaf(ca, gencertHostsFlag...)
		if err != nil {
			return fmt.Errorf("failed to issue certificate: %w", err)
		}

		files := []struct {
			name  string
			write func(path string) error
		}{
			{"ca.pem", func(p string) error { return cert.WriteCertFile(p, ca.Certificate) }},
			{"ca-key.pem", func(p string) error { return cert.WriteKeyFile(p, ca.PrivateKey) }},
			{"server.pem", func(p string) error { return cert.WriteCertFile(p, leaf.Certificate) }},
			{"server-key.pem", func(p string) error { return cert.WriteKeyFile(p, leaf.PrivateKey) }},
		}
		for _, f := range files {
			path := filepath.Join(gencertOutFlag, f.name)
			if err := f.write(path); err != nil {
				return fmt.Errorf("failed to write %s: %w", f.name, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
		}
		return nil
	},
}

func init() {
	gencertCmd.Flags().StringVar(&gencertOutFlag, "out", ".", "output directory")
	gencertCmd.Flags().StringSliceVar(&gencertHostsFlag, "host", []string{"localhost", "127.0.0.1"}, "DNS name or IP the server certificate is valid for")
	gencertCmd.Flags().StringVar(&gencertCANameFlag, "ca-name", "scriptnet test CA", "common name of the CA")

	rootCmd.AddCommand(gencertCmd)
}
