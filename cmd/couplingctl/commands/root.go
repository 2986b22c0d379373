// Package commands implements the couplingctl CLI commands.
package commands

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	// client is the couplingd status HTTP client, initialized in PersistentPreRunE.
	client *http.Client

	// outputFormat controls the output format for all commands (table or json).
	outputFormat string

	// serverAddr is the couplingd daemon address (host:port) for its HTTP
	// status/metrics surface.
	serverAddr string
)

// rootCmd is the top-level cobra command for couplingctl.
var rootCmd = &cobra.Command{
	Use:   "couplingctl",
	Short: "CLI client for the couplingd daemon",
	Long:  "couplingctl talks to couplingd's plain HTTP status endpoint to inspect connectivity state.",
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		client = &http.Client{Timeout: 5 * time.Second}
		return nil
	},
	// Silence cobra's built-in usage/error printing so we control it.
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverAddr, "addr", "localhost:9100",
		"couplingd daemon address (host:port)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "table",
		"output format: table, json")

	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(shellCmd())
}

// Execute runs the root command and exits with code 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
