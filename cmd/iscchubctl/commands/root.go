// Package commands implements iscchubctl's Cobra command tree: a small
// operator CLI for generating the HUB's signing key and querying a running
// HUB's read-only endpoints. Grounded on the teacher's cmd/dittofsctl
// command tree, trimmed of its credential store and login/context commands
// since spec.md §6's GET endpoints carry no authentication.
package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Version, Commit and Date are set by main from linker flags.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var serverAddr string

var rootCmd = &cobra.Command{
	Use:   "iscchubctl",
	Short: "Operate and query an ISCC HUB",
	Long: `iscchubctl generates the HUB's Ed25519 signing key and queries a
running HUB's read-only declaration log over HTTP.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", "http://localhost:8080", "ISCC HUB base URL")
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(keygenCmd)
	rootCmd.AddCommand(eventsCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// GetRootCmd returns the root command, for tests.
func GetRootCmd() *cobra.Command {
	return rootCmd
}
