package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X .../cmd.version=...".
var version = "dev"

var (
	jsonOutput bool
	configPath string
	debug      bool
)

var rootCmd = &cobra.Command{
	Use:     "deskagent",
	Short:   "Desktop control agent for AI assistants",
	Long:    "deskagent exposes desktop control tools over MCP and runs multi-step desktop workflows.",
	Version: version,
	// Errors are printed once by Execute.
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output raw JSON")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.deskagent/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
}

// errReported makes Execute exit with status 1 without printing anything,
// for commands that already printed their own failure report.
var errReported = errors.New("failure reported")

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
