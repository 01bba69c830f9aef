package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/stevehiehn/deskagent/internal/config"
)

const redacted = "********"

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		shown := *cfg
		if shown.Server.Password != "" {
			shown.Server.Password = redacted
		}
		if shown.Server.PasswordHash != "" {
			shown.Server.PasswordHash = redacted
		}

		if jsonOutput {
			return printJSON(map[string]any{"file": cfg.File, "config": shown})
		}
		if cfg.File == "" {
			fmt.Println("# no config file found, showing defaults")
		} else {
			fmt.Printf("# %s\n", cfg.File)
		}
		out, err := yaml.Marshal(shown)
		if err != nil {
			return err
		}
		fmt.Print(string(out))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
