package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stevehiehn/deskagent/internal/config"
)

var (
	initPassword string
	initPort     int
	initForce    bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			p, err := config.DefaultPath()
			if err != nil {
				return err
			}
			path = p
		}
		if _, err := os.Stat(path); err == nil && !initForce {
			return fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
		}

		cfg := config.Default()
		if cmd.Flags().Changed("port") {
			cfg.Server.Port = initPort
		}
		if initPassword != "" {
			if err := cfg.SetPassword(initPassword); err != nil {
				return err
			}
		}
		if err := cfg.Save(path); err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(map[string]any{"config": path, "password_set": cfg.HasPassword()})
		}
		fmt.Printf("Wrote %s\n", path)
		if !cfg.HasPassword() {
			fmt.Println("No password set: HTTP clients will be rejected until you run init --password.")
		}
		return nil
	},
}

func init() {
	initCmd.Flags().StringVar(&initPassword, "password", "", "Password HTTP clients must send as a bearer token")
	initCmd.Flags().IntVar(&initPort, "port", 8765, "HTTP listen port")
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config")
	rootCmd.AddCommand(initCmd)
}
