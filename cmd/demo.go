package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/stevehiehn/deskagent/internal/demo"
)

var (
	demoText         string
	demoKeepOpen     bool
	demoNoScreenshot bool
	demoTerminalWait int
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Open a terminal, type a command and press Enter",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer func() { _ = a.logger.Sync() }()

		o := demo.DefaultOptions()
		o.Text = demoText
		o.CloseTerminal = !demoKeepOpen
		o.CaptureScreenshot = !demoNoScreenshot
		o.TerminalWait = time.Duration(demoTerminalWait) * time.Millisecond

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		rep := demo.NewTerminal(a.registry, demo.WithLogger(a.logger)).Run(ctx, o)

		if jsonOutput {
			if err := printJSON(rep); err != nil {
				return err
			}
		} else {
			for _, s := range rep.StepsCompleted {
				fmt.Printf("  done: %s\n", s)
			}
			if rep.Success {
				fmt.Printf("Typed %q on %s in %dms.\n", rep.TextTyped, rep.Platform, rep.TotalTimeMS)
			} else {
				fmt.Printf("Demo failed: %s\n", *rep.Error)
				if rep.CleanupError != nil {
					fmt.Printf("  Cleanup failed: %s\n", *rep.CleanupError)
				}
			}
		}
		if !rep.Success {
			return errReported
		}
		return nil
	},
}

func init() {
	d := demo.DefaultOptions()
	demoCmd.Flags().StringVar(&demoText, "text", d.Text, "Command to type into the terminal")
	demoCmd.Flags().BoolVar(&demoKeepOpen, "keep-open", false, "Leave the terminal open afterwards")
	demoCmd.Flags().BoolVar(&demoNoScreenshot, "no-screenshot", false, "Skip the final screenshot")
	demoCmd.Flags().IntVar(&demoTerminalWait, "terminal-wait-ms", int(d.TerminalWait/time.Millisecond), "Wait for the terminal window to appear")
	rootCmd.AddCommand(demoCmd)
}
