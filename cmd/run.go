package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/stevehiehn/deskagent/internal/engine"
	dagerrors "github.com/stevehiehn/deskagent/internal/errors"
	"github.com/stevehiehn/deskagent/internal/plan"
)

var runInputs []string

var runCmd = &cobra.Command{
	Use:   "run <workflow.yaml>",
	Short: "Execute a workflow file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := plan.LoadFile(args[0])
		if err != nil {
			return err
		}
		inputs, err := parseInputs(runInputs)
		if err != nil {
			return err
		}
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer func() { _ = a.logger.Sync() }()

		if err := plan.Validate(w, a.registry, inputs); err != nil {
			return withHint(err)
		}
		steps, err := w.ResolvedSteps(inputs)
		if err != nil {
			return withHint(err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		report := engine.New(a.registry, engine.WithLogger(a.logger)).Run(ctx, steps)

		if jsonOutput {
			if err := printJSON(report); err != nil {
				return err
			}
		} else {
			printReport(w.Name, report)
		}
		if !report.Succeeded {
			return errReported
		}
		return nil
	},
}

func printReport(name string, r *engine.Report) {
	for _, res := range r.Results {
		mark := "ok  "
		if !res.Succeeded {
			mark = "FAIL"
		}
		fmt.Printf("[%s] %d. %s (%dms)\n", mark, res.Index+1, res.Description, res.DurationMS)
		if res.Error != nil {
			fmt.Printf("       Error: %s\n", *res.Error)
		}
	}
	fmt.Println()
	if r.Succeeded {
		fmt.Printf("Workflow %q completed successfully: %d/%d steps in %dms.\n",
			name, r.CompletedCount, r.StepCount, r.DurationMS)
	} else if r.HaltedAtIndex != nil {
		fmt.Printf("Workflow %q halted at step %d: %s\n", name, *r.HaltedAtIndex+1, r.ErrorMessage())
	} else {
		fmt.Printf("Workflow %q failed: %s\n", name, r.ErrorMessage())
	}
	fmt.Printf("Run ID: %s\n", r.RunID)
}

// withHint appends a RunError's hint to its message for terminal output.
func withHint(err error) error {
	var re *dagerrors.RunError
	if errors.As(err, &re) && re.Hint != "" {
		return fmt.Errorf("%w\n  Hint: %s", err, re.Hint)
	}
	return err
}

func init() {
	runCmd.Flags().StringArrayVar(&runInputs, "input", nil, "Input values (key=value)")
	rootCmd.AddCommand(runCmd)
}
