package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	dagerrors "github.com/stevehiehn/deskagent/internal/errors"
	"github.com/stevehiehn/deskagent/internal/plan"
)

var validateCmd = &cobra.Command{
	Use:   "validate <workflow.yaml>",
	Short: "Validate a workflow file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := plan.LoadFile(args[0])
		if err == nil {
			var a *app
			if a, err = loadApp(); err != nil {
				return err
			}
			err = plan.Validate(w, a.registry, nil)
		}
		if err != nil {
			if jsonOutput {
				out := map[string]any{"valid": false, "error": err.Error()}
				var re *dagerrors.RunError
				if errors.As(err, &re) {
					out["error"] = re
				}
				json.NewEncoder(os.Stdout).Encode(out)
			} else {
				fmt.Fprintf(os.Stderr, "Validation failed: %s\n", withHint(err))
			}
			return errReported
		}
		if jsonOutput {
			json.NewEncoder(os.Stdout).Encode(map[string]any{"valid": true, "name": w.Name, "steps": len(w.Steps)})
		} else {
			fmt.Printf("Workflow %q is valid (%d steps).\n", w.Name, len(w.Steps))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
