package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/stevehiehn/deskagent/internal/plan"
)

var explainInputs []string

var explainCmd = &cobra.Command{
	Use:   "explain <workflow.yaml>",
	Short: "Show resolved workflow steps without executing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := plan.LoadFile(args[0])
		if err != nil {
			return err
		}
		inputs, err := parseInputs(explainInputs)
		if err != nil {
			return err
		}
		if err := plan.Validate(w, nil, inputs); err != nil {
			return withHint(err)
		}
		steps, err := w.ResolvedSteps(inputs)
		if err != nil {
			return withHint(err)
		}

		if jsonOutput {
			return printJSON(map[string]any{"name": w.Name, "description": w.Description, "steps": steps})
		}

		fmt.Printf("Workflow: %s\n", w.Name)
		if w.Description != "" {
			fmt.Printf("  %s\n", w.Description)
		}
		fmt.Println()
		for i, raw := range steps {
			step := raw.(map[string]any)
			desc, _ := step["description"].(string)
			if desc == "" {
				desc = fmt.Sprintf("Step %d", i+1)
			}
			fmt.Printf("%d. %s\n", i+1, desc)
			fmt.Printf("  Tool: %v\n", step["tool"])
			if a, ok := step["args"].(map[string]any); ok && len(a) > 0 {
				keys := make([]string, 0, len(a))
				for k := range a {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				for _, k := range keys {
					fmt.Printf("    %s: %v\n", k, a[k])
				}
			}
			for _, key := range []string{"wait_after_ms", "wait_ms"} {
				if v, ok := step[key]; ok {
					fmt.Printf("  Wait after: %vms\n", v)
				}
			}
			if c, _ := step["continue_on_error"].(bool); c {
				fmt.Println("  Continues on error")
			}
			fmt.Println()
		}
		return nil
	},
}

func init() {
	explainCmd.Flags().StringArrayVar(&explainInputs, "input", nil, "Input values (key=value)")
	rootCmd.AddCommand(explainCmd)
}
