package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the available desktop tools",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		list := a.registry.List()

		if jsonOutput {
			out := make([]map[string]any, 0, len(list))
			for _, t := range list {
				out = append(out, map[string]any{
					"name":        t.Name,
					"description": t.Description,
					"inputSchema": t.Schema,
				})
			}
			return printJSON(out)
		}

		for _, t := range list {
			fmt.Printf("%-20s %s\n", t.Name, t.Description)
			names := make([]string, 0, len(t.Schema.Properties))
			for n := range t.Schema.Properties {
				names = append(names, n)
			}
			sort.Strings(names)
			if len(names) > 0 {
				fmt.Printf("%-20s args: %s\n", "", strings.Join(names, ", "))
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(toolsCmd)
}
