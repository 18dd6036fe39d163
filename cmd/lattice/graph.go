package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the workflow as a Mermaid diagram",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("file")
		id, _ := cmd.Flags().GetString("workflow")
		user, _ := cmd.Flags().GetString("user")

		ctx := cmd.Context()
		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close(ctx) }()

		wf, err := loadWorkflow(ctx, a.engine, path, user, id)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), a.engine.Mermaid(wf.Graph(), nil))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	addWorkflowFlags(graphCmd)
}
