package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a workflow without running it",
	Long:  `Plans the workflow and reports cycles, unreachable nodes, unknown kinds and routers without branches.`,
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

		out := cmd.OutOrStdout()
		report := a.engine.Validate(wf.Graph())
		for _, issue := range report.Issues {
			fmt.Fprintf(out, "%s: %s\n", issue.Severity, issue)
		}
		if err := report.Err(); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		fmt.Fprintf(out, "Workflow is valid! ✅ (%d nodes will run)\n", len(report.Order))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	addWorkflowFlags(validateCmd)
}
