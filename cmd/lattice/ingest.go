package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <dir>",
	Short: "Load .md and .txt files into a knowledge base",
	Long:  `Embeds every Markdown and text file of a directory into the configured vector store. Unchanged files are skipped.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kb, _ := cmd.Flags().GetString("kb")

		ctx := cmd.Context()
		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close(ctx) }()

		report, err := a.engine.Retrieval().LoadDirectory(ctx, kb, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Ingested %d files (%d added, %d unchanged)\n", len(report.Files), report.Added, report.Unchanged)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().String("kb", "", "Knowledge base (default: retrieval.knowledge_base)")
}
