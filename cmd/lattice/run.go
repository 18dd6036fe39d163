package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/aretw0/lattice/internal/presentation/tui"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a workflow against a message",
	Long: `Runs a workflow from a file (--file) or by id (--workflow) and prints each node as it resolves.
With --json every event is written as one JSON line, the same stream the HTTP API sends.`,
	Example: `  lattice run -f workflow.json -m "What does clause 4 require?"
  lattice run --workflow basic_qa -m "Summarise the audit" --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("file")
		id, _ := cmd.Flags().GetString("workflow")
		user, _ := cmd.Flags().GetString("user")
		message, _ := cmd.Flags().GetString("message")
		kb, _ := cmd.Flags().GetString("kb")
		model, _ := cmd.Flags().GetString("model")
		jsonMode, _ := cmd.Flags().GetBool("json")
		mermaid, _ := cmd.Flags().GetBool("mermaid")

		ctx := cmd.Context()
		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer func() { _ = a.Close(context.Background()) }()

		wf, err := loadWorkflow(ctx, a.engine, path, user, id)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		req := domain.ExecuteRequest{Message: message, Graph: wf.Graph(), KnowledgeBase: kb, Model: model}

		if jsonMode {
			_, err := a.engine.Execute(ctx, req, ndjsonSink(out))
			return err
		}

		color, width := terminal(out)
		printer := tui.NewStepPrinter(out, color)
		res, err := a.engine.Execute(ctx, req, ports.SinkFunc(func(_ context.Context, e domain.Event) error {
			if e.Type == domain.EventAgentComplete && e.Step != nil {
				printer.Step(*e.Step)
			}
			return nil
		}))
		if err != nil {
			printer.Error(err.Error())
			return err
		}

		render := tui.NewRenderer(width)
		answer, err := render(res.Answer)
		if err != nil {
			answer = res.Answer
		}
		fmt.Fprintln(out)
		fmt.Fprint(out, answer)

		if mermaid {
			fmt.Fprintln(out)
			fmt.Fprint(out, a.engine.Mermaid(wf.Graph(), res))
		}
		return nil
	},
}

// ndjsonSink writes each event as {"event": ..., "data": ...} on its own line.
func ndjsonSink(w io.Writer) ports.EventSink {
	enc := json.NewEncoder(w)
	return ports.SinkFunc(func(_ context.Context, e domain.Event) error {
		return enc.Encode(struct {
			Event domain.EventType `json:"event"`
			Data  any              `json:"data"`
		}{e.Type, e.Payload()})
	})
}

// terminal reports whether w is a color terminal and its width.
func terminal(w io.Writer) (bool, int) {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return false, 80
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		width = 80
	}
	return true, width
}

func init() {
	rootCmd.AddCommand(runCmd)
	addWorkflowFlags(runCmd)

	runCmd.Flags().StringP("message", "m", "", "User message")
	runCmd.Flags().String("kb", "", "Knowledge base for retrieval nodes")
	runCmd.Flags().String("model", "", "Model override (small, large or a model name)")
	runCmd.Flags().Bool("json", false, "Write events as NDJSON")
	runCmd.Flags().Bool("mermaid", false, "Print the graph with node outcomes after the answer")
	_ = runCmd.MarkFlagRequired("message")
}

// addWorkflowFlags registers the flags selecting a workflow.
func addWorkflowFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("file", "f", "", "Workflow file (.json or .yaml), takes precedence over --workflow")
	cmd.Flags().StringP("workflow", "w", "", "Saved or example workflow id")
	cmd.Flags().String("user", "default", "Owner of saved workflows")
}
