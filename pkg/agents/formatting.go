package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
)

// FormattingSettings configure the formatting agent.
type FormattingSettings struct {
	OutputFormat string `mapstructure:"outputFormat"`
}

// Formatting renders the current content into a target format.
type Formatting struct {
	Deps
}

const formattingPrompt = `You are an expert formatter. You turn content into clean, production-quality output.

- Complete and runnable: the output must work without modifications
- Self-contained: inline CSS, no external dependencies
- Valid syntax for data formats

Output ONLY the result. No explanations before or after.`

var formatHints = map[string]string{
	"html":         "Generate a complete, styled HTML5 document",
	"presentation": "Generate an interactive HTML presentation with slides, navigation, and animations",
	"tsx":          "Generate a complete React TypeScript component",
	"react":        "Generate a complete React component with inline styles",
	"json":         "Generate valid JSON with proper structure",
	"xml":          "Generate valid XML with proper tags and nesting",
	"markdown":     "Generate formatted Markdown with headers, lists and code blocks",
	"csv":          "Generate CSV with headers in the first row",
	"yaml":         "Generate valid YAML with proper indentation",
	"plain":        "Generate clean plain text without markup",
}

var codeLanguages = map[string]string{
	"html":         "html",
	"presentation": "html",
	"tsx":          "tsx",
	"react":        "jsx",
	"json":         "json",
	"xml":          "xml",
	"markdown":     "markdown",
	"csv":          "csv",
	"yaml":         "yaml",
	"plain":        "text",
}

var presentationWords = []string{"presentation", "slides", "slideshow", "ppt", "powerpoint"}

// Execute implements ports.Agent.
func (a *Formatting) Execute(ctx context.Context, req ports.AgentRequest) (*domain.AgentResult, error) {
	s := FormattingSettings{OutputFormat: "html"}
	if err := decode(req.Settings, &s); err != nil {
		return nil, err
	}
	format := strings.ToLower(strings.TrimSpace(s.OutputFormat))
	if _, ok := formatHints[format]; !ok {
		format = "html"
	}
	lower := strings.ToLower(req.Message)
	for _, w := range presentationWords {
		if strings.Contains(lower, w) {
			format = "presentation"
			break
		}
	}

	content, _ := contentOf(req.Context, req.Message, domain.KeyInputContent, domain.KeyFinalAnswer)
	guidance := ""
	if g := req.Context.String(KeySupervisorGuidance); g != "" {
		guidance = "\nAdditional guidance: " + g
	}

	model := a.model(req, "large")
	out, err := a.chat(ctx, model, 0.3, 4096, formattingPrompt,
		fmt.Sprintf("Create a %s output for the following:\n\nCONTENT/TOPIC\n%s\n\nUSER REQUEST\n%s\n\nFORMAT REQUIREMENTS\n%s%s\n\nOutput ONLY the result.",
			strings.ToUpper(format), content, req.Message, formatHints[format], guidance))
	if err != nil {
		return nil, err
	}
	out = stripFence(out)
	lang := codeLanguages[format]

	return &domain.AgentResult{
		Agent:   string(domain.KindFormatting),
		Model:   model,
		Action:  "format",
		Content: out,
		Success: true,
		Metadata: map[string]any{
			"output_format":  format,
			"code_language":  lang,
			"content_length": len(out),
			"is_code":        format != "markdown" && format != "csv" && format != "plain",
		},
		ContextUpdates: map[string]any{
			KeyFormatted:           out,
			KeyOutputFormat:        format,
			KeyCodeLanguage:        lang,
			domain.KeyInputContent: out,
			domain.KeyFinalAnswer:  out,
		},
	}, nil
}
