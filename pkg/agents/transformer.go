package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
)

// TransformerSettings configure the transformer.
type TransformerSettings struct {
	FromFormat       string `mapstructure:"fromFormat"`
	ToFormat         string `mapstructure:"toFormat"`
	UseAdvancedModel bool   `mapstructure:"useAdvancedModel"`
	CustomColumns    string `mapstructure:"customColumns"`
	ExtractionDepth  string `mapstructure:"extractionDepth"`
}

// Transformer extracts structured data from documents.
type Transformer struct {
	Deps
}

const transformerPrompt = `You are an expert data analyst. Analyze the document and extract ALL meaningful structured data into %s format.

1. Identify the document type (invoice, contract, resume, report, form, notes, catalog...)
2. Find every entity: people, organizations, dates, numbers, amounts, locations
3. Extract tables, lists, key-value pairs and metadata
%s
EXTRACTION REQUIREMENTS (%s depth):
%s

OUTPUT REQUIREMENTS:
- For tabular formats the first row MUST be descriptive column headers
- Each row represents one record
- Use proper escaping
%s
OUTPUT FORMAT: %s
Output ONLY the structured data. No explanations, no markdown code blocks.`

var extractionDepths = map[string]string{
	"basic": `- Extract main entities and primary data points
- Create 5-10 columns of essential data`,
	"detailed": `- Extract main and secondary entities with context and relationships
- Create 10-20 columns covering all major aspects`,
	"comprehensive": `- Extract everything in the document
- Every table row, list item and form field becomes a record
- Preserve hierarchy using Category/Section columns`,
}

const (
	advancedContentLimit = 25000
	basicContentLimit    = 10000
)

// Execute implements ports.Agent.
func (a *Transformer) Execute(ctx context.Context, req ports.AgentRequest) (*domain.AgentResult, error) {
	s := TransformerSettings{
		FromFormat:       "text",
		ToFormat:         "csv",
		UseAdvancedModel: true,
		ExtractionDepth:  "comprehensive",
	}
	if err := decode(req.Settings, &s); err != nil {
		return nil, err
	}
	depth, ok := extractionDepths[s.ExtractionDepth]
	if !ok {
		s.ExtractionDepth = "comprehensive"
		depth = extractionDepths[s.ExtractionDepth]
	}

	model := a.tier("small")
	limit := basicContentLimit
	if s.UseAdvancedModel {
		model = a.tier("large")
		limit = advancedContentLimit
	}
	if req.Model != "" {
		model = a.model(req, "large")
	}

	content, source := contentOf(req.Context, req.Message,
		domain.KeyInputContent, domain.KeyUploadedFile, domain.KeyFinalAnswer)
	if strings.TrimSpace(content) == "" {
		return &domain.AgentResult{
			Agent:    string(domain.KindTransformer),
			Model:    model,
			Action:   "transform",
			Content:  "No content available to transform.",
			Metadata: map[string]any{"error": "No input content"},
		}, nil
	}
	if len(content) > limit {
		content = content[:limit] + "\n\n[Document truncated for processing...]"
	}

	columns := "\nCOLUMNS: Determine the optimal structure from the document content."
	if cols := splitColumns(s.CustomColumns); len(cols) > 0 {
		columns = fmt.Sprintf("\nREQUIRED COLUMNS (user specified): %s\nYou may add other relevant columns.", strings.Join(cols, ", "))
	}
	guidance := ""
	if g := req.Context.String(KeySupervisorGuidance); g != "" {
		guidance = "\nADDITIONAL GUIDANCE:\n" + g
	}
	to := strings.ToUpper(s.ToFormat)

	maxTokens := 2000
	if s.ExtractionDepth == "comprehensive" {
		maxTokens = 4000
	}
	out, err := a.chat(ctx, model, 0.1, maxTokens,
		fmt.Sprintf(transformerPrompt, to, columns, s.ExtractionDepth, depth, guidance, to),
		fmt.Sprintf("Analyze this %s document and extract ALL structured data into %s format:\n\n=== DOCUMENT START ===\n%s\n=== DOCUMENT END ===",
			strings.ToUpper(s.FromFormat), to, content))
	if err != nil {
		return nil, err
	}
	out = stripFence(out)

	records := countRecords(out, s.ToFormat)
	return &domain.AgentResult{
		Agent:   string(domain.KindTransformer),
		Model:   model,
		Action:  "transform",
		Content: out,
		Success: true,
		Metadata: map[string]any{
			"from_format":         s.FromFormat,
			"to_format":           s.ToFormat,
			"extraction_depth":    s.ExtractionDepth,
			"used_advanced_model": s.UseAdvancedModel,
			"source":              source,
			"original_length":     len(content),
			"transformed_length":  len(out),
		},
		ContextUpdates: map[string]any{
			KeyTransformed:         out,
			domain.KeyInputContent: out,
			domain.KeyFinalAnswer:  out,
			domain.ToolCalculations: map[string]any{
				"expression": fmt.Sprintf("extract %s -> %s", s.FromFormat, s.ToFormat),
				"result":     records,
				"summary":    fmt.Sprintf("extracted %d records as %s", records, to),
				"success":    true,
			},
		},
	}, nil
}

func splitColumns(s string) []string {
	var out []string
	for _, c := range strings.Split(s, ",") {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

// countRecords estimates the number of data rows in out.
func countRecords(out, format string) int {
	lines := 0
	for _, l := range strings.Split(out, "\n") {
		if strings.TrimSpace(l) != "" {
			lines++
		}
	}
	switch strings.ToLower(format) {
	case "csv", "table":
		if lines > 0 {
			return lines - 1
		}
	}
	return lines
}
