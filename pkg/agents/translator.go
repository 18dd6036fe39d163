package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
)

// TranslatorSettings configure the translator. Languages are codes or names.
type TranslatorSettings struct {
	SourceLanguage string `mapstructure:"sourceLanguage"`
	TargetLanguage string `mapstructure:"targetLanguage"`
}

// Translator translates the current content while keeping its format.
type Translator struct {
	Deps
}

var languages = map[string]string{
	"auto": "Auto-detect",
	"en":   "English",
	"es":   "Spanish",
	"pt":   "Portuguese",
	"fr":   "French",
	"de":   "German",
	"it":   "Italian",
	"nl":   "Dutch",
	"ru":   "Russian",
	"uk":   "Ukrainian",
	"pl":   "Polish",
	"tr":   "Turkish",
	"ar":   "Arabic",
	"he":   "Hebrew",
	"hi":   "Hindi",
	"zh":   "Chinese (Simplified)",
	"ja":   "Japanese",
	"ko":   "Korean",
	"vi":   "Vietnamese",
	"id":   "Indonesian",
	"sv":   "Swedish",
	"el":   "Greek",
}

const translatorPrompt = `You are a professional translator. Translate from %s to %s.

RULES:
1. Keep the exact same format: CSV stays CSV, JSON stays JSON, markdown stays markdown.
2. Only translate text. Never change structure, delimiters, keys or markup.
3. Numbers, dates, codes and IDs stay unchanged.
4. Do not add explanations or wrap the output in code blocks.
The input looks like: %s.
If source and target language are the same, return the input unchanged.`

// Execute implements ports.Agent.
func (a *Translator) Execute(ctx context.Context, req ports.AgentRequest) (*domain.AgentResult, error) {
	s := TranslatorSettings{SourceLanguage: "auto", TargetLanguage: "Spanish"}
	if err := decode(req.Settings, &s); err != nil {
		return nil, err
	}

	content, source := contentOf(req.Context, req.Message,
		KeyTransformed, domain.KeyFinalAnswer, domain.KeyInputContent, domain.KeyUploadedFile)
	format := detectFormat(content)
	from, to := languageName(s.SourceLanguage), languageName(s.TargetLanguage)

	model := a.model(req, "small")
	out, err := a.chat(ctx, model, 0.1, 4000,
		fmt.Sprintf(translatorPrompt, from, to, format),
		content)
	if err != nil {
		return nil, err
	}
	out = stripFence(out)

	return &domain.AgentResult{
		Agent:   string(domain.KindTranslator),
		Model:   model,
		Action:  "translate",
		Content: out,
		Success: true,
		Metadata: map[string]any{
			"source_language": from,
			"target_language": to,
			"detected_format": format,
			"source":          source,
		},
		ContextUpdates: map[string]any{
			KeyTranslated:          out,
			domain.KeyInputContent: out,
			domain.KeyFinalAnswer:  out,
		},
	}, nil
}

func languageName(code string) string {
	if name, ok := languages[strings.ToLower(code)]; ok {
		return name
	}
	return code
}

func detectFormat(content string) string {
	trimmed := strings.TrimSpace(content)
	first, _, _ := strings.Cut(trimmed, "\n")
	head := trimmed
	if len(head) > 200 {
		head = head[:200]
	}
	switch {
	case strings.Contains(first, ",") && (strings.Count(first, ",") >= 2 || strings.Contains(first, `"`)):
		return "CSV"
	case strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "["):
		return "JSON"
	case strings.Contains(first, "|") && strings.Contains(head, "-"):
		return "markdown table"
	default:
		return "text"
	}
}
