package agents_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aretw0/lattice/pkg/agents"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/llm"
	"github.com/aretw0/lattice/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type retrieverFunc func(ctx context.Context, q ports.SearchQuery) ([]ports.SearchResult, error)

func (f retrieverFunc) SemanticSearch(ctx context.Context, q ports.SearchQuery) ([]ports.SearchResult, error) {
	return f(ctx, q)
}

type failingImages struct{}

func (failingImages) GenerateImage(context.Context, llm.ImageRequest) (*llm.Image, error) {
	return nil, errors.New("quota exceeded")
}

func request(kind domain.NodeKind, message string, settings map[string]any) ports.AgentRequest {
	return ports.AgentRequest{
		Message:  message,
		Context:  domain.NewExecutionContext(message),
		Settings: settings,
		Node:     domain.Node{ID: string(kind) + "-1", Kind: kind},
	}
}

func systemPrompt(req llm.ChatRequest) string {
	for _, m := range req.Messages {
		if m.Role == llm.RoleSystem {
			return m.Content
		}
	}
	return ""
}

func userPrompt(req llm.ChatRequest) string {
	for _, m := range req.Messages {
		if m.Role == llm.RoleUser {
			return m.Content
		}
	}
	return ""
}

func TestNewDefaultRegistry(t *testing.T) {
	r := agents.NewDefaultRegistry(agents.Deps{})

	assert.ElementsMatch(t, domain.AgentKinds(), r.Kinds())
	for _, k := range domain.AgentKinds() {
		a, ok := r.Lookup(k)
		assert.True(t, ok, k)
		assert.NotNil(t, a)
	}
	_, ok := r.Lookup("calculator")
	assert.False(t, ok)
}

func TestRegistry_RegisterOverwrites(t *testing.T) {
	r := agents.NewRegistry()
	first := ports.AgentFunc(func(context.Context, ports.AgentRequest) (*domain.AgentResult, error) {
		return &domain.AgentResult{Content: "first"}, nil
	})
	second := ports.AgentFunc(func(context.Context, ports.AgentRequest) (*domain.AgentResult, error) {
		return &domain.AgentResult{Content: "second"}, nil
	})
	r.Register(domain.KindSampler, first)
	r.Register(domain.KindSampler, second)

	a, ok := r.Lookup(domain.KindSampler)
	require.True(t, ok)
	res, err := a.Execute(context.Background(), ports.AgentRequest{})
	require.NoError(t, err)
	assert.Equal(t, "second", res.Content)
}

func TestAgents_NoClient(t *testing.T) {
	a := &agents.Synthesis{}
	_, err := a.Execute(context.Background(), request(domain.KindSynthesis, "q", nil))
	assert.Error(t, err)
}

func TestAgents_InvalidSettings(t *testing.T) {
	a := &agents.Sampler{Deps: agents.Deps{LLM: &llm.Scripted{Responses: []string{"x"}}}}
	_, err := a.Execute(context.Background(), request(domain.KindSampler, "q", map[string]any{"numResponses": "many"}))
	assert.ErrorContains(t, err, "invalid settings")
}

func TestOrchestrator(t *testing.T) {
	downstream := []domain.Node{
		{ID: "image_generator-1", Kind: domain.KindImageGenerator},
		{ID: "sampler-1", Kind: domain.KindSampler},
		{ID: "synthesis-1", Kind: domain.KindSynthesis},
	}
	branches := func(nodes []domain.Node) []domain.NodeKind {
		var out []domain.NodeKind
		for _, n := range nodes {
			if n.Kind == domain.KindImageGenerator || n.Kind == domain.KindSampler {
				out = append(out, n.Kind)
			}
		}
		return out
	}

	tests := []struct {
		name     string
		reply    string
		settings map[string]any
		selected []domain.NodeKind
		reason   string
	}{
		{
			name:     "json decision",
			reply:    "```json\n{\"tools_to_execute\": [\"image_generator\"], \"image_prompt\": \"a red fox\", \"image_type\": \"artistic\", \"reasoning\": \"asked for a picture\"}\n```",
			selected: []domain.NodeKind{domain.KindImageGenerator},
			reason:   "model decision",
		},
		{
			name:     "unknown tools are dropped",
			reply:    `{"tools_to_execute": ["calculator", "IMAGE_GENERATOR", "image_generator"]}`,
			selected: []domain.NodeKind{domain.KindImageGenerator},
			reason:   "model decision",
		},
		{
			name:     "text fallback",
			reply:    "I would use the sampler and then image_generator.",
			selected: []domain.NodeKind{domain.KindImageGenerator, domain.KindSampler},
			reason:   "parsed from text",
		},
		{
			name:     "max tools",
			reply:    `{"tools_to_execute": ["sampler", "image_generator"]}`,
			settings: map[string]any{"maxTools": 1},
			selected: []domain.NodeKind{domain.KindSampler},
			reason:   "model decision",
		},
		{
			name:     "no tools",
			reply:    `{"tools_to_execute": [], "reasoning": "search results suffice"}`,
			selected: []domain.NodeKind{},
			reason:   "model decision",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &llm.Scripted{Responses: []string{tt.reply}}
			a := &agents.Orchestrator{Deps: agents.Deps{LLM: client, Branches: branches}}
			req := request(domain.KindOrchestrator, "draw a fox", tt.settings)
			req.Downstream = downstream

			res, err := a.Execute(context.Background(), req)
			require.NoError(t, err)
			require.NotNil(t, res.Route)
			assert.Equal(t, tt.selected, res.Route.Selected)
			assert.Equal(t, tt.reason, res.Route.Reason)
			assert.Equal(t, "orchestrate", res.Action)
			assert.Equal(t, "gpt-4o-mini", res.Model)

			decision, ok := res.ContextUpdates[domain.KeyOrchestrator].(agents.OrchestratorDecision)
			require.True(t, ok)
			assert.NotEmpty(t, decision.ImagePrompt)
			assert.Contains(t, systemPrompt(client.Calls()[0]), "image_generator, sampler")
		})
	}
}

func TestOrchestrator_WithoutBranchHook(t *testing.T) {
	client := &llm.Scripted{Responses: []string{`{"tools_to_execute": ["sampler", "image_generator"]}`}}
	a := &agents.Orchestrator{Deps: agents.Deps{LLM: client}}
	req := request(domain.KindOrchestrator, "draw", nil)
	req.Downstream = []domain.Node{{ID: "image_generator-1", Kind: domain.KindImageGenerator}}

	res, err := a.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []domain.NodeKind{domain.KindImageGenerator}, res.Route.Selected)
	assert.Equal(t, "Decided to use: image_generator", res.Content)
}

func TestSupervisor_AutoRAG(t *testing.T) {
	var got ports.SearchQuery
	retriever := retrieverFunc(func(_ context.Context, q ports.SearchQuery) ([]ports.SearchResult, error) {
		got = q
		return []ports.SearchResult{{Title: "Tenancy", Snippet: "Deposits are capped.", Score: 87.5, ScoreType: "reranked"}}, nil
	})
	client := &llm.Scripted{Responses: []string{"QUERY ANALYSIS: deposits"}}
	a := &agents.Supervisor{Deps: agents.Deps{LLM: client, Retriever: retriever}}

	req := request(domain.KindSupervisor, "how much deposit?", map[string]any{"autoRAG": true})
	req.KnowledgeBase = "legal"
	req.Downstream = []domain.Node{{ID: "synthesis-1", Kind: domain.KindSynthesis}}

	res, err := a.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "legal", got.KnowledgeBase)
	assert.True(t, got.Rerank)
	assert.Equal(t, "analyze_and_plan", res.Action)
	assert.Equal(t, 1, res.Metadata["auto_rag_results"])
	assert.Equal(t, []string{"[Tenancy] Deposits are capped."}, res.ContextUpdates[domain.KeySnippets])
	assert.Equal(t, "QUERY ANALYSIS: deposits", res.ContextUpdates[agents.KeySupervisorGuidance])

	call := client.Calls()[0]
	assert.Contains(t, systemPrompt(call), "- synthesis-1 (synthesis)")
	assert.Contains(t, userPrompt(call), "RELEVANT KNOWLEDGE BASE CONTEXT")
}

func TestSupervisor_UploadUsesLargeModel(t *testing.T) {
	client := &llm.Scripted{Responses: []string{"plan"}}
	a := &agents.Supervisor{Deps: agents.Deps{LLM: client}}
	req := request(domain.KindSupervisor, "extract", nil)
	req.Context.Merge(map[string]any{domain.KeyUploadedFile: "Invoice #42"})

	res, err := a.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", res.Model)
	assert.Equal(t, 1500, client.Calls()[0].MaxTokens)
	assert.Contains(t, userPrompt(client.Calls()[0]), "Invoice #42")
}

func TestSemanticSearch(t *testing.T) {
	retriever := retrieverFunc(func(_ context.Context, q ports.SearchQuery) ([]ports.SearchResult, error) {
		assert.Equal(t, 2, q.TopK)
		assert.False(t, q.Rerank)
		assert.Equal(t, "hr", q.KnowledgeBase)
		return []ports.SearchResult{
			{Title: "Leave", Snippet: strings.Repeat("a", 600), Score: 71.2, ScoreType: "semantic"},
			{Title: "Pay", Snippet: "Monthly.", Score: 40, ScoreType: "semantic"},
		}, nil
	})
	a := &agents.SemanticSearch{Deps: agents.Deps{Retriever: retriever}}
	req := request(domain.KindSemanticSearch, "leave policy", map[string]any{"topK": 2, "enableReranking": false, "knowledgeBase": "hr"})

	res, err := a.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "Found 2 relevant documents", res.Content)
	assert.Equal(t, "embedding", res.Model)

	req.Context.Merge(res.ContextUpdates)
	assert.Len(t, req.Context.Snippets(), 2)
	assert.Equal(t, "[Pay] Monthly.", req.Context.Snippets()[1])
	docs := req.Context.Docs()
	require.Len(t, docs, 2)
	assert.Len(t, docs[0].(map[string]any)["snippet"], 503)
}

func TestSemanticSearch_Error(t *testing.T) {
	retriever := retrieverFunc(func(context.Context, ports.SearchQuery) ([]ports.SearchResult, error) {
		return nil, errors.New("db down")
	})
	a := &agents.SemanticSearch{Deps: agents.Deps{Retriever: retriever}}
	_, err := a.Execute(context.Background(), request(domain.KindSemanticSearch, "q", nil))
	assert.ErrorContains(t, err, "db down")
}

func TestSampler(t *testing.T) {
	client := &llm.Scripted{Responses: []string{"[1] First answer.\ncontinued\n[2] Second answer.\n[3] Third."}}
	a := &agents.Sampler{Deps: agents.Deps{LLM: client}}
	req := request(domain.KindSampler, "q", map[string]any{"numResponses": 3})
	req.Context.Merge(map[string]any{domain.KeySnippets: []string{"[Doc] fact"}})

	res, err := a.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []string{"First answer. continued", "Second answer.", "Third."}, res.ContextUpdates[domain.KeyCandidates])
	assert.Contains(t, systemPrompt(client.Calls()[0]), "Generate 3 DIFFERENT")
}

func TestSampler_ImageOnlyContextLimitsCandidates(t *testing.T) {
	client := &llm.Scripted{Responses: []string{"1. a\n2. b"}}
	a := &agents.Sampler{Deps: agents.Deps{LLM: client}}
	req := request(domain.KindSampler, "q", nil)
	req.Context.Merge(map[string]any{domain.KeySnippets: []string{"[IMAGE] Generated: fox"}})

	res, err := a.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.Contains(t, systemPrompt(client.Calls()[0]), "Generate 2 DIFFERENT")
	assert.Equal(t, []string{"a", "b"}, res.ContextUpdates[domain.KeyCandidates])
}

func TestSynthesis(t *testing.T) {
	client := &llm.Scripted{Responses: []string{"  The deposit is capped [1].  "}}
	a := &agents.Synthesis{Deps: agents.Deps{LLM: client}}
	req := request(domain.KindSynthesis, "deposit?", map[string]any{"maxWords": 100})
	req.Context.Merge(map[string]any{
		domain.KeySnippets:   []string{"[Tenancy] capped"},
		domain.KeyDocs:       []map[string]any{{"title": "Tenancy"}},
		domain.KeyCandidates: []string{"It is capped."},
	})

	res, err := a.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "The deposit is capped [1].", res.ContextUpdates[domain.KeyFinalAnswer])
	assert.Equal(t, "gpt-4o", res.Model)

	call := client.Calls()[0]
	assert.Equal(t, 800, call.MaxTokens)
	assert.Contains(t, systemPrompt(call), "[1] Tenancy")
	assert.Contains(t, userPrompt(call), "Candidate 1: It is capped.")
}

func TestSynthesis_ImageOnly(t *testing.T) {
	client := &llm.Scripted{Responses: []string{"I've created it. See it below."}}
	a := &agents.Synthesis{Deps: agents.Deps{LLM: client}}
	req := request(domain.KindSynthesis, "draw a fox", nil)
	req.Context.Merge(map[string]any{domain.ToolImages: []domain.ImageOutput{{Prompt: "a fox", URL: "u"}}})

	_, err := a.Execute(context.Background(), req)
	require.NoError(t, err)
	sys := systemPrompt(client.Calls()[0])
	assert.Contains(t, sys, "responding to an image generation request")
	assert.Contains(t, sys, "IMAGE GENERATED: 'a fox'")
}

func TestSummarization_Sources(t *testing.T) {
	client := &llm.Scripted{Handler: func(req llm.ChatRequest) (string, error) {
		return "summary of " + strings.SplitN(strings.SplitN(userPrompt(req), "Content to Summarize:\n", 2)[1], "\n", 2)[0], nil
	}}
	a := &agents.Summarization{Deps: agents.Deps{LLM: client}}

	req := request(domain.KindSummarization, "msg", nil)
	res, err := a.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "summary of msg", res.Content)

	req.Context.Merge(map[string]any{domain.KeyFinalAnswer: "answer"})
	res, err = a.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "summary of answer", res.Content)

	req.Context.Merge(map[string]any{domain.KeyInputContent: "input"})
	res, err = a.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "summary of input", res.Content)
	assert.Equal(t, "summary of input", res.ContextUpdates[domain.KeyInputContent])
	assert.Equal(t, "summary of input", res.ContextUpdates[agents.KeySummary])
}

func TestSummarization_NothingToSummarize(t *testing.T) {
	a := &agents.Summarization{Deps: agents.Deps{LLM: &llm.Scripted{}}}
	res, err := a.Execute(context.Background(), request(domain.KindSummarization, "", nil))
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Empty(t, res.ContextUpdates)
}

func TestFormatting(t *testing.T) {
	client := &llm.Scripted{Responses: []string{"```html\n<section>deck</section>\n```"}}
	a := &agents.Formatting{Deps: agents.Deps{LLM: client}}
	req := request(domain.KindFormatting, "make slides about tenancy", map[string]any{"outputFormat": "json"})
	req.Context.Merge(map[string]any{domain.KeyFinalAnswer: "Tenancy rules."})

	res, err := a.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "<section>deck</section>", res.Content)
	assert.Equal(t, "presentation", res.ContextUpdates[agents.KeyOutputFormat])
	assert.Equal(t, "html", res.ContextUpdates[agents.KeyCodeLanguage])
	assert.Equal(t, res.Content, res.ContextUpdates[domain.KeyFinalAnswer])
	assert.Contains(t, userPrompt(client.Calls()[0]), "Tenancy rules.")
}

func TestFormatting_UnknownFormatFallsBackToHTML(t *testing.T) {
	a := &agents.Formatting{Deps: agents.Deps{LLM: &llm.Scripted{Responses: []string{"<p/>"}}}}
	res, err := a.Execute(context.Background(), request(domain.KindFormatting, "x", map[string]any{"outputFormat": "docx"}))
	require.NoError(t, err)
	assert.Equal(t, "html", res.ContextUpdates[agents.KeyOutputFormat])
}

func TestTransformer(t *testing.T) {
	client := &llm.Scripted{Responses: []string{"```csv\nItem,Amount\nPens,3\nPaper,5\n```"}}
	a := &agents.Transformer{Deps: agents.Deps{LLM: client}}
	req := request(domain.KindTransformer, "extract", map[string]any{"customColumns": "Item, Amount,", "extractionDepth": "basic"})
	req.Context.Merge(map[string]any{domain.KeyUploadedFile: "Invoice: pens 3, paper 5"})

	res, err := a.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "Item,Amount\nPens,3\nPaper,5", res.Content)
	assert.Equal(t, "gpt-4o", res.Model)
	assert.Equal(t, domain.KeyUploadedFile, res.Metadata["source"])

	call := client.Calls()[0]
	assert.Equal(t, 2000, call.MaxTokens)
	assert.Contains(t, systemPrompt(call), "REQUIRED COLUMNS (user specified): Item, Amount")

	req.Context.Merge(res.ContextUpdates)
	calcs := req.Context.ToolOutputs(domain.ToolCalculations)
	require.Len(t, calcs, 1)
	assert.Equal(t, 2, calcs[0].(map[string]any)["result"])
	assert.Equal(t, res.Content, req.Context.FinalAnswer())
}

func TestTransformer_TruncatesLargeDocuments(t *testing.T) {
	client := &llm.Scripted{Responses: []string{"a"}}
	a := &agents.Transformer{Deps: agents.Deps{LLM: client}}
	req := request(domain.KindTransformer, "extract", map[string]any{"useAdvancedModel": false})
	req.Context.Merge(map[string]any{domain.KeyInputContent: strings.Repeat("x", 12000)})

	res, err := a.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", res.Model)
	assert.Contains(t, userPrompt(client.Calls()[0]), "[Document truncated for processing...]")
}

func TestTranslator(t *testing.T) {
	client := &llm.Scripted{Responses: []string{"Artículo,Cantidad\nBolígrafos,3"}}
	a := &agents.Translator{Deps: agents.Deps{LLM: client}}
	req := request(domain.KindTranslator, "translate", map[string]any{"targetLanguage": "es"})
	req.Context.Merge(map[string]any{
		agents.KeyTransformed: "Item,Amount,Notes\nPens,3,blue",
		domain.KeyFinalAnswer: "ignored",
	})

	res, err := a.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "CSV", res.Metadata["detected_format"])
	assert.Equal(t, "Spanish", res.Metadata["target_language"])
	assert.Equal(t, agents.KeyTransformed, res.Metadata["source"])
	assert.Equal(t, res.Content, res.ContextUpdates[agents.KeyTranslated])
	assert.Equal(t, "Item,Amount,Notes\nPens,3,blue", userPrompt(client.Calls()[0]))
}

func TestImageGenerator_UsesOrchestratorPrompt(t *testing.T) {
	a := &agents.ImageGenerator{Deps: agents.Deps{Images: llm.Placeholder{}}}
	req := request(domain.KindImageGenerator, "draw something", nil)
	req.Context.Merge(map[string]any{domain.KeyOrchestrator: agents.OrchestratorDecision{ImagePrompt: "a red fox", ImageType: "cartoon"}})

	res, err := a.Execute(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "local", res.Model)

	req.Context.Merge(res.ContextUpdates)
	images := req.Context.ToolOutputs(domain.ToolImages)
	require.Len(t, images, 1)
	img := images[0].(domain.ImageOutput)
	assert.Equal(t, "a red fox", img.Prompt)
	assert.Equal(t, "cartoon", img.Style)
	assert.Contains(t, img.URL, "1024x1024")
	assert.Equal(t, []string{"[IMAGE] Generated: a red fox"}, req.Context.Snippets())
}

func TestImageGenerator_FailureIsNotFatal(t *testing.T) {
	a := &agents.ImageGenerator{Deps: agents.Deps{Images: failingImages{}}}
	res, err := a.Execute(context.Background(), request(domain.KindImageGenerator, "draw", map[string]any{"imageType": "diagram"}))
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Content, "quota exceeded")

	images := res.ContextUpdates[domain.ToolImages].([]domain.ImageOutput)
	require.Len(t, images, 1)
	assert.Equal(t, "diagram", images[0].Style)
	assert.Contains(t, images[0].URL, "Generation+Failed")
	assert.NotContains(t, res.ContextUpdates, domain.KeySnippets)
}
