package agents

import (
	"context"
	"fmt"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
)

// SemanticSearchSettings configure the semantic search agent.
type SemanticSearchSettings struct {
	TopK            int    `mapstructure:"topK"`
	EnableReranking bool   `mapstructure:"enableReranking"`
	KnowledgeBase   string `mapstructure:"knowledgeBase"`
}

// SemanticSearch queries the knowledge base and contributes snippets and docs.
type SemanticSearch struct {
	Deps
}

// Execute implements ports.Agent.
func (a *SemanticSearch) Execute(ctx context.Context, req ports.AgentRequest) (*domain.AgentResult, error) {
	s := SemanticSearchSettings{TopK: 5, EnableReranking: true}
	if err := decode(req.Settings, &s); err != nil {
		return nil, err
	}
	kb := s.KnowledgeBase
	if kb == "" {
		kb = req.KnowledgeBase
	}

	var results []ports.SearchResult
	if a.Retriever != nil {
		var err error
		results, err = a.Retriever.SemanticSearch(ctx, ports.SearchQuery{
			Query:         req.Message,
			TopK:          s.TopK,
			Rerank:        s.EnableReranking,
			KnowledgeBase: kb,
		})
		if err != nil {
			return nil, fmt.Errorf("semantic search: %w", err)
		}
	}

	snippets := make([]string, 0, len(results))
	docs := make([]map[string]any, 0, len(results))
	for _, r := range results {
		snippets = append(snippets, fmt.Sprintf("[%s] %s", r.Title, r.Snippet))
		docs = append(docs, map[string]any{
			"title":      r.Title,
			"snippet":    truncate(r.Snippet, 500),
			"score":      r.Score,
			"score_type": r.ScoreType,
		})
	}

	return &domain.AgentResult{
		Agent:   string(domain.KindSemanticSearch),
		Model:   "embedding",
		Action:  "search",
		Content: fmt.Sprintf("Found %d relevant documents", len(results)),
		Success: true,
		Metadata: map[string]any{
			"num_results":    len(results),
			"top_k":          s.TopK,
			"reranked":       s.EnableReranking && len(results) > 1,
			"knowledge_base": kb,
			"docs":           docs,
		},
		ContextUpdates: map[string]any{
			domain.KeySemantic: results,
			domain.KeySnippets: snippets,
			domain.KeyDocs:     docs,
		},
	}, nil
}
