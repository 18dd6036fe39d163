package retrieval_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aretw0/lattice/pkg/llm"
	"github.com/aretw0/lattice/pkg/ports"
	"github.com/aretw0/lattice/pkg/retrieval"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingEmbedder wraps the hash embedder and counts calls.
type countingEmbedder struct {
	inner llm.Embedder
	calls int
}

func (c *countingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls++
	return c.inner.Embed(ctx, texts)
}

func seeded(t *testing.T, opts ...retrieval.Option) (*retrieval.Service, *countingEmbedder) {
	t.Helper()
	emb := &countingEmbedder{inner: llm.NewHashEmbedder(128)}
	svc := retrieval.NewService(retrieval.NewMemoryStore(), emb, opts...)
	docs := []retrieval.DocumentInput{
		{Title: "Tenancy", Content: "A lease agreement binds landlord and tenant to rent terms."},
		{Title: "Employment", Content: "An employment contract sets salary and notice period."},
		{Title: "Privacy", Content: "Data protection law governs personal data processing."},
	}
	for _, d := range docs {
		_, added, err := svc.Ingest(context.Background(), d)
		require.NoError(t, err)
		require.True(t, added)
	}
	return svc, emb
}

func TestService_SemanticSearch(t *testing.T) {
	svc, _ := seeded(t)

	results, err := svc.SemanticSearch(context.Background(), ports.SearchQuery{Query: "lease landlord tenant rent", TopK: 2})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Tenancy", results[0].Title)
	assert.Equal(t, retrieval.ScoreSemantic, results[0].ScoreType)
	assert.Equal(t, "legal", results[0].KnowledgeBase)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestService_SemanticSearch_EmptyQuery(t *testing.T) {
	svc, _ := seeded(t)
	results, err := svc.SemanticSearch(context.Background(), ports.SearchQuery{Query: "  "})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestService_Rerank(t *testing.T) {
	reranker := &llm.Scripted{Responses: []string{"```json\n[{\"doc_id\": 2, \"relevance_score\": 0.91}, {\"doc_id\": 1, \"relevance_score\": 40}, {\"doc_id\": 9, \"relevance_score\": 99}]\n```"}}
	svc, _ := seeded(t, retrieval.WithReranker(reranker, "gpt-4o-mini"))

	results, err := svc.SemanticSearch(context.Background(), ports.SearchQuery{Query: "contract", TopK: 1, Rerank: true})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, retrieval.ScoreReranked, results[0].ScoreType)
	assert.Equal(t, 91.0, results[0].Score)

	calls := reranker.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "gpt-4o-mini", calls[0].Model)
	assert.Contains(t, calls[0].Messages[0].Content, "[DOC 3]", "three times topK candidates are scored")
}

func TestService_RerankFallsBack(t *testing.T) {
	for name, reranker := range map[string]*llm.Scripted{
		"Invalid JSON": {Responses: []string{"I think document 2 is best"}},
		"LLM error":    {Err: errors.New("boom")},
	} {
		t.Run(name, func(t *testing.T) {
			svc, _ := seeded(t, retrieval.WithReranker(reranker, "small"))
			results, err := svc.SemanticSearch(context.Background(), ports.SearchQuery{Query: "salary notice", TopK: 2, Rerank: true})
			require.NoError(t, err)
			require.Len(t, results, 2)
			assert.Equal(t, retrieval.ScoreSemantic, results[0].ScoreType)
			assert.Equal(t, "Employment", results[0].Title)
		})
	}
}

func TestService_IngestSkipsUnchanged(t *testing.T) {
	svc, emb := seeded(t)
	before := emb.calls

	doc, added, err := svc.Ingest(context.Background(), retrieval.DocumentInput{Title: "Tenancy", Content: "A lease agreement binds landlord and tenant to rent terms."})
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, before, emb.calls)
	assert.Equal(t, retrieval.DocumentID("legal", "Tenancy"), doc.ID)
	assert.True(t, strings.HasPrefix(doc.ID, "doc_legal_"))
	assert.Len(t, doc.ID, len("doc_legal_")+8)

	_, added, err = svc.Ingest(context.Background(), retrieval.DocumentInput{Title: "Tenancy", Content: "Updated lease rules."})
	require.NoError(t, err)
	assert.True(t, added)

	n, err := svc.Count(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestService_IngestValidates(t *testing.T) {
	svc := retrieval.NewService(retrieval.NewMemoryStore(), llm.NewHashEmbedder(8))
	_, _, err := svc.Ingest(context.Background(), retrieval.DocumentInput{Title: "x"})
	assert.ErrorIs(t, err, retrieval.ErrInvalidDocument)
}

func TestService_LoadDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "gdpr.md"), []byte("intro\n# GDPR Basics\nPersonal data rules."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes_2024.txt"), []byte("plain notes"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "image.png"), []byte("binary"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.md"), []byte("  \n"), 0o644))

	svc := retrieval.NewService(retrieval.NewMemoryStore(), llm.NewHashEmbedder(32))
	ctx := context.Background()

	report, err := svc.LoadDirectory(ctx, "policies", dir)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Added)
	assert.ElementsMatch(t, []string{"gdpr.md", "notes_2024.txt"}, report.Files)

	docs, err := svc.Documents(ctx, "policies")
	require.NoError(t, err)
	titles := []string{docs[0].Title, docs[1].Title}
	assert.ElementsMatch(t, []string{"GDPR Basics", "notes 2024"}, titles)

	report, err = svc.LoadDirectory(ctx, "policies", dir)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Added)
	assert.Equal(t, 2, report.Unchanged)
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `[1]`, retrieval.StripCodeFence("```json\n[1]\n```"))
	assert.Equal(t, `[1]`, retrieval.StripCodeFence("  [1] "))
	assert.Equal(t, `{"a":1}`, retrieval.StripCodeFence("```\n{\"a\":1}```"))
}
