// Package retrieval implements semantic search over knowledge bases:
// embedding, vector stores, optional LLM reranking and document ingestion.
package retrieval

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/llm"
	"github.com/aretw0/lattice/pkg/ports"
)

const (
	// DefaultTopK is used when a query asks for no specific count.
	DefaultTopK = 5
	// rerankSnippet bounds the text of each candidate sent to the reranker.
	rerankSnippet = 2000
)

// ErrInvalidDocument is returned by Ingest for documents missing a title or content.
var ErrInvalidDocument = errors.New("invalid document")

// Score types reported in search results.
const (
	ScoreSemantic = "semantic"
	ScoreReranked = "reranked"
)

// Service answers semantic searches and ingests documents.
type Service struct {
	store       ports.VectorStore
	embedder    llm.Embedder
	reranker    llm.Client
	rerankModel string
	defaultKB   string
	logger      *slog.Logger
	now         func() time.Time
}

// Option configures the Service.
type Option func(*Service)

// WithReranker enables LLM reranking with the given model.
func WithReranker(client llm.Client, model string) Option {
	return func(s *Service) {
		s.reranker = client
		s.rerankModel = model
	}
}

// WithDefaultKnowledgeBase sets the knowledge base used when a query names none.
func WithDefaultKnowledgeBase(kb string) Option {
	return func(s *Service) {
		if kb != "" {
			s.defaultKB = kb
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a retrieval service over store.
func NewService(store ports.VectorStore, embedder llm.Embedder, opts ...Option) *Service {
	s := &Service{
		store:     store,
		embedder:  embedder,
		defaultKB: domain.DefaultKnowledgeBase,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the underlying vector store.
func (s *Service) Store() ports.VectorStore { return s.store }

// DefaultKnowledgeBase returns the knowledge base used for unscoped calls.
func (s *Service) DefaultKnowledgeBase() string { return s.defaultKB }

// SemanticSearch implements ports.Retriever. With reranking it fetches three
// times as many candidates and lets the LLM score them; any rerank failure
// falls back to the semantic order.
func (s *Service) SemanticSearch(ctx context.Context, q ports.SearchQuery) ([]ports.SearchResult, error) {
	if strings.TrimSpace(q.Query) == "" {
		return nil, nil
	}
	topK := q.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	kb := q.KnowledgeBase
	if kb == "" {
		kb = s.defaultKB
	}
	rerank := q.Rerank && s.reranker != nil

	vecs, err := s.embedder.Embed(ctx, []string{q.Query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embed query: got %d vectors", len(vecs))
	}

	fetch := topK
	if rerank {
		fetch = topK * 3
	}
	candidates, err := s.store.Search(ctx, kb, vecs[0], fetch)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", kb, err)
	}

	if rerank && len(candidates) > 1 {
		results, err := s.rerank(ctx, q.Query, candidates, topK)
		if err == nil {
			return results, nil
		}
		s.logger.Warn("Rerank failed, using semantic scores", "err", err, "kb", kb)
	}

	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	results := make([]ports.SearchResult, 0, len(candidates))
	for _, c := range candidates {
		results = append(results, ports.SearchResult{
			ID:            c.Document.ID,
			Title:         c.Document.Title,
			Snippet:       c.Document.Content,
			Score:         round1(c.Similarity * 100),
			ScoreType:     ScoreSemantic,
			KnowledgeBase: c.Document.KnowledgeBase,
		})
	}
	return results, nil
}

type ranking struct {
	DocID          int     `json:"doc_id"`
	RelevanceScore float64 `json:"relevance_score"`
}

func (s *Service) rerank(ctx context.Context, query string, candidates []ports.ScoredDocument, topK int) ([]ports.SearchResult, error) {
	var docs strings.Builder
	for i, c := range candidates {
		snippet := c.Document.Content
		if len(snippet) > rerankSnippet {
			snippet = snippet[:rerankSnippet] + "..."
		}
		fmt.Fprintf(&docs, "\n[DOC %d] %s\n%s\n", i+1, c.Document.Title, snippet)
	}

	prompt := fmt.Sprintf(`You are a document relevance scorer. Score each document's relevance to the query.

Query: %s

Documents:
%s

For each document, output a JSON array with objects containing:
- "doc_id": the document number (1-indexed integer)
- "relevance_score": an INTEGER from 0 to 100

Output ONLY a valid JSON array, no explanation.`, query, docs.String())

	raw, err := s.reranker.Chat(ctx, llm.ChatRequest{
		Model:       s.rerankModel,
		Messages:    []llm.Message{llm.User(prompt)},
		Temperature: 0,
		MaxTokens:   500,
	})
	if err != nil {
		return nil, err
	}

	var rankings []ranking
	if err := json.Unmarshal([]byte(StripCodeFence(raw)), &rankings); err != nil {
		return nil, fmt.Errorf("parse rankings: %w", err)
	}

	results := make([]ports.SearchResult, 0, len(rankings))
	seen := make(map[int]bool)
	for _, r := range rankings {
		idx := r.DocID - 1
		if idx < 0 || idx >= len(candidates) || seen[idx] {
			continue
		}
		seen[idx] = true
		relevance := r.RelevanceScore
		if relevance <= 1.0 {
			relevance *= 100
		}
		c := candidates[idx]
		results = append(results, ports.SearchResult{
			ID:            c.Document.ID,
			Title:         c.Document.Title,
			Snippet:       c.Document.Content,
			Score:         round1(relevance),
			SemanticScore: round1(c.Similarity * 100),
			ScoreType:     ScoreReranked,
			KnowledgeBase: c.Document.KnowledgeBase,
		})
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("parse rankings: no valid document ids")
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// DocumentInput is a document to ingest.
type DocumentInput struct {
	ID            string `json:"id,omitempty"`
	KnowledgeBase string `json:"knowledge_base"`
	Title         string `json:"title"`
	Content       string `json:"content"`
	Source        string `json:"source,omitempty"`
}

// DocumentID derives the id of a document uploaded without one.
func DocumentID(kb, title string) string {
	sum := md5.Sum([]byte(title))
	return fmt.Sprintf("doc_%s_%s", kb, hex.EncodeToString(sum[:])[:8])
}

// ContentHash is the sha256 of content, hex encoded.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Ingest embeds and stores in. It reports false without embedding when a
// document with the same id and content is already stored.
func (s *Service) Ingest(ctx context.Context, in DocumentInput) (domain.Document, bool, error) {
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Content) == "" {
		return domain.Document{}, false, fmt.Errorf("ingest: %w: title and content are required", ErrInvalidDocument)
	}
	if in.KnowledgeBase == "" {
		in.KnowledgeBase = s.defaultKB
	}
	if in.ID == "" {
		in.ID = DocumentID(in.KnowledgeBase, in.Title)
	}

	now := s.now().UTC()
	doc := domain.Document{
		ID:            in.ID,
		KnowledgeBase: in.KnowledgeBase,
		Title:         in.Title,
		Content:       in.Content,
		Source:        in.Source,
		ContentHash:   ContentHash(in.Content),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	existing, ok, err := s.store.ContentHash(ctx, doc.ID)
	if err != nil {
		return domain.Document{}, false, fmt.Errorf("ingest %s: %w", doc.ID, err)
	}
	if ok && existing == doc.ContentHash {
		s.logger.Debug("Document unchanged", "id", doc.ID)
		return doc, false, nil
	}

	vecs, err := s.embedder.Embed(ctx, []string{doc.Title + "\n\n" + doc.Content})
	if err != nil {
		return domain.Document{}, false, fmt.Errorf("embed %s: %w", doc.ID, err)
	}
	if len(vecs) != 1 {
		return domain.Document{}, false, fmt.Errorf("embed %s: got %d vectors", doc.ID, len(vecs))
	}
	if err := s.store.Upsert(ctx, doc, vecs[0]); err != nil {
		return domain.Document{}, false, fmt.Errorf("store %s: %w", doc.ID, err)
	}
	s.logger.Info("Document ingested", "id", doc.ID, "kb", doc.KnowledgeBase, "title", doc.Title)
	return doc, true, nil
}

// Documents lists the documents of kb.
func (s *Service) Documents(ctx context.Context, kb string) ([]domain.Document, error) {
	if kb == "" {
		kb = s.defaultKB
	}
	return s.store.List(ctx, kb)
}

// Delete removes a document.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

// Count returns the number of documents in kb.
func (s *Service) Count(ctx context.Context, kb string) (int, error) {
	if kb == "" {
		kb = s.defaultKB
	}
	return s.store.Count(ctx, kb)
}

// StripCodeFence removes a surrounding ``` block and its language tag.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}
