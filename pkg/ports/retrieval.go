package ports

import (
	"context"

	"github.com/aretw0/lattice/pkg/domain"
)

// SearchQuery parameters of a semantic search.
type SearchQuery struct {
	Query         string
	TopK          int
	Rerank        bool
	KnowledgeBase string
}

// SearchResult is one ranked document.
type SearchResult struct {
	ID            string  `json:"id,omitempty"`
	Title         string  `json:"title"`
	Snippet       string  `json:"snippet"`
	Score         float64 `json:"score"`
	ScoreType     string  `json:"score_type"`
	SemanticScore float64 `json:"semantic_score,omitempty"`
	KnowledgeBase string  `json:"knowledge_base,omitempty"`
}

// Retriever is the retrieval capability used by retrieval-aware agents.
type Retriever interface {
	SemanticSearch(ctx context.Context, q SearchQuery) ([]SearchResult, error)
}

// ScoredDocument is a vector store hit with its cosine similarity.
type ScoredDocument struct {
	Document   domain.Document
	Similarity float64
}

// VectorStore persists documents with their embeddings.
type VectorStore interface {
	// Upsert inserts or replaces a document and its embedding.
	Upsert(ctx context.Context, doc domain.Document, embedding []float32) error
	// ContentHash returns the stored hash of id, if present.
	ContentHash(ctx context.Context, id string) (string, bool, error)
	// Search returns up to k documents of kb ordered by similarity.
	Search(ctx context.Context, kb string, embedding []float32, k int) ([]ScoredDocument, error)
	// List returns the documents of kb, newest first.
	List(ctx context.Context, kb string) ([]domain.Document, error)
	// Delete removes a document. Returns domain.ErrDocumentNotFound if missing.
	Delete(ctx context.Context, id string) error
	// Count returns the number of documents in kb.
	Count(ctx context.Context, kb string) (int, error)
}
