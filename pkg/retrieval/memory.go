package retrieval

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
)

type entry struct {
	doc domain.Document
	vec []float32
}

// MemoryStore is an in-process VectorStore using cosine similarity.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]entry
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]entry)}
}

var _ ports.VectorStore = (*MemoryStore)(nil)

// Upsert implements ports.VectorStore.
func (s *MemoryStore) Upsert(_ context.Context, doc domain.Document, embedding []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.docs[doc.ID]; ok && !old.doc.CreatedAt.IsZero() {
		doc.CreatedAt = old.doc.CreatedAt
	}
	s.docs[doc.ID] = entry{doc: doc, vec: append([]float32(nil), embedding...)}
	return nil
}

// ContentHash implements ports.VectorStore.
func (s *MemoryStore) ContentHash(_ context.Context, id string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.docs[id]
	return e.doc.ContentHash, ok, nil
}

// Search implements ports.VectorStore.
func (s *MemoryStore) Search(_ context.Context, kb string, embedding []float32, k int) ([]ports.ScoredDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var hits []ports.ScoredDocument
	for _, e := range s.docs {
		if e.doc.KnowledgeBase != kb {
			continue
		}
		hits = append(hits, ports.ScoredDocument{Document: e.doc, Similarity: cosine(embedding, e.vec)})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].Document.ID < hits[j].Document.ID
	})
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// List implements ports.VectorStore.
func (s *MemoryStore) List(_ context.Context, kb string) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Document
	for _, e := range s.docs {
		if e.doc.KnowledgeBase == kb {
			out = append(out, e.doc)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Delete implements ports.VectorStore.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return domain.ErrDocumentNotFound
	}
	delete(s.docs, id)
	return nil
}

// Count implements ports.VectorStore.
func (s *MemoryStore) Count(_ context.Context, kb string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, e := range s.docs {
		if e.doc.KnowledgeBase == kb {
			n++
		}
	}
	return n, nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
