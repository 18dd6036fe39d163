package memory

import (
	"context"
	"sync"

	"github.com/aretw0/lattice/pkg/domain"
)

// Store implements ports.WorkflowStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]map[string]*domain.Workflow
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]map[string]*domain.Workflow),
	}
}

// Save persists a copy of wf.
func (s *Store) Save(ctx context.Context, wf *domain.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byUser, ok := s.data[wf.UserID]
	if !ok {
		byUser = make(map[string]*domain.Workflow)
		s.data[wf.UserID] = byUser
	}
	byUser[wf.ID] = clone(wf)
	return nil
}

// Get returns a copy so callers cannot mutate stored workflows.
func (s *Store) Get(ctx context.Context, userID, id string) (*domain.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wf, ok := s.data[userID][id]
	if !ok {
		return nil, domain.ErrWorkflowNotFound
	}
	return clone(wf), nil
}

// Delete removes the workflow.
func (s *Store) Delete(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[userID][id]; !ok {
		return domain.ErrWorkflowNotFound
	}
	delete(s.data[userID], id)
	return nil
}

// List returns the user's workflows.
func (s *Store) List(ctx context.Context, userID string) ([]*domain.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Workflow, 0, len(s.data[userID]))
	for _, wf := range s.data[userID] {
		out = append(out, clone(wf))
	}
	return out, nil
}

func clone(wf *domain.Workflow) *domain.Workflow {
	c := *wf
	c.Nodes = make([]domain.Node, len(wf.Nodes))
	for i, n := range wf.Nodes {
		c.Nodes[i] = n
		if n.Settings != nil {
			c.Nodes[i].Settings = make(map[string]any, len(n.Settings))
			for k, v := range n.Settings {
				c.Nodes[i].Settings[k] = v
			}
		}
	}
	c.Edges = append([]domain.Edge(nil), wf.Edges...)
	return &c
}
