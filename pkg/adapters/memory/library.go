package memory

import (
	"context"
	"sort"

	"github.com/aretw0/lattice/pkg/domain"
)

// Library implements ports.WorkflowLibrary over a fixed set of workflows.
type Library struct {
	workflows map[string]*domain.Workflow
}

// NewLibrary creates a library. Later workflows replace earlier ones with
// the same id.
func NewLibrary(wfs ...*domain.Workflow) *Library {
	l := &Library{workflows: make(map[string]*domain.Workflow, len(wfs))}
	for _, wf := range wfs {
		l.workflows[wf.ID] = clone(wf)
	}
	return l
}

// Get returns domain.ErrWorkflowNotFound for unknown ids.
func (l *Library) Get(ctx context.Context, id string) (*domain.Workflow, error) {
	wf, ok := l.workflows[id]
	if !ok {
		return nil, domain.ErrWorkflowNotFound
	}
	return clone(wf), nil
}

// List returns the workflows ordered by id.
func (l *Library) List(ctx context.Context) ([]*domain.Workflow, error) {
	ids := make([]string, 0, len(l.workflows))
	for id := range l.workflows {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]*domain.Workflow, len(ids))
	for i, id := range ids {
		out[i] = clone(l.workflows[id])
	}
	return out, nil
}
