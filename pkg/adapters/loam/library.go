// Package loam serves read-only example workflows from a Loam repository.
package loam

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/loam"
)

// Library implements ports.WorkflowLibrary over a Loam typed repository.
// Documents may be Markdown with front matter, JSON or YAML.
type Library struct {
	Repo *loam.TypedRepository[WorkflowMetadata]
}

// New creates a library over repo.
func New(repo *loam.TypedRepository[WorkflowMetadata]) *Library {
	return &Library{Repo: repo}
}

// Open initialises a read-only Loam repository at dir.
func Open(dir string) (*Library, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	repo, err := loam.Init(abs,
		loam.WithVersioning(false),
		loam.WithReadOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	return New(loam.NewTypedRepository[WorkflowMetadata](repo)), nil
}

// Get returns domain.ErrWorkflowNotFound when no document matches id.
func (l *Library) Get(ctx context.Context, id string) (*domain.Workflow, error) {
	doc, err := l.Repo.Get(ctx, id)
	if err != nil {
		// Loam resolves "basic_qa" to "basic_qa.md"; a miss means the
		// document does not exist in any supported format.
		all, listErr := l.List(ctx)
		if listErr != nil {
			return nil, fmt.Errorf("loam get failed for %s: %w", id, err)
		}
		for _, wf := range all {
			if wf.ID == id {
				return wf, nil
			}
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrWorkflowNotFound, id)
	}
	return toWorkflow(doc.ID, doc.Data, doc.Content)
}

// List returns every workflow of the repository ordered by id.
func (l *Library) List(ctx context.Context) ([]*domain.Workflow, error) {
	docs, err := l.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	seen := make(map[string]string)
	out := make([]*domain.Workflow, 0, len(docs))
	for _, doc := range docs {
		wf, err := toWorkflow(doc.ID, doc.Data, doc.Content)
		if err != nil {
			return nil, err
		}
		if existing, ok := seen[wf.ID]; ok {
			return nil, fmt.Errorf("collision detected: workflow '%s' is defined in both '%s' and '%s'", wf.ID, existing, doc.ID)
		}
		seen[wf.ID] = doc.ID
		out = append(out, wf)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func toWorkflow(docID string, meta WorkflowMetadata, content string) (*domain.Workflow, error) {
	id := meta.ID
	if id == "" {
		id = docID
	}
	wf := &domain.Workflow{
		ID:          trimExtension(id),
		Name:        meta.Name,
		Description: meta.Description,
		Edges:       meta.Edges,
	}
	if wf.Name == "" {
		wf.Name = wf.ID
	}
	if wf.Description == "" {
		wf.Description = strings.TrimSpace(content)
	}

	// Nodes go through JSON so the editor form is understood.
	raw, err := json.Marshal(meta.Nodes)
	if err != nil {
		return nil, fmt.Errorf("workflow %s: %w", wf.ID, err)
	}
	if err := json.Unmarshal(raw, &wf.Nodes); err != nil {
		return nil, fmt.Errorf("workflow %s: invalid nodes: %w", wf.ID, err)
	}
	if wf.Nodes == nil {
		return nil, errors.New("workflow " + wf.ID + " has no nodes")
	}
	if wf.Edges == nil {
		wf.Edges = []domain.Edge{}
	}
	return wf, nil
}

func trimExtension(id string) string {
	ext := filepath.Ext(id)
	if ext != "" {
		return filepath.ToSlash(strings.TrimSuffix(id, ext))
	}
	return filepath.ToSlash(id)
}
