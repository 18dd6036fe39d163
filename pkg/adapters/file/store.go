// Package file stores workflows as JSON files and loads graph definitions
// from JSON or YAML documents.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/lattice/pkg/domain"
)

// ErrInvalidKey is returned for user or workflow ids that are not safe file names.
var ErrInvalidKey = errors.New("invalid file store key")

// Store implements ports.WorkflowStore on the local filesystem as
// <BasePath>/<user>/<id>.json.
type Store struct {
	BasePath string
}

// New creates a Store. An empty basePath defaults to ".lattice/workflows".
func New(basePath string) *Store {
	if basePath == "" {
		basePath = filepath.Join(".lattice", "workflows")
	}
	return &Store{BasePath: basePath}
}

func (s *Store) path(userID, id string) (string, error) {
	for _, k := range []string{userID, id} {
		if k == "" || k == "." || k == ".." || strings.ContainsAny(k, `/\`) {
			return "", fmt.Errorf("%w: %q", ErrInvalidKey, k)
		}
	}
	return filepath.Join(s.BasePath, userID, id+".json"), nil
}

// Save writes the workflow atomically: temp file, fsync, rename.
func (s *Store) Save(ctx context.Context, wf *domain.Workflow) error {
	dest, err := s.path(wf.UserID, wf.ID)
	if err != nil {
		return err
	}
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to ensure workflow directory: %w", err)
	}

	data, err := json.MarshalIndent(wf, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal workflow: %w", err)
	}

	// Same directory so the rename stays on one filesystem.
	tmp, err := os.CreateTemp(dir, "tmp-"+wf.ID+"-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	// Windows cannot rename an open file.
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// os.Rename does not replace existing files on Windows.
	if _, err := os.Stat(dest); err == nil {
		if err := os.Remove(dest); err != nil {
			return fmt.Errorf("failed to remove existing workflow file: %w", err)
		}
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Get reads one workflow.
func (s *Store) Get(ctx context.Context, userID, id string) (*domain.Workflow, error) {
	p, err := s.path(userID, id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrWorkflowNotFound
		}
		return nil, fmt.Errorf("failed to read workflow file: %w", err)
	}

	var wf domain.Workflow
	if err := json.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow %s: %w", id, err)
	}
	return &wf, nil
}

// Delete removes the workflow file.
func (s *Store) Delete(ctx context.Context, userID, id string) error {
	p, err := s.path(userID, id)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if os.IsNotExist(err) {
			return domain.ErrWorkflowNotFound
		}
		return fmt.Errorf("failed to delete workflow file: %w", err)
	}
	return nil
}

// List reads every workflow of the user. Unreadable files are skipped.
func (s *Store) List(ctx context.Context, userID string) ([]*domain.Workflow, error) {
	if _, err := s.path(userID, "x"); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(filepath.Join(s.BasePath, userID))
	if err != nil {
		if os.IsNotExist(err) {
			return []*domain.Workflow{}, nil
		}
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	out := make([]*domain.Workflow, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || filepath.Ext(name) != ".json" || strings.HasPrefix(name, "tmp-") {
			continue
		}
		wf, err := s.Get(ctx, userID, strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue
		}
		out = append(out, wf)
	}
	return out, nil
}
