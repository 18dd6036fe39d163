package file

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/lattice/pkg/domain"
	"gopkg.in/yaml.v3"
)

// Decode parses a workflow document. ext selects the format (".json",
// ".yaml", ".yml"). Nodes may use the flat or the editor form.
func Decode(data []byte, ext string) (*domain.Workflow, error) {
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		var generic any
		if err := yaml.Unmarshal(data, &generic); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
		// Round-trip through JSON so both node forms decode the same way.
		b, err := json.Marshal(generic)
		if err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
		data = b
	case ".json", "":
	default:
		return nil, fmt.Errorf("unsupported workflow format %q", ext)
	}

	var wf domain.Workflow
	if err := json.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("parse workflow: %w", err)
	}
	return &wf, nil
}

// LoadGraph reads a workflow file. The id defaults to the file stem.
func LoadGraph(p string) (*domain.Workflow, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	wf, err := Decode(data, filepath.Ext(p))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	if wf.ID == "" {
		wf.ID = strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
	}
	return wf, nil
}

// LoadFS decodes every .json, .yaml and .yml file at the root of fsys,
// ordered by file name.
func LoadFS(fsys fs.FS) ([]*domain.Workflow, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		switch path.Ext(e.Name()) {
		case ".json", ".yaml", ".yml":
			if !e.IsDir() {
				names = append(names, e.Name())
			}
		}
	}
	sort.Strings(names)

	out := make([]*domain.Workflow, 0, len(names))
	for _, name := range names {
		data, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, err
		}
		wf, err := Decode(data, path.Ext(name))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if wf.ID == "" {
			wf.ID = strings.TrimSuffix(name, path.Ext(name))
		}
		out = append(out, wf)
	}
	return out, nil
}
