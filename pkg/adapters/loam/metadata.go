package loam

import "github.com/aretw0/lattice/pkg/domain"

// WorkflowMetadata is the front matter (or JSON/YAML body) of a workflow
// document in the example library.
type WorkflowMetadata struct {
	ID          string           `json:"id" mapstructure:"id"`
	Name        string           `json:"name" mapstructure:"name"`
	Description string           `json:"description" mapstructure:"description"`
	Nodes       []map[string]any `json:"nodes" mapstructure:"nodes"`
	Edges       []domain.Edge    `json:"edges" mapstructure:"edges"`
}
