package domain

import "time"

// Workflow is a saved graph definition owned by a user.
type Workflow struct {
	ID          string    `json:"id" yaml:"id" mapstructure:"id"`
	UserID      string    `json:"user_id" yaml:"user_id" mapstructure:"user_id"`
	Name        string    `json:"name" yaml:"name" mapstructure:"name"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty" mapstructure:"description"`
	Nodes       []Node    `json:"nodes" yaml:"nodes" mapstructure:"nodes"`
	Edges       []Edge    `json:"edges" yaml:"edges" mapstructure:"edges"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at,omitempty" mapstructure:"-"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"updated_at,omitempty" mapstructure:"-"`
}

// Graph returns the executable part of the workflow.
func (w *Workflow) Graph() WorkflowGraph {
	return WorkflowGraph{Nodes: w.Nodes, Edges: w.Edges}
}

// Document is one entry of a knowledge base.
type Document struct {
	ID            string    `json:"id"`
	KnowledgeBase string    `json:"knowledge_base"`
	Title         string    `json:"title"`
	Content       string    `json:"content,omitempty"`
	Source        string    `json:"source,omitempty"`
	ContentHash   string    `json:"content_hash,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
