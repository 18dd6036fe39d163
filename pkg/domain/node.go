package domain

import (
	"encoding/json"
	"strings"
)

// NodeKind is the type tag of a node.
type NodeKind string

// Input kinds.
const (
	KindPrompt      NodeKind = "prompt"
	KindUpload      NodeKind = "upload"
	KindSpreadsheet NodeKind = "spreadsheet"
)

// Output kinds.
const (
	KindResponse NodeKind = "response"
)

// Agent kinds.
const (
	KindSupervisor     NodeKind = "supervisor"
	KindOrchestrator   NodeKind = "orchestrator"
	KindSemanticSearch NodeKind = "semantic_search"
	KindSampler        NodeKind = "sampler"
	KindSynthesis      NodeKind = "synthesis"
	KindSummarization  NodeKind = "summarization"
	KindFormatting     NodeKind = "formatting"
	KindTransformer    NodeKind = "transformer"
	KindTranslator     NodeKind = "translator"
	KindImageGenerator NodeKind = "image_generator"
)

var inputKinds = map[NodeKind]bool{
	KindPrompt:      true,
	KindUpload:      true,
	KindSpreadsheet: true,
}

var outputKinds = map[NodeKind]bool{
	KindResponse: true,
}

var agentKinds = map[NodeKind]bool{
	KindSupervisor:     true,
	KindOrchestrator:   true,
	KindSemanticSearch: true,
	KindSampler:        true,
	KindSynthesis:      true,
	KindSummarization:  true,
	KindFormatting:     true,
	KindTransformer:    true,
	KindTranslator:     true,
	KindImageGenerator: true,
}

// IsInput reports whether k is one of the input kinds.
func (k NodeKind) IsInput() bool { return inputKinds[k] }

// IsOutput reports whether k is one of the output kinds.
func (k NodeKind) IsOutput() bool { return outputKinds[k] }

// IsAgent reports whether k is one of the known agent kinds.
func (k NodeKind) IsAgent() bool { return agentKinds[k] }

// IsKnown reports whether k belongs to the fixed enumeration.
func (k NodeKind) IsKnown() bool { return k.IsInput() || k.IsOutput() || k.IsAgent() }

// AgentKinds returns every agent kind in a stable order.
func AgentKinds() []NodeKind {
	return []NodeKind{
		KindSupervisor, KindOrchestrator, KindSemanticSearch, KindSampler, KindSynthesis,
		KindSummarization, KindFormatting, KindTransformer, KindTranslator, KindImageGenerator,
	}
}

// InferKind derives a kind from an id prefix ("synthesis-3" -> "synthesis").
func InferKind(id string) NodeKind {
	prefix, _, _ := strings.Cut(id, "-")
	return NodeKind(prefix)
}

// Node is a unit of work in a workflow graph.
type Node struct {
	ID       string         `json:"id" yaml:"id" mapstructure:"id"`
	Kind     NodeKind       `json:"type,omitempty" yaml:"type,omitempty" mapstructure:"type"`
	Settings map[string]any `json:"settings,omitempty" yaml:"settings,omitempty" mapstructure:"settings"`

	// Payload is the literal content of an input node (prompt text, uploaded document).
	Payload string `json:"payload,omitempty" yaml:"payload,omitempty" mapstructure:"payload"`
}

// UnmarshalJSON accepts both the flat form and the editor form
// {"id": "...", "type": "workflow", "data": {"nodeType": "...", "settings": {...}, "content": "..."}}.
// In the editor form data.nodeType is the kind.
func (n *Node) UnmarshalJSON(b []byte) error {
	type flat Node
	var raw struct {
		flat
		Data *struct {
			NodeType string         `json:"nodeType"`
			Settings map[string]any `json:"settings"`
			Content  string         `json:"content"`
		} `json:"data"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	*n = Node(raw.flat)
	if raw.Data != nil {
		// The editor puts its own renderer name in "type".
		if raw.Data.NodeType != "" {
			n.Kind = NodeKind(raw.Data.NodeType)
		}
		if n.Settings == nil {
			n.Settings = raw.Data.Settings
		}
		if n.Payload == "" {
			n.Payload = raw.Data.Content
		}
	}
	return nil
}

// Edge is a directed dependency link.
type Edge struct {
	Source string `json:"source" yaml:"source" mapstructure:"source"`
	Target string `json:"target" yaml:"target" mapstructure:"target"`
}

// WorkflowGraph is the static definition consumed by the kernel.
type WorkflowGraph struct {
	Nodes []Node `json:"nodes" yaml:"nodes" mapstructure:"nodes"`
	Edges []Edge `json:"edges" yaml:"edges" mapstructure:"edges"`
}
