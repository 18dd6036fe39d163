package domain

import "encoding/json"

// AgentResult is what an agent hands back to the kernel. ContextUpdates is
// the only way an agent changes the ExecutionContext.
type AgentResult struct {
	Agent          string         `json:"agent"`
	Model          string         `json:"model"`
	Action         string         `json:"action"`
	Content        string         `json:"content"`
	Success        bool           `json:"success"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	ContextUpdates map[string]any `json:"context_updates,omitempty"`

	// Route is set by router kinds to pick the active branch groups.
	Route *RouteDecision `json:"route,omitempty"`
}

// RouteDecision is the structured output of a router node.
type RouteDecision struct {
	Router   string     `json:"router"`
	Selected []NodeKind `json:"selected"`
	Reason   string     `json:"reason,omitempty"`
}

// Selects reports whether kind was explicitly chosen.
func (d *RouteDecision) Selects(kind NodeKind) bool {
	for _, k := range d.Selected {
		if k == kind {
			return true
		}
	}
	return false
}

// StepRecord is the immutable log entry for one resolved node. On the wire
// Metadata is spread into the step object next to the fixed fields.
type StepRecord struct {
	NodeID     string         `json:"node_id"`
	Agent      string         `json:"agent"`
	Model      string         `json:"model"`
	Action     string         `json:"action"`
	Content    string         `json:"content"`
	Success    bool           `json:"success"`
	Excluded   bool           `json:"excluded,omitempty"`
	Skipped    bool           `json:"skipped,omitempty"`
	Metadata   map[string]any `json:"-"`
	DurationMs float64        `json:"duration_ms,omitempty"`
}

var stepFields = []string{"node_id", "agent", "model", "action", "content", "success", "excluded", "skipped", "duration_ms"}

// MarshalJSON flattens Metadata. Fixed fields win over metadata keys.
func (s StepRecord) MarshalJSON() ([]byte, error) {
	type plain StepRecord
	base, err := json.Marshal(plain(s))
	if err != nil || len(s.Metadata) == 0 {
		return base, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(base, &fields); err != nil {
		return nil, err
	}
	out := make(map[string]any, len(fields)+len(s.Metadata))
	for k, v := range s.Metadata {
		out[k] = v
	}
	for k, v := range fields {
		out[k] = v
	}
	return json.Marshal(out)
}

// UnmarshalJSON collects unknown keys back into Metadata.
func (s *StepRecord) UnmarshalJSON(data []byte) error {
	type plain StepRecord
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	var all map[string]any
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for _, k := range stepFields {
		delete(all, k)
	}
	if len(all) > 0 {
		p.Metadata = all
	}
	*s = StepRecord(p)
	return nil
}

// NewStepRecord snapshots an AgentResult.
func NewStepRecord(nodeID string, r *AgentResult) StepRecord {
	meta := make(map[string]any, len(r.Metadata))
	for k, v := range r.Metadata {
		meta[k] = v
	}
	return StepRecord{
		NodeID:   nodeID,
		Agent:    r.Agent,
		Model:    r.Model,
		Action:   r.Action,
		Content:  r.Content,
		Success:  r.Success,
		Metadata: meta,
	}
}

// ImageOutput is the projection of a generated image in the done payload.
type ImageOutput struct {
	Prompt  string `json:"prompt"`
	Style   string `json:"style"`
	URL     string `json:"url"`
	HasData bool   `json:"has_data"`
}

// ToolOutputs aggregates tool results for the done event.
type ToolOutputs struct {
	Images       []ImageOutput `json:"images"`
	Calculations []any         `json:"calculations"`
	WebResults   []any         `json:"web_results"`
	Docs         []any         `json:"docs"`
}

// RunResult is the outcome of a completed run.
type RunResult struct {
	RunID       string                    `json:"run_id"`
	Answer      string                    `json:"answer"`
	ToolOutputs ToolOutputs               `json:"tool_outputs"`
	Steps       []StepRecord              `json:"steps"`
	Order       []string                  `json:"order"`
	States      map[string]ExecutionState `json:"states"`
	LatencyMs   float64                   `json:"latency_ms"`
}

// ExecuteRequest is one runtime request against a graph.
type ExecuteRequest struct {
	Message       string        `json:"message"`
	Graph         WorkflowGraph `json:"graph"`
	KnowledgeBase string        `json:"knowledge_base,omitempty"`
	Model         string        `json:"model,omitempty"`
}
