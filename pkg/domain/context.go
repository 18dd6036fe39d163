package domain

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Well-known context keys.
const (
	KeyUserMessage    = "user_message"
	KeySnippets       = "context_snippets"
	KeyToolOutputs    = "tool_outputs"
	KeyDocs           = "docs"
	KeyCandidates     = "candidates"
	KeySemantic       = "semantic_results"
	KeyFinalAnswer    = "final_answer"
	KeyInputContent   = "input_content"
	KeyRouteDecision  = "route_decision"
	KeyUploadedFile   = "uploaded_file_content"
	KeyOrchestrator   = "orchestrator_result"
	KeySupervisorPlan = "supervisor_plan"
)

// Tool output sub-lists stored under KeyToolOutputs.
const (
	ToolImages       = "images"
	ToolCalculations = "calculations"
	ToolWebResults   = "web_results"
)

// MergePolicy selects how an update for a key is folded into the context.
type MergePolicy int

const (
	Overwrite MergePolicy = iota
	Accumulate
)

// mergePolicies is keyed by identity; value shape is never consulted.
var mergePolicies = map[string]MergePolicy{
	KeySnippets:      Accumulate,
	KeyDocs:          Accumulate,
	ToolImages:       Accumulate,
	ToolCalculations: Accumulate,
	ToolWebResults:   Accumulate,
}

var toolOutputKeys = map[string]bool{
	ToolImages:       true,
	ToolCalculations: true,
	ToolWebResults:   true,
}

// PolicyFor returns the merge policy of key.
func PolicyFor(key string) MergePolicy {
	return mergePolicies[key]
}

// ExecutionContext is the shared state of one run. It is not safe for
// concurrent use; the kernel runs nodes one at a time.
type ExecutionContext struct {
	values map[string]any
}

// NewExecutionContext seeds the well-known keys.
func NewExecutionContext(message string) *ExecutionContext {
	return &ExecutionContext{values: map[string]any{
		KeyUserMessage: message,
		KeySnippets:    []any{},
		KeyCandidates:  []any{},
		KeySemantic:    []any{},
		KeyDocs:        []any{},
		KeyToolOutputs: map[string][]any{
			ToolImages:       {},
			ToolCalculations: {},
			ToolWebResults:   {},
		},
		KeyRouteDecision: map[string]*RouteDecision{},
		KeyFinalAnswer:   "",
	}}
}

// Merge folds updates into the context. Keys are applied in sorted order.
func (c *ExecutionContext) Merge(updates map[string]any) {
	keys := make([]string, 0, len(updates))
	for k := range updates {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := updates[k]
		if PolicyFor(k) == Overwrite {
			c.values[k] = v
			continue
		}
		if toolOutputKeys[k] {
			outputs := c.toolOutputs()
			outputs[k] = append(outputs[k], toList(v)...)
			continue
		}
		existing, _ := c.values[k].([]any)
		c.values[k] = append(existing, toList(v)...)
	}
}

// Set overwrites key regardless of its policy.
func (c *ExecutionContext) Set(key string, v any) {
	c.values[key] = v
}

// Get returns the raw value of key.
func (c *ExecutionContext) Get(key string) (any, bool) {
	v, ok := c.values[key]
	return v, ok
}

// String returns key as a string, or "" when missing or not textual.
func (c *ExecutionContext) String(key string) string {
	switch v := c.values[key].(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return ""
	}
}

// List returns an accumulated list key as []any.
func (c *ExecutionContext) List(key string) []any {
	if toolOutputKeys[key] {
		return c.ToolOutputs(key)
	}
	return toList(c.values[key])
}

// Message is the current user message.
func (c *ExecutionContext) Message() string { return c.String(KeyUserMessage) }

// FinalAnswer is the current final answer.
func (c *ExecutionContext) FinalAnswer() string { return c.String(KeyFinalAnswer) }

// Snippets returns the accumulated text snippets.
func (c *ExecutionContext) Snippets() []string {
	items := c.List(KeySnippets)
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
			continue
		}
		out = append(out, fmt.Sprint(it))
	}
	return out
}

// Docs returns the accumulated source documents.
func (c *ExecutionContext) Docs() []any { return c.List(KeyDocs) }

// ToolOutputs returns one named tool output list.
func (c *ExecutionContext) ToolOutputs(name string) []any {
	out := c.toolOutputs()[name]
	cp := make([]any, len(out))
	copy(cp, out)
	return cp
}

// RecordDecision stores a router decision under its router id.
func (c *ExecutionContext) RecordDecision(d *RouteDecision) {
	decisions, ok := c.values[KeyRouteDecision].(map[string]*RouteDecision)
	if !ok {
		decisions = map[string]*RouteDecision{}
		c.values[KeyRouteDecision] = decisions
	}
	decisions[d.Router] = d
}

// Decisions returns the recorded router decisions.
func (c *ExecutionContext) Decisions() map[string]*RouteDecision {
	decisions, _ := c.values[KeyRouteDecision].(map[string]*RouteDecision)
	return decisions
}

// ResolveAnswer returns the final answer, the joined snippets, or a fixed notice.
func (c *ExecutionContext) ResolveAnswer() string {
	if a := c.FinalAnswer(); a != "" {
		return a
	}
	if s := c.Snippets(); len(s) > 0 {
		return strings.Join(s, "\n\n")
	}
	return "No output generated."
}

// Snapshot returns a copy that later merges do not affect.
func (c *ExecutionContext) Snapshot() map[string]any {
	out := make(map[string]any, len(c.values))
	for k, v := range c.values {
		switch t := v.(type) {
		case []any:
			out[k] = append([]any(nil), t...)
		case map[string][]any:
			m := make(map[string][]any, len(t))
			for name, items := range t {
				m[name] = append([]any(nil), items...)
			}
			out[k] = m
		case map[string]*RouteDecision:
			m := make(map[string]*RouteDecision, len(t))
			for name, d := range t {
				m[name] = d
			}
			out[k] = m
		default:
			out[k] = v
		}
	}
	return out
}

func (c *ExecutionContext) toolOutputs() map[string][]any {
	outputs, ok := c.values[KeyToolOutputs].(map[string][]any)
	if !ok {
		outputs = map[string][]any{}
		c.values[KeyToolOutputs] = outputs
	}
	return outputs
}

// toList spreads any slice into []any; other values become a one-item list.
func toList(v any) []any {
	if v == nil {
		return nil
	}
	if items, ok := v.([]any); ok {
		return append([]any(nil), items...)
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return []any{v}
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}
