package domain

// ExecutionState is the per-node resolution of a run.
type ExecutionState string

const (
	StatePending  ExecutionState = "pending"
	StateExecuted ExecutionState = "executed"
	StateExcluded ExecutionState = "excluded"
	StateSkipped  ExecutionState = "skipped"
)

// Resolved reports whether the node left Pending for good.
func (s ExecutionState) Resolved() bool {
	return s == StateExecuted || s == StateExcluded
}

// StateTable tracks node states for a run. Transitions out of Pending are one-way.
type StateTable map[string]ExecutionState

// NewStateTable returns a table with every id Pending.
func NewStateTable(ids []string) StateTable {
	t := make(StateTable, len(ids))
	for _, id := range ids {
		t[id] = StatePending
	}
	return t
}

// Get returns the state of id, Pending when unknown.
func (t StateTable) Get(id string) ExecutionState {
	if s, ok := t[id]; ok {
		return s
	}
	return StatePending
}

// Resolve moves id to s. It returns false if id was already resolved.
func (t StateTable) Resolve(id string, s ExecutionState) bool {
	if t.Get(id).Resolved() {
		return false
	}
	t[id] = s
	return true
}

// Select returns the ids in the given order whose state equals s.
func (t StateTable) Select(order []string, s ExecutionState) []string {
	var out []string
	for _, id := range order {
		if t.Get(id) == s {
			out = append(out, id)
		}
	}
	return out
}
