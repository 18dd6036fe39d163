package runtime

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
	"github.com/google/uuid"
)

// Kernel walks a planned graph one node at a time.
type Kernel struct {
	agents  ports.AgentResolver
	routing RoutingTable
	hooks   domain.LifecycleHooks
	logger  *slog.Logger
	now     func() time.Time
	newID   func() string
}

// Option configures the kernel.
type Option func(*Kernel)

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(k *Kernel) {
		k.hooks = hooks
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(k *Kernel) {
		if logger != nil {
			k.logger = logger
		}
	}
}

// WithRoutingTable replaces the default branch groups.
func WithRoutingTable(rt RoutingTable) Option {
	return func(k *Kernel) {
		k.routing = rt
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(k *Kernel) {
		k.now = now
	}
}

// WithRunIDGenerator overrides the run id source.
func WithRunIDGenerator(fn func() string) Option {
	return func(k *Kernel) {
		k.newID = fn
	}
}

// New creates a kernel that resolves agents through agents.
func New(agents ports.AgentResolver, opts ...Option) *Kernel {
	k := &Kernel{
		agents:  agents,
		routing: DefaultRoutingTable(),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Routing returns the routing table in use.
func (k *Kernel) Routing() RoutingTable { return k.routing }

// Plan builds the fixed execution sequence for def.
func (k *Kernel) Plan(def domain.WorkflowGraph) (*Plan, error) {
	plan, err := NewPlan(def)
	if err != nil {
		return nil, err
	}
	for _, w := range plan.Warnings {
		k.logger.Warn("Dropping invalid graph element", "err", w)
	}
	if len(plan.Dropped) > 0 {
		k.logger.Debug("Dropping unreachable nodes", "nodes", plan.Dropped)
	}
	return plan, nil
}

// Run executes req and streams its events to sink. The run always ends
// with exactly one error or done event. Agent failures are fatal and are
// returned as *domain.AgentExecutionError.
func (k *Kernel) Run(ctx context.Context, req domain.ExecuteRequest, sink ports.EventSink) (*domain.RunResult, error) {
	started := k.now()
	emitter := NewEmitter(sink)
	runID := k.newID()
	logger := k.logger.With("run_id", runID)

	plan, err := k.Plan(req.Graph)
	if err != nil {
		logger.Error("Planning failed", "err", err)
		k.runEnd(ctx, runID, 0, started, err)
		if emitErr := emitter.Fail(ctx, err); emitErr != nil {
			logger.Warn("Failed to emit error event", "err", emitErr)
		}
		return nil, err
	}

	r := &run{
		id:      runID,
		plan:    plan,
		request: req,
		ctx:     domain.NewExecutionContext(req.Message),
		states:  domain.NewStateTable(plan.Order),
	}
	pruner := NewPruner(plan.Graph, k.routing)
	executor := NewExecutor(k.agents, k.routing)
	executor.now = k.now

	if k.hooks.OnRunStart != nil {
		k.hooks.OnRunStart(ctx, &domain.RunEvent{Timestamp: started, RunID: runID, Nodes: len(plan.Order)})
	}
	logger.Info("Run started", "nodes", len(plan.Order), "order", plan.Order)

	skipped := make(map[string]bool)
	for _, id := range plan.Order {
		node, _ := plan.Graph.Node(id)
		nodeLog := logger.With("node", id, "kind", node.Kind)

		verdict, reason := pruner.Evaluate(id, r.states, r.ctx.Decisions())
		if verdict == VerdictExecute {
			if rule, ok := pruner.Suppressed(id, r.ctx); ok {
				verdict, reason = VerdictExclude, rule.Reason
				for _, key := range rule.Clear {
					r.ctx.Set(key, []any{})
				}
			}
		}
		switch verdict {
		case VerdictSkip:
			skipped[id] = true
			nodeLog.Debug("Skipping node", "reason", reason)
			continue

		case VerdictExclude:
			r.states.Resolve(id, domain.StateExcluded)
			step := domain.StepRecord{
				NodeID:   id,
				Agent:    string(node.Kind),
				Model:    domain.ModelNone,
				Action:   "exclude",
				Content:  reason,
				Success:  true,
				Excluded: true,
			}
			r.steps = append(r.steps, step)
			nodeLog.Debug("Excluding node", "reason", reason)
			k.nodeLeave(ctx, runID, node, domain.StateExcluded, 0, nil)
			if err := emitter.Complete(ctx, step); err != nil {
				return k.abort(ctx, r, emitter, started, err)
			}
			continue
		}

		if !node.Kind.IsInput() && !node.Kind.IsOutput() {
			if err := emitter.Start(ctx, id); err != nil {
				return k.abort(ctx, r, emitter, started, err)
			}
		}
		if k.hooks.OnNodeEnter != nil {
			k.hooks.OnNodeEnter(ctx, &domain.NodeEvent{Timestamp: k.now(), RunID: runID, NodeID: id, Kind: node.Kind})
		}

		nodeStart := k.now()
		step, err := executor.Execute(ctx, r, node)
		if err != nil {
			nodeLog.Error("Agent failed", "err", err)
			k.nodeLeave(ctx, runID, node, domain.StatePending, k.now().Sub(nodeStart), err)
			return k.abort(ctx, r, emitter, started, err)
		}
		k.nodeLeave(ctx, runID, node, domain.StateExecuted, k.now().Sub(nodeStart), nil)
		nodeLog.Debug("Node executed", "action", step.Action)

		if err := emitter.Complete(ctx, step); err != nil {
			return k.abort(ctx, r, emitter, started, err)
		}
	}

	result := k.result(r, started, skipped)
	done := &domain.DoneEvent{
		Answer:      result.Answer,
		ToolOutputs: result.ToolOutputs,
		Trace:       domain.Trace{Steps: result.Steps},
		LatencyMs:   result.LatencyMs,
	}
	if err := emitter.Done(ctx, done); err != nil {
		logger.Warn("Failed to emit done event", "err", err)
		k.runEnd(ctx, runID, len(plan.Order), started, err)
		return result, err
	}

	logger.Info("Run completed",
		"executed", len(r.states.Select(plan.Order, domain.StateExecuted)),
		"excluded", len(r.states.Select(plan.Order, domain.StateExcluded)),
		"latency_ms", result.LatencyMs)
	k.runEnd(ctx, runID, len(plan.Order), started, nil)
	return result, nil
}

// abort ends the run with a single error event.
func (k *Kernel) abort(ctx context.Context, r *run, emitter *Emitter, started time.Time, cause error) (*domain.RunResult, error) {
	if !emitter.Closed() {
		if err := emitter.Fail(ctx, cause); err != nil {
			k.logger.Warn("Failed to emit error event", "run_id", r.id, "err", err)
		}
	}
	k.runEnd(ctx, r.id, len(r.plan.Order), started, cause)
	return nil, cause
}

func (k *Kernel) nodeLeave(ctx context.Context, runID string, node domain.Node, outcome domain.ExecutionState, d time.Duration, err error) {
	if k.hooks.OnNodeLeave == nil {
		return
	}
	k.hooks.OnNodeLeave(ctx, &domain.NodeEvent{
		Timestamp: k.now(),
		RunID:     runID,
		NodeID:    node.ID,
		Kind:      node.Kind,
		Outcome:   outcome,
		Duration:  d,
		Err:       err,
	})
}

func (k *Kernel) runEnd(ctx context.Context, runID string, nodes int, started time.Time, err error) {
	if k.hooks.OnRunEnd == nil {
		return
	}
	k.hooks.OnRunEnd(ctx, &domain.RunEvent{
		Timestamp: k.now(),
		RunID:     runID,
		Nodes:     nodes,
		Duration:  k.now().Sub(started),
		Err:       err,
	})
}

func (k *Kernel) result(r *run, started time.Time, skipped map[string]bool) *domain.RunResult {
	states := make(map[string]domain.ExecutionState, len(r.plan.Order))
	for _, id := range r.plan.Order {
		s := r.states.Get(id)
		if s == domain.StatePending && skipped[id] {
			s = domain.StateSkipped
		}
		states[id] = s
	}

	latency := float64(k.now().Sub(started).Microseconds()) / 1000
	return &domain.RunResult{
		RunID:       r.id,
		Answer:      r.ctx.ResolveAnswer(),
		ToolOutputs: collectToolOutputs(r.ctx),
		Steps:       append([]domain.StepRecord(nil), r.steps...),
		Order:       append([]string(nil), r.plan.Order...),
		States:      states,
		LatencyMs:   math.Round(latency*100) / 100,
	}
}

func collectToolOutputs(c *domain.ExecutionContext) domain.ToolOutputs {
	out := domain.ToolOutputs{
		Images:       []domain.ImageOutput{},
		Calculations: c.ToolOutputs(domain.ToolCalculations),
		WebResults:   c.ToolOutputs(domain.ToolWebResults),
		Docs:         c.Docs(),
	}
	if out.Docs == nil {
		out.Docs = []any{}
	}
	for _, item := range c.ToolOutputs(domain.ToolImages) {
		switch img := item.(type) {
		case domain.ImageOutput:
			img.HasData = img.URL != ""
			out.Images = append(out.Images, img)
		case map[string]any:
			url := stringOf(img["url"])
			out.Images = append(out.Images, domain.ImageOutput{
				Prompt:  stringOf(img["prompt"]),
				Style:   stringOf(img["style"]),
				URL:     url,
				HasData: url != "",
			})
		}
	}
	return out
}

func stringOf(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
