package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/lattice"
	"github.com/aretw0/lattice/examples"
	"github.com/aretw0/lattice/internal/config"
	"github.com/aretw0/lattice/pkg/adapters/file"
	loamlib "github.com/aretw0/lattice/pkg/adapters/loam"
	"github.com/aretw0/lattice/pkg/adapters/memory"
	"github.com/aretw0/lattice/pkg/adapters/redis"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/llm"
	"github.com/aretw0/lattice/pkg/observability"
	"github.com/aretw0/lattice/pkg/ports"
	"github.com/aretw0/lattice/pkg/retrieval"
	"github.com/aretw0/lattice/pkg/workflows"
)

// app owns the engine built from configuration and the resources to release.
type app struct {
	engine  *lattice.Engine
	closers []func(context.Context) error
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i](ctx))
	}
	return errors.Join(errs...)
}

// newApp wires the engine from cfg. hooks are combined with the tracer
// hooks when tracing is enabled.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, hooks ...domain.LifecycleHooks) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	if cfg.Tracing.Enabled {
		tp, err := observability.InitTracer(ctx, cfg.Tracing.OTelConfig)
		if err != nil {
			return nil, fmt.Errorf("init tracer: %w", err)
		}
		a.closers = append(a.closers, tp.Shutdown)
		hooks = append(hooks, observability.NewTracer(tp).Hooks())
	}

	provider, err := llm.NewFromConfig(ctx, cfg.LLM, logger)
	if err != nil {
		return nil, fmt.Errorf("llm provider: %w", err)
	}

	docs, err := a.retrieval(ctx, cfg, provider, logger)
	if err != nil {
		return nil, err
	}
	saved, err := a.workflows(cfg, logger)
	if err != nil {
		return nil, err
	}
	lib, err := library(ctx, cfg)
	if err != nil {
		return nil, err
	}

	a.engine, err = lattice.New(
		lattice.WithLogger(logger),
		lattice.WithProvider(provider),
		lattice.WithRetrieval(docs),
		lattice.WithWorkflows(saved),
		lattice.WithExamples(lib),
		lattice.WithLifecycleHooks(domain.CombineHooks(hooks...)),
	)
	if err != nil {
		return nil, err
	}

	if dir := cfg.Retrieval.DocumentsDir; dir != "" {
		report, err := docs.LoadDirectory(ctx, "", dir)
		if err != nil {
			return nil, fmt.Errorf("load documents: %w", err)
		}
		logger.Info("Loaded documents", "dir", dir, "added", report.Added, "unchanged", report.Unchanged)
	}
	return a, nil
}

func (a *app) retrieval(ctx context.Context, cfg *config.Config, provider *llm.Provider, logger *slog.Logger) (*retrieval.Service, error) {
	var store ports.VectorStore
	switch cfg.Retrieval.Backend {
	case config.BackendPostgres:
		pg, err := retrieval.NewPGStore(ctx, cfg.Retrieval.DatabaseURL, cfg.Retrieval.Dimension)
		if err != nil {
			return nil, fmt.Errorf("pgvector store: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { pg.Close(); return nil })
		store = pg
	default:
		store = retrieval.NewMemoryStore()
	}

	opts := []retrieval.Option{
		retrieval.WithDefaultKnowledgeBase(cfg.Retrieval.KnowledgeBase),
		retrieval.WithLogger(logger),
	}
	if cfg.Retrieval.Rerank {
		opts = append(opts, retrieval.WithReranker(provider.Chat, provider.Models.Small))
	}
	logger.Debug("Retrieval configured", "backend", cfg.Retrieval.Backend, "kb", cfg.Retrieval.KnowledgeBase)
	return retrieval.NewService(store, provider.Embedder, opts...), nil
}

func (a *app) workflows(cfg *config.Config, logger *slog.Logger) (*workflows.Service, error) {
	opts := []workflows.Option{
		workflows.WithListLimit(cfg.Store.ListLimit),
		workflows.WithLogger(logger),
	}

	var store ports.WorkflowStore
	switch cfg.Store.Backend {
	case config.BackendFile:
		store = file.New(cfg.Store.Dir)
	case config.BackendRedis:
		r := cfg.Store.Redis
		rs := redis.New(r.Addr, r.Password, r.DB, redis.WithPrefix(r.Prefix))
		a.closers = append(a.closers, func(context.Context) error { return rs.Close() })
		opts = append(opts, workflows.WithLocker(redis.NewLocker(rs.Client(), r.Prefix+"lock:")))
		store = rs
	case config.BackendMemory:
		store = memory.NewStore()
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
	return workflows.New(store, opts...), nil
}

// library merges the built-in examples with those of cfg.Examples.Dir.
// Directory entries replace built-ins with the same id.
func library(ctx context.Context, cfg *config.Config) (ports.WorkflowLibrary, error) {
	wfs, err := examples.Workflows()
	if err != nil {
		return nil, fmt.Errorf("built-in examples: %w", err)
	}
	if cfg.Examples.Dir == "" {
		return memory.NewLibrary(wfs...), nil
	}

	lib, err := loamlib.Open(cfg.Examples.Dir)
	if err != nil {
		return nil, fmt.Errorf("examples dir: %w", err)
	}
	extra, err := lib.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("examples dir: %w", err)
	}
	return memory.NewLibrary(append(wfs, extra...)...), nil
}

// loadWorkflow reads a workflow from path, or looks id up in the user's
// saved workflows and the examples.
func loadWorkflow(ctx context.Context, eng *lattice.Engine, path, userID, id string) (*domain.Workflow, error) {
	switch {
	case path != "":
		return file.LoadGraph(path)
	case id != "":
		return eng.Lookup(ctx, userID, id)
	}
	return nil, errors.New("either --file or --workflow is required")
}
