// Package mcp exposes the workflow engine as a Model Context Protocol server,
// so agents can list, validate and run workflows as tools.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/lattice/internal/validator"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
	"github.com/aretw0/lattice/pkg/workflows"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// AgentsURI is the resource listing the executable node kinds.
const AgentsURI = "lattice://agents"

// Engine is the part of the workflow engine the server drives.
type Engine interface {
	Execute(ctx context.Context, req domain.ExecuteRequest, sink ports.EventSink) (*domain.RunResult, error)
	Lookup(ctx context.Context, userID, id string) (*domain.Workflow, error)
	Validate(def domain.WorkflowGraph) validator.Report
	Kinds() []domain.NodeKind
}

// Catalog lists the saved workflows of a user.
type Catalog interface {
	List(ctx context.Context, userID string) ([]workflows.Summary, error)
}

// RunArgs are the arguments of the run_workflow tool.
type RunArgs struct {
	Message       string `json:"message"`
	WorkflowID    string `json:"workflow_id,omitempty"`
	Graph         string `json:"graph,omitempty"`
	UserID        string `json:"user_id,omitempty"`
	KnowledgeBase string `json:"knowledge_base,omitempty"`
	Model         string `json:"model,omitempty"`
}

// RunResponse is the structured output of run_workflow.
type RunResponse struct {
	RunID     string                           `json:"run_id" jsonschema_description:"Identifier of the run"`
	Answer    string                           `json:"answer" jsonschema_description:"Final answer of the workflow"`
	Order     []string                         `json:"order" jsonschema_description:"Execution order of the reachable nodes"`
	States    map[string]domain.ExecutionState `json:"states" jsonschema_description:"Outcome of each node"`
	Steps     int                              `json:"steps" jsonschema_description:"Number of recorded steps"`
	LatencyMs float64                          `json:"latency_ms"`
}

// ValidateArgs are the arguments of the validate_workflow tool.
type ValidateArgs struct {
	WorkflowID string `json:"workflow_id,omitempty"`
	Graph      string `json:"graph,omitempty"`
	UserID     string `json:"user_id,omitempty"`
}

// ValidateResponse is the structured output of validate_workflow.
type ValidateResponse struct {
	Valid    bool     `json:"valid"`
	Order    []string `json:"order"`
	Dropped  []string `json:"dropped,omitempty"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// ListArgs are the arguments of the list_workflows tool.
type ListArgs struct {
	UserID string `json:"user_id,omitempty"`
}

// WorkflowEntry is one workflow in the list_workflows output.
type WorkflowEntry struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Source    string `json:"source" jsonschema_description:"saved or example"`
	NodeCount int    `json:"node_count"`
}

// ListResponse is the structured output of list_workflows.
type ListResponse struct {
	Workflows []WorkflowEntry `json:"workflows"`
}

// Server wraps the engine and exposes it as an MCP server.
type Server struct {
	engine    Engine
	saved     Catalog
	examples  ports.WorkflowLibrary
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures a Server.
type Option func(*Server)

// WithCatalog lists saved workflows in list_workflows.
func WithCatalog(c Catalog) Option {
	return func(s *Server) { s.saved = c }
}

// WithExamples lists example workflows in list_workflows.
func WithExamples(lib ports.WorkflowLibrary) Option {
	return func(s *Server) { s.examples = lib }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a new MCP server.
func NewServer(engine Engine, version string, opts ...Option) *Server {
	s := &Server{
		engine:    engine,
		logger:    slog.Default(),
		mcpServer: server.NewMCPServer("lattice-mcp", strings.TrimSpace(version)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio serves on Stdin/Stdout until the input closes.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves over SSE on port until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(fmt.Sprintf("http://localhost:%d", port)))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("run_workflow",
		mcp.WithDescription("Run a workflow against a message. Pass either workflow_id (saved or example) or graph."),
		mcp.WithString("message", mcp.Required(), mcp.Description("User message fed to the input nodes")),
		mcp.WithString("workflow_id", mcp.Description("ID of a saved or example workflow")),
		mcp.WithString("graph", mcp.Description(`Inline graph as JSON: {"nodes": [...], "edges": [...]}`)),
		mcp.WithString("user_id", mcp.Description("Owner of saved workflows (default: default)")),
		mcp.WithString("knowledge_base", mcp.Description("Knowledge base searched by retrieval nodes")),
		mcp.WithString("model", mcp.Description("Model override")),
		mcp.WithOutputSchema[RunResponse](),
	), mcp.NewStructuredToolHandler(s.handleRun))

	s.mcpServer.AddTool(mcp.NewTool("validate_workflow",
		mcp.WithDescription("Check a workflow without running it: execution order, unreachable nodes and problems."),
		mcp.WithString("workflow_id", mcp.Description("ID of a saved or example workflow")),
		mcp.WithString("graph", mcp.Description("Inline graph as JSON")),
		mcp.WithString("user_id", mcp.Description("Owner of saved workflows")),
		mcp.WithOutputSchema[ValidateResponse](),
	), mcp.NewStructuredToolHandler(s.handleValidate))

	s.mcpServer.AddTool(mcp.NewTool("list_workflows",
		mcp.WithDescription("List saved workflows of a user and the built-in examples."),
		mcp.WithString("user_id", mcp.Description("Owner of saved workflows")),
		mcp.WithOutputSchema[ListResponse](),
	), mcp.NewStructuredToolHandler(s.handleList))
}

func (s *Server) handleRun(ctx context.Context, _ mcp.CallToolRequest, args RunArgs) (RunResponse, error) {
	if strings.TrimSpace(args.Message) == "" {
		return RunResponse{}, errors.New("message is required")
	}
	def, err := s.resolve(ctx, args.UserID, args.WorkflowID, args.Graph)
	if err != nil {
		return RunResponse{}, err
	}

	res, err := s.engine.Execute(ctx, domain.ExecuteRequest{
		Message:       args.Message,
		Graph:         def,
		KnowledgeBase: args.KnowledgeBase,
		Model:         args.Model,
	}, nil)
	if err != nil {
		s.logger.Warn("MCP run failed", "workflow", args.WorkflowID, "err", err)
		return RunResponse{}, fmt.Errorf("run failed: %w", err)
	}
	return RunResponse{
		RunID:     res.RunID,
		Answer:    res.Answer,
		Order:     res.Order,
		States:    res.States,
		Steps:     len(res.Steps),
		LatencyMs: res.LatencyMs,
	}, nil
}

func (s *Server) handleValidate(ctx context.Context, _ mcp.CallToolRequest, args ValidateArgs) (ValidateResponse, error) {
	def, err := s.resolve(ctx, args.UserID, args.WorkflowID, args.Graph)
	if err != nil {
		return ValidateResponse{}, err
	}
	report := s.engine.Validate(def)
	out := ValidateResponse{Valid: report.Valid(), Order: report.Order, Dropped: report.Dropped}
	for _, issue := range report.Issues {
		if issue.Severity == validator.SeverityError {
			out.Errors = append(out.Errors, issue.String())
		} else {
			out.Warnings = append(out.Warnings, issue.String())
		}
	}
	return out, nil
}

func (s *Server) handleList(ctx context.Context, _ mcp.CallToolRequest, args ListArgs) (ListResponse, error) {
	out := ListResponse{Workflows: []WorkflowEntry{}}
	if s.saved != nil {
		list, err := s.saved.List(ctx, userOrDefault(args.UserID))
		if err != nil {
			return ListResponse{}, err
		}
		for _, w := range list {
			out.Workflows = append(out.Workflows, WorkflowEntry{ID: w.ID, Name: w.Name, Source: "saved", NodeCount: w.NodeCount})
		}
	}
	if s.examples != nil {
		list, err := s.examples.List(ctx)
		if err != nil {
			return ListResponse{}, err
		}
		for _, w := range list {
			out.Workflows = append(out.Workflows, WorkflowEntry{ID: w.ID, Name: w.Name, Source: "example", NodeCount: len(w.Nodes)})
		}
	}
	return out, nil
}

// resolve returns the inline graph when given, else looks up id.
func (s *Server) resolve(ctx context.Context, userID, id, graph string) (domain.WorkflowGraph, error) {
	if strings.TrimSpace(graph) != "" {
		var def domain.WorkflowGraph
		if err := json.Unmarshal([]byte(graph), &def); err != nil {
			return domain.WorkflowGraph{}, fmt.Errorf("invalid graph: %w", err)
		}
		return def, nil
	}
	if id == "" {
		return domain.WorkflowGraph{}, errors.New("either workflow_id or graph is required")
	}
	wf, err := s.engine.Lookup(ctx, userOrDefault(userID), id)
	if err != nil {
		return domain.WorkflowGraph{}, fmt.Errorf("workflow %q: %w", id, err)
	}
	return wf.Graph(), nil
}

func userOrDefault(id string) string {
	if id == "" {
		return workflows.DefaultUser
	}
	return id
}

type agentInfo struct {
	Kind string `json:"kind"`
	Role string `json:"role"`
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(AgentsURI, "Executable node kinds",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		var infos []agentInfo
		for _, k := range []domain.NodeKind{domain.KindPrompt, domain.KindUpload, domain.KindSpreadsheet} {
			infos = append(infos, agentInfo{Kind: string(k), Role: "input"})
		}
		for _, k := range s.engine.Kinds() {
			infos = append(infos, agentInfo{Kind: string(k), Role: "agent"})
		}
		infos = append(infos, agentInfo{Kind: string(domain.KindResponse), Role: "output"})

		b, err := json.Marshal(infos)
		if err != nil {
			return nil, err
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      AgentsURI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	})
}
