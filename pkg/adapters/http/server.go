// Package http serves the lattice REST API: streamed workflow execution,
// saved workflows, built-in examples and knowledge base documents.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
	"github.com/aretw0/lattice/pkg/retrieval"
	"github.com/aretw0/lattice/pkg/workflows"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// maxBodyBytes bounds JSON request bodies; uploaded documents dominate.
const maxBodyBytes = 10 << 20

// Engine runs workflow graphs.
type Engine interface {
	Execute(ctx context.Context, req domain.ExecuteRequest, sink ports.EventSink) (*domain.RunResult, error)
}

// WorkflowService stores user workflows.
type WorkflowService interface {
	Save(ctx context.Context, wf *domain.Workflow) (*domain.Workflow, error)
	Get(ctx context.Context, userID, id string) (*domain.Workflow, error)
	List(ctx context.Context, userID string) ([]workflows.Summary, error)
	Delete(ctx context.Context, userID, id string) error
}

// DocumentService manages knowledge base documents.
type DocumentService interface {
	Ingest(ctx context.Context, in retrieval.DocumentInput) (domain.Document, bool, error)
	Documents(ctx context.Context, kb string) ([]domain.Document, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context, kb string) (int, error)
}

// ProviderInfo is reported by GET /api/provider.
type ProviderInfo struct {
	Provider      string `json:"provider"`
	SmallModel    string `json:"small_model"`
	LargeModel    string `json:"large_model"`
	ImageProvider string `json:"image_provider"`
}

// Server holds the collaborators behind the API routes. Nil services
// answer 501.
type Server struct {
	Engine         Engine
	Workflows      WorkflowService
	Examples       ports.WorkflowLibrary
	Documents      DocumentService
	Provider       ProviderInfo
	KnowledgeBases []string
	Version        string
	Gatherer       prometheus.Gatherer
	Logger         *slog.Logger
}

// Option configures the Server built by NewHandler.
type Option func(*Server)

// WithWorkflows enables the /api/workflows routes.
func WithWorkflows(svc WorkflowService) Option {
	return func(s *Server) { s.Workflows = svc }
}

// WithExamples enables the /api/workflow/examples routes.
func WithExamples(lib ports.WorkflowLibrary) Option {
	return func(s *Server) { s.Examples = lib }
}

// WithDocuments enables the /api/documents routes.
func WithDocuments(svc DocumentService) Option {
	return func(s *Server) { s.Documents = svc }
}

// WithProvider sets the provider reported by /api/provider.
func WithProvider(info ProviderInfo) Option {
	return func(s *Server) { s.Provider = info }
}

// WithKnowledgeBases restricts document routes to the given knowledge bases.
func WithKnowledgeBases(kbs ...string) Option {
	return func(s *Server) { s.KnowledgeBases = kbs }
}

// WithVersion sets the version reported by /api/health.
func WithVersion(v string) Option {
	return func(s *Server) { s.Version = v }
}

// WithGatherer serves g on /metrics instead of the default registry.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.Gatherer = g }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.Logger = l
		}
	}
}

// NewHandler creates the HTTP handler for engine.
func NewHandler(engine Engine, opts ...Option) http.Handler {
	s := &Server{
		Engine:   engine,
		Gatherer: prometheus.DefaultGatherer,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s.Routes()
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		_, _ = w.Write(rawSpec)
	})
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(swaggerHTML))
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.Health)
		r.Get("/provider", s.GetProvider)
		r.Get("/knowledge-base", s.KnowledgeBaseInfo)

		r.Post("/workflow/execute", s.ExecuteWorkflow)
		r.Get("/workflow/examples", s.ListExamples)
		r.Get("/workflow/examples/{id}", s.GetExample)

		r.Get("/workflows", s.ListWorkflows)
		r.Post("/workflows", s.SaveWorkflow)
		r.Get("/workflows/{id}", s.GetWorkflow)
		r.Delete("/workflows/{id}", s.DeleteWorkflow)

		r.Get("/documents", s.ListDocuments)
		r.Post("/documents", s.UploadDocument)
		r.Delete("/documents/{id}", s.DeleteDocument)
	})
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

const swaggerHTML = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>Lattice API Documentation</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui-bundle.js" crossorigin></script>
<script>
    window.onload = () => {
    window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui',
    });
    };
</script>
</body>
</html>
`

type executeRequest struct {
	Message       string        `json:"message"`
	Nodes         []domain.Node `json:"workflow_nodes"`
	Edges         []domain.Edge `json:"workflow_edges"`
	KnowledgeBase string        `json:"knowledge_base"`
	Model         string        `json:"model"`
}

// ExecuteWorkflow handles POST /api/workflow/execute. Once the stream has
// started every failure is reported as an error event, never as a status.
func (s *Server) ExecuteWorkflow(w http.ResponseWriter, r *http.Request) {
	var body executeRequest
	if !s.readBody(w, r, schemaExecute, &body) {
		return
	}

	sink, err := NewSSESink(w)
	if err != nil {
		s.fail(w, err)
		return
	}

	req := domain.ExecuteRequest{
		Message:       body.Message,
		Graph:         domain.WorkflowGraph{Nodes: body.Nodes, Edges: body.Edges},
		KnowledgeBase: body.KnowledgeBase,
		Model:         body.Model,
	}
	if _, err := s.Engine.Execute(r.Context(), req, sink); err != nil {
		s.Logger.Warn("Workflow execution ended with error", "err", err, "nodes", len(body.Nodes))
	}
}

// Health handles GET /api/health.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "healthy"}
	if s.Version != "" {
		resp["version"] = s.Version
	}
	if s.Documents != nil {
		if n, err := s.Documents.Count(r.Context(), ""); err == nil {
			resp["document_count"] = n
		} else {
			s.Logger.Warn("Document count failed", "err", err)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetProvider handles GET /api/provider.
func (s *Server) GetProvider(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Provider)
}

// KnowledgeBaseInfo handles GET /api/knowledge-base.
func (s *Server) KnowledgeBaseInfo(w http.ResponseWriter, r *http.Request) {
	if !s.require(w, s.Documents != nil, "documents") {
		return
	}
	type kbInfo struct {
		ID            string `json:"id"`
		DocumentCount int    `json:"document_count"`
	}
	available := []kbInfo{}
	for _, kb := range s.KnowledgeBases {
		n, err := s.Documents.Count(r.Context(), kb)
		if err != nil {
			s.fail(w, err)
			return
		}
		available = append(available, kbInfo{ID: kb, DocumentCount: n})
	}
	writeJSON(w, http.StatusOK, map[string]any{"available": available})
}

type exampleSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	NodeCount   int    `json:"node_count"`
	EdgeCount   int    `json:"edge_count"`
}

// ListExamples handles GET /api/workflow/examples.
func (s *Server) ListExamples(w http.ResponseWriter, r *http.Request) {
	if !s.require(w, s.Examples != nil, "examples") {
		return
	}
	wfs, err := s.Examples.List(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	out := make([]exampleSummary, 0, len(wfs))
	for _, wf := range wfs {
		out = append(out, exampleSummary{
			ID:          wf.ID,
			Name:        wf.Name,
			Description: wf.Description,
			NodeCount:   len(wf.Nodes),
			EdgeCount:   len(wf.Edges),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"examples": out})
}

// GetExample handles GET /api/workflow/examples/{id}.
func (s *Server) GetExample(w http.ResponseWriter, r *http.Request) {
	if !s.require(w, s.Examples != nil, "examples") {
		return
	}
	wf, err := s.Examples.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wf)
}

// ListWorkflows handles GET /api/workflows.
func (s *Server) ListWorkflows(w http.ResponseWriter, r *http.Request) {
	if !s.require(w, s.Workflows != nil, "workflows") {
		return
	}
	list, err := s.Workflows.List(r.Context(), userID(r))
	if err != nil {
		s.fail(w, err)
		return
	}
	if list == nil {
		list = []workflows.Summary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"workflows": list})
}

type saveRequest struct {
	WorkflowID  string        `json:"workflow_id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Nodes       []domain.Node `json:"nodes"`
	Edges       []domain.Edge `json:"edges"`
}

// SaveWorkflow handles POST /api/workflows.
func (s *Server) SaveWorkflow(w http.ResponseWriter, r *http.Request) {
	if !s.require(w, s.Workflows != nil, "workflows") {
		return
	}
	var body saveRequest
	if !s.readBody(w, r, schemaSave, &body) {
		return
	}
	wf, err := s.Workflows.Save(r.Context(), &domain.Workflow{
		ID:          body.WorkflowID,
		UserID:      userID(r),
		Name:        body.Name,
		Description: body.Description,
		Nodes:       body.Nodes,
		Edges:       body.Edges,
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wf)
}

// GetWorkflow handles GET /api/workflows/{id}.
func (s *Server) GetWorkflow(w http.ResponseWriter, r *http.Request) {
	if !s.require(w, s.Workflows != nil, "workflows") {
		return
	}
	wf, err := s.Workflows.Get(r.Context(), userID(r), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wf)
}

// DeleteWorkflow handles DELETE /api/workflows/{id}.
func (s *Server) DeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	if !s.require(w, s.Workflows != nil, "workflows") {
		return
	}
	if err := s.Workflows.Delete(r.Context(), userID(r), chi.URLParam(r, "id")); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type documentView struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Source        string    `json:"source,omitempty"`
	ContentLength int       `json:"content_length"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ListDocuments handles GET /api/documents.
func (s *Server) ListDocuments(w http.ResponseWriter, r *http.Request) {
	if !s.require(w, s.Documents != nil, "documents") {
		return
	}
	kb := r.URL.Query().Get("knowledge_base")
	if !s.knownKB(w, kb) {
		return
	}
	docs, err := s.Documents.Documents(r.Context(), kb)
	if err != nil {
		s.fail(w, err)
		return
	}
	out := make([]documentView, 0, len(docs))
	for _, d := range docs {
		out = append(out, documentView{
			ID:            d.ID,
			Title:         d.Title,
			Source:        d.Source,
			ContentLength: len(d.Content),
			CreatedAt:     d.CreatedAt,
			UpdatedAt:     d.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"knowledge_base": kb, "documents": out})
}

// UploadDocument handles POST /api/documents.
func (s *Server) UploadDocument(w http.ResponseWriter, r *http.Request) {
	if !s.require(w, s.Documents != nil, "documents") {
		return
	}
	var body retrieval.DocumentInput
	if !s.readBody(w, r, schemaDocument, &body) {
		return
	}
	if !s.knownKB(w, body.KnowledgeBase) {
		return
	}
	if body.Source == "" {
		body.Source = body.Title
	}
	doc, changed, err := s.Documents.Ingest(r.Context(), body)
	if err != nil {
		s.fail(w, err)
		return
	}
	msg := "Document uploaded"
	if !changed {
		msg = "Document unchanged"
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "document_id": doc.ID, "message": msg})
}

// DeleteDocument handles DELETE /api/documents/{id}.
func (s *Server) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	if !s.require(w, s.Documents != nil, "documents") {
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.Documents.Delete(r.Context(), id); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": fmt.Sprintf("Document %s deleted", id)})
}

// -- Helpers --

func (s *Server) readBody(w http.ResponseWriter, r *http.Request, schema string, out any) bool {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		s.Logger.Warn("Request body rejected", "path", r.URL.Path, "err", err)
		return false
	}
	if err := decodeBody(body, schema, out); err != nil {
		s.fail(w, err)
		return false
	}
	return true
}

func (s *Server) require(w http.ResponseWriter, ok bool, what string) bool {
	if !ok {
		writeError(w, http.StatusNotImplemented, what+" are not configured")
	}
	return ok
}

// knownKB accepts the empty name, which selects the default knowledge base.
func (s *Server) knownKB(w http.ResponseWriter, kb string) bool {
	if kb == "" || len(s.KnowledgeBases) == 0 || slices.Contains(s.KnowledgeBases, kb) {
		return true
	}
	writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid knowledge base %q", kb))
	return false
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.Logger.Error("Request failed", "err", err)
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrWorkflowNotFound), errors.Is(err, domain.ErrDocumentNotFound):
		return http.StatusNotFound
	case errors.Is(err, errInvalidBody),
		errors.Is(err, workflows.ErrInvalidWorkflow),
		errors.Is(err, retrieval.ErrInvalidDocument):
		return http.StatusBadRequest
	}
	var cycle *domain.GraphCycleError
	if errors.As(err, &cycle) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func userID(r *http.Request) string {
	if id := r.URL.Query().Get("user_id"); id != "" {
		return id
	}
	return workflows.DefaultUser
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Response encode failed", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
