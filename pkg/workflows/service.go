// Package workflows manages saved workflow definitions on top of a
// ports.WorkflowStore: ids, timestamps and per-user listing.
package workflows

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
	"github.com/google/uuid"
)

const (
	// DefaultUser owns workflows saved without a user id.
	DefaultUser = "default"
	// DefaultListLimit caps List results.
	DefaultListLimit = 50

	lockTTL = 10 * time.Second
)

// ErrInvalidWorkflow is returned when a workflow cannot be saved as given.
var ErrInvalidWorkflow = errors.New("invalid workflow")

// Summary is the listing projection of a workflow.
type Summary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	NodeCount int       `json:"node_count"`
	EdgeCount int       `json:"edge_count"`
}

// Service is safe for concurrent use when its store is.
type Service struct {
	store  ports.WorkflowStore
	locker ports.Locker
	limit  int
	now    func() time.Time
	newID  func() string
	logger *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLocker serialises saves of the same workflow across processes.
func WithLocker(l ports.Locker) Option {
	return func(s *Service) { s.locker = l }
}

// WithListLimit sets the maximum number of workflows List returns.
func WithListLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.limit = n
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator overrides id generation.
func WithIDGenerator(f func() string) Option {
	return func(s *Service) { s.newID = f }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// New creates a Service over store.
func New(store ports.WorkflowStore, opts ...Option) *Service {
	s := &Service{
		store:  store,
		limit:  DefaultListLimit,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  shortID,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// Save creates or updates wf. A missing id is generated; an existing
// workflow keeps its CreatedAt.
func (s *Service) Save(ctx context.Context, wf *domain.Workflow) (*domain.Workflow, error) {
	if wf == nil {
		return nil, fmt.Errorf("%w: nil workflow", ErrInvalidWorkflow)
	}
	if strings.TrimSpace(wf.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidWorkflow)
	}

	out := *wf
	if out.UserID == "" {
		out.UserID = DefaultUser
	}
	if out.ID == "" {
		out.ID = s.newID()
	}

	if s.locker != nil {
		unlock, err := s.locker.Lock(ctx, out.UserID+":"+out.ID, lockTTL)
		if err != nil {
			return nil, fmt.Errorf("lock workflow %s: %w", out.ID, err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				s.logger.Warn("Failed to release workflow lock", "workflow", out.ID, "err", err)
			}
		}()
	}

	now := s.now()
	out.CreatedAt = now
	existing, err := s.store.Get(ctx, out.UserID, out.ID)
	switch {
	case err == nil:
		out.CreatedAt = existing.CreatedAt
	case !errors.Is(err, domain.ErrWorkflowNotFound):
		return nil, err
	}
	out.UpdatedAt = now
	if out.Nodes == nil {
		out.Nodes = []domain.Node{}
	}
	if out.Edges == nil {
		out.Edges = []domain.Edge{}
	}

	if err := s.store.Save(ctx, &out); err != nil {
		return nil, fmt.Errorf("save workflow %s: %w", out.ID, err)
	}
	s.logger.Debug("Workflow saved", "workflow", out.ID, "user", out.UserID, "nodes", len(out.Nodes))
	return &out, nil
}

// Get returns domain.ErrWorkflowNotFound when userID does not own id.
func (s *Service) Get(ctx context.Context, userID, id string) (*domain.Workflow, error) {
	return s.store.Get(ctx, userOrDefault(userID), id)
}

// List returns the user's workflows, most recently updated first.
func (s *Service) List(ctx context.Context, userID string) ([]Summary, error) {
	all, err := s.store.List(ctx, userOrDefault(userID))
	if err != nil {
		return nil, err
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].UpdatedAt.Equal(all[j].UpdatedAt) {
			return all[i].ID < all[j].ID
		}
		return all[i].UpdatedAt.After(all[j].UpdatedAt)
	})
	if len(all) > s.limit {
		all = all[:s.limit]
	}

	out := make([]Summary, len(all))
	for i, wf := range all {
		out[i] = Summary{
			ID:        wf.ID,
			Name:      wf.Name,
			CreatedAt: wf.CreatedAt,
			UpdatedAt: wf.UpdatedAt,
			NodeCount: len(wf.Nodes),
			EdgeCount: len(wf.Edges),
		}
	}
	return out, nil
}

// Delete removes a workflow of userID.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	return s.store.Delete(ctx, userOrDefault(userID), id)
}

func userOrDefault(id string) string {
	if id == "" {
		return DefaultUser
	}
	return id
}
