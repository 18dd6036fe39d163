package ports

import (
	"context"
	"time"

	"github.com/aretw0/lattice/pkg/domain"
)

// WorkflowStore persists workflow definitions per user.
type WorkflowStore interface {
	// Save creates or replaces the workflow keyed by (UserID, ID).
	Save(ctx context.Context, wf *domain.Workflow) error

	// Get returns domain.ErrWorkflowNotFound if the workflow does not exist.
	Get(ctx context.Context, userID, id string) (*domain.Workflow, error)

	// List returns every workflow of the user in no particular order.
	List(ctx context.Context, userID string) ([]*domain.Workflow, error)

	// Delete returns domain.ErrWorkflowNotFound if the workflow does not exist.
	Delete(ctx context.Context, userID, id string) error
}

// WorkflowLibrary is a read-only catalogue of example workflows.
type WorkflowLibrary interface {
	List(ctx context.Context) ([]*domain.Workflow, error)
	Get(ctx context.Context, id string) (*domain.Workflow, error)
}

// UnlockFunc releases a lock taken with Locker.Lock.
type UnlockFunc func(ctx context.Context) error

// Locker serialises writers of one key, possibly across processes.
type Locker interface {
	// Lock blocks until the lock is held or ctx is done.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
