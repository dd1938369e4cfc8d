package ports

import (
	"context"

	"github.com/advancedresearch/agent-safety-layers/pkg/domain"
)

// SnapshotStore defines the interface for persisting agent sessions.
// This allows an agent's model and safety level to survive restarts.
type SnapshotStore[M any] interface {
	// Save persists the snapshot for a given session ID.
	Save(ctx context.Context, sessionID string, snapshot *domain.Snapshot[M]) error

	// Load retrieves the snapshot for a given session ID.
	// Returns domain.ErrSessionNotFound if the session does not exist.
	Load(ctx context.Context, sessionID string) (*domain.Snapshot[M], error)

	// Delete removes the snapshot for a given session ID.
	Delete(ctx context.Context, sessionID string) error

	// List returns the IDs of the stored sessions.
	List(ctx context.Context) ([]string, error)
}
