package ports

import (
	"context"
	"testing"
	"time"

	"github.com/advancedresearch/agent-safety-layers/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSnapshotStoreContract runs a suite of tests to verify that a SnapshotStore implementation
// adheres to the defined interface contract. model is stored and must load back equal.
func RunSnapshotStoreContract[M any](t *testing.T, store SnapshotStore[M], model M) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405")

	t.Run("Save and Load", func(t *testing.T) {
		snapshot := domain.NewSnapshot(sessionID, model, 3)
		snapshot.Record(domain.UpdateRequested, 2)

		err := store.Save(ctx, sessionID, snapshot)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, sessionID, loaded.ID)
		assert.Equal(t, model, loaded.Model)
		assert.Equal(t, 3, loaded.Layers)
		require.NotNil(t, loaded.LastOutcome)
		assert.Equal(t, domain.UpdateRequested, *loaded.LastOutcome)
		assert.Equal(t, 2, loaded.LastDisagreementLayer)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Loaded Copy Is Isolated", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, sessionID, domain.NewSnapshot(sessionID, model, 1)))

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		loaded.Layers = 99

		again, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, 1, again.Layers)
	})

	t.Run("Delete", func(t *testing.T) {
		err := store.Save(ctx, sessionID, domain.NewSnapshot(sessionID, model, 0))
		require.NoError(t, err)

		err = store.Delete(ctx, sessionID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		_ = store.Save(ctx, id1, domain.NewSnapshot(id1, model, 1))
		_ = store.Save(ctx, id2, domain.NewSnapshot(id2, model, 1))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}
