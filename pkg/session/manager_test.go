package session_test

import (
	"context"
	"sync"
	"testing"
	"time"

	safetylayers "github.com/advancedresearch/agent-safety-layers"
	"github.com/advancedresearch/agent-safety-layers/pkg/adapters/memory"
	"github.com/advancedresearch/agent-safety-layers/pkg/adapters/redis"
	"github.com/advancedresearch/agent-safety-layers/pkg/domain"
	"github.com/advancedresearch/agent-safety-layers/pkg/session"
	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type world struct {
	Goal     int
	Position int
}

func move(w world) int {
	switch {
	case w.Position < w.Goal:
		return 1
	case w.Position > w.Goal:
		return -1
	default:
		return 0
	}
}

func doubtGoal(w world) world {
	if w.Goal > 0 {
		w.Goal--
	}
	return w
}

func walk(w world, step int) world {
	w.Position += step
	return w
}

func newManager(t *testing.T, store *memory.Store[world], opts ...session.Option) *session.Manager[world, int] {
	t.Helper()
	agent, err := safetylayers.New(move, doubtGoal)
	require.NoError(t, err)
	return session.NewManager(agent, walk, store, opts...)
}

// SlowStore simulates latency to provoke race conditions if locking is missing.
type SlowStore struct {
	*memory.Store[world]
}

func (s SlowStore) Load(ctx context.Context, sessionID string) (*domain.Snapshot[world], error) {
	time.Sleep(5 * time.Millisecond) // Simulate IO
	return s.Store.Load(ctx, sessionID)
}

func (s SlowStore) Save(ctx context.Context, sessionID string, snapshot *domain.Snapshot[world]) error {
	time.Sleep(5 * time.Millisecond) // Simulate IO
	return s.Store.Save(ctx, sessionID, snapshot)
}

func TestManager_ReachGoal(t *testing.T) {
	mgr := newManager(t, memory.NewStore[world]())
	ctx := context.Background()

	s, err := mgr.StartWithID(ctx, "walker", world{Goal: 4, Position: 1}, 1)
	require.NoError(t, err)
	assert.Equal(t, "walker", s.ID)

	d, err := mgr.Decide(ctx, "walker")
	require.NoError(t, err)
	assert.Equal(t, 1, d.Action)
	assert.True(t, d.Confirmed())

	_, err = mgr.Act(ctx, "walker", d.Action)
	require.NoError(t, err)
	d, err = mgr.Step(ctx, "walker")
	require.NoError(t, err)
	assert.True(t, d.Confirmed())

	// Undecided whether the goal is 4 or 3: the model is left alone.
	d, err = mgr.Step(ctx, "walker")
	require.NoError(t, err)
	assert.Equal(t, domain.UpdateRequested, d.Outcome)

	s, err = mgr.Load(ctx, "walker")
	require.NoError(t, err)
	assert.Equal(t, 3, s.Model.Position)
	require.NotNil(t, s.LastOutcome)
	assert.Equal(t, domain.UpdateRequested, *s.LastOutcome)
	assert.Equal(t, 1, s.LastDisagreementLayer)

	// A model update asserting the goal clears the flag.
	s, err = mgr.UpdateModel(ctx, "walker", world{Goal: 4, Position: 3})
	require.NoError(t, err)
	assert.Nil(t, s.LastOutcome)

	s, err = mgr.Dec(ctx, "walker")
	require.NoError(t, err)
	assert.Equal(t, 0, s.Layers)

	d, err = mgr.Step(ctx, "walker")
	require.NoError(t, err)
	assert.True(t, d.Confirmed())
	assert.Equal(t, 0, d.Layers)

	d, err = mgr.Decide(ctx, "walker")
	require.NoError(t, err)
	assert.Equal(t, 0, d.Action, "goal reached")
}

func TestManager_Layers(t *testing.T) {
	mgr := newManager(t, memory.NewStore[world]())
	ctx := context.Background()

	s, err := mgr.Start(ctx, world{Goal: 4, Position: 1}, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)

	_, err = mgr.Dec(ctx, s.ID)
	require.NoError(t, err)
	s, err = mgr.Inc(ctx, s.ID)
	require.NoError(t, err)
	s, err = mgr.Inc(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Layers)

	s, err = mgr.SetLayers(ctx, s.ID, 3)
	require.NoError(t, err)

	d, err := mgr.Decide(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, d.Layers)
	assert.Equal(t, 3, d.DisagreementLayer)

	_, err = mgr.SetLayers(ctx, s.ID, -1)
	assert.ErrorIs(t, err, domain.ErrNegativeDepth)
}

func TestManager_Errors(t *testing.T) {
	store := memory.NewStore[world]()
	mgr := newManager(t, store)
	ctx := context.Background()

	_, err := mgr.Decide(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	_, err = mgr.StartWithID(ctx, "dup", world{}, 1)
	require.NoError(t, err)
	_, err = mgr.StartWithID(ctx, "dup", world{}, 1)
	assert.ErrorIs(t, err, domain.ErrSessionExists)

	_, err = mgr.StartWithID(ctx, "neg", world{}, -1)
	assert.ErrorIs(t, err, domain.ErrNegativeDepth)

	agent, err := safetylayers.New(move, doubtGoal)
	require.NoError(t, err)
	readOnly := session.NewManager[world, int](agent, nil, store)
	_, err = readOnly.Act(ctx, "dup", 1)
	assert.ErrorIs(t, err, domain.ErrNoActor)
	_, err = readOnly.Step(ctx, "dup")
	assert.ErrorIs(t, err, domain.ErrNoActor)

	require.NoError(t, mgr.Delete(ctx, "dup"))
	_, err = mgr.Load(ctx, "dup")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestManager_Locking(t *testing.T) {
	store := SlowStore{memory.NewStore[world]()}
	agent, err := safetylayers.New(move, doubtGoal)
	require.NoError(t, err)
	mgr := session.NewManager[world, int](agent, walk, store)
	ctx := context.Background()
	id := "race-test"

	_, err = mgr.StartWithID(ctx, id, world{Goal: 100}, 0)
	require.NoError(t, err)

	// Read-modify-write without locking would lose updates.
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := mgr.Act(ctx, id, 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	s, err := mgr.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 10, s.Model.Position)
}

func TestManager_LoadOrStart(t *testing.T) {
	store := SlowStore{memory.NewStore[world]()}
	agent, err := safetylayers.New(move, doubtGoal)
	require.NoError(t, err)
	mgr := session.NewManager[world, int](agent, walk, store)
	ctx := context.Background()
	id := "atomic-init"

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(pos int) {
			defer wg.Done()
			s, err := mgr.LoadOrStart(ctx, id, world{Goal: 4, Position: pos}, 1)
			assert.NoError(t, err)
			assert.NotNil(t, s)
		}(i)
	}
	wg.Wait()

	ids, err := mgr.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{id}, ids)
}

func TestManager_DistributedLock(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	defer client.Close()

	agent, err := safetylayers.New(move, doubtGoal)
	require.NoError(t, err)
	store := redis.NewFromClient[world](client)
	mgr := session.NewManager(agent, walk, store,
		session.WithLocker(redis.NewLocker(client, "test:lock:")),
		session.WithLockTTL(time.Second),
	)
	ctx := context.Background()

	_, err = mgr.StartWithID(ctx, "shared", world{Goal: 4, Position: 1}, 1)
	require.NoError(t, err)

	d, err := mgr.Step(ctx, "shared")
	require.NoError(t, err)
	assert.True(t, d.Confirmed())
	assert.False(t, mr.Exists("test:lock:shared"), "lock is released after each operation")

	s, err := mgr.Load(ctx, "shared")
	require.NoError(t, err)
	assert.Equal(t, 2, s.Model.Position)
}

func TestManager_MaxLayers(t *testing.T) {
	store := memory.NewStore[world]()
	mgr := newManager(t, store, session.WithMaxLayers(3))
	ctx := context.Background()
	assert.Equal(t, 3, mgr.MaxLayers())

	_, err := mgr.Start(ctx, world{Goal: 4}, 1<<40)
	assert.ErrorIs(t, err, domain.ErrTooManyLayers)
	_, err = mgr.LoadOrStart(ctx, "lazy", world{Goal: 4}, 4)
	assert.ErrorIs(t, err, domain.ErrTooManyLayers)

	s, err := mgr.StartWithID(ctx, "capped", world{Goal: 4, Position: 1}, 3)
	require.NoError(t, err)

	_, err = mgr.Inc(ctx, s.ID)
	assert.ErrorIs(t, err, domain.ErrTooManyLayers)
	_, err = mgr.SetLayers(ctx, s.ID, 4)
	assert.ErrorIs(t, err, domain.ErrTooManyLayers)

	s, err = mgr.Load(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Layers, "rejected changes leave the session alone")

	// A snapshot written before the cap was lowered is refused, not evaluated.
	require.NoError(t, store.Save(ctx, "legacy", domain.NewSnapshot("legacy", world{Goal: 4}, 1000)))
	_, err = mgr.Decide(ctx, "legacy")
	assert.ErrorIs(t, err, domain.ErrTooManyLayers)

	assert.Equal(t, safetylayers.DefaultMaxLayers, newManager(t, store).MaxLayers())
	assert.Equal(t, 0, newManager(t, store, session.WithMaxLayers(0)).MaxLayers())
}
