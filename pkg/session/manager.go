package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	safetylayers "github.com/advancedresearch/agent-safety-layers"
	"github.com/advancedresearch/agent-safety-layers/internal/logging"
	"github.com/advancedresearch/agent-safety-layers/pkg/domain"
	"github.com/advancedresearch/agent-safety-layers/pkg/ports"
	"github.com/google/uuid"
)

// DefaultLockTTL bounds how long a distributed session lock is held.
const DefaultLockTTL = 30 * time.Second

// agentCacheSize bounds how many agents of distinct depths are kept for reuse.
const agentCacheSize = 16

// ActFunc performs an action on a model and returns the resulting model.
type ActFunc[M any, A comparable] func(model M, action A) M

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates agent sessions, ensuring safe concurrent operations.
// It uses Reference Counting to garbage collect unused locks.
type Manager[M any, A comparable] struct {
	agent *safetylayers.Agent[M, A]
	act   ActFunc[M, A]
	store ports.SnapshotStore[M]

	mu    sync.Mutex            // Global lock for the map
	locks map[string]*lockEntry // Map of active locks

	agentsMu sync.Mutex
	agents   map[int]*safetylayers.Agent[M, A] // Agents by layer count

	locker    ports.DistributedLocker // Optional distributed locker
	lockTTL   time.Duration
	maxLayers int
	logger    *slog.Logger
}

// Option configures the Manager.
type Option func(*options)

type options struct {
	locker    ports.DistributedLocker
	lockTTL   time.Duration
	maxLayers int
	logger    *slog.Logger
}

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(o *options) {
		o.locker = locker
	}
}

// WithLockTTL sets the TTL of distributed locks (default DefaultLockTTL).
func WithLockTTL(ttl time.Duration) Option {
	return func(o *options) {
		o.lockTTL = ttl
	}
}

// WithMaxLayers caps the layer count of every session (default
// safetylayers.DefaultMaxLayers). n <= 0 removes the cap.
func WithMaxLayers(n int) Option {
	return func(o *options) {
		o.maxLayers = n
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// NewManager creates a session Manager around agent.
// act may be nil, in which case Act and Step fail with domain.ErrNoActor.
func NewManager[M any, A comparable](agent *safetylayers.Agent[M, A], act ActFunc[M, A], store ports.SnapshotStore[M], opts ...Option) *Manager[M, A] {
	o := options{
		lockTTL:   DefaultLockTTL,
		maxLayers: safetylayers.DefaultMaxLayers,
		logger:    logging.NewNop(), // Default to no-op
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Manager[M, A]{
		agent:   agent,
		act:     act,
		store:   store,
		locks:   make(map[string]*lockEntry),
		agents:  map[int]*safetylayers.Agent[M, A]{agent.Layers(): agent},
		locker:    o.locker,
		lockTTL:   o.lockTTL,
		maxLayers: o.maxLayers,
		logger:    o.logger,
	}
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(sessionID) after unlocking.
func (m *Manager[M, A]) acquire(sessionID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		entry = &lockEntry{}
		m.locks[sessionID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager[M, A]) release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		return
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, sessionID)
	}
}

// MaxLayers returns the largest layer count a session may have, or 0 when unbounded.
func (m *Manager[M, A]) MaxLayers() int {
	if m.maxLayers <= 0 {
		return 0
	}
	return m.maxLayers
}

// agentAt returns the agent with exactly n safety layers, sharing the same core.
// Stored snapshots are checked too, since they may predate the current cap.
func (m *Manager[M, A]) agentAt(n int) (*safetylayers.Agent[M, A], error) {
	if err := safetylayers.CheckLayers(n, m.maxLayers); err != nil {
		return nil, err
	}

	m.agentsMu.Lock()
	defer m.agentsMu.Unlock()

	if a, ok := m.agents[n]; ok {
		return a, nil
	}
	a, err := m.agent.WithDepth(n)
	if err != nil {
		return nil, err
	}
	if len(m.agents) < agentCacheSize {
		m.agents[n] = a
	}
	return a, nil
}

// Start creates a new session with a generated ID.
func (m *Manager[M, A]) Start(ctx context.Context, model M, layers int) (*domain.Snapshot[M], error) {
	return m.create(ctx, uuid.NewString(), model, layers)
}

// StartWithID creates a new session under the given ID.
// Returns domain.ErrSessionExists if the ID is taken.
func (m *Manager[M, A]) StartWithID(ctx context.Context, sessionID string, model M, layers int) (*domain.Snapshot[M], error) {
	return m.create(ctx, sessionID, model, layers)
}

func (m *Manager[M, A]) create(ctx context.Context, sessionID string, model M, layers int) (*domain.Snapshot[M], error) {
	if err := safetylayers.CheckLayers(layers, m.maxLayers); err != nil {
		return nil, fmt.Errorf("start session %s: %w", sessionID, err)
	}

	var snapshot *domain.Snapshot[M]
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		_, err := m.store.Load(ctx, sessionID)
		if err == nil {
			return fmt.Errorf("start session %s: %w", sessionID, domain.ErrSessionExists)
		}
		if !errors.Is(err, domain.ErrSessionNotFound) {
			return fmt.Errorf("failed to check session existence: %w", err)
		}

		snapshot = domain.NewSnapshot(sessionID, model, layers)
		if err := m.store.Save(ctx, sessionID, snapshot); err != nil {
			return fmt.Errorf("failed to initialize session: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.logger.Debug("session started", "session_id", sessionID, "layers", layers)
	return snapshot, nil
}

// LoadOrStart tries to load a session. If not found, it initializes a new one.
func (m *Manager[M, A]) LoadOrStart(ctx context.Context, sessionID string, model M, layers int) (*domain.Snapshot[M], error) {
	var snapshot *domain.Snapshot[M]
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		var err error
		snapshot, err = m.store.Load(ctx, sessionID)
		if err == nil {
			return nil
		}

		if !errors.Is(err, domain.ErrSessionNotFound) {
			return fmt.Errorf("failed to check session existence: %w", err)
		}
		if err := safetylayers.CheckLayers(layers, m.maxLayers); err != nil {
			return fmt.Errorf("start session %s: %w", sessionID, err)
		}

		// Persist immediately to reserve the ID
		snapshot = domain.NewSnapshot(sessionID, model, layers)
		if err := m.store.Save(ctx, sessionID, snapshot); err != nil {
			return fmt.Errorf("failed to initialize session: %w", err)
		}
		return nil
	})
	return snapshot, err
}

// Load retrieves an existing session from the store.
func (m *Manager[M, A]) Load(ctx context.Context, sessionID string) (*domain.Snapshot[M], error) {
	var snapshot *domain.Snapshot[M]
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		var err error
		snapshot, err = m.store.Load(ctx, sessionID)
		return err
	})
	return snapshot, err
}

// Decide asks the session's agent what to do next and records the outcome.
func (m *Manager[M, A]) Decide(ctx context.Context, sessionID string) (domain.Decision[A], error) {
	var decision domain.Decision[A]
	err := m.update(ctx, sessionID, func(ctx context.Context, s *domain.Snapshot[M]) error {
		var err error
		decision, err = m.decide(ctx, s)
		return err
	})
	return decision, err
}

// Act performs action on the session's model.
func (m *Manager[M, A]) Act(ctx context.Context, sessionID string, action A) (*domain.Snapshot[M], error) {
	if m.act == nil {
		return nil, domain.ErrNoActor
	}
	return m.updated(ctx, sessionID, func(_ context.Context, s *domain.Snapshot[M]) error {
		s.Model = m.act(s.Model, action)
		return nil
	})
}

// Step decides and, only when the decision is Confirmed, performs the action.
// An UpdateRequested decision leaves the model untouched so the caller can
// refresh it first.
func (m *Manager[M, A]) Step(ctx context.Context, sessionID string) (domain.Decision[A], error) {
	if m.act == nil {
		return domain.Decision[A]{}, domain.ErrNoActor
	}
	var decision domain.Decision[A]
	err := m.update(ctx, sessionID, func(ctx context.Context, s *domain.Snapshot[M]) error {
		var err error
		decision, err = m.decide(ctx, s)
		if err != nil {
			return err
		}
		if decision.Confirmed() {
			s.Model = m.act(s.Model, decision.Action)
		}
		return nil
	})
	return decision, err
}

// UpdateModel replaces the session's model, e.g. after new sensory information.
func (m *Manager[M, A]) UpdateModel(ctx context.Context, sessionID string, model M) (*domain.Snapshot[M], error) {
	return m.updated(ctx, sessionID, func(_ context.Context, s *domain.Snapshot[M]) error {
		s.Model = model
		s.LastOutcome = nil
		s.LastDisagreementLayer = 0
		return nil
	})
}

// SetLayers sets the session's number of safety layers.
func (m *Manager[M, A]) SetLayers(ctx context.Context, sessionID string, layers int) (*domain.Snapshot[M], error) {
	if err := safetylayers.CheckLayers(layers, m.maxLayers); err != nil {
		return nil, fmt.Errorf("set layers of %s: %w", sessionID, err)
	}
	return m.updated(ctx, sessionID, func(_ context.Context, s *domain.Snapshot[M]) error {
		s.Layers = layers
		return nil
	})
}

// Inc adds one safety layer to the session.
func (m *Manager[M, A]) Inc(ctx context.Context, sessionID string) (*domain.Snapshot[M], error) {
	return m.updated(ctx, sessionID, func(_ context.Context, s *domain.Snapshot[M]) error {
		if err := safetylayers.CheckLayers(s.Layers+1, m.maxLayers); err != nil {
			return fmt.Errorf("add layer to %s: %w", sessionID, err)
		}
		s.Layers++
		return nil
	})
}

// Dec removes one safety layer from the session. A session without layers is unchanged.
func (m *Manager[M, A]) Dec(ctx context.Context, sessionID string) (*domain.Snapshot[M], error) {
	return m.updated(ctx, sessionID, func(_ context.Context, s *domain.Snapshot[M]) error {
		if s.Layers > 0 {
			s.Layers--
		}
		return nil
	})
}

// Delete removes the session from the store.
func (m *Manager[M, A]) Delete(ctx context.Context, sessionID string) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		return m.store.Delete(ctx, sessionID)
	})
}

// List delegates to the store.
func (m *Manager[M, A]) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Store returns the underlying snapshot store.
func (m *Manager[M, A]) Store() ports.SnapshotStore[M] {
	return m.store
}

// WithLock executes a function while holding the lock for the session.
func (m *Manager[M, A]) WithLock(ctx context.Context, sessionID string, fn func(context.Context) error) error {
	entry := m.acquire(sessionID)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(sessionID)
	}()

	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, sessionID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"session_id", sessionID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

func (m *Manager[M, A]) decide(ctx context.Context, s *domain.Snapshot[M]) (domain.Decision[A], error) {
	agent, err := m.agentAt(s.Layers)
	if err != nil {
		return domain.Decision[A]{}, err
	}
	decision := agent.Decide(safetylayers.ContextWithSession(ctx, s.ID), s.Model)
	s.Record(decision.Outcome, decision.DisagreementLayer)
	return decision, nil
}

// update runs a read-modify-write cycle on a session under its lock.
func (m *Manager[M, A]) update(ctx context.Context, sessionID string, fn func(context.Context, *domain.Snapshot[M]) error) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		snapshot, err := m.store.Load(ctx, sessionID)
		if err != nil {
			return err
		}
		if err := fn(ctx, snapshot); err != nil {
			return err
		}
		snapshot.UpdatedAt = time.Now().UTC()
		if err := m.store.Save(ctx, sessionID, snapshot); err != nil {
			return fmt.Errorf("failed to save session %s: %w", sessionID, err)
		}
		return nil
	})
}

func (m *Manager[M, A]) updated(ctx context.Context, sessionID string, fn func(context.Context, *domain.Snapshot[M]) error) (*domain.Snapshot[M], error) {
	var out *domain.Snapshot[M]
	err := m.update(ctx, sessionID, func(ctx context.Context, s *domain.Snapshot[M]) error {
		if err := fn(ctx, s); err != nil {
			return err
		}
		out = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
