package safetylayers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/advancedresearch/agent-safety-layers/internal/logging"
	"github.com/advancedresearch/agent-safety-layers/pkg/domain"
	"github.com/advancedresearch/agent-safety-layers/pkg/layers"
)

// DefaultMaxLayers bounds the layer counts accepted by sessions and servers.
// Building and deciding with N layers costs O(N), so remote callers must not pick N freely.
const DefaultMaxLayers = 128

// CheckLayers validates a requested layer count against limit. A limit <= 0 disables the bound.
func CheckLayers(n, limit int) error {
	if n < 0 {
		return fmt.Errorf("%d layers: %w", n, domain.ErrNegativeDepth)
	}
	if limit > 0 && n > limit {
		return fmt.Errorf("%d layers, at most %d allowed: %w", n, limit, domain.ErrTooManyLayers)
	}
	return nil
}

// Agent is the high-level entry point of the library.
// It wraps a layer stack and adds logging and lifecycle hooks around each decision.
// An Agent is immutable and safe for concurrent use with independent models.
type Agent[M any, A comparable] struct {
	stack  layers.Decider[M, A]
	hooks  domain.LifecycleHooks
	logger *slog.Logger
}

// Option defines a functional option for configuring the Agent.
type Option func(*config)

type config struct {
	layers   int
	hooks    []domain.LifecycleHooks
	logger   *slog.Logger
	equal    any
	equalSet bool
}

// WithLayers sets the number of safety layers (default 1).
func WithLayers(n int) Option {
	return func(c *config) {
		c.layers = n
	}
}

// WithLifecycleHooks registers observability hooks. It may be given more than once.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(c *config) {
		c.hooks = append(c.hooks, hooks)
	}
}

// WithLogger sets a custom structured logger for the agent.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithModelEqual replaces the equality used to recognise mutations that changed nothing.
// A nil function disables the check.
func WithModelEqual[M any](equal layers.EqualFunc[M]) Option {
	return func(c *config) {
		c.equal = equal
		c.equalSet = true
	}
}

// New builds an agent from base decision logic and a mutation generator.
// A nil mutate means the model cannot be mutated, so every decision is Confirmed.
func New[M any, A comparable](decide layers.DecideFunc[M, A], mutate layers.MutateFunc[M], opts ...Option) (*Agent[M, A], error) {
	cfg := config{layers: 1}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logging.NewNop()
	}

	var zeroOpts []layers.Option[M]
	if cfg.equalSet {
		equal, ok := cfg.equal.(layers.EqualFunc[M])
		if !ok {
			return nil, fmt.Errorf("model equality %T does not compare %T models", cfg.equal, *new(M))
		}
		zeroOpts = append(zeroOpts, layers.WithModelEqual(equal))
	}

	zero, err := layers.NewZero(decide, mutate, zeroOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create core agent: %w", err)
	}

	stack, err := layers.Build(zero, cfg.layers)
	if err != nil {
		return nil, err
	}

	return &Agent[M, A]{
		stack:  stack,
		hooks:  domain.MergeHooks(cfg.hooks...),
		logger: cfg.logger,
	}, nil
}

// FromDecider wraps an existing layer stack.
// Layer and model-equality options are ignored: the stack is used as built.
func FromDecider[M any, A comparable](d layers.Decider[M, A], opts ...Option) (*Agent[M, A], error) {
	if err := layers.Validate(d); err != nil {
		return nil, fmt.Errorf("failed to adopt layer stack: %w", err)
	}
	cfg := config{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logging.NewNop()
	}
	return &Agent[M, A]{
		stack:  d,
		hooks:  domain.MergeHooks(cfg.hooks...),
		logger: cfg.logger,
	}, nil
}

// Decide computes the agent's action for model.
// It never fails: an UpdateRequested outcome still carries a usable action.
func (a *Agent[M, A]) Decide(ctx context.Context, model M) domain.Decision[A] {
	start := time.Now()
	sessionID := sessionFromContext(ctx)

	var observe layers.Observer[A]
	if a.hooks.OnProbe != nil {
		observe = func(p domain.Probe[A]) {
			a.hooks.OnProbe(ctx, &domain.ProbeEvent{
				EventBase: domain.EventBase{
					Timestamp: time.Now(),
					Type:      domain.EventProbe,
					SessionID: sessionID,
				},
				Layer:  p.Layer,
				Before: p.Before,
				After:  p.After,
				NoOp:   p.NoOp,
				Agreed: p.Agreed,
			})
		}
	}

	decision := layers.Evaluate(a.stack, model, observe)
	elapsed := time.Since(start)

	if decision.Confirmed() {
		a.logger.Debug("decision confirmed",
			"action", decision.Action,
			"layers", decision.Layers,
			"duration", elapsed,
		)
	} else {
		a.logger.Info("model update requested",
			"action", decision.Action,
			"layers", decision.Layers,
			"disagreement_layer", decision.DisagreementLayer,
			"disagreements", decision.Disagreements,
		)
	}

	if a.hooks.OnDecision != nil {
		a.hooks.OnDecision(ctx, &domain.DecisionEvent{
			EventBase: domain.EventBase{
				Timestamp: time.Now(),
				Type:      domain.EventDecision,
				SessionID: sessionID,
			},
			Action:            decision.Action,
			Outcome:           decision.Outcome,
			Layers:            decision.Layers,
			DisagreementLayer: decision.DisagreementLayer,
			Duration:          elapsed,
		})
	}

	return decision
}

// Layers returns the number of safety layers.
func (a *Agent[M, A]) Layers() int {
	return layers.Depth(a.stack)
}

// Decider returns the underlying layer stack.
func (a *Agent[M, A]) Decider() layers.Decider[M, A] {
	return a.stack
}

// Inc returns a copy of the agent with one more safety layer.
func (a *Agent[M, A]) Inc() *Agent[M, A] {
	next := *a
	next.stack = layers.Inc(a.stack)
	return &next
}

// Dec returns a copy of the agent with one less safety layer.
// An agent without layers is returned unchanged.
func (a *Agent[M, A]) Dec() *Agent[M, A] {
	next := *a
	next.stack = layers.Dec(a.stack)
	return &next
}

// WithDepth returns a copy of the agent with exactly n safety layers.
func (a *Agent[M, A]) WithDepth(n int) (*Agent[M, A], error) {
	stack, err := layers.Build(layers.CoreZero(a.stack), n)
	if err != nil {
		return nil, err
	}
	next := *a
	next.stack = stack
	return &next, nil
}

type sessionKey struct{}

// ContextWithSession tags ctx with a session ID that is copied into emitted events.
func ContextWithSession(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionKey{}, sessionID)
}

func sessionFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}
