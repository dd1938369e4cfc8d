package layers

import (
	"reflect"

	"github.com/advancedresearch/agent-safety-layers/pkg/domain"
	"github.com/google/go-cmp/cmp"
)

// DecideFunc is the injected base decision logic.
type DecideFunc[M any, A comparable] func(model M) A

// MutateFunc returns a perturbed copy of the model. It must not modify its input.
// When no mutation is possible it returns a model equal to its input.
type MutateFunc[M any] func(model M) M

// EqualFunc reports whether two models are equal.
type EqualFunc[M any] func(a, b M) bool

// Mutable is implemented by models that know how to perturb themselves.
type Mutable[M any] interface {
	Mutate() M
}

// SelfMutate adapts a Mutable model type into a MutateFunc.
func SelfMutate[M Mutable[M]]() MutateFunc[M] {
	return func(model M) M {
		return model.Mutate()
	}
}

// Decider turns a model into a Decision.
// It is a closed set: only *Zero and *Layered implement it.
type Decider[M any, A comparable] interface {
	Decide(model M) domain.Decision[A]
	decider()
}

// Option configures a Zero agent.
type Option[M any] func(*settings[M])

type settings[M any] struct {
	equal EqualFunc[M]
}

// WithModelEqual replaces the model equality used to recognise no-op mutations.
// A nil function disables no-op detection.
func WithModelEqual[M any](equal EqualFunc[M]) Option[M] {
	return func(s *settings[M]) {
		s.equal = equal
	}
}

// DefaultEqual compares models structurally, including unexported fields.
// Models cmp cannot compare count as different, so their layers always probe.
// Large or cyclic models should supply their own equality with WithModelEqual.
func DefaultEqual[M any](a, b M) (equal bool) {
	defer func() {
		if recover() != nil {
			equal = false
		}
	}()
	return cmp.Equal(a, b, cmp.Exporter(func(reflect.Type) bool { return true }))
}

// Zero is an agent with no safety layers. It is only safe in environments
// with perfect information.
type Zero[M any, A comparable] struct {
	decide DecideFunc[M, A]
	mutate MutateFunc[M]
	settings[M]
}

// NewZero creates the core agent of a stack.
// A nil mutate means no mutation is ever possible, so every layer confirms.
func NewZero[M any, A comparable](decide DecideFunc[M, A], mutate MutateFunc[M], opts ...Option[M]) (*Zero[M, A], error) {
	if decide == nil {
		return nil, domain.ErrNilDecide
	}
	z := &Zero[M, A]{
		decide:   decide,
		mutate:   mutate,
		settings: settings[M]{equal: DefaultEqual[M]},
	}
	for _, opt := range opts {
		opt(&z.settings)
	}
	return z, nil
}

// Decide returns the base decision, always Confirmed.
func (z *Zero[M, A]) Decide(model M) domain.Decision[A] {
	return z.chain(model, 0, nil)
}

func (z *Zero[M, A]) decider() {}

// Layered is a successor agent: one safety layer around its core.
type Layered[M any, A comparable] struct {
	core Decider[M, A]
}

// Decide runs the mutation-invariance protocol for every layer of the stack.
func (l *Layered[M, A]) Decide(model M) domain.Decision[A] {
	return Evaluate[M, A](l, model, nil)
}

// Core returns the wrapped Decider.
func (l *Layered[M, A]) Core() Decider[M, A] {
	return l.core
}

func (l *Layered[M, A]) decider() {}
