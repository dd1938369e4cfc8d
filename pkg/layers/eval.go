package layers

import "github.com/advancedresearch/agent-safety-layers/pkg/domain"

// Observer receives every layer probe in order, innermost layer first.
type Observer[A any] func(domain.Probe[A])

// Evaluate decides with d on model, reporting each layer probe to observe (which may be nil).
func Evaluate[M any, A comparable](d Decider[M, A], model M, observe Observer[A]) domain.Decision[A] {
	zero, depth := unwrap(d)
	return zero.chain(model, depth, observe)
}

// chain probes depth mutations in sequence. The decision on the unmutated model is
// computed first and is the one returned, whatever the probes find.
func (z *Zero[M, A]) chain(model M, depth int, observe Observer[A]) domain.Decision[A] {
	before := z.decide(model)
	decision := domain.Decision[A]{
		Action:  before,
		Outcome: domain.Confirmed,
		Layers:  depth,
	}

	current := model
	for layer := 1; layer <= depth; layer++ {
		next := current
		if z.mutate != nil {
			next = z.mutate(current)
		}
		after := z.decide(next)

		noop := z.mutate == nil || (z.equal != nil && z.equal(current, next))
		agreed := noop || after == before
		if !agreed {
			decision.Disagreements++
			if decision.DisagreementLayer == 0 {
				decision.Outcome = domain.UpdateRequested
				decision.DisagreementLayer = layer
			}
		}

		if observe != nil {
			observe(domain.Probe[A]{
				Layer:  layer,
				Before: before,
				After:  after,
				NoOp:   noop,
				Agreed: agreed,
			})
		}

		before, current = after, next
	}

	return decision
}

// unwrap walks the Peano structure down to its zero core.
func unwrap[M any, A comparable](d Decider[M, A]) (*Zero[M, A], int) {
	depth := 0
	for {
		switch v := d.(type) {
		case *Zero[M, A]:
			return v, depth
		case *Layered[M, A]:
			depth++
			d = v.core
		default:
			panic("layers: unknown decider")
		}
	}
}
