package layers

import (
	"fmt"

	"github.com/advancedresearch/agent-safety-layers/pkg/domain"
)

// Wrap adds one safety layer around core.
// core must bottom out in a Zero built by NewZero.
func Wrap[M any, A comparable](core Decider[M, A]) (*Layered[M, A], error) {
	if err := Validate(core); err != nil {
		return nil, fmt.Errorf("wrap: %w", err)
	}
	return &Layered[M, A]{core: core}, nil
}

// Build wraps zero in n safety layers.
func Build[M any, A comparable](zero *Zero[M, A], n int) (Decider[M, A], error) {
	if n < 0 {
		return nil, fmt.Errorf("build stack of %d layers: %w", n, domain.ErrNegativeDepth)
	}
	if err := Validate[M, A](zero); err != nil {
		return nil, fmt.Errorf("build stack: %w", err)
	}
	var d Decider[M, A] = zero
	for i := 0; i < n; i++ {
		d = &Layered[M, A]{core: d}
	}
	return d, nil
}

// Validate reports whether d is a stack Decide can run: every layer has a core and
// the chain ends in a Zero with base decision logic.
func Validate[M any, A comparable](d Decider[M, A]) error {
	for {
		switch v := d.(type) {
		case *Zero[M, A]:
			if v == nil {
				return domain.ErrNilCore
			}
			if v.decide == nil {
				return domain.ErrNilDecide
			}
			return nil
		case *Layered[M, A]:
			if v == nil {
				return domain.ErrNilCore
			}
			d = v.core
		default:
			return domain.ErrNilCore
		}
	}
}

// Inc increases the safety level by one. d must be a valid stack.
func Inc[M any, A comparable](d Decider[M, A]) Decider[M, A] {
	return &Layered[M, A]{core: d}
}

// Dec decreases the safety level by one. A Zero agent is returned unchanged.
func Dec[M any, A comparable](d Decider[M, A]) Decider[M, A] {
	if l, ok := d.(*Layered[M, A]); ok {
		return l.core
	}
	return d
}

// Depth returns the number of safety layers of d.
func Depth[M any, A comparable](d Decider[M, A]) int {
	_, depth := unwrap(d)
	return depth
}

// CoreZero returns the zero agent at the bottom of d.
func CoreZero[M any, A comparable](d Decider[M, A]) *Zero[M, A] {
	zero, _ := unwrap(d)
	return zero
}
