package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventProbe    EventType = "probe"
	EventDecision EventType = "decision"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id,omitempty"`
}

// Probe describes one layer's mutate-and-compare step.
type Probe[A any] struct {
	// Layer is the 1-based layer index, counted from the core outwards.
	Layer int
	// Before is the decision on the model with the first Layer-1 mutations applied.
	Before A
	// After is the decision on the model with the first Layer mutations applied.
	After A
	// NoOp is set when the mutation returned a model equal to its input.
	NoOp bool
	// Agreed is set when the layer's comparison confirmed the decision.
	Agreed bool
}

// ProbeEvent represents a single layer probe.
type ProbeEvent struct {
	EventBase
	Layer  int  `json:"layer"`
	Before any  `json:"before"`
	After  any  `json:"after"`
	NoOp   bool `json:"noop,omitempty"`
	Agreed bool `json:"agreed"`
}

// DecisionEvent represents a completed decision.
type DecisionEvent struct {
	EventBase
	Action            any           `json:"action"`
	Outcome           Outcome       `json:"outcome"`
	Layers            int           `json:"layers"`
	DisagreementLayer int           `json:"disagreement_layer,omitempty"`
	Duration          time.Duration `json:"duration"`
}

// LifecycleHooks defines callbacks for decision observability.
type LifecycleHooks struct {
	OnProbe    func(context.Context, *ProbeEvent)
	OnDecision func(context.Context, *DecisionEvent)
}

// MergeHooks returns hooks that invoke every given hook set in order.
func MergeHooks(hooks ...LifecycleHooks) LifecycleHooks {
	var merged LifecycleHooks
	for _, h := range hooks {
		if h.OnProbe != nil {
			prev := merged.OnProbe
			merged.OnProbe = func(ctx context.Context, e *ProbeEvent) {
				if prev != nil {
					prev(ctx, e)
				}
				h.OnProbe(ctx, e)
			}
		}
		if h.OnDecision != nil {
			prev := merged.OnDecision
			merged.OnDecision = func(ctx context.Context, e *DecisionEvent) {
				if prev != nil {
					prev(ctx, e)
				}
				h.OnDecision(ctx, e)
			}
		}
	}
	return merged
}
