package observability

import (
	"context"
	"log/slog"

	"github.com/advancedresearch/agent-safety-layers/pkg/domain"
)

// LogHooks returns hooks that trace every probe and decision at debug level.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnProbe: func(ctx context.Context, e *domain.ProbeEvent) {
			logger.DebugContext(ctx, "probe",
				"session_id", e.SessionID,
				"layer", e.Layer,
				"before", e.Before,
				"after", e.After,
				"agreed", e.Agreed,
				"noop", e.NoOp,
			)
		},
		OnDecision: func(ctx context.Context, e *domain.DecisionEvent) {
			logger.DebugContext(ctx, "decision",
				"session_id", e.SessionID,
				"action", e.Action,
				"outcome", e.Outcome.String(),
				"layers", e.Layers,
				"disagreement_layer", e.DisagreementLayer,
			)
		},
	}
}
