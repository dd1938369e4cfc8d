package domain

import "time"

// Snapshot is the durable state of a stateful agent session.
// Only the model and the layer count vary between decisions; the decision logic
// itself is code and is never persisted.
type Snapshot[M any] struct {
	ID string `json:"id"`

	// Model is the agent's current internal model.
	Model M `json:"model"`

	// Layers is the number of safety layers wrapped around the core.
	Layers int `json:"layers"`

	// LastOutcome is the outcome of the most recent decision, if any.
	LastOutcome *Outcome `json:"last_outcome,omitempty"`

	// LastDisagreementLayer mirrors Decision.DisagreementLayer of the most recent decision.
	LastDisagreementLayer int `json:"last_disagreement_layer,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSnapshot creates a fresh session snapshot.
func NewSnapshot[M any](id string, model M, layers int) *Snapshot[M] {
	now := time.Now().UTC()
	return &Snapshot[M]{
		ID:        id,
		Model:     model,
		Layers:    layers,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Record stores the outcome of a decision on the snapshot.
func (s *Snapshot[M]) Record(outcome Outcome, disagreementLayer int) {
	o := outcome
	s.LastOutcome = &o
	s.LastDisagreementLayer = disagreementLayer
	s.UpdatedAt = time.Now().UTC()
}
