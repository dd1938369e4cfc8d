package domain

// Decision is the result of one call to a Decider.
// The Action is always usable; Outcome only says how much to trust it.
type Decision[A any] struct {
	// Action is the decision on the unmutated model.
	Action A `json:"action"`

	// Outcome is Confirmed iff every layer's comparison agreed.
	Outcome Outcome `json:"outcome"`

	// Layers is the number of safety layers of the Decider that produced the decision.
	Layers int `json:"layers"`

	// DisagreementLayer is the 1-based index of the shallowest layer whose probe
	// changed the decision. Zero when Outcome is Confirmed.
	DisagreementLayer int `json:"disagreement_layer,omitempty"`

	// Disagreements counts the layers whose probe changed the decision.
	Disagreements int `json:"disagreements,omitempty"`
}

// Confirmed reports whether the decision survived every probe.
func (d Decision[A]) Confirmed() bool {
	return d.Outcome == Confirmed
}
