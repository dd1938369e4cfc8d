package domain

import "fmt"

// Outcome tags the result of a decision.
type Outcome uint8

const (
	// Confirmed means no probed mutation changed the decision.
	// It is "no contrary evidence found", not a proof of safety.
	Confirmed Outcome = iota
	// UpdateRequested means at least one probe changed the decision.
	// The action is still usable, but a model refresh is advisable before trusting it.
	UpdateRequested
)

const (
	outcomeConfirmed       = "confirmed"
	outcomeUpdateRequested = "update_requested"
)

// String returns the wire name of the outcome.
func (o Outcome) String() string {
	switch o {
	case Confirmed:
		return outcomeConfirmed
	case UpdateRequested:
		return outcomeUpdateRequested
	default:
		return fmt.Sprintf("outcome(%d)", uint8(o))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (o Outcome) MarshalText() ([]byte, error) {
	switch o {
	case Confirmed, UpdateRequested:
		return []byte(o.String()), nil
	default:
		return nil, fmt.Errorf("invalid outcome %d", uint8(o))
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Outcome) UnmarshalText(text []byte) error {
	switch string(text) {
	case outcomeConfirmed:
		*o = Confirmed
	case outcomeUpdateRequested:
		*o = UpdateRequested
	default:
		return fmt.Errorf("invalid outcome %q", text)
	}
	return nil
}
