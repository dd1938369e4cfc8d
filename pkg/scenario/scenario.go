package scenario

import (
	"errors"
	"fmt"
	"sort"

	safetylayers "github.com/advancedresearch/agent-safety-layers"
	"github.com/advancedresearch/agent-safety-layers/pkg/domain"
)

// Scenario is a table-driven model: states are strings and so are actions.
type Scenario struct {
	Name        string `json:"name" mapstructure:"name"`
	Description string `json:"description,omitempty" mapstructure:"description"`

	// Start is the initial state of sessions created from the scenario.
	Start string `json:"start" mapstructure:"start"`

	// Layers is the default number of safety layers.
	Layers int `json:"layers" mapstructure:"layers"`

	// Default is the action for states without an entry in Decisions.
	Default string `json:"default,omitempty" mapstructure:"default"`

	// Decisions maps a state to the base decision taken in it.
	Decisions map[string]string `json:"decisions" mapstructure:"decisions"`

	// Mutations maps a state to its probe perturbation.
	// States without an entry cannot be mutated.
	Mutations map[string]string `json:"mutations,omitempty" mapstructure:"mutations"`

	// Transitions maps a state and an action to the resulting state.
	// Unlisted actions leave the state unchanged.
	Transitions map[string]map[string]string `json:"transitions,omitempty" mapstructure:"transitions"`
}

// Decide is the scenario's base decision logic.
func (s *Scenario) Decide(state string) string {
	if action, ok := s.Decisions[state]; ok {
		return action
	}
	return s.Default
}

// Mutate returns the probe perturbation of state, or state itself when none is defined.
func (s *Scenario) Mutate(state string) string {
	if next, ok := s.Mutations[state]; ok {
		return next
	}
	return state
}

// Act returns the state reached by performing action in state.
func (s *Scenario) Act(state, action string) string {
	if next, ok := s.Transitions[state][action]; ok {
		return next
	}
	return state
}

// Knows reports whether state is defined by the scenario.
func (s *Scenario) Knows(state string) bool {
	_, ok := s.Decisions[state]
	return ok
}

// States returns the defined states in lexical order.
func (s *Scenario) States() []string {
	states := make([]string, 0, len(s.Decisions))
	for state := range s.Decisions {
		states = append(states, state)
	}
	sort.Strings(states)
	return states
}

// Validate checks that every referenced state is defined.
func (s *Scenario) Validate() error {
	var errs []error

	if len(s.Decisions) == 0 {
		errs = append(errs, errors.New("no decisions defined"))
	}
	if s.Layers < 0 {
		errs = append(errs, fmt.Errorf("layers: %w", domain.ErrNegativeDepth))
	}
	if s.Start != "" && !s.Knows(s.Start) {
		errs = append(errs, fmt.Errorf("start state %q: %w", s.Start, domain.ErrUnknownState))
	}
	for _, from := range sortedKeys(s.Mutations) {
		if to := s.Mutations[from]; !s.Knows(to) && s.Default == "" {
			errs = append(errs, fmt.Errorf("mutation %s -> %s: %w", from, to, domain.ErrUnknownState))
		}
	}
	for _, from := range sortedKeys(s.Transitions) {
		if !s.Knows(from) {
			errs = append(errs, fmt.Errorf("transitions from %q: %w", from, domain.ErrUnknownState))
		}
		for _, action := range sortedKeys(s.Transitions[from]) {
			if to := s.Transitions[from][action]; !s.Knows(to) {
				errs = append(errs, fmt.Errorf("transition %s --%s--> %s: %w", from, action, to, domain.ErrUnknownState))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w %q: %w", domain.ErrInvalidScenario, s.Name, errors.Join(errs...))
	}
	return nil
}

// Agent builds an agent deciding over the scenario with its default layer count.
// Options given here are applied after it, so WithLayers overrides the default.
func (s *Scenario) Agent(opts ...safetylayers.Option) (*safetylayers.Agent[string, string], error) {
	all := append([]safetylayers.Option{safetylayers.WithLayers(s.Layers)}, opts...)
	return safetylayers.New(s.Decide, s.Mutate, all...)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
