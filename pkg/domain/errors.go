package domain

import "errors"

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrNilDecide is returned when an agent is built without base decision logic.
var ErrNilDecide = errors.New("base decision logic is required")

// ErrNilCore is returned when a safety layer is built around a missing core agent.
var ErrNilCore = errors.New("safety layer needs a core agent")

// ErrNegativeDepth is returned when a negative number of safety layers is requested.
var ErrNegativeDepth = errors.New("safety layer count must not be negative")

// ErrUnknownState is returned when a scenario is asked about a state it does not define.
var ErrUnknownState = errors.New("unknown state")

// ErrInvalidScenario is returned when a scenario definition fails validation.
var ErrInvalidScenario = errors.New("invalid scenario")

// ErrNoActor is returned when an action is applied to a session that has no actor.
var ErrNoActor = errors.New("no actor configured")

// ErrSessionExists is returned when starting a session whose ID is already taken.
var ErrSessionExists = errors.New("session already exists")

// ErrTooManyLayers is returned when a layer count exceeds the configured maximum.
var ErrTooManyLayers = errors.New("too many safety layers")
