/*
Package scenario provides finite, declarative models for safety-layer agents.

A Scenario names a set of states and tabulates, per state, the base decision, the
single probe mutation, and the state reached by performing an action. Its Decide,
Mutate, and Act methods plug straight into safetylayers.New and session.NewManager,
which makes scenarios handy for demos, the CLI, and tests.

Scenarios are usually written in YAML:

	name: crossing
	start: A
	layers: 1
	decisions:
	  A: go
	  B: go
	  C: stop
	mutations:
	  A: C
*/
package scenario
