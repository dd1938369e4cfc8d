/*
Package domain contains the core value types of the safety-layer decision procedure.

It defines the outcome of a decision, the decision record returned by every Decider,
the events emitted while a layered stack probes its model, and the persisted snapshot
of a stateful agent session. This package is kept pure and free of external
dependencies like I/O or persistence.

# Key Entities

  - Outcome: Confirmed or UpdateRequested, attached to every decision.
  - Decision: the chosen Action plus its Outcome and layer diagnostics.
  - ProbeEvent / DecisionEvent: observability payloads for LifecycleHooks.
  - Snapshot: the durable state of an agent session (model, layer count, last outcome).
*/
package domain
