/*
Package session implements stateful agent sessions and persistence orchestration.

A session keeps what a stateless Agent does not: the agent's current model and its
safety level. The Manager serialises access per session (local reference-counted
locks plus an optional distributed lock) so that decide, act, and model updates on
the same session never interleave, even across replicas sharing a store.
*/
package session
