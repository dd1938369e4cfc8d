/*
Package observability provides tools for monitoring safety-layer decisions.

Metrics turns the LifecycleHooks emitted by an Agent into Prometheus series: how many
decisions were confirmed or flagged, how many layer probes agreed, and how deep the
first disagreement sat (a hint for how much safety margin an agent needs).
*/
package observability
