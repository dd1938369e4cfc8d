/*
Package ports defines the driven ports (interfaces) of the stateful agent runtime.

These interfaces decouple session handling from external implementations, allowing
agent sessions to be persisted in memory or in Redis and coordinated across replicas.

# Key Interfaces

  - SnapshotStore: Responsible for persisting and loading agent session Snapshots.
  - DistributedLocker: Provides distributed locking for handling concurrent session access.
*/
package ports
