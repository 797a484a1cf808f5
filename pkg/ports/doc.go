/*
Package ports defines the driven ports (interfaces) for the Hitch engine.

These interfaces decouple the runtime from concrete storage and coordination
backends, so the same workflow can run against memory, files, SQLite or Redis.

# Key Interfaces

  - CheckpointStore: Append-only log of step results keyed by (thread, index).
  - ThreadStore: Persistence for thread records (status, run, pending interrupt).
  - Store: Both of the above; every adapter implements it.
  - DistributedLocker: Provides distributed locking for concurrent access to a thread.

RunStoreContract is exported so adapters (including third-party ones) can
verify they honour the contract.
*/
package ports
