// Package engine executes submitted tasks on a bounded worker pool and
// tracks their lifecycle: deferred → pending → running → completed, failed,
// or canceled. Terminal records are optionally persisted so history survives
// pruning, and status transitions fan out through an event broker.
package engine
