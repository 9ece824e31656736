// Package metrics exposes a small registry of atomic counters for the
// executor core, generalizing the teacher's revm_bridge ProfileCounters /
// ResetProfileCounters pair (a single FFI miss-counter readout) into a
// fixed set of named counters covering the executive, the key-lock
// subsystem, and the DAG scheduler.
package metrics

import "sync/atomic"

// Counters is a fixed set of monotonically increasing counters. The zero
// value is ready to use.
type Counters struct {
	ExecutedTransactions atomic.Int64
	RevertedTransactions atomic.Int64
	DagSendBack           atomic.Int64
	KeyLockWaits          atomic.Int64
	DeadlocksDetected     atomic.Int64
}

// Global is the process-wide counter set, mirroring the teacher's reliance
// on a single shared profiling surface (revm_bridge/metrics.go).
var Global = &Counters{}

// Snapshot is a point-in-time read of every counter.
type Snapshot struct {
	ExecutedTransactions int64
	RevertedTransactions int64
	DagSendBack          int64
	KeyLockWaits         int64
	DeadlocksDetected    int64
}

// Read returns a consistent-enough snapshot (each field is read
// independently; small skew under concurrent writers is acceptable for a
// metrics surface).
func (c *Counters) Read() Snapshot {
	return Snapshot{
		ExecutedTransactions: c.ExecutedTransactions.Load(),
		RevertedTransactions: c.RevertedTransactions.Load(),
		DagSendBack:          c.DagSendBack.Load(),
		KeyLockWaits:         c.KeyLockWaits.Load(),
		DeadlocksDetected:    c.DeadlocksDetected.Load(),
	}
}

// Reset zeroes every counter.
func (c *Counters) Reset() {
	c.ExecutedTransactions.Store(0)
	c.RevertedTransactions.Store(0)
	c.DagSendBack.Store(0)
	c.KeyLockWaits.Store(0)
	c.DeadlocksDetected.Store(0)
}
