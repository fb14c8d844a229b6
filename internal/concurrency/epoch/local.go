// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package epoch provides epoch-based memory reclamation for a
// multi-version transactional database.
//
// This package implements the decentralized epoch manager described by
// DEM: a monotonically advancing global epoch clock, a per-worker ring
// of epoch slots that lets each worker track its own local head and
// tail without contending on shared state, and a reduction that derives
// the system-wide safe reclamation watermark from every worker's local
// tail. It enables the database to reclaim undo buffers, tombstoned
// tuples, and obsolete index nodes without ever freeing state an
// in-flight transaction could still observe.
//
// # Key Features
//
//   - Lock-free enter/exit of a logical epoch slice per worker
//   - A dedicated driver goroutine advancing global time at a fixed rate
//   - Composite transaction ids that fuse an epoch stamp with a sequence
//   - A resynchronization handshake that lets idle workers catch up
//   - A global tail reduction safe to call from any reclaiming goroutine
//
// # Usage Examples
//
// Registering a worker and running one transaction:
//
//	m := epoch.NewManager()
//	m.StartEpoch()
//	defer m.StopEpoch()
//
//	m.RegisterThread(1)
//	defer m.DeregisterThread(1)
//
//	cid := m.Enter(1)
//	// ... do work visible at cid.Epoch() ...
//	m.Exit(1, cid)
//
// Computing the safe reclamation horizon:
//
//	horizon := m.GlobalTailEpoch()
//	// versions with an end timestamp below horizon are unreachable
//
// # Dangers and Warnings
//
//   - **Registration Order**: RegisterThread must happen-before a
//     thread's first Enter; DeregisterThread must happen-after its last
//     Exit has returned.
//   - **Ring Exhaustion**: a transaction that outlives RingSize epoch
//     ticks triggers an assertion panic — there is no recoverable path.
//   - **Crashed Workers**: a worker that crashes between Enter and Exit
//     pins the global tail forever; DEM does not detect this.
//
// # Thread Safety
//
// A LocalEpochContext's Enter/Exit methods are called only by the
// worker that owns it. ResyncAndAdvance and SnapshotTail are called by
// the reducer (the goroutine invoking GlobalTailEpoch), which may be
// any goroutine, including a worker acting on another context.
//
// # See Also
//
// For the façade that registers workers and exposes GlobalTailEpoch,
// see Manager in manager.go.
package epoch

import "sync/atomic"

// LocalEpochContext tracks one worker's view of epoch time: the highest
// epoch it has observed (head) and the highest epoch it guarantees holds
// no in-flight read-write transaction (tail). It owns a fixed-size ring
// of RingSize EpochSlots representing the sliding window [tail+1, head].
type LocalEpochContext struct {
	ring [RingSize]EpochSlot

	head atomic.Uint64 // highest epoch this thread has entered or been resynced to
	tail atomic.Uint64 // highest epoch known to hold no read-write work
}

// NewLocalEpochContext creates a context in the Uninitialized state.
func NewLocalEpochContext() *LocalEpochContext {
	c := &LocalEpochContext{}
	c.tail.Store(uninitializedEpoch)
	return c
}

func (c *LocalEpochContext) slot(epoch uint64) *EpochSlot {
	return &c.ring[epoch%RingSize]
}

// EnterLocalEpoch attempts to enter local epoch e on the read-write
// path. It returns false if the reducer advanced head past e between
// the caller sampling the global epoch and calling Enter; the caller
// must re-sample and retry.
func (c *LocalEpochContext) EnterLocalEpoch(e uint64) bool {
	c.tail.CompareAndSwap(uninitializedEpoch, e-1)

	if e < c.head.Load() {
		return false
	}

	c.head.Store(e)

	tail := c.tail.Load()
	assertf(e-tail <= RingSize, "epoch: local context exceeded ring bound (head=%d tail=%d)", e, tail)

	c.slot(e).enterReadWrite()
	return true
}

// ExitLocalEpoch exits local epoch e on the read-write path and attempts
// to slide the local tail forward.
func (c *LocalEpochContext) ExitLocalEpoch(e uint64) {
	tail := c.tail.Load()
	assertf(tail != uninitializedEpoch, "epoch: exit on an uninitialized context")
	assertf(e > tail, "epoch: exit epoch %d does not exceed tail %d", e, tail)

	c.slot(e).exitReadWrite()
	c.AdvanceTail()
}

// EnterLocalReadOnlyEpoch mirrors EnterLocalEpoch on the read-only path.
// The read-only count is retained as a structural ghost: it does not
// participate in AdvanceTail, but the validation and ring-bound rules
// are identical so a future reclamation policy can consult it safely.
func (c *LocalEpochContext) EnterLocalReadOnlyEpoch(e uint64) bool {
	c.tail.CompareAndSwap(uninitializedEpoch, e-1)

	if e < c.head.Load() {
		return false
	}

	c.head.Store(e)

	tail := c.tail.Load()
	assertf(e-tail <= RingSize, "epoch: local context exceeded ring bound (head=%d tail=%d)", e, tail)

	c.slot(e).EnterReadOnly()
	return true
}

// ExitLocalReadOnlyEpoch mirrors ExitLocalEpoch on the read-only path.
// It never advances the tail: read-only visibility is not yet consulted
// by any reclamation policy.
func (c *LocalEpochContext) ExitLocalReadOnlyEpoch(e uint64) {
	tail := c.tail.Load()
	assertf(tail != uninitializedEpoch, "epoch: exit on an uninitialized context")
	assertf(e > tail, "epoch: exit epoch %d does not exceed tail %d", e, tail)

	c.slot(e).ExitReadOnly()
}

// AdvanceTail slides the local tail forward while the next slot holds no
// read-write work, stopping at the first non-empty slot or once the
// tail reaches head-1.
func (c *LocalEpochContext) AdvanceTail() {
	head := c.head.Load()
	if head == 0 {
		return
	}

	for {
		tail := c.tail.Load()
		if tail == uninitializedEpoch || tail >= head-1 {
			return
		}
		if !c.slot(tail + 1).isEmpty() {
			return
		}
		if !c.tail.CompareAndSwap(tail, tail+1) {
			continue // lost the race with a concurrent resync CAS; re-read and retry
		}
	}
}

// ResyncAndAdvance is invoked by the reducer on behalf of this context.
// It pulls head forward to at least currentGlobalEpoch (so an idle
// context's tail can catch up to the current watermark), completes the
// Uninitialized->Active transition if this context has never entered a
// transaction, advances the tail, and returns the resulting tail value.
//
// head is raised with max(head, currentGlobalEpoch) rather than an
// unconditional overwrite: the source this package is derived from
// overwrites unconditionally, which is safe only under the single-writer
// driver invariant. This is the defensive interpretation.
func (c *LocalEpochContext) ResyncAndAdvance(currentGlobalEpoch uint64) uint64 {
	for {
		old := c.head.Load()
		if currentGlobalEpoch <= old {
			break
		}
		if c.head.CompareAndSwap(old, currentGlobalEpoch) {
			break
		}
	}

	head := c.head.Load()
	if head > 0 {
		c.tail.CompareAndSwap(uninitializedEpoch, head-1)
	}

	c.AdvanceTail()
	return c.tail.Load()
}

// SnapshotTail returns the context's current tail without resyncing it
// against the global epoch first.
func (c *LocalEpochContext) SnapshotTail() uint64 {
	return c.tail.Load()
}
