// Licensed under the MIT License. See LICENSE file in the project root for details.

package epoch

import "sync/atomic"

// RingSize is the number of EpochSlots held by a LocalEpochContext. It
// bounds the longest transaction a worker may keep open: a transaction
// outliving RingSize epoch ticks violates the ring invariant and is a
// programmer error, not a recoverable condition.
const RingSize = 4096

// uninitializedEpoch is the tail sentinel for a LocalEpochContext that has
// never entered a local epoch.
const uninitializedEpoch = ^uint64(0)

// EpochSlot is a single cell of a LocalEpochContext's ring, addressed by
// epoch id modulo RingSize. It holds two independent counts: transactions
// currently active in this slot on the read-write path, and on the
// read-only path. Both are mutated by the owning worker on enter/exit and
// observed cross-goroutine by the reducer when the owner is idle, so both
// are plain atomic counters rather than struct fields guarded by a lock.
type EpochSlot struct {
	readWriteCount atomic.Int64
	readOnlyCount  atomic.Int64
}

func (s *EpochSlot) enterReadWrite() { s.readWriteCount.Add(1) }
func (s *EpochSlot) exitReadWrite()  { s.readWriteCount.Add(-1) }
func (s *EpochSlot) isEmpty() bool   { return s.readWriteCount.Load() == 0 }

// EnterReadOnly and ExitReadOnly mutate the slot's read-only count. The
// count is retained as a structural ghost: no current reclamation
// policy consults it, and it never gates AdvanceTail.
func (s *EpochSlot) EnterReadOnly() { s.readOnlyCount.Add(1) }
func (s *EpochSlot) ExitReadOnly()  { s.readOnlyCount.Add(-1) }

// ReadOnlyCount returns the slot's current read-only transaction count.
func (s *EpochSlot) ReadOnlyCount() int64 { return s.readOnlyCount.Load() }
