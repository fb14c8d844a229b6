// Licensed under the MIT License. See LICENSE file in the project root for details.

package epoch

import (
	"runtime"
	"sync/atomic"
)

// spinlock is a CAS-based lock guarding the manager's thread registry.
// It is held for the duration of a single map mutation (register or
// deregister) and never across an iteration of the registry, so a
// busy-wait lock is preferable to sync.Mutex here: the hold time is
// always short and bounded, and parking the calling goroutine would
// cost more than a handful of spins.
type spinlock struct {
	locked atomic.Bool
}

// Lock blocks until the lock is acquired, yielding the goroutine to the
// scheduler between attempts so a stalled holder cannot starve the CPU.
func (l *spinlock) Lock() {
	for !l.locked.CompareAndSwap(false, true) {
		runtime.Gosched()
	}
}

// Unlock releases the lock. It must be called by the goroutine that
// last acquired it.
func (l *spinlock) Unlock() {
	l.locked.Store(false)
}
