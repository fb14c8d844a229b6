// Licensed under the MIT License. See LICENSE file in the project root for details.

package epoch

import "sync/atomic"

// registry holds the manager's thread-id -> LocalEpochContext mapping.
// Structural mutation (register/deregister) is serialized by a
// spinlock and publishes a fresh, immutable map via copy-on-write;
// lookups read the published map without taking the lock, which is
// safe precisely because a published map is never mutated in place.
// This realizes an append-only registry with lock-free fast-path
// lookup: an acceptable re-architecture of the shared-ownership problem
// that avoids taking a lock on every Enter/Exit.
type registry struct {
	lock spinlock
	ctxs atomic.Pointer[map[uint64]*LocalEpochContext]
}

func newRegistry() *registry {
	r := &registry{}
	empty := map[uint64]*LocalEpochContext{}
	r.ctxs.Store(&empty)
	return r
}

// register creates and publishes a new LocalEpochContext for tid. The
// caller guarantees tid is not already registered and that no
// concurrent call uses the same tid.
func (r *registry) register(tid uint64) *LocalEpochContext {
	r.lock.Lock()
	defer r.lock.Unlock()

	old := *r.ctxs.Load()
	next := make(map[uint64]*LocalEpochContext, len(old)+1)
	for k, v := range old {
		next[k] = v
	}
	ctx := NewLocalEpochContext()
	next[tid] = ctx

	r.ctxs.Store(&next)
	return ctx
}

// deregister removes tid's context from the registry. The caller
// guarantees it happens after tid's last Exit has returned.
func (r *registry) deregister(tid uint64) {
	r.lock.Lock()
	defer r.lock.Unlock()

	old := *r.ctxs.Load()
	if _, ok := old[tid]; !ok {
		return
	}

	next := make(map[uint64]*LocalEpochContext, len(old)-1)
	for k, v := range old {
		if k != tid {
			next[k] = v
		}
	}

	r.ctxs.Store(&next)
}

// lookup returns tid's context without taking the registry lock.
func (r *registry) lookup(tid uint64) (*LocalEpochContext, bool) {
	m := *r.ctxs.Load()
	ctx, ok := m[tid]
	return ctx, ok
}

// snapshot returns the currently published registry map. The returned
// map must not be mutated by the caller.
func (r *registry) snapshot() map[uint64]*LocalEpochContext {
	return *r.ctxs.Load()
}

// len reports the number of registered contexts.
func (r *registry) len() int {
	return len(*r.ctxs.Load())
}
