// Licensed under the MIT License. See LICENSE file in the project root for details.

package epoch

import (
	"errors"
	"sync/atomic"
	"time"

	metrics "github.com/lym953/dem/internal/monitoring/metrics"
)

// ErrResetWhileActive is returned by Reset when the driver is running or
// at least one worker is still registered. Resetting the global epoch
// under those conditions could move it backward relative to work a
// worker has already observed, which would violate the monotone global
// epoch invariant.
var ErrResetWhileActive = errors.New("epoch: reset requires the driver stopped and no registered threads")

// Manager is the façade a database wires into its transaction executor
// and its memory reclaimer: it issues composite transaction ids stamped
// with the current global epoch and computes the watermark below which
// no in-flight transaction can still observe reclaimed state.
//
// A Manager is intended to be a process-wide singleton: initialized
// before any worker registers, and torn down only after every worker
// has deregistered. The zero value is not usable; construct one with
// NewManager.
type Manager struct {
	globalEpoch atomic.Uint64
	nextTxnID   atomic.Uint32

	contexts *registry
	drv      *driver
	metrics  *metrics.Metrics
}

// NewManager creates a Manager with the default epoch length
// (DefaultEpochLength). The global epoch starts at 1, matching the
// source this package is derived from: 0 is reserved so that
// EnterLocalEpoch's "tail := e - 1" first-use rule never underflows.
func NewManager() *Manager {
	return NewManagerWithEpochLength(DefaultEpochLength)
}

// NewManagerWithEpochLength creates a Manager whose driver advances the
// global epoch once per interval. Tests and benchmarks that need faster
// convergence use this instead of the default.
func NewManagerWithEpochLength(interval time.Duration) *Manager {
	m := &Manager{
		contexts: newRegistry(),
		metrics:  metrics.NewMetrics(),
	}
	m.globalEpoch.Store(1)
	m.drv = newDriver(&m.globalEpoch, interval, m.metrics.RecordTick)
	return m
}

// RegisterThread creates a LocalEpochContext for tid. The caller
// guarantees this happens before tid's first Enter and that no
// concurrent call registers the same tid.
func (m *Manager) RegisterThread(tid uint64) {
	m.contexts.register(tid)
	m.metrics.RecordRegister()
}

// DeregisterThread destroys tid's LocalEpochContext. The caller
// guarantees this happens after tid's last Exit has returned.
func (m *Manager) DeregisterThread(tid uint64) {
	m.contexts.deregister(tid)
	m.metrics.RecordDeregister()
}

// Enter starts a read-write transaction on behalf of tid and returns its
// composite id. It samples the global epoch, attempts to enter the
// corresponding local epoch, and retries on the rare race where the
// reducer advanced the local head between the sample and the attempt;
// the retry is invisible to the caller.
func (m *Manager) Enter(tid uint64) CID {
	ctx, ok := m.contexts.lookup(tid)
	assertf(ok, "epoch: Enter called for unregistered thread %d", tid)

	start := time.Now()
	for {
		e := m.globalEpoch.Load()
		if !ctx.EnterLocalEpoch(e) {
			m.metrics.RecordEnterRetry()
			continue
		}
		seq := m.nextTxnID.Add(1)
		m.metrics.RecordEnter(time.Since(start))
		return MakeCID(e, seq)
	}
}

// Exit ends the read-write transaction identified by cid on behalf of
// tid.
func (m *Manager) Exit(tid uint64, cid CID) {
	ctx, ok := m.contexts.lookup(tid)
	assertf(ok, "epoch: Exit called for unregistered thread %d", tid)

	ctx.ExitLocalEpoch(cid.Epoch())
	m.metrics.RecordExit()
}

// EnterReadOnly and ExitReadOnly mirror Enter/Exit on the read-only
// path. The resulting epoch does not gate GlobalTailEpoch: read-only
// transactions are deliberately kept off the reclamation track for now,
// though the counters they touch are preserved for a future policy to
// consult.
func (m *Manager) EnterReadOnly(tid uint64) CID {
	ctx, ok := m.contexts.lookup(tid)
	assertf(ok, "epoch: EnterReadOnly called for unregistered thread %d", tid)

	for {
		e := m.globalEpoch.Load()
		if !ctx.EnterLocalReadOnlyEpoch(e) {
			continue
		}
		seq := m.nextTxnID.Add(1)
		m.metrics.RecordReadOnlyEnter()
		return MakeCID(e, seq)
	}
}

func (m *Manager) ExitReadOnly(tid uint64, cid CID) {
	ctx, ok := m.contexts.lookup(tid)
	assertf(ok, "epoch: ExitReadOnly called for unregistered thread %d", tid)

	ctx.ExitLocalReadOnlyEpoch(cid.Epoch())
	m.metrics.RecordReadOnlyExit()
}

// GlobalTailEpoch asks every registered context to resynchronize against
// the current global epoch and returns the minimum of their resulting
// tails: the watermark below which no in-flight transaction on any
// worker can still observe reclaimed state. It returns math.MaxUint64
// if no thread is registered.
//
// Each context's tail is taken from the value ResyncAndAdvance returns,
// not from a second read of the field afterward, which would reopen a
// window where the reported minimum is one tick stale.
func (m *Manager) GlobalTailEpoch() uint64 {
	start := time.Now()
	g := m.globalEpoch.Load()

	min := uninitializedEpoch
	for _, ctx := range m.contexts.snapshot() {
		tail := ctx.ResyncAndAdvance(g)
		if tail < min {
			min = tail
		}
	}

	m.metrics.RecordGlobalTailEpoch(min, time.Since(start))
	return min
}

// StartEpoch transitions the driver from Stopped to Running. It is a
// no-op if the driver is already running.
func (m *Manager) StartEpoch() {
	m.drv.Start()
}

// StopEpoch transitions the driver from Running to Stopped. It is a
// no-op if the driver is already stopped.
func (m *Manager) StopEpoch() {
	m.drv.Stop()
}

// Reset administratively overwrites the global epoch. It is permitted
// only when the driver is stopped and no thread is registered; using it
// any other time would violate the monotone global epoch invariant.
func (m *Manager) Reset(e uint64) error {
	if m.drv.running.Load() || m.contexts.len() > 0 {
		m.metrics.RecordResetRejected()
		return ErrResetWhileActive
	}
	m.globalEpoch.Store(e)
	return nil
}

// CurrentGlobalEpoch returns the current value of the global epoch
// counter. It is exposed for callers (typically tests and the
// demonstration cmd harnesses) that need to observe driver progress.
func (m *Manager) CurrentGlobalEpoch() uint64 {
	return m.globalEpoch.Load()
}

// RegisteredThreads returns the number of currently registered threads.
func (m *Manager) RegisteredThreads() int {
	return m.contexts.len()
}

// GetMetrics returns a snapshot of the manager's activity metrics.
func (m *Manager) GetMetrics() metrics.MetricsSnapshot {
	return m.metrics.GetStats()
}

// Close shuts down the manager's metrics processor. It must be called
// exactly once, after the driver is stopped and every worker has
// deregistered.
func (m *Manager) Close() {
	m.metrics.Close()
}
