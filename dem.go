// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package dem provides a decentralized epoch manager: a monotonically
// advancing global epoch clock paired with per-worker local contexts,
// used by a multi-version database to compute the watermark below
// which no in-flight transaction can still observe reclaimed state.
//
// # Quick Start
//
//	m := dem.NewManager()
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
//	horizon := m.GlobalTailEpoch()
//	// versions with an end timestamp below horizon are unreachable
//
// # See Also
//
// For the implementation, see the internal/concurrency/epoch package.
package dem

import (
	"time"

	epoch "github.com/lym953/dem/internal/concurrency/epoch"
)

// Re-export epoch types so callers depend only on the root package.
type (
	// Manager is the façade a database wires into its transaction
	// executor and its memory reclaimer.
	Manager = epoch.Manager

	// CID is a composite transaction id: the epoch at transaction
	// start fused with a per-issuance sequence.
	CID = epoch.CID
)

// RingSize is the number of epoch slots held by each worker's local
// context. It bounds the longest transaction a worker may keep open.
const RingSize = epoch.RingSize

// DefaultEpochLength is the interval NewManager's driver advances the
// global epoch at.
const DefaultEpochLength = epoch.DefaultEpochLength

// ErrResetWhileActive is returned by Manager.Reset when the driver is
// running or at least one worker is still registered.
var ErrResetWhileActive = epoch.ErrResetWhileActive

// NewManager creates a Manager with the default epoch length.
func NewManager() *Manager {
	return epoch.NewManager()
}

// NewManagerWithEpochLength creates a Manager whose driver advances the
// global epoch once per interval.
func NewManagerWithEpochLength(interval time.Duration) *Manager {
	return epoch.NewManagerWithEpochLength(interval)
}

// MakeCID packs an epoch id and a sequence number into a CID.
func MakeCID(epochID uint64, seq uint32) CID {
	return epoch.MakeCID(epochID, seq)
}
