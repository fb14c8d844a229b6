// Licensed under the MIT License. See LICENSE file in the project root for details.

package epoch

// CID is a composite transaction id: the epoch at transaction start
// fused with a per-issuance sequence. The top 32 bits carry the low 32
// bits of the epoch id; the bottom 32 bits carry the sequence. This
// layout is a public contract with the executor that decodes visibility
// from it and must never change.
type CID uint64

// MakeCID packs an epoch id and a sequence number into a CID.
func MakeCID(epochID uint64, seq uint32) CID {
	return CID((epochID << 32) | uint64(seq))
}

// Epoch extracts the epoch id a CID was stamped with.
func (c CID) Epoch() uint64 {
	return uint64(c) >> 32
}

// Sequence extracts the per-issuance sequence a CID was stamped with.
func (c CID) Sequence() uint32 {
	return uint32(c)
}
