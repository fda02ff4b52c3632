// Copyright 2025 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// Eviction costs for occupied registers.

package jit

// The cost of evicting a register packs two halves into one word.
// The low half is the occupant's reference number, so the eviction
// scan can recover which value it chose without a reverse map.  The
// high half is the reference number plus a bonus for loop-carried
// values, and dominates the comparison.
//
// References are handed out with constants below invariants below
// variants, and allocation runs backwards through the trace, so the
// smallest cost belongs to the value whose definition is furthest
// away and which is cheapest to live without.  A free register has
// cost zero and so is always preferred over any occupant.

type regCostT uint32

const freeRegCost regCostT = 0

// How much further away, measured in references, a loop-carried value
// must be than an ordinary one before it becomes the better eviction
// choice.  Must be a power of two; anything from about 40 to 150
// works well in practice.  64 keeps loop-carried values resident
// unless a competing candidate is at least 64 references older.

const phiWeight = 64

// The highest reference the weighted half of a cost can hold without
// wrapping.  CheckTrace rejects longer traces.

const maxTraceRefs = 0xffff - phiWeight

func makeRegCost(ref RefT, typ TypeT) regCostT {
	weighted := uint32(ref)
	if typ.IsPhi() {
		weighted += phiWeight
	}
	return regCostT(uint32(ref) | weighted<<16)
}

func (cost regCostT) Ref() RefT {
	return RefT(cost & 0xffff)
}
