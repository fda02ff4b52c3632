// Copyright 2025 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// Sets of physical registers as single-word bitsets.

package jit

import (
	"fmt"
	"math/bits"
)

// A physical register number.  General-purpose and floating-point
// registers share one numbering space, so a register file has at most
// 32 registers and a set of them fits in one machine word.

type RegT uint8

const maxRegs = 32

type RegSetT uint32

func RegBit(reg RegT) RegSetT {
	return RegSetT(1) << reg
}

// All registers in [lo, hi).

func RangeRegSet(lo RegT, hi RegT) RegSetT {
	return (RegBit(hi-lo) - 1) << lo
}

func (set RegSetT) IsEmpty() bool {
	return set == 0
}

func (set RegSetT) Contains(reg RegT) bool {
	return set&RegBit(reg) != 0
}

func (set *RegSetT) Add(reg RegT) {
	*set |= RegBit(reg)
}

func (set *RegSetT) Remove(reg RegT) {
	*set &^= RegBit(reg)
}

// Like Remove, but returns a new set instead of mutating.

func (set RegSetT) Exclude(reg RegT) RegSetT {
	return set &^ RegBit(reg)
}

func (set RegSetT) Count() int {
	return bits.OnesCount32(uint32(set))
}

// The lowest-numbered register in the set.

func (set RegSetT) PickBot() RegT {
	if set == 0 {
		panic("PickBot of empty register set")
	}
	return RegT(bits.TrailingZeros32(uint32(set)))
}

// The highest-numbered register in the set.

func (set RegSetT) PickTop() RegT {
	if set == 0 {
		panic("PickTop of empty register set")
	}
	return RegT(31 - bits.LeadingZeros32(uint32(set)))
}

func (set RegSetT) String() string {
	result := "{"
	for work := set; !work.IsEmpty(); {
		reg := work.PickBot()
		work.Remove(reg)
		if 1 < len(result) {
			result += " "
		}
		result += fmt.Sprintf("r%d", reg)
	}
	return result + "}"
}
