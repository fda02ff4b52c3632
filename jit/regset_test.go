// Copyright 2025 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

package jit

import (
	"testing"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
	"pgregory.net/rapid"
)

func TestRegSetBasics(t *testing.T) {
	set := RegSetT(0)
	assert.Check(t, set.IsEmpty())
	assert.Check(t, is.Equal(set.Count(), 0))

	set.Add(0)
	set.Add(7)
	set.Add(31)
	assert.Check(t, !set.IsEmpty())
	assert.Check(t, is.Equal(set.Count(), 3))
	assert.Check(t, set.Contains(0))
	assert.Check(t, set.Contains(7))
	assert.Check(t, set.Contains(31))
	assert.Check(t, !set.Contains(1))
	assert.Check(t, !set.Contains(30))

	set.Remove(7)
	assert.Check(t, !set.Contains(7))
	assert.Check(t, is.Equal(set.Count(), 2))

	// Exclude leaves the receiver alone.
	rest := set.Exclude(31)
	assert.Check(t, set.Contains(31))
	assert.Check(t, !rest.Contains(31))
	assert.Check(t, rest.Contains(0))
}

func TestRangeRegSet(t *testing.T) {
	assert.Check(t, is.Equal(RangeRegSet(0, 0), RegSetT(0)))
	assert.Check(t, is.Equal(RangeRegSet(0, 1), RegSetT(1)))
	assert.Check(t, is.Equal(RangeRegSet(0, 16), RegSetT(0xffff)))
	assert.Check(t, is.Equal(RangeRegSet(16, 32), RegSetT(0xffff0000)))
	assert.Check(t, is.Equal(RangeRegSet(0, 32), ^RegSetT(0)))
	assert.Check(t, is.Equal(RangeRegSet(4, 6), RegBit(4)|RegBit(5)))
}

func TestRegSetPick(t *testing.T) {
	set := RegBit(3) | RegBit(17) | RegBit(29)
	assert.Check(t, is.Equal(set.PickBot(), RegT(3)))
	assert.Check(t, is.Equal(set.PickTop(), RegT(29)))

	one := RegBit(12)
	assert.Check(t, is.Equal(one.PickBot(), RegT(12)))
	assert.Check(t, is.Equal(one.PickTop(), RegT(12)))
}

func TestRegSetPickEmpty(t *testing.T) {
	expectPanic(t, "PickBot of empty register set", func() {
		RegSetT(0).PickBot()
	})
	expectPanic(t, "PickTop of empty register set", func() {
		RegSetT(0).PickTop()
	})
}

func TestRegSetString(t *testing.T) {
	assert.Check(t, is.Equal(RegSetT(0).String(), "{}"))
	set := RegBit(2) | RegBit(10)
	assert.Check(t, is.Equal(set.String(), "{r2 r10}"))
}

// The picked extremes are members, and everything else in the set
// lies between them.

func TestRegSetPickBounds(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		set := RegSetT(rapid.Uint32Range(1, ^uint32(0)).Draw(rt, "set"))
		bot := set.PickBot()
		top := set.PickTop()
		assert.Check(t, set.Contains(bot))
		assert.Check(t, set.Contains(top))
		assert.Check(t, bot <= top)
		for reg := RegT(0); reg < maxRegs; reg++ {
			if set.Contains(reg) {
				assert.Check(t, bot <= reg && reg <= top)
			}
		}
	})
}
