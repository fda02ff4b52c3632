// Copyright 2025 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

package jit

import (
	"testing"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
	"pgregory.net/rapid"
)

func TestRegSlotStates(t *testing.T) {
	var rs RegSlotT
	assert.Check(t, !rs.HasReg())
	assert.Check(t, !rs.HasHint())
	assert.Check(t, !rs.HasSlot())
	assert.Check(t, !rs.Used())
	assert.Check(t, is.Equal(rs.String(), "none"))

	rs.SetHint(5)
	assert.Check(t, rs.HasHint())
	assert.Check(t, !rs.HasReg())
	assert.Check(t, is.Equal(rs.Hint(), RegT(5)))
	assert.Check(t, !rs.Used())
	assert.Check(t, is.Equal(rs.String(), "hint r5"))

	// Assigning follows a hint and replaces it.
	rs.SetReg(9)
	assert.Check(t, rs.HasReg())
	assert.Check(t, !rs.HasHint())
	assert.Check(t, is.Equal(rs.Reg(), RegT(9)))
	assert.Check(t, rs.Used())
	assert.Check(t, is.Equal(rs.String(), "r9"))

	rs.ToHint()
	assert.Check(t, rs.HasHint())
	assert.Check(t, is.Equal(rs.Hint(), RegT(9)))

	rs.ClearReg()
	assert.Check(t, !rs.HasReg())
	assert.Check(t, !rs.HasHint())
}

func TestRegSlotSlot(t *testing.T) {
	var rs RegSlotT
	rs.SetSlot(3)
	assert.Check(t, rs.HasSlot())
	assert.Check(t, is.Equal(rs.Slot(), SlotT(3)))
	assert.Check(t, rs.Used())
	assert.Check(t, is.Equal(rs.String(), "s3"))

	// Setting the same slot again is fine, a register joins the slot
	// in the printed form.
	rs.SetSlot(3)
	rs.SetReg(2)
	assert.Check(t, is.Equal(rs.String(), "r2/s3"))
}

func TestRegSlotPanics(t *testing.T) {
	expectPanic(t, "Reg of a value that has no register", func() {
		var rs RegSlotT
		rs.Reg()
	})
	expectPanic(t, "Hint of a value that has no hint", func() {
		var rs RegSlotT
		rs.SetReg(1)
		rs.Hint()
	})
	expectPanic(t, "hint r3 for a value already in r1", func() {
		var rs RegSlotT
		rs.SetReg(1)
		rs.SetHint(3)
	})
	expectPanic(t, "ToHint of a value that has no register", func() {
		var rs RegSlotT
		rs.ToHint()
	})
	expectPanic(t, "Slot of a value that has no spill slot", func() {
		var rs RegSlotT
		rs.Slot()
	})
	expectPanic(t, "SetSlot with no slot", func() {
		var rs RegSlotT
		rs.SetSlot(NoSlot)
	})
	expectPanic(t, "value moved from spill slot 1 to 2", func() {
		var rs RegSlotT
		rs.SetSlot(1)
		rs.SetSlot(2)
	})
}

// Every assigned register and every slot survives the dense encoding,
// for the whole register and slot range.

func TestPackUnpackExhaustive(t *testing.T) {
	for reg := RegT(0); reg < maxRegs; reg++ {
		for slot := 0; slot < 256; slot++ {
			rs := RegSlotT{}
			rs.SetReg(reg)
			if slot != 0 {
				rs.SetSlot(SlotT(slot))
			}
			assert.Check(t, is.Equal(UnpackRegSlot(rs.Pack()), rs),
				"reg %d slot %d", reg, slot)
		}
	}
}

func TestPackUnpackHints(t *testing.T) {
	for reg := RegT(0); reg < maxRegs; reg++ {
		rs := RegSlotT{}
		rs.SetHint(reg)
		assert.Check(t, is.Equal(UnpackRegSlot(rs.Pack()), rs), "hint %d", reg)
	}

	// No register, no hint.
	for _, slot := range []SlotT{NoSlot, 1, 255} {
		rs := RegSlotT{}
		if slot != NoSlot {
			rs.SetSlot(slot)
		}
		assert.Check(t, is.Equal(UnpackRegSlot(rs.Pack()), rs), "slot %d", slot)
	}
}

func TestPackUnpackRoundTrip(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		rs := RegSlotT{}
		switch rapid.IntRange(0, 2).Draw(rt, "state") {
		case 1:
			rs.SetHint(RegT(rapid.IntRange(0, 31).Draw(rt, "hint")))
		case 2:
			rs.SetReg(RegT(rapid.IntRange(0, 31).Draw(rt, "reg")))
		}
		if slot := rapid.IntRange(0, 255).Draw(rt, "slot"); slot != 0 {
			rs.SetSlot(SlotT(slot))
		}
		assert.Check(t, is.Equal(UnpackRegSlot(rs.Pack()), rs))
	})
}
