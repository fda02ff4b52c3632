// Copyright 2025 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// Where a value lives while a trace runs: a register, a spill slot,
// both, or nowhere yet.  A register field can also hold a hint, which
// is a preference left over from an earlier decision rather than a
// live binding.

package jit

import "fmt"

// A spill slot index.  Slot 0 means the value has never been spilled,
// so real slots start at 1.

type SlotT uint8

const NoSlot SlotT = 0

type regStateT uint8

const (
	regUnassigned regStateT = iota
	regHinted
	regAssigned
)

// One value's location.  The zero value has no register, no hint, and
// no slot.

type RegSlotT struct {
	state regStateT
	reg   RegT
	slot  SlotT
}

func (rs *RegSlotT) HasReg() bool {
	return rs.state == regAssigned
}

func (rs *RegSlotT) Reg() RegT {
	if rs.state != regAssigned {
		panic("Reg of a value that has no register")
	}
	return rs.reg
}

func (rs *RegSlotT) HasHint() bool {
	return rs.state == regHinted
}

func (rs *RegSlotT) Hint() RegT {
	if rs.state != regHinted {
		panic("Hint of a value that has no hint")
	}
	return rs.reg
}

func (rs *RegSlotT) SetReg(reg RegT) {
	rs.state = regAssigned
	rs.reg = reg
}

// A hint never replaces a live register assignment.

func (rs *RegSlotT) SetHint(reg RegT) {
	if rs.state == regAssigned {
		panic(fmt.Sprintf("hint r%d for a value already in r%d", reg, rs.reg))
	}
	rs.state = regHinted
	rs.reg = reg
}

// Drop the register assignment but remember it as a hint.

func (rs *RegSlotT) ToHint() {
	if rs.state != regAssigned {
		panic("ToHint of a value that has no register")
	}
	rs.state = regHinted
}

// Drop the register assignment and any hint.

func (rs *RegSlotT) ClearReg() {
	rs.state = regUnassigned
	rs.reg = 0
}

func (rs *RegSlotT) HasSlot() bool {
	return rs.slot != NoSlot
}

func (rs *RegSlotT) Slot() SlotT {
	if rs.slot == NoSlot {
		panic("Slot of a value that has no spill slot")
	}
	return rs.slot
}

func (rs *RegSlotT) SetSlot(slot SlotT) {
	if slot == NoSlot {
		panic("SetSlot with no slot")
	}
	if rs.slot != NoSlot && rs.slot != slot {
		panic(fmt.Sprintf("value moved from spill slot %d to %d", rs.slot, slot))
	}
	rs.slot = slot
}

// A value is used if it needs either a register or a spill slot.

func (rs *RegSlotT) Used() bool {
	return rs.state == regAssigned || rs.slot != NoSlot
}

func (rs *RegSlotT) String() string {
	where := ""
	switch rs.state {
	case regAssigned:
		where = fmt.Sprintf("r%d", rs.reg)
	case regHinted:
		where = fmt.Sprintf("hint r%d", rs.reg)
	}
	if rs.slot != NoSlot {
		if where != "" {
			where += "/"
		}
		where += fmt.Sprintf("s%d", rs.slot)
	}
	if where == "" {
		where = "none"
	}
	return where
}

// The dense 16-bit encoding used at the code-emission boundary.  The
// low byte holds the register, with the top bit multiplexing "no
// register": when it is set the low seven bits carry the hint, or
// 0x7f when there is none.  The high byte holds the spill slot.
// Registers are numbered below 32, so a hint can never look like the
// no-hint pattern.

const (
	packNoReg  = 0x80
	packNoHint = 0x7f
)

func (rs *RegSlotT) Pack() uint16 {
	low := uint16(packNoReg | packNoHint)
	switch rs.state {
	case regAssigned:
		low = uint16(rs.reg)
	case regHinted:
		low = uint16(packNoReg | uint16(rs.reg))
	}
	return low | uint16(rs.slot)<<8
}

func UnpackRegSlot(packed uint16) RegSlotT {
	rs := RegSlotT{slot: SlotT(packed >> 8)}
	low := uint8(packed)
	switch {
	case low&packNoReg == 0:
		rs.state = regAssigned
		rs.reg = RegT(low)
	case low != packNoReg|packNoHint:
		rs.state = regHinted
		rs.reg = RegT(low &^ packNoReg)
	}
	return rs
}
