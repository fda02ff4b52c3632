// Copyright 2025 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

package jit

import (
	"encoding/binary"
	"testing"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
)

// A stub geometry small enough to check by hand: four stubs per
// group, 32 bytes apart.

var stubTestTarget = &TargetT{
	Name:          "stubtest",
	StubGroups:    2,
	StubsPerGroup: 4,
	StubSpacing:   32,
}

func TestExitStubAddr(t *testing.T) {
	stubs := &ExitStubsT{
		target: stubTestTarget,
		groups: []uintptr{0x1000, 0x2000},
	}

	// Exit 5 is the second stub of the second group.
	assert.Check(t, is.Equal(stubs.Addr(5), uintptr(0x2000+32)))

	// A pure lookup: asking again changes nothing.
	assert.Check(t, is.Equal(stubs.Addr(5), uintptr(0x2000+32)))

	assert.Check(t, is.Equal(stubs.Addr(0), uintptr(0x1000)))
	assert.Check(t, is.Equal(stubs.Addr(3), uintptr(0x1000+3*32)))
	assert.Check(t, is.Equal(stubs.Addr(4), uintptr(0x2000)))

	// Within a group the addresses step by exactly the spacing.
	for exitno := 1; exitno < 4; exitno++ {
		assert.Check(t, is.Equal(stubs.Addr(exitno)-stubs.Addr(exitno-1),
			uintptr(32)))
	}
}

func TestExitStubAddrPanics(t *testing.T) {
	stubs := &ExitStubsT{
		target: stubTestTarget,
		groups: []uintptr{0x1000, 0}, // group 1 not yet emitted
	}
	expectPanic(t, "exit -1 of at most 8", func() { stubs.Addr(-1) })
	expectPanic(t, "exit 8 of at most 8", func() { stubs.Addr(8) })
	expectPanic(t, "exit 5 is in group 1, which has no stubs yet", func() {
		stubs.Addr(5)
	})
}

func TestEnsureGroupOverflow(t *testing.T) {
	stubs := MakeExitStubs(stubTestTarget, nil, 0)
	err := stubs.EnsureGroup(stubTestTarget.MaxExits())
	assert.ErrorIs(t, err, ErrExitOverflow)
	expectPanic(t, "exit -3", func() { stubs.EnsureGroup(-3) })
}

func TestEnsureGroupEmits(t *testing.T) {
	params := DefaultParams()
	area := MakeMCodeArea(params)
	defer area.Close()
	_, handler, err := area.Reserve(8)
	assert.NilError(t, err)

	stubs := MakeExitStubs(TargetAMD64, area, handler)
	assert.NilError(t, stubs.EnsureGroup(0))
	base := stubs.groups[0]
	assert.Check(t, base != 0)
	assert.Check(t, is.Equal(stubs.Addr(0), base))
	assert.Check(t, is.Equal(stubs.Addr(31), base+31*4))

	// Asking for another exit in the same group reuses it.
	before := area.allocated
	assert.NilError(t, stubs.EnsureGroup(17))
	assert.Check(t, is.Equal(stubs.groups[0], base))
	assert.Check(t, is.Equal(area.allocated, before))

	// A second group gets its own stubs.
	assert.NilError(t, stubs.EnsureGroup(32))
	assert.Check(t, stubs.groups[1] != 0)
	assert.Check(t, stubs.groups[1] != base)
	assert.Check(t, is.Equal(stubs.Addr(33), stubs.groups[1]+4))
}

//----------------------------------------------------------------
// The emitted bytes, checked against the instruction encodings by
// hand.

func TestEmitStubsAMD64(t *testing.T) {
	target := TargetAMD64
	code := make([]byte, target.stubGroupBytes)
	base := uintptr(0x1000)
	handler := uintptr(0x2000)
	assert.Check(t, is.Equal(emitStubsAMD64(code, base, 1, target, handler), base))

	// Stub 0: push imm8 of the exit's low byte, falling through.
	assert.Check(t, is.Equal(code[0], byte(0x6a)))
	assert.Check(t, is.Equal(code[1], byte(32))) // group 1 starts at exit 32

	// Stub 1: jmp rel8 to the common tail, then its push.
	assert.Check(t, is.Equal(code[2], byte(0xeb)))
	assert.Check(t, is.Equal(code[3], byte(122)))
	assert.Check(t, is.Equal(code[4], byte(0x6a)))
	assert.Check(t, is.Equal(code[5], byte(33)))

	// Every jmp rel8 lands on the common tail at offset 126.
	for i := 1; i < 32; i++ {
		at := 4*i - 2
		assert.Check(t, is.Equal(code[at], byte(0xeb)), "stub %d", i)
		assert.Check(t, is.Equal(at+2+int(code[at+1]), 126), "stub %d", i)
	}

	// The tail pushes the exit number's high byte and jumps to the
	// handler.
	assert.Check(t, is.Equal(code[126], byte(0x6a)))
	assert.Check(t, is.Equal(code[127], byte(0)))
	assert.Check(t, is.Equal(code[128], byte(0xe9)))
	rel := int32(binary.LittleEndian.Uint32(code[129:]))
	assert.Check(t, is.Equal(uintptr(int64(base)+133+int64(rel)), handler))

	// One push, 31 jmp/push pairs, and the 7-byte tail: the reserved
	// size is exact.
	assert.Check(t, is.Equal(target.stubGroupBytes, 2+31*4+7))
}

func TestEmitStubsARM(t *testing.T) {
	target := TargetARM
	code := make([]byte, target.stubGroupBytes)
	base := uintptr(0x1000)
	handler := uintptr(0x3000)
	stubBase := emitStubsARM(code, base, 0, target, handler)
	assert.Check(t, is.Equal(stubBase, base+8))

	// The prologue saves lr and branches to the handler.
	assert.Check(t, is.Equal(binary.LittleEndian.Uint32(code[0:]), uint32(0xe50de004)))
	branch := binary.LittleEndian.Uint32(code[4:])
	assert.Check(t, is.Equal(branch>>24, uint32(0xea)))
	rel := int64(int32(branch<<8) >> 8) // sign-extend the 24-bit offset
	assert.Check(t, is.Equal(uintptr(int64(base)+4+8+rel*4), handler))

	// Each stub is a bl back to the prologue.
	for i := 0; i < target.StubsPerGroup; i++ {
		word := binary.LittleEndian.Uint32(code[8+4*i:])
		assert.Check(t, is.Equal(word>>24, uint32(0xeb)), "stub %d", i)
		offset := int64(int32(word<<8) >> 8)
		// bl target = stub address + 8 + 4*offset = prologue base.
		stub := int64(stubBase) + int64(4*i)
		assert.Check(t, is.Equal(uintptr(stub+8+4*offset), base), "stub %d", i)
	}
}
