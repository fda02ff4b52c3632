// Copyright 2025 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// Target machine descriptions.  The allocator itself is target
// independent; everything machine specific lives here: the register
// file, which registers the trace may not touch, which ones calls
// clobber, and the geometry and encoding of exit stubs.

package jit

import (
	"encoding/binary"
	"fmt"

	"github.com/pkg/errors"
)

type TargetT struct {
	Name     string
	GPR      RegSetT // integer registers
	FPR      RegSetT // floating-point registers
	Fixed    RegSetT // never allocatable: stack pointer and friends
	Scratch  RegSetT // clobbered by calls
	RegNames []string

	// Exit stub geometry.  Stubs are laid out in groups, uniformly
	// spaced, so an exit's address is computed rather than stored.
	StubGroups    int
	StubsPerGroup int
	StubSpacing   int

	stubGroupBytes int
	// Writes one stub group into code, which starts at address base,
	// and returns the address of the group's first stub.
	emitStubs func(code []byte, base uintptr, group int, target *TargetT, handler uintptr) uintptr
}

func (target *TargetT) Allocatable() RegSetT {
	return (target.GPR | target.FPR) &^ target.Fixed
}

func (target *TargetT) ClassRegs(kind TypeKindT) RegSetT {
	if kind == KindNum {
		return target.FPR &^ target.Fixed
	}
	return target.GPR &^ target.Fixed
}

func (target *TargetT) RegName(reg RegT) string {
	if int(reg) < len(target.RegNames) {
		return target.RegNames[reg]
	}
	return fmt.Sprintf("r%d?", reg)
}

func (target *TargetT) MaxExits() int {
	return target.StubGroups * target.StubsPerGroup
}

func ParseTarget(name string) (*TargetT, error) {
	switch name {
	case "amd64", "x64":
		return TargetAMD64, nil
	case "arm":
		return TargetARM, nil
	}
	return nil, errors.Errorf("unknown target %q", name)
}

//----------------------------------------------------------------
// x86-64.  The stack pointer is off limits, and so is rbp, which
// holds the interpreter's base pointer while a trace runs.

var TargetAMD64 = &TargetT{
	Name:  "amd64",
	GPR:   RangeRegSet(0, 16),
	FPR:   RangeRegSet(16, 32),
	Fixed: RegBit(4) | RegBit(5), // rsp, rbp
	Scratch: RegBit(0) | RegBit(1) | RegBit(2) | RegBit(6) | RegBit(7) |
		RangeRegSet(8, 12) | RangeRegSet(16, 32),
	RegNames: []string{
		"rax", "rcx", "rdx", "rbx", "rsp", "rbp", "rsi", "rdi",
		"r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15",
		"xmm0", "xmm1", "xmm2", "xmm3", "xmm4", "xmm5", "xmm6", "xmm7",
		"xmm8", "xmm9", "xmm10", "xmm11", "xmm12", "xmm13", "xmm14", "xmm15",
	},
	StubGroups:     16,
	StubsPerGroup:  32,
	StubSpacing:    4,
	stubGroupBytes: 2 + 31*4 + 7,
	emitStubs:      emitStubsAMD64,
}

// Each stub pushes the low byte of its exit number and jumps to a
// common tail, which pushes the high byte and jumps to the exit
// handler.  A stub is push (2 bytes) plus jmp (2 bytes), so the
// spacing is 4.  The last stub has no jmp and falls through into the
// tail, so a group is one push, then 31 jmp/push pairs, then the
// 7-byte tail.

func emitStubsAMD64(code []byte, base uintptr, group int, target *TargetT, handler uintptr) uintptr {
	perGroup := target.StubsPerGroup
	first := group * perGroup
	at := 0
	put8 := func(b byte) {
		code[at] = b
		at++
	}
	put8(0x6a) // push imm8
	put8(byte(first & 0xff))
	for i := 1; i < perGroup; i++ {
		put8(0xeb) // jmp rel8, to the common tail
		put8(byte(4*(perGroup-i) - 2))
		put8(0x6a)
		put8(byte((first + i) & 0xff))
	}
	put8(0x6a) // push the group's high byte
	put8(byte(first >> 8))
	put8(0xe9) // jmp rel32 to the exit handler
	rel := int64(handler) - (int64(base) + int64(at) + 4)
	binary.LittleEndian.PutUint32(code[at:], uint32(int32(rel)))
	return base
}

//----------------------------------------------------------------
// 32-bit ARM.  r0-r12 are allocatable; sp, lr and pc are not.

var TargetARM = &TargetT{
	Name:    "arm",
	GPR:     RangeRegSet(0, 16),
	FPR:     RangeRegSet(16, 32),
	Fixed:   RegBit(13) | RegBit(14) | RegBit(15), // sp, lr, pc
	Scratch: RangeRegSet(0, 4) | RegBit(12) | RangeRegSet(16, 24),
	RegNames: []string{
		"r0", "r1", "r2", "r3", "r4", "r5", "r6", "r7",
		"r8", "r9", "r10", "r11", "r12", "sp", "lr", "pc",
		"d0", "d1", "d2", "d3", "d4", "d5", "d6", "d7",
		"d8", "d9", "d10", "d11", "d12", "d13", "d14", "d15",
	},
	StubGroups:     16,
	StubsPerGroup:  32,
	StubSpacing:    4,
	stubGroupBytes: 8 + 32*4,
	emitStubs:      emitStubsARM,
}

// Each stub is a single bl back to a two-word prologue just before
// the group; the handler recovers the exit number from how far lr is
// past the group base.  The prologue saves lr and branches on to the
// exit handler.

func emitStubsARM(code []byte, base uintptr, group int, target *TargetT, handler uintptr) uintptr {
	stubBase := base + 8
	put32 := func(at int, word uint32) {
		binary.LittleEndian.PutUint32(code[at:], word)
	}
	put32(0, 0xe50de004) // str lr, [sp, #-4]
	rel := (int64(handler) - (int64(base) + 4 + 8)) / 4
	put32(4, 0xea000000|uint32(rel)&0xffffff) // b handler
	for i := 0; i < target.StubsPerGroup; i++ {
		// bl back to the prologue: offset words from pc+8
		put32(8+4*i, 0xeb000000|uint32(-4-i)&0xffffff)
	}
	return stubBase
}
