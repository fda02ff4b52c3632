// Copyright 2025 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

package jit

import (
	"fmt"
	"strings"
	"testing"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
)

func TestDumpTrace(t *testing.T) {
	trace := sumTrace(t)
	var buf strings.Builder
	DumpTrace(&buf, trace)
	out := buf.String()

	header := fmt.Sprintf("---- trace %s: %d instructions, %d exits",
		trace.Name, len(trace.Ins)-1, trace.NExits)
	assert.Check(t, strings.Contains(out, header), out)
	assert.Check(t, strings.Contains(out, "------------ LOOP ------------"), out)
	assert.Check(t, strings.Contains(out, "#0"), out)   // stack slot loads
	assert.Check(t, strings.Contains(out, "+1"), out)   // integer constants
	assert.Check(t, strings.Contains(out, "exit 0"), out)
	assert.Check(t, strings.Contains(out, "exit 1"), out)
	assert.Check(t, !strings.Contains(out, "spill slots"), out)
}

func TestDumpKNum(t *testing.T) {
	b := newTestBuilder("nums")
	x := b.Sload(0, KindNum)
	b.Emit(OpAdd, x, b.KNum(2.5))
	var buf strings.Builder
	DumpTrace(&buf, b.Finish())
	assert.Check(t, strings.Contains(buf.String(), "+2.5"), buf.String())
}

func TestDumpAllocation(t *testing.T) {
	alloc, err := AllocateTrace(sumTrace(t), TargetAMD64)
	assert.NilError(t, err)
	var buf strings.Builder
	DumpAllocation(&buf, alloc)
	out := buf.String()

	assert.Check(t, strings.Contains(out, ", 0 spill slots"), out)
	assert.Check(t, strings.Contains(out, "remat "), out)

	// The entry remats print above the first real instruction.
	remat := strings.Index(out, "remat ")
	assert.Check(t, strings.Index(out, "\n0002") < remat, out)
	assert.Check(t, remat < strings.Index(out, "\n0003"), out)
}

// A hand-built allocation, so each kind of event line shows up where
// the trace would run it.

func TestDumpAllocationEvents(t *testing.T) {
	trace := countingTrace()
	home := make([]RegSlotT, len(trace.Ins))
	home[3].SetReg(2)
	home[3].SetSlot(1)
	home[6].SetReg(0)
	alloc := &AllocationT{
		Trace:  trace,
		Target: TargetAMD64,
		Home:   home,
		NSpill: 1,
		Stores: []SpillStoreT{{Ref: 3, Reg: 2, Slot: 1, At: 5}},
		Loads: []SpillLoadT{
			{Ref: 1, Reg: 0, At: 3, Remat: true},
			{Ref: 3, Reg: 2, Slot: 1, At: 5},
		},
		Renames: []RenameT{{Ref: 3, From: 3, To: 2}},
		Exits:   []ExitT{{Ref: 4, ExitNo: 0}, {Ref: 7, ExitNo: 1}},
	}

	var buf strings.Builder
	DumpAllocation(&buf, alloc)
	out := buf.String()

	assert.Check(t, strings.Contains(out, ", 1 spill slots"), out)
	assert.Check(t, strings.Contains(out, "0005 ------------ LOOP ------------"), out)
	assert.Check(t, strings.Contains(out, "move  rbx -> rdx"), out)
	assert.Check(t, strings.Contains(out, "load  rdx <- [1]"), out)
	assert.Check(t, strings.Contains(out, "remat rax"), out)
	assert.Check(t, strings.Contains(out, "store rdx -> [1]"), out)
	assert.Check(t, strings.Contains(out, "rdx[1]"), out) // register and slot home
	assert.Check(t, strings.Contains(out, "0004 >"), out) // guard marker
	assert.Check(t, strings.Contains(out, "0003 0006"), out)

	// Renames run at the loop top, before the loop-edge loads; the
	// loop-edge store runs on the back edge, after the last
	// instruction.
	loop := strings.Index(out, "LOOP")
	move := strings.Index(out, "move  rbx")
	load := strings.Index(out, "load  rdx")
	store := strings.Index(out, "store rdx")
	last := strings.Index(out, "\n0008")
	assert.Check(t, loop < move && move < load, out)
	assert.Check(t, last < store, out)

	// The restore runs after the instruction whose operand took the
	// register, and before the next one.
	remat := strings.Index(out, "remat rax")
	assert.Check(t, strings.Index(out, "\n0003") < remat, out)
	assert.Check(t, remat < strings.Index(out, "\n0004"), out)
}

// An eviction restore prints between the instruction that took the
// register and the next one, where it runs.

func TestDumpEvictionRestore(t *testing.T) {
	trace := restoreTrace()
	target := &TargetT{Name: "test2", GPR: RangeRegSet(0, 2), RegNames: []string{"r0", "r1"}}
	alloc, err := AllocateTrace(trace, target)
	assert.NilError(t, err)

	var buf strings.Builder
	DumpAllocation(&buf, alloc)
	out := buf.String()

	remat := strings.Index(out, "remat r0")
	assert.Check(t, strings.Index(out, "\n0004") < remat, out)
	assert.Check(t, remat < strings.Index(out, "\n0005"), out)
}

func TestPpWriter(t *testing.T) {
	var buf strings.Builder
	writer := makePpWriter(&buf)
	fmt.Fprintf(writer, "ab")
	writer.IndentTo(5)
	fmt.Fprintf(writer, "x")
	writer.IndentTo(3) // already past: starts a fresh line
	fmt.Fprintf(writer, "y")
	writer.Freshline()
	writer.Freshline() // idempotent at column zero
	assert.Check(t, is.Equal(buf.String(), "ab   x\n   y\n"))
}
