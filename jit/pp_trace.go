// Copyright 2025 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// Pretty-printer for traces, with or without an allocation.  One line
// per instruction, with the guard marker, the value's home, and for
// an allocated trace the spill and seam events woven in where they
// run.

package jit

import (
	"fmt"
	"io"
	"math"
	"strings"
)

func DumpTrace(out io.Writer, trace *TraceT) {
	dumpTrace(out, trace, nil)
}

func DumpAllocation(out io.Writer, alloc *AllocationT) {
	dumpTrace(out, alloc.Trace, alloc)
}

func dumpTrace(out io.Writer, trace *TraceT, alloc *AllocationT) {
	writer := makePpWriter(out)
	fmt.Fprintf(writer, "---- trace %s: %d instructions, %d exits",
		trace.Name, len(trace.Ins)-1, trace.NExits)
	if alloc != nil {
		fmt.Fprintf(writer, ", %d spill slots", alloc.NSpill)
	}
	writer.Newline()
	for ref := RefT(1); int(ref) < len(trace.Ins); ref++ {
		dumpIns(writer, trace, alloc, ref)
	}
	if alloc != nil && trace.LoopRef != 0 {
		for _, store := range backEdgeStores(alloc) {
			dumpStore(writer, alloc, store)
		}
	}
}

func backEdgeStores(alloc *AllocationT) []SpillStoreT {
	at := alloc.Trace.LoopRef
	return Filter(alloc.Stores, func(store SpillStoreT) bool { return store.At == at })
}

// Entry loads print above the instruction at their At, where the
// trace entry runs them; all other loads print below it, after any
// store the instruction made, which is where they run.

func dumpIns(writer *ppWriterT, trace *TraceT, alloc *AllocationT, ref RefT) {
	ins := &trace.Ins[ref]
	if alloc != nil {
		dumpLoadsAt(writer, alloc, ref, true)
	}
	if ins.Op == OpLoop {
		fmt.Fprintf(writer, "%04d ------------ LOOP ------------", ref)
		writer.Newline()
		if alloc != nil {
			for _, rename := range alloc.Renames {
				dumpRename(writer, alloc, rename)
			}
			dumpLoadsAt(writer, alloc, ref, false)
		}
		return
	}
	fmt.Fprintf(writer, "%04d", ref)
	if ins.Typ.IsGuard() {
		writer.IndentTo(5)
		fmt.Fprintf(writer, ">")
	}
	if alloc != nil {
		writer.IndentTo(7)
		fmt.Fprintf(writer, "%s", homeString(alloc.Target, alloc.Home[ref]))
	}
	writer.IndentTo(15)
	fmt.Fprintf(writer, "%s", ins.Typ.Kind())
	writer.IndentTo(19)
	fmt.Fprintf(writer, "%s", ins.Op)
	writer.IndentTo(26)
	fmt.Fprintf(writer, "%s", insOperands(trace, ref))
	if ins.Typ.IsGuard() {
		writer.IndentTo(40)
		fmt.Fprintf(writer, "exit %d", ins.Val)
	}
	writer.Newline()
	if alloc != nil && ref != trace.LoopRef {
		for _, store := range alloc.Stores {
			if store.At == ref {
				dumpStore(writer, alloc, store)
			}
		}
		dumpLoadsAt(writer, alloc, ref, false)
	}
}

func dumpLoadsAt(writer *ppWriterT, alloc *AllocationT, ref RefT, entry bool) {
	for _, load := range alloc.Loads {
		if load.At != ref || load.Entry != entry {
			continue
		}
		writer.IndentTo(5)
		if load.Remat {
			fmt.Fprintf(writer, "remat %s", alloc.Target.RegName(load.Reg))
		} else {
			fmt.Fprintf(writer, "load  %s <- [%d]", alloc.Target.RegName(load.Reg), load.Slot)
		}
		writer.IndentTo(28)
		fmt.Fprintf(writer, "%04d", load.Ref)
		writer.Newline()
	}
}

func dumpStore(writer *ppWriterT, alloc *AllocationT, store SpillStoreT) {
	writer.IndentTo(5)
	fmt.Fprintf(writer, "store %s -> [%d]", alloc.Target.RegName(store.Reg), store.Slot)
	writer.IndentTo(28)
	fmt.Fprintf(writer, "%04d", store.Ref)
	writer.Newline()
}

func dumpRename(writer *ppWriterT, alloc *AllocationT, rename RenameT) {
	writer.IndentTo(5)
	fmt.Fprintf(writer, "move  %s -> %s",
		alloc.Target.RegName(rename.From), alloc.Target.RegName(rename.To))
	writer.IndentTo(28)
	fmt.Fprintf(writer, "%04d", rename.Ref)
	writer.Newline()
}

func homeString(target *TargetT, rs RegSlotT) string {
	result := ""
	if rs.HasReg() {
		result = target.RegName(rs.Reg())
	}
	if rs.HasSlot() {
		result += fmt.Sprintf("[%d]", rs.Slot())
	}
	return result
}

func insOperands(trace *TraceT, ref RefT) string {
	ins := &trace.Ins[ref]
	switch ins.Op {
	case OpKInt:
		return fmt.Sprintf("%+d", ins.Val)
	case OpKNum:
		return fmt.Sprintf("%+g", math.Float64frombits(uint64(ins.Val)))
	case OpSload:
		return fmt.Sprintf("#%d", ins.Val)
	}
	info := ins.Op.info()
	result := ""
	if info.op1 == modeRef {
		result = fmt.Sprintf("%04d", ins.Op1)
	}
	if info.op2 == modeRef {
		result += fmt.Sprintf(" %04d", ins.Op2)
	}
	return result
}

//----------------------------------------------------------------
// An io.Writer that keeps track of the current column.

type ppWriterT struct {
	writer io.Writer
	Column int
}

func makePpWriter(writer io.Writer) *ppWriterT {
	return &ppWriterT{writer: writer, Column: 0}
}

func (writer *ppWriterT) Write(p []byte) (n int, err error) {
	for _, b := range p {
		if b == '\n' {
			writer.Column = 0
		} else {
			writer.Column += 1
		}
	}
	return writer.writer.Write(p)
}

func (writer *ppWriterT) Newline() {
	writer.Column = 0
	writer.writer.Write([]byte("\n"))
}

func (writer *ppWriterT) Freshline() {
	if writer.Column != 0 {
		writer.Newline()
	}
}

func (writer *ppWriterT) IndentTo(column int) {
	if writer.Column == column {
		return
	}
	count := column
	if writer.Column < column {
		count -= writer.Column
	} else {
		writer.Newline()
	}
	writer.writer.Write([]byte(strings.Repeat(" ", count)))
	writer.Column += count
}
