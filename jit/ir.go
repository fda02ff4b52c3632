// Copyright 2025 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// The trace intermediate representation: a linear sequence of
// instructions that records one hot loop.  References are indexes
// into the instruction slice, with the interned constants at the
// front, then the invariant instructions, then a LOOP marker, then
// the variant instructions, and finally the PHIs that tie the
// loop-carried values together.

package jit

import "fmt"

// A reference to a trace instruction.  Reference 0 is never valid;
// an operand of 0 means the operand is unused.

type RefT uint16

//----------------------------------------------------------------
// Instruction types.  The low bits hold the kind of value produced,
// the high bits are flags.

type TypeKindT uint8

const (
	KindInt TypeKindT = iota + 1 // 64-bit integer
	KindNum                      // 64-bit float
)

func (kind TypeKindT) String() string {
	switch kind {
	case KindInt:
		return "int"
	case KindNum:
		return "num"
	}
	return fmt.Sprintf("kind%d", uint8(kind))
}

type TypeT uint8

const (
	typeKindMask TypeT = 0x0f
	FlagPhi      TypeT = 0x10 // value is loop-carried
	FlagGuard    TypeT = 0x20 // instruction exits the trace on failure
)

func MakeType(kind TypeKindT) TypeT {
	return TypeT(kind)
}

func (typ TypeT) Kind() TypeKindT {
	return TypeKindT(typ & typeKindMask)
}

func (typ TypeT) IsPhi() bool {
	return typ&FlagPhi != 0
}

func (typ TypeT) IsGuard() bool {
	return typ&FlagGuard != 0
}

func (typ TypeT) IsFloat() bool {
	return typ.Kind() == KindNum
}

func (typ TypeT) String() string {
	result := typ.Kind().String()
	if typ.IsPhi() {
		result += "+phi"
	}
	if typ.IsGuard() {
		result += "+guard"
	}
	return result
}

//----------------------------------------------------------------

// 'Val' is the per-opcode payload: the value of a constant, the stack
// slot of an SLOAD, or the exit number of a guard.

type InsT struct {
	Op  OpT
	Typ TypeT
	Op1 RefT
	Op2 RefT
	Val int64
}

type TraceT struct {
	Name     string
	Ins      []InsT // Ins[0] is unused so that references index directly
	FirstIns RefT   // first instruction after the interned constants
	LoopRef  RefT   // the LOOP marker, or 0 if the trace has no loop
	NExits   int    // number of guard exits handed out
}

func (trace *TraceT) IsConst(ref RefT) bool {
	return 0 < ref && ref < trace.FirstIns
}

func (trace *TraceT) LastIns() RefT {
	return RefT(len(trace.Ins) - 1)
}

//----------------------------------------------------------------
// CheckTrace walks a trace and panics if its structure is broken.
// Slow, and run on every finished trace, which has been well worth
// the cost so far.

func CheckTrace(trace *TraceT) {
	if len(trace.Ins) == 0 || trace.Ins[0] != (InsT{}) {
		panic(fmt.Sprintf("trace %s does not start with an empty instruction", trace.Name))
	}
	if trace.FirstIns == 0 || len(trace.Ins) < int(trace.FirstIns) {
		panic(fmt.Sprintf("trace %s has FirstIns %d with %d instructions",
			trace.Name, trace.FirstIns, len(trace.Ins)))
	}
	if maxTraceRefs < len(trace.Ins)-1 {
		panic(fmt.Sprintf("trace %s has %d instructions, which do not fit in a reference",
			trace.Name, len(trace.Ins)-1))
	}
	for ref := RefT(1); ref < trace.FirstIns; ref++ {
		checkConst(trace, ref)
	}
	loops := 0
	sawPhi := false
	phiSides := map[RefT]bool{}
	for ref := trace.FirstIns; int(ref) < len(trace.Ins); ref++ {
		ins := &trace.Ins[ref]
		if ins.Op.info().isConst {
			panic(fmt.Sprintf("%s in trace %s is outside the constant section",
				insName(trace, ref), trace.Name))
		}
		checkOperands(trace, ref)
		switch ins.Op {
		case OpLoop:
			loops++
			if ref != trace.LoopRef {
				panic(fmt.Sprintf("%s is not the trace's loop marker %d",
					insName(trace, ref), trace.LoopRef))
			}
		case OpPhi:
			sawPhi = true
			checkPhi(trace, ref)
			if phiSides[ins.Op1] || phiSides[ins.Op2] {
				panic(fmt.Sprintf("%s shares a side with an earlier PHI",
					insName(trace, ref)))
			}
			phiSides[ins.Op1] = true
			phiSides[ins.Op2] = true
		default:
			if sawPhi {
				panic(fmt.Sprintf("%s follows the trace's PHIs", insName(trace, ref)))
			}
		}
		checkGuard(trace, ref)
	}
	if trace.LoopRef != 0 &&
		(trace.LoopRef < trace.FirstIns ||
			len(trace.Ins) <= int(trace.LoopRef) ||
			trace.Ins[trace.LoopRef].Op != OpLoop) {
		panic(fmt.Sprintf("trace %s has loop marker %d but no LOOP there",
			trace.Name, trace.LoopRef))
	}
	if trace.LoopRef == 0 && (loops != 0 || sawPhi) {
		panic(fmt.Sprintf("trace %s has a LOOP or PHI but no loop marker", trace.Name))
	}
}

func checkConst(trace *TraceT, ref RefT) {
	ins := &trace.Ins[ref]
	if !ins.Op.info().isConst {
		panic(fmt.Sprintf("%s in trace %s is inside the constant section",
			insName(trace, ref), trace.Name))
	}
	if ins.Op1 != 0 || ins.Op2 != 0 {
		panic(fmt.Sprintf("%s has operands", insName(trace, ref)))
	}
	kind := ins.Typ.Kind()
	if (ins.Op == OpKInt && kind != KindInt) || (ins.Op == OpKNum && kind != KindNum) {
		panic(fmt.Sprintf("%s has kind %s", insName(trace, ref), kind))
	}
}

func checkOperands(trace *TraceT, ref RefT) {
	ins := &trace.Ins[ref]
	info := ins.Op.info()
	checkOperand(trace, ref, ins.Op1, info.op1)
	checkOperand(trace, ref, ins.Op2, info.op2)
	if info.op1 == modeRef && info.op2 == modeRef && ins.Op != OpPhi {
		kind1 := trace.Ins[ins.Op1].Typ.Kind()
		kind2 := trace.Ins[ins.Op2].Typ.Kind()
		if kind1 != kind2 {
			panic(fmt.Sprintf("%s mixes %s and %s operands",
				insName(trace, ref), kind1, kind2))
		}
	}
	if info.commutes && trace.IsConst(ins.Op1) && !trace.IsConst(ins.Op2) {
		panic(fmt.Sprintf("%s has an uncanonical constant operand", insName(trace, ref)))
	}
}

func checkOperand(trace *TraceT, ref RefT, operand RefT, mode opModeT) {
	switch mode {
	case modeNone:
		if operand != 0 {
			panic(fmt.Sprintf("%s has an unexpected operand %d", insName(trace, ref), operand))
		}
	case modeRef:
		if operand == 0 || ref <= operand {
			panic(fmt.Sprintf("%s has operand %d which is not yet defined",
				insName(trace, ref), operand))
		}
	}
}

func checkPhi(trace *TraceT, ref RefT) {
	ins := &trace.Ins[ref]
	if trace.LoopRef == 0 {
		panic(fmt.Sprintf("%s in a trace with no loop", insName(trace, ref)))
	}
	left := &trace.Ins[ins.Op1]
	right := &trace.Ins[ins.Op2]
	if trace.IsConst(ins.Op1) {
		panic(fmt.Sprintf("%s left side %d is a constant", insName(trace, ref), ins.Op1))
	}
	if trace.LoopRef <= ins.Op1 {
		panic(fmt.Sprintf("%s left side %d is not loop invariant", insName(trace, ref), ins.Op1))
	}
	if ins.Op2 <= trace.LoopRef {
		panic(fmt.Sprintf("%s right side %d is not in the loop", insName(trace, ref), ins.Op2))
	}
	if left.Typ.Kind() != ins.Typ.Kind() || right.Typ.Kind() != ins.Typ.Kind() {
		panic(fmt.Sprintf("%s has kind %s but sides %s and %s",
			insName(trace, ref), ins.Typ.Kind(), left.Typ.Kind(), right.Typ.Kind()))
	}
	if !left.Typ.IsPhi() {
		panic(fmt.Sprintf("%s left side %d is not marked as loop carried",
			insName(trace, ref), ins.Op1))
	}
	if !right.Typ.IsPhi() {
		panic(fmt.Sprintf("%s right side %d is not marked as loop carried",
			insName(trace, ref), ins.Op2))
	}
}

func checkGuard(trace *TraceT, ref RefT) {
	ins := &trace.Ins[ref]
	if ins.Op.info().isCmp != ins.Typ.IsGuard() {
		panic(fmt.Sprintf("%s: comparisons and only comparisons are guards",
			insName(trace, ref)))
	}
	if ins.Typ.IsGuard() && (ins.Val < 0 || int64(trace.NExits) <= ins.Val) {
		panic(fmt.Sprintf("%s has exit %d of %d", insName(trace, ref), ins.Val, trace.NExits))
	}
}

func insName(trace *TraceT, ref RefT) string {
	return fmt.Sprintf("%04d %s", ref, trace.Ins[ref].Op)
}
