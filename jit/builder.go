// Copyright 2025 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// Building traces one instruction at a time.  References are
// provisional while a trace is being built: constants count down from
// the top of the reference space as they are interned, instructions
// count up from one.  Finish renumbers both into the final layout
// with the constants in front.

package jit

import (
	"fmt"
	"math"
)

const provConstTop RefT = 0xffff
const provSplit RefT = 0x8000

func isProvConst(ref RefT) bool {
	return provSplit <= ref
}

type constKeyT struct {
	op   OpT
	bits uint64
}

type BuilderT struct {
	name     string
	params   *ParamsT
	consts   []InsT
	constMap map[constKeyT]RefT
	ins      []InsT
	cseMap   map[InsT]RefT
	loopRef  RefT // provisional reference of the LOOP marker, 0 until then
	nExits   int
}

func NewBuilder(name string, params *ParamsT) *BuilderT {
	return &BuilderT{
		name:     name,
		params:   params,
		constMap: map[constKeyT]RefT{},
		cseMap:   map[InsT]RefT{},
	}
}

func (b *BuilderT) insAt(ref RefT) *InsT {
	if isProvConst(ref) {
		return &b.consts[provConstTop-ref]
	}
	return &b.ins[ref-1]
}

func (b *BuilderT) kindOf(ref RefT) TypeKindT {
	return b.insAt(ref).Typ.Kind()
}

//----------------------------------------------------------------
// Constants are interned so that equal values share a reference.
// Floats are interned by bit pattern, which keeps +0 and -0 apart.

func (b *BuilderT) intern(op OpT, kind TypeKindT, bits uint64, val int64) RefT {
	key := constKeyT{op, bits}
	if ref, found := b.constMap[key]; found {
		return ref
	}
	if b.params.MaxConst <= len(b.consts) {
		AbortTracef(ErrTooManyConsts, "trace %s", b.name)
	}
	Push(&b.consts, InsT{Op: op, Typ: MakeType(kind), Val: val})
	ref := provConstTop - RefT(len(b.consts)-1)
	b.constMap[key] = ref
	return ref
}

func (b *BuilderT) KInt(value int64) RefT {
	return b.intern(OpKInt, KindInt, uint64(value), value)
}

func (b *BuilderT) KNum(value float64) RefT {
	bits := math.Float64bits(value)
	return b.intern(OpKNum, KindNum, bits, int64(bits))
}

//----------------------------------------------------------------

func (b *BuilderT) append(ins InsT) RefT {
	if b.params.MaxRecord <= len(b.ins) {
		AbortTracef(ErrTraceTooLong, "trace %s", b.name)
	}
	Push(&b.ins, ins)
	return RefT(len(b.ins))
}

func (b *BuilderT) Sload(slot int, kind TypeKindT) RefT {
	return b.emit(InsT{Op: OpSload, Typ: MakeType(kind), Val: int64(slot)})
}

// Emit adds a value-producing instruction.  The result kind comes
// from the operands.

func (b *BuilderT) Emit(op OpT, op1 RefT, op2 RefT) RefT {
	info := op.info()
	if !info.hasDef || info.op1 != modeRef {
		panic(fmt.Sprintf("Emit of %s", op))
	}
	kind := b.kindOf(op1)
	if info.op2 == modeRef && b.kindOf(op2) != kind {
		panic(fmt.Sprintf("%s of %s and %s in trace %s",
			op, kind, b.kindOf(op2), b.name))
	}
	return b.emit(InsT{Op: op, Typ: MakeType(kind), Op1: op1, Op2: op2})
}

// Guard adds a comparison that must hold for the trace to keep
// running and gives it the next exit number.  A guard between
// constants either disappears or, if it could never hold, kills the
// trace.  Guards are never shared: each one exits with its own state.

func (b *BuilderT) Guard(op OpT, op1 RefT, op2 RefT) RefT {
	if !op.info().isCmp {
		panic(fmt.Sprintf("Guard of %s", op))
	}
	if b.kindOf(op1) != b.kindOf(op2) {
		panic(fmt.Sprintf("%s of %s and %s in trace %s",
			op, b.kindOf(op1), b.kindOf(op2), b.name))
	}
	if isProvConst(op1) && isProvConst(op2) {
		if evalCmp(op, b.insAt(op1), b.insAt(op2)) {
			return 0
		}
		AbortTracef(ErrGuardFold, "%s in trace %s", op, b.name)
	}
	if isProvConst(op1) {
		op, op1, op2 = cmpSwap(op), op2, op1
	}
	ins := InsT{
		Op:  op,
		Typ: MakeType(b.kindOf(op1)) | FlagGuard,
		Op1: op1,
		Op2: op2,
		Val: int64(b.nExits),
	}
	b.nExits++
	return b.append(ins)
}

func (b *BuilderT) Loop() {
	if b.loopRef != 0 {
		panic(fmt.Sprintf("trace %s has two loops", b.name))
	}
	b.loopRef = b.append(InsT{Op: OpLoop})
}

// Phi ties a loop-carried value together: 'left' is the value
// entering the loop, 'right' the value after one iteration.  Both
// sides get marked so the allocator can tell loop-carried values
// apart.  A constant left side cannot happen: the loop body is
// re-recorded from the carried environment, so a variable whose
// value folds to the same constant every iteration is simply not
// carried.

func (b *BuilderT) Phi(left RefT, right RefT) RefT {
	if b.loopRef == 0 {
		panic(fmt.Sprintf("PHI before the loop in trace %s", b.name))
	}
	if left == right {
		return 0
	}
	if isProvConst(left) || b.loopRef <= left {
		panic(fmt.Sprintf("PHI left side %d is not loop invariant in trace %s",
			left, b.name))
	}
	if isProvConst(right) || right <= b.loopRef {
		panic(fmt.Sprintf("PHI right side %d is outside the loop of trace %s",
			right, b.name))
	}
	kind := b.kindOf(left)
	if b.kindOf(right) != kind {
		panic(fmt.Sprintf("PHI of %s and %s in trace %s", kind, b.kindOf(right), b.name))
	}
	ins := InsT{Op: OpPhi, Typ: MakeType(kind), Op1: left, Op2: right}
	if ref, found := b.cseMap[ins]; found {
		return ref // two variables carrying the same value share a PHI
	}
	b.insAt(left).Typ |= FlagPhi
	b.insAt(right).Typ |= FlagPhi
	ref := b.append(ins)
	b.cseMap[ins] = ref
	return ref
}

//----------------------------------------------------------------

func (b *BuilderT) Finish() *TraceT {
	nConst := len(b.consts)
	firstIns := RefT(nConst + 1)
	remap := func(ref RefT) RefT {
		switch {
		case ref == 0:
			return 0
		case isProvConst(ref):
			return 1 + (provConstTop - ref)
		}
		return firstIns + ref - 1
	}
	ins := make([]InsT, 1, 1+nConst+len(b.ins))
	PushSlice(&ins, b.consts)
	for _, one := range b.ins {
		one.Op1 = remap(one.Op1)
		one.Op2 = remap(one.Op2)
		Push(&ins, one)
	}
	trace := &TraceT{
		Name:     b.name,
		Ins:      ins,
		FirstIns: firstIns,
		LoopRef:  remap(b.loopRef),
		NExits:   b.nExits,
	}
	CheckTrace(trace)
	return trace
}
