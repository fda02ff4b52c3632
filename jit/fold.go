// Copyright 2025 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// Emit-time optimization: constant folding, operand canonicalization,
// and common-subexpression elimination.  Everything happens as each
// instruction is emitted, so re-recording the loop body for the
// variant part automatically reuses whatever turns out to be
// invariant.

package jit

import (
	"math"

	"github.com/s48/tracejit/carith"
)

func (b *BuilderT) emit(ins InsT) RefT {
	if folded, ok := b.kfold(&ins); ok {
		return folded
	}
	b.canonicalize(&ins)
	if ref, found := b.cseMap[ins]; found {
		return ref
	}
	ref := b.append(ins)
	b.cseMap[ins] = ref
	return ref
}

// Arithmetic between constants is done now, with the same semantics
// the interpreter uses: 64-bit wraparound for integers, IEEE for
// floats.  Integer division by a constant zero is left in the trace
// for the runtime to trap on.

func (b *BuilderT) kfold(ins *InsT) (RefT, bool) {
	info := ins.Op.info()
	if !info.hasDef || info.op1 != modeRef || !isProvConst(ins.Op1) {
		return 0, false
	}
	left := b.insAt(ins.Op1)
	if info.op2 == modeNone {
		if ins.Op != OpNeg {
			return 0, false
		}
		if left.Typ.IsFloat() {
			return b.KNum(-math.Float64frombits(uint64(left.Val))), true
		}
		return b.KInt(-left.Val), true
	}
	if !isProvConst(ins.Op2) {
		return 0, false
	}
	right := b.insAt(ins.Op2)
	if left.Typ.IsFloat() {
		return b.KNum(foldNum(ins.Op, math.Float64frombits(uint64(left.Val)),
			math.Float64frombits(uint64(right.Val)))), true
	}
	result, ok := foldInt(ins.Op, left.Val, right.Val)
	if !ok {
		return 0, false
	}
	return b.KInt(result), true
}

func foldInt(op OpT, left int64, right int64) (int64, bool) {
	switch op {
	case OpAdd:
		return left + right, true
	case OpSub:
		return left - right, true
	case OpMul:
		return left * right, true
	case OpDiv:
		if right == 0 {
			return 0, false
		}
		return carith.DivI64(left, right), true
	case OpMod:
		if right == 0 {
			return 0, false
		}
		return carith.ModI64(left, right), true
	}
	return 0, false
}

func foldNum(op OpT, left float64, right float64) float64 {
	switch op {
	case OpAdd:
		return left + right
	case OpSub:
		return left - right
	case OpMul:
		return left * right
	case OpDiv:
		return left / right
	case OpMod:
		return carith.ModF64(left, right)
	}
	panic("foldNum of " + op.String())
}

// Commutative instructions get a canonical operand order: constants
// second, and otherwise the newer operand first.  This is what makes
// the CSE map catch reassociated copies of the same expression.

func (b *BuilderT) canonicalize(ins *InsT) {
	if !ins.Op.info().commutes {
		return
	}
	konst1 := isProvConst(ins.Op1)
	konst2 := isProvConst(ins.Op2)
	if (konst1 && !konst2) || (konst1 == konst2 && ins.Op1 < ins.Op2) {
		ins.Op1, ins.Op2 = ins.Op2, ins.Op1
	}
}

// The comparison that holds between swapped operands.

func cmpSwap(op OpT) OpT {
	switch op {
	case OpLt:
		return OpGt
	case OpGt:
		return OpLt
	case OpLe:
		return OpGe
	case OpGe:
		return OpLe
	}
	return op // EQ and NE are symmetric
}

func evalCmp(op OpT, left *InsT, right *InsT) bool {
	if left.Typ.IsFloat() {
		l := math.Float64frombits(uint64(left.Val))
		r := math.Float64frombits(uint64(right.Val))
		switch op {
		case OpLt:
			return l < r
		case OpGe:
			return l >= r
		case OpLe:
			return l <= r
		case OpGt:
			return l > r
		case OpEq:
			return l == r
		case OpNe:
			return l != r
		}
	}
	l := left.Val
	r := right.Val
	switch op {
	case OpLt:
		return l < r
	case OpGe:
		return l >= r
	case OpLe:
		return l <= r
	case OpGt:
		return l > r
	case OpEq:
		return l == r
	case OpNe:
		return l != r
	}
	panic("evalCmp of " + op.String())
}
