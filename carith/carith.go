// Copyright 2025 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// Arithmetic on foreign native-typed values: the fixed-width
// integers, floats and pointers that come across the foreign-function
// boundary.  The interpreter's generic arithmetic calls Op with the
// operands in a StateT; Op either handles the operation, says to fall
// back to the interpreter's own dispatch, or reports an arithmetic
// error.  The trace compiler folds constants through the same helpers
// so compiled arithmetic agrees with interpreted arithmetic bit for
// bit.

package carith

import (
	"fmt"
	"math"
)

//----------------------------------------------------------------
// Values.  Bits holds the value in a kind-dependent encoding:
// integers sign- or zero-extended to 64 bits, floats as IEEE double
// bits, pointers as addresses, booleans as 0 or 1.

type KindT uint8

const (
	KindI8 KindT = iota + 1
	KindI16
	KindI32
	KindI64
	KindU8
	KindU16
	KindU32
	KindU64
	KindF32
	KindF64
	KindPtr
	KindBool
)

var kindNames = [...]string{"", "i8", "i16", "i32", "i64",
	"u8", "u16", "u32", "u64", "f32", "f64", "ptr", "bool"}

func (kind KindT) String() string {
	if int(kind) < len(kindNames) && kind != 0 {
		return kindNames[kind]
	}
	return fmt.Sprintf("kind%d", uint8(kind))
}

func (kind KindT) isInt() bool {
	return KindI8 <= kind && kind <= KindU64
}

func (kind KindT) isFloat() bool {
	return kind == KindF32 || kind == KindF64
}

type ValueT struct {
	Kind KindT
	Bits uint64
}

// Int makes a signed integer value, truncated to the kind's width and
// sign extended.

func Int(kind KindT, value int64) ValueT {
	switch kind {
	case KindI8:
		value = int64(int8(value))
	case KindI16:
		value = int64(int16(value))
	case KindI32:
		value = int64(int32(value))
	case KindI64:
	default:
		panic(fmt.Sprintf("Int of kind %s", kind))
	}
	return ValueT{Kind: kind, Bits: uint64(value)}
}

// Uint makes an unsigned integer value, truncated to the kind's width.

func Uint(kind KindT, value uint64) ValueT {
	switch kind {
	case KindU8:
		value = uint64(uint8(value))
	case KindU16:
		value = uint64(uint16(value))
	case KindU32:
		value = uint64(uint32(value))
	case KindU64:
	default:
		panic(fmt.Sprintf("Uint of kind %s", kind))
	}
	return ValueT{Kind: kind, Bits: value}
}

// Float makes a float value.  KindF32 rounds through float32 but is
// stored, like KindF64, as IEEE double bits.

func Float(kind KindT, value float64) ValueT {
	switch kind {
	case KindF32:
		value = float64(float32(value))
	case KindF64:
	default:
		panic(fmt.Sprintf("Float of kind %s", kind))
	}
	return ValueT{Kind: kind, Bits: math.Float64bits(value)}
}

func Ptr(addr uintptr) ValueT {
	return ValueT{Kind: KindPtr, Bits: uint64(addr)}
}

func Bool(value bool) ValueT {
	bits := uint64(0)
	if value {
		bits = 1
	}
	return ValueT{Kind: KindBool, Bits: bits}
}

func (value ValueT) I64() int64 {
	return int64(value.Bits)
}

func (value ValueT) U64() uint64 {
	return value.Bits
}

func (value ValueT) F64() float64 {
	return math.Float64frombits(value.Bits)
}

func (value ValueT) Addr() uintptr {
	return uintptr(value.Bits)
}

func (value ValueT) IsTrue() bool {
	return value.Bits != 0
}

func (value ValueT) String() string {
	switch {
	case value.Kind.isFloat():
		return fmt.Sprintf("%s %g", value.Kind, value.F64())
	case value.Kind == KindPtr:
		return fmt.Sprintf("ptr %#x", value.Bits)
	case value.Kind == KindBool:
		return fmt.Sprintf("bool %v", value.IsTrue())
	case value.Kind == KindU64:
		return fmt.Sprintf("%s %d", value.Kind, value.Bits)
	default:
		return fmt.Sprintf("%s %d", value.Kind, value.I64())
	}
}

//----------------------------------------------------------------
// The operator dispatch.

type OpT uint8

const (
	OpAdd OpT = iota + 1
	OpSub
	OpMul
	OpDiv
	OpMod
	OpPow
	OpNeg
	OpEq
	OpLt
	OpLe
)

var opNames = [...]string{"", "add", "sub", "mul", "div", "mod",
	"pow", "neg", "eq", "lt", "le"}

func (op OpT) String() string {
	if int(op) < len(opNames) && op != 0 {
		return opNames[op]
	}
	return fmt.Sprintf("op%d", uint8(op))
}

type StatusT uint8

const (
	Handled  StatusT = iota + 1 // Result holds the answer
	Fallback                    // not ours; use the generic dispatch
	Error                       // integer division or modulo by zero
)

func (status StatusT) String() string {
	switch status {
	case Handled:
		return "handled"
	case Fallback:
		return "fallback"
	case Error:
		return "error"
	}
	return fmt.Sprintf("status%d", uint8(status))
}

// Operands in, result out.  Unary operators use Left only.

type StateT struct {
	Left   ValueT
	Right  ValueT
	Result ValueT
}

func Op(state *StateT, op OpT) StatusT {
	if op == OpNeg {
		return negOp(state)
	}
	left, right := state.Left, state.Right
	switch {
	case left.Kind == KindPtr || right.Kind == KindPtr:
		return ptrOp(state, op)
	case left.Kind.isFloat() || right.Kind.isFloat():
		return floatOp(state, op)
	case left.Kind.isInt() && right.Kind.isInt():
		return intOp(state, op)
	}
	return Fallback
}

func negOp(state *StateT) StatusT {
	operand := state.Left
	switch {
	case operand.Kind.isFloat():
		state.Result = Float(KindF64, -operand.F64())
	case operand.Kind == KindU64:
		state.Result = ValueT{Kind: KindU64, Bits: -operand.Bits}
	case operand.Kind.isInt():
		state.Result = ValueT{Kind: KindI64, Bits: -operand.Bits}
	default:
		return Fallback
	}
	return Handled
}

// Integer arithmetic is done in 64 bits.  The result is signed unless
// either operand is a full-width unsigned integer; narrower unsigned
// operands fit in int64 and do not force an unsigned result.

func intOp(state *StateT, op OpT) StatusT {
	unsigned := state.Left.Kind == KindU64 || state.Right.Kind == KindU64
	u1 := state.Left.Bits
	u2 := state.Right.Bits
	var bits uint64
	switch op {
	case OpAdd:
		bits = u1 + u2
	case OpSub:
		bits = u1 - u2
	case OpMul:
		bits = u1 * u2
	case OpDiv:
		if u2 == 0 {
			return Error
		}
		if unsigned {
			bits = u1 / u2
		} else {
			bits = uint64(DivI64(int64(u1), int64(u2)))
		}
	case OpMod:
		if u2 == 0 {
			return Error
		}
		if unsigned {
			bits = u1 % u2
		} else {
			bits = uint64(ModI64(int64(u1), int64(u2)))
		}
	case OpPow:
		bits = PowI64(u1, u2, unsigned)
	case OpEq:
		state.Result = Bool(u1 == u2)
		return Handled
	case OpLt:
		state.Result = intCompare(unsigned, u1, u2, false)
		return Handled
	case OpLe:
		state.Result = intCompare(unsigned, u1, u2, true)
		return Handled
	default:
		return Fallback
	}
	kind := KindI64
	if unsigned {
		kind = KindU64
	}
	state.Result = ValueT{Kind: kind, Bits: bits}
	return Handled
}

func intCompare(unsigned bool, u1 uint64, u2 uint64, orEqual bool) ValueT {
	if u1 == u2 {
		return Bool(orEqual)
	}
	if unsigned {
		return Bool(u1 < u2)
	}
	return Bool(int64(u1) < int64(u2))
}

// Anything involving a float is done in float64.  Division and modulo
// by zero are not errors here; they give an infinity or a NaN.

func floatOp(state *StateT, op OpT) StatusT {
	f1 := floatOperand(state.Left)
	f2 := floatOperand(state.Right)
	var value float64
	switch op {
	case OpAdd:
		value = f1 + f2
	case OpSub:
		value = f1 - f2
	case OpMul:
		value = f1 * f2
	case OpDiv:
		value = f1 / f2
	case OpMod:
		value = ModF64(f1, f2)
	case OpPow:
		value = math.Pow(f1, f2)
	case OpEq:
		state.Result = Bool(f1 == f2)
		return Handled
	case OpLt:
		state.Result = Bool(f1 < f2)
		return Handled
	case OpLe:
		state.Result = Bool(f1 <= f2)
		return Handled
	default:
		return Fallback
	}
	state.Result = Float(KindF64, value)
	return Handled
}

func floatOperand(value ValueT) float64 {
	switch {
	case value.Kind.isFloat():
		return value.F64()
	case value.Kind == KindU64:
		return float64(value.Bits)
	default:
		return float64(int64(value.Bits))
	}
}

// Pointer arithmetic is byte addressed; scaling by the element size
// happens in the foreign-type layer before the call.

func ptrOp(state *StateT, op OpT) StatusT {
	left, right := state.Left, state.Right
	switch op {
	case OpAdd:
		switch {
		case left.Kind == KindPtr && right.Kind.isInt():
			state.Result = Ptr(uintptr(left.Bits + right.Bits))
		case left.Kind.isInt() && right.Kind == KindPtr:
			state.Result = Ptr(uintptr(left.Bits + right.Bits))
		default:
			return Fallback
		}
	case OpSub:
		switch {
		case left.Kind == KindPtr && right.Kind.isInt():
			state.Result = Ptr(uintptr(left.Bits - right.Bits))
		case left.Kind == KindPtr && right.Kind == KindPtr:
			state.Result = ValueT{Kind: KindI64, Bits: left.Bits - right.Bits}
		default:
			return Fallback
		}
	case OpEq:
		if left.Kind != KindPtr || right.Kind != KindPtr {
			return Fallback
		}
		state.Result = Bool(left.Bits == right.Bits)
	case OpLt, OpLe:
		if left.Kind != KindPtr || right.Kind != KindPtr {
			return Fallback
		}
		state.Result = intCompare(true, left.Bits, right.Bits, op == OpLe)
	default:
		return Fallback
	}
	return Handled
}

//----------------------------------------------------------------
// The 64-bit helpers, shared with the trace compiler's constant
// folding.

// PowI64 computes x to the power k by binary exponentiation with
// wraparound overflow.  Under signed semantics a negative exponent has
// no integer result in general: the bases with one are handled exactly
// and the rest underflow to zero, except that a zero base reports the
// overflow as the maximum integer.

func PowI64(x uint64, k uint64, isUnsigned bool) uint64 {
	if k == 0 {
		return 1
	}
	if !isUnsigned && int64(k) < 0 {
		switch {
		case x == 0:
			return 0x7fffffffffffffff
		case x == 1:
			return 1
		case int64(x) == -1:
			if k&1 != 0 {
				return x
			}
			return 1
		}
		return 0
	}
	for k&1 == 0 {
		x *= x
		k >>= 1
	}
	y := x
	k >>= 1
	for k != 0 {
		x *= x
		if k&1 != 0 {
			y *= x
		}
		k >>= 1
	}
	return y
}

// DivI64 is signed 64-bit division with wraparound: the minimum
// integer divided by -1 is itself.  A zero divisor yields the minimum
// integer; callers that must report division by zero check first.

func DivI64(a int64, b int64) int64 {
	if b == 0 {
		return math.MinInt64
	}
	return a / b
}

// ModI64 is signed 64-bit floored modulo: a nonzero result has the
// sign of the divisor.  A zero divisor yields the minimum integer.

func ModI64(a int64, b int64) int64 {
	if b == 0 {
		return math.MinInt64
	}
	r := a % b
	if r != 0 && (r^b) < 0 {
		r += b
	}
	return r
}

// ModF64 is floored floating-point modulo.  A zero divisor gives NaN.

func ModF64(a float64, b float64) float64 {
	r := math.Mod(a, b)
	if r*b < 0 {
		r += b
	}
	return r
}
