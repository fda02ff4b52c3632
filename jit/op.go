// Copyright 2025 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// The trace instruction set and a table of per-opcode properties.

package jit

import "fmt"

type OpT uint8

const (
	OpNop OpT = iota

	// Constants, interned at the front of the trace.  'Val' holds the
	// payload: the integer itself, or the bits of a float64.
	OpKInt
	OpKNum

	// A load from an interpreter stack slot, 'Val' is the slot number.
	OpSload

	// Arithmetic.
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpNeg

	// Comparisons.  In a trace these are always guards: the trace is
	// only valid while the comparison holds, and 'Val' is the number
	// of the exit taken when it stops holding.
	OpLt
	OpGe
	OpLe
	OpGt
	OpEq
	OpNe

	// The head of the variant part of the trace.
	OpLoop

	// A loop-carried value: 'Op1' is its value entering the loop and
	// 'Op2' the value produced by one iteration.  PHIs sit together at
	// the end of the trace.
	OpPhi

	opCount
)

type opModeT uint8

const (
	modeNone opModeT = iota // operand is unused and must be zero
	modeRef                 // operand is a reference to an earlier instruction
)

type opInfoT struct {
	name     string
	op1      opModeT
	op2      opModeT
	isConst  bool
	hasDef   bool // produces a value that wants a register
	isCmp    bool
	commutes bool
}

var opInfo = [opCount]opInfoT{
	OpNop:   {name: "NOP"},
	OpKInt:  {name: "KINT", isConst: true},
	OpKNum:  {name: "KNUM", isConst: true},
	OpSload: {name: "SLOAD", hasDef: true},
	OpAdd:   {name: "ADD", op1: modeRef, op2: modeRef, hasDef: true, commutes: true},
	OpSub:   {name: "SUB", op1: modeRef, op2: modeRef, hasDef: true},
	OpMul:   {name: "MUL", op1: modeRef, op2: modeRef, hasDef: true, commutes: true},
	OpDiv:   {name: "DIV", op1: modeRef, op2: modeRef, hasDef: true},
	OpMod:   {name: "MOD", op1: modeRef, op2: modeRef, hasDef: true},
	OpNeg:   {name: "NEG", op1: modeRef, hasDef: true},
	OpLt:    {name: "LT", op1: modeRef, op2: modeRef, isCmp: true},
	OpGe:    {name: "GE", op1: modeRef, op2: modeRef, isCmp: true},
	OpLe:    {name: "LE", op1: modeRef, op2: modeRef, isCmp: true},
	OpGt:    {name: "GT", op1: modeRef, op2: modeRef, isCmp: true},
	OpEq:    {name: "EQ", op1: modeRef, op2: modeRef, isCmp: true, commutes: true},
	OpNe:    {name: "NE", op1: modeRef, op2: modeRef, isCmp: true, commutes: true},
	OpLoop:  {name: "LOOP"},
	OpPhi:   {name: "PHI", op1: modeRef, op2: modeRef},
}

func (op OpT) info() *opInfoT {
	if opCount <= op {
		panic(fmt.Sprintf("opcode %d out of range", op))
	}
	return &opInfo[op]
}

func (op OpT) String() string {
	return op.info().name
}
