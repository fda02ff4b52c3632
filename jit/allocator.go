// Copyright 2025 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// The register allocator.  It scans the trace backwards, so a value
// gets its register at what is in execution order its last use and
// gives it back at its definition.  Working backwards means every
// decision is made knowing the entire future of the register file,
// which is what lets a single linear pass produce decent code.
//
// The scan keeps two views that deliberately drift apart: 'home'
// records where each value lives for the code emitter, while
// 'freeset' and 'cost' track the register file at the current scan
// position.  A definition frees its register for reuse further up
// the trace, but the value's home keeps naming it.

package jit

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

//----------------------------------------------------------------
// What the emitter gets back: a home for every value, plus the loads,
// stores and moves that make the spills and the loop seam work.
//
// Events at the loop marker form the loop seam and have a fixed
// order: the back edge runs the Stores whose At is the marker and
// then jumps; the loop top runs the Renames, then the Loads whose At
// is the marker, then the body.  Renames read only PHI registers and
// write only non-PHI registers, which is what makes this order safe.

type AllocationT struct {
	Trace    *TraceT
	Target   *TargetT
	Home     []RegSlotT // indexed by reference
	NSpill   int        // spill slots used; slots are numbered 1..NSpill
	Modified RegSetT    // registers the trace writes
	Stores   []SpillStoreT
	Loads    []SpillLoadT
	Renames  []RenameT
	Exits    []ExitT
}

// Store the register to the slot just after the instruction at At.

type SpillStoreT struct {
	Ref  RefT
	Reg  RegT
	Slot SlotT
	At   RefT
}

// Put the value back in the register between the instructions at At
// and At+1: from its slot, or by rematerializing it if it is a
// constant.  The instruction at At is the one whose allocation took
// the register away and it still uses the register itself, so the
// reload runs after it, and after any store at the same At.  An entry
// load (Entry set) instead runs before the first instruction,
// materializing a constant the trace expects to find in a register.

type SpillLoadT struct {
	Ref   RefT
	Reg   RegT
	Slot  SlotT
	At    RefT
	Remat bool
	Entry bool
}

// Move From to To at the top of the loop.  Above the loop the value
// is computed into From; the body reads it from To.  Placing the move
// at the loop top makes it serve both loop entry and every back edge.

type RenameT struct {
	Ref  RefT
	From RegT
	To   RegT
}

// A guard and the exit it takes when it fails.

type ExitT struct {
	Ref    RefT
	ExitNo int
}

//----------------------------------------------------------------

type phiPairT struct {
	left   RefT
	right  RefT
	reg    RegT
	memory bool // carried in a spill slot shared by both sides
}

type regAllocT struct {
	trace   *TraceT
	target  *TargetT
	freeset RegSetT
	modset  RegSetT
	phiset  RegSetT // registers carrying values across the back edge
	cost    [maxRegs]regCostT
	home    []RegSlotT
	phis    []phiPairT
	stores  []SpillStoreT
	loads   []SpillLoadT
	renames []RenameT
	exits   []ExitT
	curins  RefT
	nSpill  int
	log     *logrus.Entry // nil unless debug logging is enabled
}

// AllocateTrace assigns a home to every value in the trace.  Running
// out of spill slots or similar per-trace resources is reported as an
// error; a structurally broken trace is a bug in the caller and
// panics.

func AllocateTrace(trace *TraceT, target *TargetT) (result *AllocationT, err error) {
	defer RecoverTraceAbort(&err)
	CheckTrace(trace)
	ra := &regAllocT{
		trace:   trace,
		target:  target,
		freeset: target.Allocatable(),
		home:    make([]RegSlotT, len(trace.Ins)),
	}
	if logrus.IsLevelEnabled(logrus.DebugLevel) {
		ra.log = logrus.WithField("trace", trace.Name)
	}
	for ref := trace.LastIns(); trace.FirstIns <= ref; ref-- {
		ra.curins = ref
		ins := &trace.Ins[ref]
		switch {
		case ins.Op == OpPhi:
			ra.allocPhi(ins)
		case ins.Op == OpLoop:
			ra.loopFixup()
		case ins.Typ.IsGuard():
			ra.allocGuard(ref, ins)
		default:
			ra.allocIns(ref, ins)
		}
	}
	ra.allocHead()
	Reverse(ra.stores)
	Reverse(ra.loads)
	Reverse(ra.renames)
	Reverse(ra.exits)
	return &AllocationT{
		Trace:    trace,
		Target:   target,
		Home:     ra.home,
		NSpill:   ra.nSpill,
		Modified: ra.modset,
		Stores:   ra.stores,
		Loads:    ra.loads,
		Renames:  ra.renames,
		Exits:    ra.exits,
	}, nil
}

func (ra *regAllocT) free(reg RegT) {
	ra.freeset.Add(reg)
	ra.cost[reg] = freeRegCost
}

func (ra *regAllocT) modified(reg RegT) {
	ra.modset.Add(reg)
}

//----------------------------------------------------------------
// Picking registers.

// Give ref a register from allow, evicting an occupant if none is
// free.

func (ra *regAllocT) allocRef(ref RefT, allow RegSetT) RegT {
	rs := &ra.home[ref]
	if rs.HasReg() {
		panic(fmt.Sprintf("%s already has a register in trace %s",
			insName(ra.trace, ref), ra.trace.Name))
	}
	typ := ra.trace.Ins[ref].Typ
	reg, found := ra.pickFree(ref, rs, allow, typ)
	if !found {
		reg = ra.evict(allow)
	}
	rs.SetReg(reg)
	ra.freeset.Remove(reg)
	ra.cost[reg] = makeRegCost(ref, typ)
	ra.debug("alloc", ref, reg)
	return reg
}

func (ra *regAllocT) pickFree(ref RefT, rs *RegSlotT, allow RegSetT, typ TypeT) (RegT, bool) {
	pick := ra.freeset & allow
	if pick.IsEmpty() {
		return 0, false
	}
	if rs.HasHint() {
		hint := rs.Hint()
		if pick.Contains(hint) {
			return hint, true
		}
		// Rematerializing a constant costs less than missing a hint.
		if allow.Contains(hint) && ra.trace.IsConst(ra.cost[hint].Ref()) {
			ra.restore(ra.cost[hint].Ref())
			return hint, true
		}
		ra.debug("hint miss", ref, hint)
	}
	if ref < ra.trace.LoopRef && !typ.IsPhi() {
		// Loop-invariant values prefer registers the loop leaves
		// alone, so the loop entry can set them up once and for all.
		if quiet := pick &^ ra.modset; !quiet.IsEmpty() {
			pick = quiet
		}
		return pick.PickBot(), true
	}
	// Otherwise prefer registers that survive calls, and pick from
	// the top to stay out of the invariant values' way.
	if steady := pick &^ ra.target.Scratch; !steady.IsEmpty() {
		pick = steady
	}
	return pick.PickTop(), true
}

// Evict the occupant with the smallest cost.  The scan runs from the
// lowest register up and only a strictly smaller cost displaces the
// leader, so ties go to the lowest-numbered register.

func (ra *regAllocT) evict(allow RegSetT) RegT {
	candidates := allow &^ ra.freeset
	if candidates.IsEmpty() {
		panic(fmt.Sprintf("nothing to evict for %s in trace %s",
			insName(ra.trace, ra.curins), ra.trace.Name))
	}
	bestCost := ^regCostT(0)
	best := RegT(0)
	for work := candidates; !work.IsEmpty(); {
		reg := work.PickBot()
		work.Remove(reg)
		if ra.cost[reg] < bestCost {
			best = reg
			bestCost = ra.cost[reg]
		}
	}
	ra.debug("evict", bestCost.Ref(), best)
	return ra.restore(bestCost.Ref())
}

// Take a value's register away.  Code already scanned expects the
// value there, so record the load that puts it back: from its spill
// slot, or by rematerializing it if it is a constant.  The old
// register is kept as a hint so later uses try to land in it again.

func (ra *regAllocT) restore(ref RefT) RegT {
	rs := &ra.home[ref]
	reg := rs.Reg()
	if ra.trace.IsConst(ref) {
		Push(&ra.loads, SpillLoadT{Ref: ref, Reg: reg, At: ra.curins, Remat: true})
		rs.ClearReg() // any register rematerializes a constant equally well
	} else {
		slot := ra.spill(ref)
		Push(&ra.loads, SpillLoadT{Ref: ref, Reg: reg, Slot: slot, At: ra.curins})
		rs.ToHint()
	}
	ra.debug("restore", ref, reg)
	ra.modified(reg)
	ra.free(reg)
	return reg
}

// Assign a spill slot if the value does not already have one.

func (ra *regAllocT) spill(ref RefT) SlotT {
	rs := &ra.home[ref]
	if !rs.HasSlot() {
		if 255 <= ra.nSpill {
			AbortTracef(ErrSpillOverflow, "trace %s", ra.trace.Name)
		}
		ra.nSpill++
		rs.SetSlot(SlotT(ra.nSpill))
		ra.debugSlot("spill", ref, rs.Slot())
	}
	return rs.Slot()
}

//----------------------------------------------------------------
// The scan itself.

func (ra *regAllocT) allocIns(ref RefT, ins *InsT) {
	if ins.Op.info().hasDef && !ra.defIns(ref, ins) {
		// Nothing downstream uses the value, so the instruction will
		// not be emitted and its operands get no uses from it.
		return
	}
	ra.useOperands(ins)
}

func (ra *regAllocT) allocGuard(ref RefT, ins *InsT) {
	Push(&ra.exits, ExitT{Ref: ref, ExitNo: int(ins.Val)})
	ra.useOperands(ins)
}

// A definition ends the value's interval and frees its register.  A
// value with a spill slot also needs a store right after the
// definition.  A value that never got a register or a slot is dead.

func (ra *regAllocT) defIns(ref RefT, ins *InsT) bool {
	rs := &ra.home[ref]
	if !rs.Used() {
		if ra.log != nil {
			ra.log.WithField("ins", insName(ra.trace, ref)).Debug("dead")
		}
		return false
	}
	if !rs.HasReg() {
		// Spilled everywhere downstream.  The store still needs the
		// value in a register for a moment.
		ra.allocRef(ref, ra.target.ClassRegs(ins.Typ.Kind()))
	}
	reg := rs.Reg()
	if rs.HasSlot() {
		Push(&ra.stores, SpillStoreT{Ref: ref, Reg: reg, Slot: rs.Slot(), At: ref})
	}
	ra.free(reg)
	ra.modified(reg)
	ra.debug("def", ref, reg)
	return true
}

// Both operands need registers at once, so neither allocation may
// evict the other's register.

func (ra *regAllocT) useOperands(ins *InsT) {
	info := ins.Op.info()
	if info.op1 != modeRef {
		return
	}
	avoid := RegSetT(0)
	if info.op2 == modeRef && ra.home[ins.Op2].HasReg() {
		avoid.Add(ra.home[ins.Op2].Reg())
	}
	reg1 := ra.useRef(ins.Op1, avoid)
	if info.op2 == modeRef {
		ra.useRef(ins.Op2, RegBit(reg1))
	}
}

// A use keeps the value in whatever register it already has.
// Otherwise this is, scanning backwards, the value's last use, and
// the place its register gets allocated.

func (ra *regAllocT) useRef(ref RefT, avoid RegSetT) RegT {
	rs := &ra.home[ref]
	if rs.HasReg() {
		return rs.Reg()
	}
	kind := ra.trace.Ins[ref].Typ.Kind()
	return ra.allocRef(ref, ra.target.ClassRegs(kind)&^avoid)
}

//----------------------------------------------------------------
// The loop seam.

// PHIs are the last instructions, so the backward scan sees them
// first.  The right side, the value after one iteration, gets a
// register now; the left side, the value entering the loop, gets the
// same register as a hint.  Every loop-carried value needs its own
// register across the back edge, and when the class runs out the
// value is carried in a spill slot shared by both sides instead,
// which makes the back edge a no-op for it.

func (ra *regAllocT) allocPhi(ins *InsT) {
	left := ins.Op1
	right := ins.Op2
	allow := ra.target.ClassRegs(ins.Typ.Kind()) &^ ra.phiset
	if allow.IsEmpty() {
		slot := ra.spill(right)
		ra.home[left].SetSlot(slot)
		ra.debugSlot("memory phi", right, slot)
		Push(&ra.phis, phiPairT{left: left, right: right, memory: true})
		return
	}
	reg := ra.allocRef(right, allow)
	ra.phiset.Add(reg)
	ra.home[left].SetHint(reg)
	Push(&ra.phis, phiPairT{left: left, right: right, reg: reg})
}

// The loop marker is the seam between the invariant part and the
// body.  The body reads each loop-carried value from wherever its
// left side ended up, while the next iteration's value sits in the
// PHI register.  When the hint held, the two are the same register
// and the seam costs nothing.  When it broke, the left side is
// renamed above the loop into the PHI register and a move at the
// loop top puts it back where the body reads it.

func (ra *regAllocT) loopFixup() {
	for i := range ra.phis {
		phi := &ra.phis[i]
		rs := &ra.home[phi.left]
		switch {
		case phi.memory:
			if rs.HasReg() {
				// The body reads the value from a register, so the
				// shared slot has to be loaded at the loop top.
				Push(&ra.loads, SpillLoadT{Ref: phi.left, Reg: rs.Reg(),
					Slot: rs.Slot(), At: ra.trace.LoopRef})
			}
		case rs.HasReg() && rs.Reg() == phi.reg:
			// The hint held and the seam costs nothing.
		case rs.HasReg() && !ra.phiset.Contains(rs.Reg()):
			ra.rename(phi.left, phi.reg)
		case rs.HasReg():
			// The body reads the value from another PHI's register.
			// A register move at the seam could clobber that PHI, so
			// carry the value through a spill slot instead.
			ra.restore(phi.left)
			Push(&ra.stores, SpillStoreT{Ref: phi.left, Reg: phi.reg,
				Slot: rs.Slot(), At: ra.trace.LoopRef})
		case rs.HasSlot():
			// The body reads the value from its slot, so the back
			// edge stores the PHI register there.
			Push(&ra.stores, SpillStoreT{Ref: phi.left, Reg: phi.reg,
				Slot: rs.Slot(), At: ra.trace.LoopRef})
		}
		// With neither register nor slot the value is dead in the body.
	}
}

// Move a value's above-the-loop home into the PHI register, evicting
// whatever holds that register in the invariant part.  The move back
// down at the loop top is recorded for the emitter.

func (ra *regAllocT) rename(ref RefT, up RegT) {
	rs := &ra.home[ref]
	down := rs.Reg()
	if !ra.freeset.Contains(up) {
		ra.restore(ra.cost[up].Ref())
	}
	ra.freeset.Remove(up)
	ra.cost[up] = ra.cost[down]
	rs.SetReg(up)
	ra.free(down)
	ra.modified(down)
	Push(&ra.renames, RenameT{Ref: ref, From: up, To: down})
	ra.debug("rename", ref, up)
}

// With the whole trace scanned, any register still held must hold a
// constant, which the entry code materializes.

func (ra *regAllocT) allocHead() {
	for work := ra.target.Allocatable() &^ ra.freeset; !work.IsEmpty(); {
		reg := work.PickBot()
		work.Remove(reg)
		ref := ra.cost[reg].Ref()
		if !ra.trace.IsConst(ref) {
			panic(fmt.Sprintf("%s is live into the head of trace %s",
				insName(ra.trace, ref), ra.trace.Name))
		}
		Push(&ra.loads, SpillLoadT{Ref: ref, Reg: reg, At: ra.trace.FirstIns,
			Remat: true, Entry: true})
		ra.modified(reg)
	}
}

//----------------------------------------------------------------

func (ra *regAllocT) debug(event string, ref RefT, reg RegT) {
	if ra.log != nil {
		ra.log.WithFields(logrus.Fields{
			"ins": insName(ra.trace, ref),
			"reg": ra.target.RegName(reg),
		}).Debug(event)
	}
}

func (ra *regAllocT) debugSlot(event string, ref RefT, slot SlotT) {
	if ra.log != nil {
		ra.log.WithFields(logrus.Fields{
			"ins":  insName(ra.trace, ref),
			"slot": slot,
		}).Debug(event)
	}
}
