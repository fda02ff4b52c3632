// Copyright 2025 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// Exit stubs are tiny machine-code thunks, one per guard exit, that
// record which exit was taken and jump to the common exit handler.
// They are emitted a group at a time and spaced uniformly within the
// group, so a guard's branch target is computed from the exit number
// rather than stored per guard.

package jit

import (
	"fmt"

	"github.com/pkg/errors"
)

type ExitStubsT struct {
	target  *TargetT
	area    *MCodeAreaT
	handler uintptr   // the common exit handler the stubs jump to
	groups  []uintptr // address of each group's first stub, 0 until emitted
}

func MakeExitStubs(target *TargetT, area *MCodeAreaT, handler uintptr) *ExitStubsT {
	return &ExitStubsT{
		target:  target,
		area:    area,
		handler: handler,
		groups:  make([]uintptr, target.StubGroups),
	}
}

// Addr returns the address a guard with the given exit number branches
// to.  This is a lookup with no side effects; the caller must have
// emitted the group with EnsureGroup first.

func (stubs *ExitStubsT) Addr(exitno int) uintptr {
	target := stubs.target
	if exitno < 0 || target.MaxExits() <= exitno {
		panic(fmt.Sprintf("exit %d of at most %d on %s",
			exitno, target.MaxExits(), target.Name))
	}
	group := exitno / target.StubsPerGroup
	base := stubs.groups[group]
	if base == 0 {
		panic(fmt.Sprintf("exit %d is in group %d, which has no stubs yet",
			exitno, group))
	}
	return base + uintptr(target.StubSpacing*(exitno%target.StubsPerGroup))
}

// EnsureGroup emits the stub group covering the given exit number if
// it has not been emitted already.

func (stubs *ExitStubsT) EnsureGroup(exitno int) error {
	target := stubs.target
	if exitno < 0 {
		panic(fmt.Sprintf("exit %d", exitno))
	}
	group := exitno / target.StubsPerGroup
	if target.StubGroups <= group {
		return errors.Wrapf(ErrExitOverflow, "exit %d needs stub group %d of %d",
			exitno, group, target.StubGroups)
	}
	if stubs.groups[group] != 0 {
		return nil
	}
	code, base, err := stubs.area.Reserve(target.stubGroupBytes)
	if err != nil {
		return err
	}
	stubs.groups[group] = target.emitStubs(code, base, group, target, stubs.handler)
	return nil
}
