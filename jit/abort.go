// Copyright 2025 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// Recoverable per-trace failures.  Running out of a resource while
// recording or allocating kills the current trace but nothing else;
// the interpreter just keeps going without it.  These unwind as
// panics carrying a traceAbortT so that deeply nested recording code
// does not have to thread error returns, and are turned back into
// ordinary errors at the package boundary.  Any other panic is a bug
// and is left alone.

package jit

import (
	"github.com/pkg/errors"
)

var (
	ErrTraceTooLong  = errors.New("trace too long")
	ErrTooManyConsts = errors.New("too many constants")
	ErrSpillOverflow = errors.New("too many spill slots")
	ErrExitOverflow  = errors.New("too many exit stubs")
	ErrGuardFold     = errors.New("guard would always fail")
	ErrMCodeAlloc    = errors.New("failed to allocate machine code memory")
	ErrMCodeFull     = errors.New("machine code area is full")
	ErrNYI           = errors.New("not yet implemented")
)

type traceAbortT struct {
	err error
}

func AbortTrace(err error) {
	panic(traceAbortT{err})
}

func AbortTracef(err error, format string, args ...any) {
	panic(traceAbortT{errors.Wrapf(err, format, args...)})
}

// RecoverTraceAbort converts a trace abort into the error it carries.
// Use as 'defer RecoverTraceAbort(&err)' in any function that starts
// work on a trace.

func RecoverTraceAbort(errp *error) {
	if r := recover(); r != nil {
		abort, isAbort := r.(traceAbortT)
		if !isAbort {
			panic(r)
		}
		*errp = abort.err
	}
}
