// Copyright 2025 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// Executable memory for traces and exit stubs.  Memory is mapped a
// chunk at a time and handed out in order; nothing is ever returned
// except by closing the whole area.  A trace that gets thrown away
// leaves a hole, which costs less than tracking free space would.

package jit

import (
	"fmt"
	"unsafe"

	"github.com/pkg/errors"
)

// Reservations are rounded up so stub and trace addresses stay word
// aligned on every target.

const mcodeAlign = 8

type MCodeAreaT struct {
	chunkSize int
	maxBytes  int
	allocated int      // bytes mapped so far, across all chunks
	chunks    [][]byte // every mapping made, for Close
	free      []byte   // unreserved tail of the newest chunk
	freeAddr  uintptr  // address of free[0]
}

func MakeMCodeArea(params *ParamsT) *MCodeAreaT {
	return &MCodeAreaT{
		chunkSize: params.SizeMCode,
		maxBytes:  params.MaxMCode,
	}
}

// Reserve returns n bytes of writable, executable memory and the
// address of the first byte.

func (area *MCodeAreaT) Reserve(n int) ([]byte, uintptr, error) {
	if n <= 0 {
		panic(fmt.Sprintf("reserving %d bytes of machine code", n))
	}
	n = (n + mcodeAlign - 1) &^ (mcodeAlign - 1)
	if len(area.free) < n {
		size := area.chunkSize
		if size < n {
			size = n
		}
		if area.maxBytes < area.allocated+size {
			return nil, 0, errors.Wrapf(ErrMCodeFull,
				"%d bytes mapped of at most %d", area.allocated, area.maxBytes)
		}
		chunk, err := mapExec(size)
		if err != nil {
			return nil, 0, errors.Wrapf(ErrMCodeAlloc, "mapping %d bytes: %v", size, err)
		}
		area.allocated += size
		Push(&area.chunks, chunk)
		area.free = chunk
		area.freeAddr = uintptr(unsafe.Pointer(&chunk[0]))
	}
	code := area.free[:n:n]
	addr := area.freeAddr
	area.free = area.free[n:]
	area.freeAddr += uintptr(n)
	return code, addr, nil
}

func (area *MCodeAreaT) Close() error {
	var failed error
	for _, chunk := range area.chunks {
		if err := unmapExec(chunk); err != nil && failed == nil {
			failed = err
		}
	}
	area.chunks = nil
	area.free = nil
	area.allocated = 0
	return failed
}
