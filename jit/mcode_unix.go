// Copyright 2025 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

//go:build unix

package jit

import "golang.org/x/sys/unix"

// The pages are writable and executable at the same time; nothing
// remaps them between emitting code and running it.

func mapExec(size int) ([]byte, error) {
	return unix.Mmap(-1, 0, size,
		unix.PROT_READ|unix.PROT_WRITE|unix.PROT_EXEC,
		unix.MAP_PRIVATE|unix.MAP_ANON)
}

func unmapExec(chunk []byte) error {
	return unix.Munmap(chunk)
}
