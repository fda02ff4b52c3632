// Copyright 2025 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

//go:build !unix

package jit

// Plain heap memory on platforms without the mmap wrapper: fine for
// assembling and inspecting code, not for running it.

func mapExec(size int) ([]byte, error) {
	return make([]byte, size), nil
}

func unmapExec(chunk []byte) error {
	return nil
}
