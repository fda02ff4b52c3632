// Copyright 2025 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

package app

func sum_grid(n int) int {
	total := 0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			total += i * j
		}
	}
	return total
}
