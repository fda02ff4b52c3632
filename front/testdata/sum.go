// Copyright 2025 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

package app

func sum_to(n int) int {
	total := 0
	for i := 0; i < n; i++ {
		total += i
	}
	return total
}
