// Copyright 2025 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

package app

func drop_threes(n int) int {
	count := 0
	for i := 0; i < n; i++ {
		if i%3 == 0 {
			continue
		}
		count++
	}
	return count
}
