// Copyright 2025 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

package app

func geometric(x float64) float64 {
	total := 0.0
	term := 1.0
	for i := 0; i < 30; i++ {
		total += term
		term *= x
	}
	return total
}
