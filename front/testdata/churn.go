// Copyright 2025 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// More loop-carried values than an amd64 integer register file can
// hold, so some of the PHIs have to be carried in spill slots.

package app

func churn(n int) int {
	a, b, c, d, e, f, g, h := 1, 2, 3, 4, 5, 6, 7, 8
	i2, j, k, l, m, o, p, q := 9, 10, 11, 12, 13, 14, 15, 16
	for i := 0; i < n; i++ {
		a += b
		b += c
		c += d
		d += e
		e += f
		f += g
		g += h
		h += i2
		i2 += j
		j += k
		k += l
		l += m
		m += o
		o += p
		p += q
		q += a
	}
	return a
}
