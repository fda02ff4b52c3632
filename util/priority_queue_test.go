// Copyright 2025 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

package util

import (
	"sort"
	"testing"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
	"pgregory.net/rapid"
)

func TestPriorityQueue(t *testing.T) {
	queue := MakePriorityQueue(func(x int, y int) bool { return x < y })
	assert.Check(t, queue.Empty())

	for _, n := range []int{3, 1, 4, 1, 5, 9, 2, 6} {
		queue.Enqueue(n)
	}
	assert.Check(t, is.Equal(queue.Len(), 8))

	got := []int{}
	for !queue.Empty() {
		got = append(got, queue.Dequeue())
	}
	assert.Check(t, is.DeepEqual(got, []int{9, 6, 5, 4, 3, 2, 1, 1}))
}

// Dequeue always hands back the highest element remaining.

func TestPriorityQueueOrder(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		values := rapid.SliceOf(rapid.IntRange(-1000, 1000)).Draw(rt, "values")
		queue := MakePriorityQueue(func(x int, y int) bool { return x < y })
		for _, v := range values {
			queue.Enqueue(v)
		}
		got := make([]int, 0, len(values))
		for !queue.Empty() {
			got = append(got, queue.Dequeue())
		}
		want := append([]int{}, values...)
		sort.Sort(sort.Reverse(sort.IntSlice(want)))
		if len(got) != len(want) {
			rt.Fatalf("dequeued %d of %d values", len(got), len(want))
		}
		for i := range want {
			if got[i] != want[i] {
				rt.Fatalf("position %d: got %d, want %d", i, got[i], want[i])
			}
		}
	})
}
