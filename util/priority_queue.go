// Copyright 2025 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// A priority queue on top of container/heap.  Dequeue returns the
// queued element that orders highest under the queue's less function.

package util

import (
	"container/heap"
)

// The wrapper hides the sort and heap interface methods.

type PriorityQueueT[T any] struct {
	queue innerQueueT[T]
}

func MakePriorityQueue[T any](less func(x T, y T) bool) *PriorityQueueT[T] {
	return &PriorityQueueT[T]{innerQueueT[T]{less: less}}
}

func (pq *PriorityQueueT[T]) Len() int {
	return len(pq.queue.queue)
}

func (pq *PriorityQueueT[T]) Empty() bool {
	return len(pq.queue.queue) == 0
}

func (pq *PriorityQueueT[T]) Enqueue(x T) {
	heap.Push(&pq.queue, x)
}

func (pq *PriorityQueueT[T]) Dequeue() T {
	return heap.Pop(&pq.queue).(T)
}

// container/heap pops the minimum, so Less runs the caller's function
// with the arguments swapped.

type innerQueueT[T any] struct {
	queue []T
	less  func(x T, y T) bool
}

func (pq innerQueueT[T]) Len() int { return len(pq.queue) }

func (pq innerQueueT[T]) Less(i, j int) bool {
	return pq.less(pq.queue[j], pq.queue[i])
}

func (pq innerQueueT[T]) Swap(i, j int) {
	pq.queue[i], pq.queue[j] = pq.queue[j], pq.queue[i]
}

func (pq *innerQueueT[T]) Push(x any) {
	pq.queue = append(pq.queue, x.(T))
}

func (pq *innerQueueT[T]) Pop() any {
	queue := pq.queue
	newLength := len(queue) - 1
	item := queue[newLength]
	var defaultValue T
	queue[newLength] = defaultValue // drop the reference
	pq.queue = queue[0:newLength]
	return item
}
