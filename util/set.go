// Copyright 2025 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// Sets as maps to the empty struct.  A set is just an aliased map, so
// 'for member := range set' and len(set) work as usual.

package util

type SetT[E comparable] map[E]struct{}

func NewSet[E comparable](members ...E) SetT[E] {
	set := SetT[E]{}
	set.Add(members...)
	return set
}

func (set SetT[E]) Add(members ...E) {
	for _, member := range members {
		set[member] = struct{}{}
	}
}

func (set SetT[E]) Remove(member E) {
	delete(set, member)
}

func (set SetT[E]) Contains(member E) bool {
	_, found := set[member]
	return found
}

// Members returns the members in map order, which is to say no
// particular order.

func (set SetT[E]) Members() []E {
	result := make([]E, 0, len(set))
	for member := range set {
		result = append(result, member)
	}
	return result
}
