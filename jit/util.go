// Copyright 2025 Richard Kelsey. All rights reserved.
// See file LICENSE for notices and license.

// Generic utilities.

package jit

func Push[T any](stackp *[]T, value T) {
	*stackp = append(*stackp, value)
}

func PushSlice[T any](stackp *[]T, values []T) {
	*stackp = append(*stackp, values...)
}

func Filter[T any](values []T, pred func(T) bool) []T {
	result := []T{}
	for _, value := range values {
		if pred(value) {
			Push(&result, value)
		}
	}
	return result
}

func Reverse[T any](values []T) {
	for i, j := 0, len(values)-1; i < j; i, j = i+1, j-1 {
		values[i], values[j] = values[j], values[i]
	}
}
