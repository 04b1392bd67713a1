package core

import "golang.org/x/exp/constraints"

// Clamp returns f clamped to the range [low, high]. Grounded on the
// teacher's engine/math/utils.go generic Clamp, reused here instead of
// one hand-rolled version per package.
func Clamp[T constraints.Ordered](f, low, high T) T {
	if f < low {
		return low
	}
	if f > high {
		return high
	}
	return f
}

// Max returns the larger of a and b.
func Max[T constraints.Ordered](a, b T) T {
	if a > b {
		return a
	}
	return b
}
