// Package bounds provides the clamping helpers shared by every bounded quantity in the simulation.
package bounds

import (
	"math"

	"golang.org/x/exp/constraints"
)

// Clamp limits v to [lo, hi].
func Clamp[T constraints.Float](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Unit clamps v to [0, 1]. NaN maps to 0.
func Unit[T constraints.Float](v T) T {
	if v != v {
		return 0
	}
	return Clamp(v, 0, 1)
}

// Signed clamps v to [-1, 1]. NaN maps to 0.
func Signed[T constraints.Float](v T) T {
	if v != v {
		return 0
	}
	return Clamp(v, -1, 1)
}

// InUnit reports whether v is a finite value within [0, 1].
func InUnit(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}

// InSigned reports whether v is a finite value within [-1, 1].
func InSigned(v float64) bool {
	return !math.IsNaN(v) && v >= -1 && v <= 1
}

// NonNegative floors v at 0.
func NonNegative[T constraints.Float](v T) T {
	if v < 0 || v != v {
		return 0
	}
	return v
}
