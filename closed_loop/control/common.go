package control

import "math"

// Clamp limits value to [lo, hi], inclusive: max(lo, min(value, hi)).
func Clamp(value, lo, hi float64) float64 {
	return math.Max(lo, math.Min(value, hi))
}

// ClampInt is Clamp for integer drive magnitudes.
func ClampInt(value, lo, hi int) int {
	if value > hi {
		value = hi
	}
	if value < lo {
		value = lo
	}
	return value
}
