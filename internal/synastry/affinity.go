package synastry

import "math"

// Affinity scores the house distance between two bodies. Positive values are
// favourable; the table is periodic in 12.
func Affinity(d int) float64 {
	dm := ((d % 12) + 12) % 12
	switch dm {
	case 0:
		return 1.0
	case 4, 8:
		return 0.9 // trine
	case 3, 9:
		return 0.7 // kendra
	case 6:
		return 0.6 // opposition
	case 2:
		return 0.4
	case 10:
		return 0.5
	case 1:
		return 0.3
	case 5, 11:
		return -0.3
	case 7:
		return -0.6
	}
	return 0
}

func clip(x, lo, hi float64) float64 {
	if math.IsNaN(x) {
		return 0
	}
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// normalize01 maps a raw score in [-1, 1] onto [0, 1].
func normalize01(raw float64) float64 {
	return (clip(raw, -1, 1) + 1) / 2
}

// dampen squeezes a raw score towards zero unless it sits on an asymptote.
func dampen(raw float64) float64 {
	if math.Abs(math.Abs(raw)-1) < 0.001 {
		return raw
	}
	return raw * 0.9
}

func clampPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
