package feature

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// DensityClipQuantile is the upper quantile at which density values are
// clipped before scaling.
const DensityClipQuantile = 0.95

// Normalize min-max scales values to [0, 100]. Constant input (including
// empty input) yields all zeros.
func Normalize(values []float64) []float64 {
	clean := Sanitize(values)
	if len(clean) == 0 {
		return clean
	}
	lo, hi := floats.Min(clean), floats.Max(clean)
	if hi <= lo {
		return Zeros(len(clean))
	}
	span := hi - lo
	out := make([]float64, len(clean))
	for i, v := range clean {
		out[i] = 100 * (v - lo) / span
	}
	return out
}

// NormalizeDensity divides values by area element-wise and min-max scales the
// result. Zero, negative-zero or missing areas produce a density of 0. When
// clipP95 is set the density is clipped at its 95th percentile first. A nil
// area column falls back to Normalize.
func NormalizeDensity(values, area []float64, clipP95 bool) []float64 {
	if area == nil {
		return Normalize(values)
	}
	clean := Sanitize(values)
	density := make([]float64, len(clean))
	for i, v := range clean {
		if i >= len(area) {
			continue
		}
		a := area[i]
		if !Finite(a) || a == 0 {
			continue
		}
		if d := v / a; Finite(d) {
			density[i] = d
		}
	}
	if len(density) == 0 {
		return density
	}
	if floats.Max(density) <= floats.Min(density) {
		return Zeros(len(density))
	}
	if clipP95 {
		p95 := Percentile(density, DensityClipQuantile)
		for i, d := range density {
			if d > p95 {
				density[i] = p95
			}
		}
	}
	return Normalize(density)
}

// Percentile returns the q-th quantile (0 <= q <= 1) of the finite entries of
// values using linear interpolation between closest ranks. It returns NaN when
// no finite value exists.
func Percentile(values []float64, q float64) float64 {
	sorted := make([]float64, 0, len(values))
	for _, v := range values {
		if Finite(v) {
			sorted = append(sorted, v)
		}
	}
	if len(sorted) == 0 {
		return math.NaN()
	}
	sort.Float64s(sorted)
	q = math.Min(math.Max(q, 0), 1)
	pos := q * float64(len(sorted)-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	if lower == upper {
		return sorted[lower]
	}
	frac := pos - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// Weighted adds weight*score into acc element-wise.
func Weighted(acc, score []float64, weight float64) {
	for i := range acc {
		if i < len(score) {
			acc[i] += score[i] * weight
		}
	}
}
