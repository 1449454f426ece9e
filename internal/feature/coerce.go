// Package feature turns raw region attributes into comparable 0-100 scores.
//
// All numeric input flows through Coerce and Sanitize so that scorers never
// see NaN, Inf or non-numeric cells.
package feature

import (
	"math"
	"strings"

	"github.com/spf13/cast"
)

// Coerce converts an arbitrary attribute value to a float64. Booleans map to
// 0/1, numeric strings are parsed and everything else (nil, empty or
// non-numeric strings, composite values) yields NaN.
func Coerce(v any) float64 {
	switch x := v.(type) {
	case nil:
		return math.NaN()
	case string:
		if strings.TrimSpace(x) == "" {
			return math.NaN()
		}
		f, err := cast.ToFloat64E(strings.TrimSpace(x))
		if err != nil {
			return math.NaN()
		}
		return f
	case []any, map[string]any:
		return math.NaN()
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return math.NaN()
	}
	return f
}

// Finite reports whether v is neither NaN nor infinite.
func Finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Sanitize returns a copy of values with NaN and Inf replaced by 0.
func Sanitize(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		if Finite(v) {
			out[i] = v
		}
	}
	return out
}

// Clip returns a copy of values bounded to [lo, hi].
func Clip(values []float64, lo, hi float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = math.Min(math.Max(v, lo), hi)
	}
	return out
}

// Zeros returns a zero-filled score column of length n.
func Zeros(n int) []float64 {
	return make([]float64, n)
}
