// Package weights normalizes user-supplied weight groups that may be
// expressed either as fractions (summing to about 1) or as points (summing to
// about 100).
package weights

import (
	"encoding/json"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/sells-group/siteselect/internal/feature"
)

// fractionalCeiling is the largest sum still treated as fractional weights.
const fractionalCeiling = 1.5

// Set maps weight keys to values. NaN marks a null or non-numeric entry.
type Set map[string]float64

// FromMap coerces a loosely typed mapping (decoded YAML or JSON) into a Set.
func FromMap(m map[string]any) Set {
	out := make(Set, len(m))
	for k, v := range m {
		out[k] = feature.Coerce(v)
	}
	return out
}

// MarshalJSON encodes null entries as JSON null.
func (w Set) MarshalJSON() ([]byte, error) {
	out := make(map[string]*float64, len(w))
	for k, v := range w {
		if !feature.Finite(v) {
			out[k] = nil
			continue
		}
		out[k] = &v
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts numbers, numeric strings and nulls.
func (w *Set) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*w = FromMap(raw)
	return nil
}

// Merge returns defaults overlaid with overrides. Neither input is modified.
func Merge(defaults, overrides Set) Set {
	out := make(Set, len(defaults)+len(overrides))
	for k, v := range defaults {
		out[k] = v
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

// Sum adds every non-null value in w.
func Sum(w Set) float64 {
	var s float64
	for _, v := range w {
		if !math.IsNaN(v) {
			s += v
		}
	}
	return s
}

// NormalizeDict scales w so its values sum to 1. Sets whose non-null sum is at
// most 1.5 are treated as already fractional and returned as-is; larger sums
// are treated as points and divided by the sum. Null entries become 0.
func NormalizeDict(w Set) Set {
	out := make(Set, len(w))
	s := Sum(w)
	for k, v := range w {
		switch {
		case math.IsNaN(v):
			out[k] = 0
		case s == 0 || s <= fractionalCeiling:
			out[k] = v
		default:
			out[k] = v / s
		}
	}
	return out
}

// NormalizeGroup extracts keys from w and scales them to sum to 1, in key
// order. Missing, null or non-finite entries take the positional default. A
// zero sum falls back to the defaults, and zero defaults fall back to equal
// weights, so a usable group is always returned.
func NormalizeGroup(w Set, keys []string, defaults []float64) []float64 {
	vals := make([]float64, len(keys))
	for i, k := range keys {
		d := defaultAt(defaults, i)
		v, ok := w[k]
		if !ok || !feature.Finite(v) {
			v = d
		}
		vals[i] = v
	}

	s := floats.Sum(vals)
	if s == 0 {
		for i := range vals {
			vals[i] = defaultAt(defaults, i)
		}
		s = floats.Sum(vals)
		if s == 0 {
			n := max(1, len(keys))
			for i := range vals {
				vals[i] = 1 / float64(n)
			}
			return vals
		}
	}
	for i := range vals {
		vals[i] /= s
	}
	return vals
}

// IsGroupDisabled reports whether the caller explicitly switched a group off:
// every key is present with a finite value and the values sum to exactly 0.
// A group with any key missing is never disabled.
func IsGroupDisabled(w Set, keys []string) bool {
	if len(w) == 0 || len(keys) == 0 {
		return false
	}
	var s float64
	for _, k := range keys {
		v, ok := w[k]
		if !ok || !feature.Finite(v) {
			return false
		}
		s += v
	}
	return s == 0
}

func defaultAt(defaults []float64, i int) float64 {
	if i < len(defaults) && feature.Finite(defaults[i]) {
		return defaults[i]
	}
	return 0
}
