package scorer

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/sells-group/siteselect/internal/feature"
	"github.com/sells-group/siteselect/internal/region"
)

// gapQuantile sets the dynamic cap of the charger-gap distance.
const gapQuantile = 0.90

// Grid sub-signal caps.
const (
	substationCap  = 5.0
	headroomCapMVA = 50.0
)

// signalScore turns the inputs of one signal into a 0-100 score column.
func signalScore(t *region.Table, s Signal, area []float64) []float64 {
	out := feature.Zeros(t.Len())
	switch s.Mode {
	case ModeDensity, ModeMinMax, ModeRaw:
		for _, in := range s.Inputs {
			raw, ok := t.Column(in.Column)
			if !ok {
				continue
			}
			var score []float64
			switch s.Mode {
			case ModeDensity:
				score = feature.NormalizeDensity(raw, area, true)
			case ModeMinMax:
				score = feature.Normalize(raw)
			default:
				score = feature.Sanitize(raw)
			}
			feature.Weighted(out, score, in.Weight)
		}
	case ModeGap:
		if len(s.Inputs) > 0 {
			if raw, ok := t.Column(s.Inputs[0].Column); ok {
				out = gapScore(raw)
			}
		}
	case ModeShareSum:
		for _, in := range s.Inputs {
			if raw, ok := t.Column(in.Column); ok {
				floats.Add(out, feature.Sanitize(raw))
			}
		}
		out = feature.Normalize(feature.Clip(out, 0, 100))
	case ModeGrid:
		out = gridScore(t, s.Inputs)
	}
	return out
}

// gapScore rewards distance from the nearest charger, capped at the 90th
// percentile of observed distances.
func gapScore(dist []float64) []float64 {
	limit := feature.Percentile(dist, gapQuantile)
	if !feature.Finite(limit) || limit <= 0 {
		limit = 1
	}
	out := feature.Sanitize(dist)
	for i, d := range out {
		out[i] = 100 * math.Min(math.Max(d, 0), limit) / limit
	}
	return out
}

// gridScore combines in-tract substations, utility capacity, EV readiness
// and feeder headroom using the fixed in-group weights of inputs.
func gridScore(t *region.Table, inputs []Input) []float64 {
	out := feature.Zeros(t.Len())
	for _, in := range inputs {
		raw, ok := t.Column(in.Column)
		if !ok {
			continue
		}
		v := feature.Sanitize(raw)
		switch in.Column {
		case "quantity_substations":
			v = feature.Clip(v, 0, substationCap)
			floats.Scale(100/substationCap, v)
		case "median_feeder_headroom_mva":
			if len(v) == 0 || floats.Max(v) <= 0 {
				continue
			}
			v = feature.Clip(v, 0, headroomCapMVA)
			floats.Scale(100/headroomCapMVA, v)
		}
		feature.Weighted(out, v, in.Weight)
	}
	return feature.Clip(out, 0, 100)
}

// scored pairs a signal with its computed column.
type scored struct {
	signal Signal
	values []float64
}

// combine adds the scored signals weighted by their share of the total
// active weight, subtracts penalties, and clips to [0, 100]. A zero total
// yields zeros.
func combine(n int, parts []scored) []float64 {
	var total float64
	for _, p := range parts {
		total += p.signal.Weight
	}
	out := feature.Zeros(n)
	if total <= 0 {
		return out
	}
	for _, p := range parts {
		w := p.signal.Weight / total
		if p.signal.Penalty {
			w = -w
		}
		feature.Weighted(out, p.values, w)
	}
	return feature.Clip(out, 0, 100)
}

// areaColumn returns the area column referenced by the plan, or nil.
func areaColumn(t *region.Table, p Plan) []float64 {
	if p.Area == "" {
		return nil
	}
	area, _ := t.Column(p.Area)
	return area
}
