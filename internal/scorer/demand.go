package scorer

import (
	"go.uber.org/zap"

	"github.com/sells-group/siteselect/internal/feature"
	"github.com/sells-group/siteselect/internal/region"
	"github.com/sells-group/siteselect/internal/weights"
)

// demandGroup describes one demand component: its source columns, the
// demand sub-weight keys that split it, and fallbacks.
type demandGroup struct {
	name            string
	columns         []string
	keys            []string
	defaults        []float64
	componentWeight float64
	mode            Mode
}

var demandGroups = []demandGroup{
	{
		name:            ComponentPurpose,
		columns:         []string{"purpose_1_trips", "purpose_2_trips", "purpose_3_trips"},
		keys:            []string{"home_end_weight", "workplace_end_weight", "other_end_weight"},
		defaults:        []float64{0.4, 0.4, 0.2},
		componentWeight: 0.35,
		mode:            ModeDensity,
	},
	{
		name:            ComponentDayOfWeek,
		columns:         []string{"dow_1_trips", "dow_2_3_trips"},
		keys:            []string{"weekday_weight", "weekend_weight"},
		defaults:        []float64{0.7, 0.3},
		componentWeight: 0.25,
		mode:            ModeDensity,
	},
	{
		name:            ComponentEquity,
		columns:         []string{"equity_1_trips", "equity_0_trips"},
		keys:            []string{"equity_community_weight", "non_equity_community_weight"},
		defaults:        []float64{0.5, 0.5},
		componentWeight: 0.20,
		mode:            ModeDensity,
	},
}

// Temporal score column pairs, in order of preference.
var temporalPairs = [][2]string{
	{"passenger_temporal_stability_score", "passenger_peak_demand_score"},
	{"truck_temporal_stability_score", "truck_peak_demand_score"},
}

var temporalGroup = demandGroup{
	name:            ComponentTemporal,
	keys:            []string{"temporal_stability_weight", "temporal_peak_weight"},
	defaults:        []float64{0.6, 0.4},
	componentWeight: 0.20,
	mode:            ModeRaw,
}

func resolveDemand(t *region.Table, cfg Config) []Signal {
	components := weights.NormalizeDict(cfg.DemandComponentWeights)
	var out []Signal
	for _, g := range demandGroups {
		if !allPresent(t, g.columns...) {
			out = append(out, inactive(CategoryDemand, g.name, "missing columns"))
			continue
		}
		out = append(out, demandSignal(g, g.columns, cfg.DemandWeights, components))
	}

	var pair []string
	for _, p := range temporalPairs {
		if allPresent(t, p[0], p[1]) {
			pair = []string{p[0], p[1]}
			break
		}
	}
	if pair == nil {
		out = append(out, inactive(CategoryDemand, ComponentTemporal, "missing columns"))
	} else {
		out = append(out, demandSignal(temporalGroup, pair, cfg.DemandWeights, components))
	}
	return out
}

func demandSignal(g demandGroup, columns []string, sub, components weights.Set) Signal {
	if weights.IsGroupDisabled(sub, g.keys) {
		return inactive(CategoryDemand, g.name, "weights set to 0")
	}
	split := weights.NormalizeGroup(sub, g.keys, g.defaults)
	inputs := make([]Input, len(columns))
	for i, c := range columns {
		inputs[i] = Input{Column: c, Weight: split[i]}
	}
	w, ok := components[g.name]
	if !ok || !feature.Finite(w) {
		w = g.componentWeight
	}
	return Signal{
		Category: CategoryDemand,
		Name:     g.name,
		Mode:     g.mode,
		Inputs:   inputs,
		Weight:   w,
		Active:   true,
	}
}

// scoreDemand combines the active demand components, renormalizing their
// weights over the components present.
func scoreDemand(t *region.Table, p Plan) []float64 {
	active := p.Active(CategoryDemand)
	if len(active) == 0 {
		zap.L().Warn("scorer: no demand data available, using zeros")
		return feature.Zeros(t.Len())
	}

	area := areaColumn(t, p)
	parts := make([]scored, 0, len(active))
	var total float64
	for _, s := range active {
		parts = append(parts, scored{signal: s, values: signalScore(t, s, area)})
		total += s.Weight
	}
	if total > 0 {
		for _, s := range active {
			zap.L().Debug("scorer: demand component",
				zap.String("component", s.Name),
				zap.Float64("share", s.Weight/total),
			)
		}
	}
	return combine(t.Len(), parts)
}
