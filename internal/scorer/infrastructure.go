package scorer

import (
	"github.com/sells-group/siteselect/internal/feature"
	"github.com/sells-group/siteselect/internal/geo"
	"github.com/sells-group/siteselect/internal/region"
	"github.com/sells-group/siteselect/internal/weights"
)

// Grid-capacity inputs with their fixed in-group weights.
var gridInputs = []Input{
	{Column: "quantity_substations", Weight: 0.30},
	{Column: "ng_grid_capacity_score", Weight: 0.35},
	{Column: "ev_infrastructure_readiness", Weight: 0.20},
	{Column: "median_feeder_headroom_mva", Weight: 0.15},
}

// resolveInfrastructure returns the infrastructure signals and whether the
// category is disabled because every weight is zero.
func resolveInfrastructure(t *region.Table, cfg Config) ([]Signal, bool) {
	merged := weights.Merge(defaultInfrastructureWeights(), cfg.InfrastructureWeights)
	if weights.Sum(merged) == 0 {
		return nil, true
	}
	w := weights.NormalizeDict(merged)

	var out []Signal
	add := func(name, column string, mode Mode, key string) {
		if !t.Has(column) {
			out = append(out, inactive(CategoryInfrastructure, name, "missing column "+column))
			return
		}
		out = append(out, Signal{
			Category: CategoryInfrastructure,
			Name:     name,
			Mode:     mode,
			Inputs:   []Input{{Column: column, Weight: 1}},
			Weight:   w[key],
			Active:   true,
		})
	}
	add("truck_charger_gap", geo.ChargerDistanceColumn, ModeGap, "truck_charger_gap_weight")
	add("park_ride", "park_ride_spaces_within_5mi", ModeMinMax, "park_ride_weight")
	add("government", "government_social_services_within_5mi", ModeMinMax, "government_weight")

	if w["grid_weight"] > 0 {
		var present []Input
		for _, in := range gridInputs {
			if t.Has(in.Column) {
				present = append(present, in)
			}
		}
		if len(present) == 0 {
			out = append(out, inactive(CategoryInfrastructure, "grid", "missing columns"))
		} else {
			out = append(out, Signal{
				Category: CategoryInfrastructure,
				Name:     "grid",
				Mode:     ModeGrid,
				Inputs:   present,
				Weight:   w["grid_weight"],
				Active:   true,
			})
		}
	}
	return out, false
}

func scoreInfrastructure(t *region.Table, p Plan) []float64 {
	if p.IsDisabled(CategoryInfrastructure) {
		return feature.Zeros(t.Len())
	}
	return scoreCategory(t, p, CategoryInfrastructure)
}

// scoreCategory computes and combines every active signal of a category.
func scoreCategory(t *region.Table, p Plan, category string) []float64 {
	area := areaColumn(t, p)
	var parts []scored
	for _, s := range p.Active(category) {
		parts = append(parts, scored{signal: s, values: signalScore(t, s, area)})
	}
	return combine(t.Len(), parts)
}
