package scorer

import (
	"github.com/sells-group/siteselect/internal/feature"
	"github.com/sells-group/siteselect/internal/region"
	"github.com/sells-group/siteselect/internal/weights"
)

// CorridorScoreColumn is the prepared accessibility score used in secondary
// corridor mode.
const CorridorScoreColumn = "secondary_corridor_only_score"

// Column aliases for co-location counts. Radius-bounded counts are preferred
// and used as-is; in-tract counts are density-normalized.
var (
	groceryWithinColumns = []string{"grocery_stores_within_5mi", "grocery_within_5mi", "grocery stores within_5mi", "grocery_stores within_5mi"}
	groceryInColumns     = []string{"grocery_stores_in_tract", "grocery stores in tract", "grocery_in_tract"}
	gasWithinColumns     = []string{"gas_stations_within_5mi", "gas_station_within_5mi", "gas stations within_5mi", "gas_stations within_5mi"}
	gasInColumns         = []string{"gas_stations_in_tract", "gas stations in tract", "gas_station_in_tract"}
)

// resolveAccessibility returns the accessibility signals, whether the
// category is disabled, and whether corridor mode is in effect.
func resolveAccessibility(t *region.Table, cfg Config) ([]Signal, bool, bool) {
	if cfg.SecondaryCorridorMode {
		if !t.Has(CorridorScoreColumn) {
			return []Signal{inactive(CategoryAccessibility, "secondary_corridor", "missing column "+CorridorScoreColumn)}, false, true
		}
		return []Signal{{
			Category: CategoryAccessibility,
			Name:     "secondary_corridor",
			Mode:     ModeRaw,
			Inputs:   []Input{{Column: CorridorScoreColumn, Weight: 1}},
			Weight:   1,
			Active:   true,
		}}, false, true
	}

	set := cfg.AccessibilityWeights
	if set == nil {
		set = defaultAccessibilityWeights()
	}
	if weights.Sum(set) == 0 {
		return nil, true, false
	}
	w := weights.NormalizeDict(set)

	var out []Signal
	if t.Has("D3AAO") {
		out = append(out, Signal{
			Category: CategoryAccessibility,
			Name:     "network",
			Mode:     ModeMinMax,
			Inputs:   []Input{{Column: "D3AAO", Weight: 1}},
			Weight:   w["network_weight"],
			Active:   true,
		})
	} else {
		out = append(out, inactive(CategoryAccessibility, "network", "missing column D3AAO"))
	}
	out = append(out, colocation(t, "grocery", w["grocery_weight"], groceryWithinColumns, groceryInColumns))
	out = append(out, colocation(t, "gas_station", w["gas_station_weight"], gasWithinColumns, gasInColumns))
	return out, false, false
}

func colocation(t *region.Table, name string, weight float64, within, inTract []string) Signal {
	s := Signal{Category: CategoryAccessibility, Name: name, Weight: weight, Active: true}
	if col, ok := t.FirstPresent(within...); ok {
		s.Mode = ModeMinMax
		s.Inputs = []Input{{Column: col, Weight: 1}}
		return s
	}
	if col, ok := t.FirstPresent(inTract...); ok {
		s.Mode = ModeDensity
		s.Inputs = []Input{{Column: col, Weight: 1}}
		return s
	}
	return inactive(CategoryAccessibility, name, "missing columns")
}

func scoreAccessibility(t *region.Table, p Plan) []float64 {
	if p.IsDisabled(CategoryAccessibility) {
		return feature.Zeros(t.Len())
	}
	return scoreCategory(t, p, CategoryAccessibility)
}
