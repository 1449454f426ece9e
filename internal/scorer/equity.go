package scorer

import (
	"go.uber.org/zap"

	"github.com/sells-group/siteselect/internal/feature"
	"github.com/sells-group/siteselect/internal/region"
	"github.com/sells-group/siteselect/internal/weights"
)

// Equity signal names.
const (
	signalEJPriority           = "ej_priority"
	signalLanduseSuitability   = "landuse_suitability"
	signalCommercialIndustrial = "commercial_industrial"
	signalProtectedPenalty     = "protected_penalty"
)

var protectedColumns = []string{"landuse_pct_protected_natural", "protected_land_pct", "pct_protected_land"}

// resolveEquity returns the equity signals and whether the category is
// disabled because every weight is zero.
func resolveEquity(t *region.Table, cfg Config) ([]Signal, bool) {
	merged := weights.Merge(defaultEquityWeights(), cfg.EquityWeights)
	if weights.Sum(merged) == 0 {
		return nil, true
	}
	w := weights.NormalizeDict(merged)

	single := func(name, column, key string) Signal {
		if !t.Has(column) {
			return inactive(CategoryEquity, name, "missing column "+column)
		}
		return Signal{
			Category: CategoryEquity,
			Name:     name,
			Mode:     ModeMinMax,
			Inputs:   []Input{{Column: column, Weight: 1}},
			Weight:   w[key],
			Active:   true,
		}
	}

	out := []Signal{
		single(signalEJPriority, "ej_priority_score", "ej_priority_weight"),
		single(signalLanduseSuitability, "truck_suitability_final", "landuse_suit_weight"),
	}

	var shares []Input
	for _, c := range []string{"landuse_pct_commercial", "landuse_pct_industrial"} {
		if t.Has(c) {
			shares = append(shares, Input{Column: c, Weight: 1})
		}
	}
	if len(shares) == 0 {
		out = append(out, inactive(CategoryEquity, signalCommercialIndustrial, "missing columns"))
	} else {
		out = append(out, Signal{
			Category: CategoryEquity,
			Name:     signalCommercialIndustrial,
			Mode:     ModeShareSum,
			Inputs:   shares,
			Weight:   w["commercial_industrial_weight"],
			Active:   true,
		})
	}

	if col, ok := t.FirstPresent(protectedColumns...); ok {
		out = append(out, Signal{
			Category: CategoryEquity,
			Name:     signalProtectedPenalty,
			Mode:     ModeShareSum,
			Inputs:   []Input{{Column: col, Weight: 1}},
			Weight:   w["protected_penalty_weight"],
			Penalty:  true,
			Active:   true,
		})
	} else {
		out = append(out, inactive(CategoryEquity, signalProtectedPenalty, "missing columns"))
	}
	return out, false
}

// scoreEquity combines the equity benefits and the protected-land penalty.
// With legacy gating enabled the EJ-priority term is zeroed for tracts whose
// charging type is gated.
func scoreEquity(t *region.Table, p Plan, cfg Config, chargingTypes []string) []float64 {
	if p.IsDisabled(CategoryEquity) {
		return feature.Zeros(t.Len())
	}

	gated := make(map[string]bool, len(cfg.EJGatedChargingTypes))
	for _, ct := range cfg.EJGatedChargingTypes {
		gated[ct] = true
	}

	area := areaColumn(t, p)
	var parts []scored
	for _, s := range p.Active(CategoryEquity) {
		values := signalScore(t, s, area)
		if s.Name == signalEJPriority && cfg.LegacyEJGating {
			var zeroed int
			for i := range values {
				if i < len(chargingTypes) && gated[chargingTypes[i]] {
					values[i] = 0
					zeroed++
				}
			}
			zap.L().Info("scorer: legacy EJ gating applied", zap.Int("zeroed", zeroed))
		}
		parts = append(parts, scored{signal: s, values: values})
	}
	return combine(t.Len(), parts)
}
