// Package geo provides the spatial and descriptive operations applied to
// tracts: charging-type and urban/rural classification, and proximity to the
// existing charger network.
package geo

import (
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/siteselect/internal/feature"
	"github.com/sells-group/siteselect/internal/region"
)

// Charging-type labels.
const (
	ChargingLongDistance = "long_distance"
	ChargingOther        = "other"
)

// Urban/rural context labels.
const (
	ContextUrban   = "urban"
	ContextRural   = "rural"
	ContextMixed   = "mixed"
	ContextUnknown = "unknown"
)

// Long-distance share thresholds for fractional (0-1) and percentage (0-100)
// columns.
const (
	fractionShareThreshold = 0.05
	percentShareThreshold  = 5.0
)

// mixedDiversityThreshold is the land-use diversity above which a tract with
// no context bonus is labelled mixed.
const mixedDiversityThreshold = 50.0

// LongDistanceColumns lists accepted names for the long-distance trip share.
var LongDistanceColumns = []string{
	"%_long_distance_trips",
	"pct_long_distance_trips",
	"percent_long_distance_trips",
	"% long distance trips",
	"%_long_distance_trip_ends",
}

// ShareThreshold picks the long-distance threshold from the column scale: a
// maximum of at most 1 means the share is a fraction.
func ShareThreshold(shares []float64) float64 {
	var hi float64
	for i, v := range shares {
		if i == 0 || v > hi {
			hi = v
		}
	}
	if hi <= 1 {
		return fractionShareThreshold
	}
	return percentShareThreshold
}

// ChargingType labels a single share against threshold.
func ChargingType(share, threshold float64) string {
	if share > threshold {
		return ChargingLongDistance
	}
	return ChargingOther
}

// ClassifyChargingTypes labels every tract by its long-distance trip share.
// Without a share column every tract is "other".
func ClassifyChargingTypes(t *region.Table) []string {
	labels := make([]string, t.Len())
	col, ok := t.FirstPresent(LongDistanceColumns...)
	if !ok {
		zap.L().Warn("geo: long-distance share column not found, defaulting to other")
		for i := range labels {
			labels[i] = ChargingOther
		}
		return labels
	}

	raw, _ := t.Column(col)
	shares := feature.Sanitize(raw)
	threshold := ShareThreshold(shares)
	var long int
	for i, s := range shares {
		labels[i] = ChargingType(s, threshold)
		if labels[i] == ChargingLongDistance {
			long++
		}
	}
	zap.L().Info("geo: classified charging types",
		zap.String("column", col),
		zap.Float64("threshold", threshold),
		zap.Int("long_distance", long),
		zap.Int("other", len(labels)-long),
	)
	return labels
}

// ContextLabel derives the urban/rural context from the context bonuses.
// Rules, in precedence order:
//   - mixed: both urban and rural bonus, or any mixed-use bonus
//   - urban: urban bonus only
//   - rural: rural bonus only
//   - mixed: no bonus but land-use diversity above 50
//   - unknown: otherwise
func ContextLabel(urban, rural, mixedUse, diversity float64) string {
	switch {
	case (urban > 0 && rural > 0) || mixedUse > 0:
		return ContextMixed
	case urban > 0 && rural == 0:
		return ContextUrban
	case rural > 0 && urban == 0:
		return ContextRural
	case urban == 0 && rural == 0 && diversity > mixedDiversityThreshold:
		return ContextMixed
	}
	return ContextUnknown
}

// ClassifyContexts labels every tract urban, rural, mixed or unknown. Both
// context bonus columns are required; otherwise every tract is unknown.
func ClassifyContexts(t *region.Table) []string {
	labels := make([]string, t.Len())
	urbanRaw, okU := t.Column("urban_context_bonus")
	ruralRaw, okR := t.Column("rural_context_bonus")
	if !okU || !okR {
		zap.L().Warn("geo: urban/rural bonus columns not found")
		for i := range labels {
			labels[i] = ContextUnknown
		}
		return labels
	}

	urban := feature.Sanitize(urbanRaw)
	rural := feature.Sanitize(ruralRaw)
	mixed := optionalColumn(t, "mixed_use_bonus")
	diversity := optionalColumn(t, "landuse_diversity_score")

	counts := make(map[string]int, 4)
	for i := range labels {
		labels[i] = ContextLabel(urban[i], rural[i], mixed[i], diversity[i])
		counts[labels[i]]++
	}
	zap.L().Info("geo: classified urban/rural context",
		zap.Int(ContextUrban, counts[ContextUrban]),
		zap.Int(ContextRural, counts[ContextRural]),
		zap.Int(ContextMixed, counts[ContextMixed]),
		zap.Int(ContextUnknown, counts[ContextUnknown]),
	)
	return labels
}

// RuralFlags resolves a 0/1 rural flag per tract from the first available
// schema: rural_flag, is_rural, rural, then the urban/rural context. The
// context is taken from contexts when given (the labels from
// ClassifyContexts), otherwise from a textual urban_rural_context column.
// The second return value is false when no schema is present.
func RuralFlags(t *region.Table, contexts []string) ([]float64, bool) {
	for _, name := range []string{"rural_flag", "is_rural", "rural"} {
		if !t.Has(name) {
			continue
		}
		raw, _ := t.Column(name)
		flags := make([]float64, len(raw))
		for i, v := range feature.Sanitize(raw) {
			if name == "rural_flag" {
				if v >= 1 {
					flags[i] = 1
				}
				continue
			}
			if v != 0 {
				flags[i] = 1
			}
		}
		return flags, true
	}
	ctx, ok := contexts, contexts != nil
	if !ok {
		ctx, ok = t.Strings("urban_rural_context")
	}
	if ok {
		flags := make([]float64, len(ctx))
		for i, s := range ctx {
			if strings.EqualFold(strings.TrimSpace(s), ContextRural) {
				flags[i] = 1
			}
		}
		return flags, true
	}
	return nil, false
}

func optionalColumn(t *region.Table, name string) []float64 {
	raw, ok := t.Column(name)
	if !ok {
		return feature.Zeros(t.Len())
	}
	return feature.Sanitize(raw)
}
