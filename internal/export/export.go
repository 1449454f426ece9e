// Package export writes scored regions and selected sites as GeoJSON, CSV
// and XLSX.
package export

import (
	"strconv"

	"github.com/sells-group/siteselect/internal/scorer"
	"github.com/sells-group/siteselect/internal/selector"
)

// Columns is the header shared by the CSV and XLSX exports.
var Columns = append([]string{
	"rank",
	"GEOID",
	"charging_type",
	"composite_score",
	"demand_score",
	"infrastructure_score",
	"accessibility_score",
	"equity_feasibility_score",
}, PassthroughColumns...)

// PassthroughColumns are copied from the input attributes when present.
var PassthroughColumns = []string{
	"total_pop",
	"equity_0_trips",
	"equity_1_trips",
	"dow_1_trips",
	"dow_2_3_trips",
	"%_long_distance_trips",
	"rural_flag",
	"poi_density_per_sq_mi",
	"pct_ej_block_groups",
	"rest_stop_density",
	"median_feeder_headroom_mva",
}

// Record is one exported row. Rank is zero for regions that were not
// selected.
type Record struct {
	Rank int
	scorer.ScoredRegion
}

// SiteRecords converts selected sites to records.
func SiteRecords(sites []selector.Site) []Record {
	out := make([]Record, len(sites))
	for i, s := range sites {
		out[i] = Record{Rank: s.Rank, ScoredRegion: s.ScoredRegion}
	}
	return out
}

// RegionRecords converts scored regions to records, carrying the rank of
// any region that appears in sites.
func RegionRecords(regions []scorer.ScoredRegion, sites []selector.Site) []Record {
	rank := make(map[string]int, len(sites))
	for _, s := range sites {
		rank[s.GEOID] = s.Rank
	}
	out := make([]Record, len(regions))
	for i, r := range regions {
		out[i] = Record{Rank: rank[r.GEOID], ScoredRegion: r}
	}
	return out
}

// Cells returns the record formatted in Columns order. Absent values are
// blank.
func (r Record) Cells() []string {
	cells := make([]string, 0, len(Columns))
	if r.Rank > 0 {
		cells = append(cells, strconv.Itoa(r.Rank))
	} else {
		cells = append(cells, "")
	}
	cells = append(cells,
		r.GEOID,
		r.ChargingType,
		formatFloat(r.CompositeScore),
		formatFloat(r.DemandScore),
		formatFloat(r.InfrastructureScore),
		formatFloat(r.AccessibilityScore),
		formatFloat(r.EquityScore),
	)
	for _, c := range PassthroughColumns {
		if v, ok := r.Region.Attr(c); ok {
			cells = append(cells, formatFloat(v))
		} else {
			cells = append(cells, "")
		}
	}
	return cells
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
