package store

import "strings"

// siteColumns are the run_sites columns after run_id, in insert order.
var siteColumns = []string{
	"rank", "geoid", "name", "composite_score", "demand_score", "infrastructure_score",
	"accessibility_score", "equity_feasibility_score", "charging_type", "urban_rural_context",
	"lon", "lat",
}

var siteColumnList = strings.Join(siteColumns, ", ")

func siteValues(s SiteRecord) []any {
	return []any{
		s.Rank, s.GEOID, s.Name, s.CompositeScore, s.DemandScore, s.InfrastructureScore,
		s.AccessibilityScore, s.EquityScore, s.ChargingType, s.UrbanRuralContext, s.Lon, s.Lat,
	}
}

func scanSite(row scannable) (SiteRecord, error) {
	var s SiteRecord
	err := row.Scan(&s.Rank, &s.GEOID, &s.Name, &s.CompositeScore, &s.DemandScore, &s.InfrastructureScore,
		&s.AccessibilityScore, &s.EquityScore, &s.ChargingType, &s.UrbanRuralContext, &s.Lon, &s.Lat)
	return s, err
}
