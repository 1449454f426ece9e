package export

import (
	"encoding/json"
	"io"
	"math"
	"os"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// Feature builds a GeoJSON feature for a record. Input attributes are
// passed through; computed properties take precedence on a name clash.
func Feature(r Record) *geojson.Feature {
	props := make(map[string]any, len(r.Region.Values)+12)
	for k, v := range r.Region.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			props[k] = nil
			continue
		}
		props[k] = v
	}
	for k, s := range r.Region.Labels {
		props[k] = s
	}

	props["geoid"] = r.GEOID
	if r.Name != "" {
		props["name"] = r.Name
	}
	props["demand_score"] = r.DemandScore
	props["infrastructure_score"] = r.InfrastructureScore
	props["accessibility_score"] = r.AccessibilityScore
	props["equity_feasibility_score"] = r.EquityScore
	props["composite_score"] = r.CompositeScore
	props["feasible"] = r.Feasible
	props["charging_type"] = r.ChargingType
	props["urban_rural_context"] = r.UrbanRuralContext
	props["rural_flag"] = r.RuralFlag
	if r.Rank > 0 {
		props["rank"] = r.Rank
	}

	return &geojson.Feature{
		ID:         r.GEOID,
		Geometry:   r.Region.Geometry,
		Properties: props,
	}
}

// FeatureCollection builds a collection from records in order.
func FeatureCollection(records []Record) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(records))}
	for _, r := range records {
		fc.Features = append(fc.Features, Feature(r))
	}
	return fc
}

// WriteGeoJSON encodes records as a FeatureCollection to w.
func WriteGeoJSON(w io.Writer, records []Record) error {
	data, err := json.Marshal(FeatureCollection(records))
	if err != nil {
		return eris.Wrap(err, "export: encode geojson")
	}
	if _, err := w.Write(data); err != nil {
		return eris.Wrap(err, "export: write geojson")
	}
	return nil
}

// SaveGeoJSON writes records to a GeoJSON file at path.
func SaveGeoJSON(path string, records []Record) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	if err := WriteGeoJSON(f, records); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	return eris.Wrapf(f.Close(), "export: close %s", path)
}
