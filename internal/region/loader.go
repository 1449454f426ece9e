package region

import (
	"encoding/json"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sells-group/siteselect/internal/feature"
)

// Property keys accepted for the region identifier and display name, in
// order of preference. Matching is case-insensitive.
var (
	geoidKeys = []string{"GEOID", "GEOID20", "GEOID10", "geoid"}
	nameKeys  = []string{"NAME", "NAMELSAD", "name"}
)

// LoadGeoJSON reads a GeoJSON FeatureCollection of tracts from path.
func LoadGeoJSON(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "region: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	t, err := DecodeGeoJSON(f)
	if err != nil {
		return nil, eris.Wrapf(err, "region: load %s", path)
	}
	return t, nil
}

// DecodeGeoJSON decodes a FeatureCollection into a Table. Every feature must
// carry an identifier and a geometry; any other property is optional.
func DecodeGeoJSON(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "region: read geojson")
	}

	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrap(err, "region: decode geojson")
	}

	regions := make([]Region, 0, len(fc.Features))
	seen := make(map[string]int, len(fc.Features))
	for _, f := range fc.Features {
		r := fromFeature(f)
		if prev, dup := seen[r.GEOID]; dup && r.GEOID != "" {
			zap.L().Warn("region: duplicate geoid",
				zap.String("geoid", r.GEOID),
				zap.Int("first", prev),
				zap.Int("again", len(regions)),
			)
		}
		seen[r.GEOID] = len(regions)
		regions = append(regions, r)
	}

	t, err := NewTable(regions)
	if err != nil {
		return nil, err
	}

	zap.L().Info("region: loaded tracts",
		zap.Int("tracts", t.Len()),
		zap.Int("columns", len(t.Columns())),
	)
	return t, nil
}

func fromFeature(f *geojson.Feature) Region {
	r := Region{
		Geometry: f.Geometry,
		Values:   make(map[string]float64, len(f.Properties)),
		Labels:   make(map[string]string),
	}

	for k, v := range f.Properties {
		if s, ok := v.(string); ok {
			r.Labels[k] = s
		}
		r.Values[k] = feature.Coerce(v)
	}

	r.GEOID = lookupString(f.Properties, geoidKeys)
	if r.GEOID == "" {
		r.GEOID = strings.TrimSpace(f.ID)
	}
	r.Name = lookupString(f.Properties, nameKeys)
	return r
}

// lookupString returns the first non-empty property among keys, matching
// case-insensitively and formatting numeric identifiers without exponent.
func lookupString(props map[string]any, keys []string) string {
	for _, want := range keys {
		for k, v := range props {
			if !strings.EqualFold(k, want) || v == nil {
				continue
			}
			var s string
			switch x := v.(type) {
			case string:
				s = x
			case float64:
				s = strconv.FormatFloat(x, 'f', -1, 64)
			default:
				continue
			}
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}
