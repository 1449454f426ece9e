package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/siteselect/internal/region"
	"github.com/sells-group/siteselect/internal/scorer"
	"github.com/sells-group/siteselect/internal/selector"
)

func scoredRegion(id string, composite float64, values map[string]float64) scorer.ScoredRegion {
	poly := geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{{
		{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0},
	}})
	return scorer.ScoredRegion{
		Region: region.Region{
			GEOID:    id,
			Geometry: poly,
			Values:   values,
			Labels:   map[string]string{"county": "Worcester"},
		},
		GEOID:               id,
		DemandScore:         50,
		InfrastructureScore: 25.5,
		CompositeScore:      composite,
		Feasible:            true,
		ChargingType:        "other",
		UrbanRuralContext:   "rural",
		RuralFlag:           1,
	}
}

func fixtures() ([]scorer.ScoredRegion, []selector.Site) {
	a := scoredRegion("25027000100", 80, map[string]float64{"total_pop": 4200, "Rural_Flag": 1, "score_x": math.NaN()})
	b := scoredRegion("25027000200", 60, map[string]float64{"total_pop": 1000})
	sites := []selector.Site{{Rank: 1, ScoredRegion: a, Centroid: geom.Coord{0.5, 0.5}}}
	return []scorer.ScoredRegion{a, b}, sites
}

func TestRecordCells(t *testing.T) {
	regions, sites := fixtures()
	recs := RegionRecords(regions, sites)
	require.Len(t, recs, 2)

	cells := recs[0].Cells()
	require.Len(t, cells, len(Columns))
	assert.Equal(t, "1", cells[0])
	assert.Equal(t, "25027000100", cells[1])
	assert.Equal(t, "other", cells[2])
	assert.Equal(t, "80", cells[3])
	assert.Equal(t, "25.5", cells[5])
	assert.Equal(t, "4200", cells[8])
	// rural_flag matched case-insensitively.
	assert.Equal(t, "1", cells[8+6])
	assert.Equal(t, "", cells[len(cells)-1])

	assert.Equal(t, "", recs[1].Cells()[0])
}

func TestWriteCSV(t *testing.T) {
	_, sites := fixtures()
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, SiteRecords(sites)))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, Columns, rows[0])
	assert.Equal(t, "rank", rows[0][0])
	assert.Equal(t, "%_long_distance_trips", rows[0][13])
	assert.Equal(t, "25027000100", rows[1][1])
}

func TestWriteGeoJSON(t *testing.T) {
	regions, sites := fixtures()
	var buf bytes.Buffer
	require.NoError(t, WriteGeoJSON(&buf, RegionRecords(regions, sites)))

	var doc struct {
		Type     string `json:"type"`
		Features []struct {
			ID         string         `json:"id"`
			Geometry   map[string]any `json:"geometry"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "FeatureCollection", doc.Type)
	require.Len(t, doc.Features, 2)

	first := doc.Features[0]
	assert.Equal(t, "25027000100", first.ID)
	assert.Equal(t, "Polygon", first.Geometry["type"])
	assert.Equal(t, "25027000100", first.Properties["geoid"])
	assert.Equal(t, 80.0, first.Properties["composite_score"])
	assert.Equal(t, true, first.Properties["feasible"])
	assert.Equal(t, 1.0, first.Properties["rank"])
	assert.Equal(t, 4200.0, first.Properties["total_pop"])
	assert.Equal(t, "Worcester", first.Properties["county"])
	assert.Contains(t, first.Properties, "score_x")
	assert.Nil(t, first.Properties["score_x"])

	assert.NotContains(t, doc.Features[1].Properties, "rank")
}

func TestSaveXLSX(t *testing.T) {
	regions, sites := fixtures()
	path := filepath.Join(t.TempDir(), "sites.xlsx")
	require.NoError(t, SaveXLSX(path, RegionRecords(regions, sites), SiteRecords(sites)))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Contains(t, f.Sheet, SheetScored)
	require.Contains(t, f.Sheet, SheetSelected)

	scored := f.Sheet[SheetScored]
	require.Len(t, scored.Rows, 3)
	assert.Equal(t, "rank", scored.Rows[0].Cells[0].String())
	assert.Equal(t, "25027000200", scored.Rows[2].Cells[1].String())

	selected := f.Sheet[SheetSelected]
	require.Len(t, selected.Rows, 2)
	v, err := selected.Rows[1].Cells[3].Float()
	require.NoError(t, err)
	assert.InDelta(t, 80.0, v, 1e-9)
}

func TestSaveCSV_BadPath(t *testing.T) {
	err := SaveCSV(filepath.Join(t.TempDir(), "missing", "out.csv"), nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "export: create")
}
