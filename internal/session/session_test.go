package session

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/siteselect/internal/config"
	"github.com/sells-group/siteselect/internal/geo"
	"github.com/sells-group/siteselect/internal/region"
	"github.com/sells-group/siteselect/internal/scorer"
)

const tracts = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature",
     "geometry": {"type": "Polygon", "coordinates": [[[-71.10, 42.30], [-71.00, 42.30], [-71.00, 42.40], [-71.10, 42.40], [-71.10, 42.30]]]},
     "properties": {"GEOID": "25025000100", "passenger_temporal_stability_score": 90, "passenger_peak_demand_score": 90, "equity_0_trips": 50}},
    {"type": "Feature",
     "geometry": {"type": "Polygon", "coordinates": [[[-71.09, 42.30], [-70.99, 42.30], [-70.99, 42.40], [-71.09, 42.40], [-71.09, 42.30]]]},
     "properties": {"GEOID": "25025000200", "passenger_temporal_stability_score": 80, "passenger_peak_demand_score": 80, "equity_0_trips": 50}},
    {"type": "Feature",
     "geometry": {"type": "Polygon", "coordinates": [[[-72.10, 42.30], [-72.00, 42.30], [-72.00, 42.40], [-72.10, 42.40], [-72.10, 42.30]]]},
     "properties": {"GEOID": "25027000300", "passenger_temporal_stability_score": 70, "passenger_peak_demand_score": 70, "equity_0_trips": 50}}
  ]
}`

func writeTracts(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tracts.geojson")
	require.NoError(t, os.WriteFile(path, []byte(tracts), 0o644))
	return path
}

func loadTable(t *testing.T) *region.Table {
	t.Helper()
	tbl, err := Load(context.Background(), config.DataConfig{RegionsPath: writeTracts(t)})
	require.NoError(t, err)
	return tbl
}

func TestLoad_RegionsOnly(t *testing.T) {
	tbl := loadTable(t)
	assert.Equal(t, 3, tbl.Len())
	assert.False(t, tbl.Has(geo.ChargerDistanceColumn))
}

func TestLoad_WithChargers(t *testing.T) {
	dir := t.TempDir()
	shpPath := filepath.Join(dir, "chargers.shp")
	w, err := shp.Create(shpPath, shp.POINT)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{shp.StringField("NAME", 10)}))
	n := w.Write(&shp.Point{X: -71.05, Y: 42.35})
	require.NoError(t, w.WriteAttribute(int(n), 0, "hub"))
	w.Close()

	tbl, err := Load(context.Background(), config.DataConfig{
		RegionsPath:              writeTracts(t),
		ChargersPath:             shpPath,
		DefaultChargerDistanceMi: 50,
	})
	require.NoError(t, err)
	dist, ok := tbl.Column(geo.ChargerDistanceColumn)
	require.True(t, ok)
	assert.Less(t, dist[0], 1.0)
	assert.Greater(t, dist[2], 40.0)
}

func TestLoad_MissingRegions(t *testing.T) {
	_, err := Load(context.Background(), config.DataConfig{RegionsPath: filepath.Join(t.TempDir(), "none.geojson")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session: load")
}

func TestSession_Rescore(t *testing.T) {
	s := New(loadTable(t))
	assert.Nil(t, s.Snapshot())

	snap, err := s.Rescore(context.Background(), scorer.DefaultConfig(), 2, 10)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, 3, snap.Result.Summary.Total)
	assert.Equal(t, 3, snap.Result.Summary.Feasible)

	// The two adjacent tracts are well under ten miles apart.
	require.Len(t, snap.Selection.Sites, 2)
	assert.Equal(t, "25025000100", snap.Selection.Sites[0].GEOID)
	assert.Equal(t, "25027000300", snap.Selection.Sites[1].GEOID)

	assert.Same(t, snap, s.Snapshot())
	_, n, minMi := s.Config()
	assert.Equal(t, 2, n)
	assert.InDelta(t, 10.0, minMi, 1e-9)
}

func TestSession_RescoreInvalidConfigKeepsState(t *testing.T) {
	s := New(loadTable(t))
	first, err := s.Rescore(context.Background(), scorer.DefaultConfig(), 1, 0)
	require.NoError(t, err)

	bad := scorer.DefaultConfig()
	bad.Weights = scorer.CategoryWeights{}
	_, err = s.Rescore(context.Background(), bad, 3, 0)
	require.Error(t, err)

	assert.Same(t, first, s.Snapshot())
	_, n, _ := s.Config()
	assert.Equal(t, 1, n)
}

func TestSession_RescoreRejectsNegativeParams(t *testing.T) {
	s := New(loadTable(t))
	_, err := s.Rescore(context.Background(), scorer.DefaultConfig(), -1, 0)
	assert.Error(t, err)
	_, err = s.Rescore(context.Background(), scorer.DefaultConfig(), 1, -5)
	assert.Error(t, err)
}

func TestSession_RescoreCancelled(t *testing.T) {
	s := New(loadTable(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Rescore(ctx, scorer.DefaultConfig(), 1, 0)
	require.Error(t, err)
	assert.Nil(t, s.Snapshot())
}

func TestSession_ConcurrentRescore(t *testing.T) {
	s := New(loadTable(t))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := s.Rescore(context.Background(), scorer.DefaultConfig(), n%3+1, 0)
			assert.NoError(t, err)
			_ = s.Snapshot()
		}(i)
	}
	wg.Wait()

	snap := s.Snapshot()
	require.NotNil(t, snap)
	_, n, _ := s.Config()
	assert.Equal(t, n, snap.Selection.Requested)
}
