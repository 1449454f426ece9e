package scorer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/siteselect/internal/weights"
)

func TestScoreAccessibility_CorridorMode(t *testing.T) {
	tbl := columns(t, map[string][]float64{
		CorridorScoreColumn: {20, 150, math.NaN()},
		"D3AAO":             {1, 2, 3},
	})
	cfg := DefaultConfig()
	cfg.SecondaryCorridorMode = true
	p := Resolve(tbl, cfg)
	assert.True(t, p.CorridorOnly)
	assert.InDeltaSlice(t, []float64{20, 100, 0}, scoreAccessibility(tbl, p), 1e-9)
}

func TestScoreAccessibility_CorridorModeMissingColumn(t *testing.T) {
	tbl := columns(t, map[string][]float64{"D3AAO": {1, 2}})
	cfg := DefaultConfig()
	cfg.SecondaryCorridorMode = true
	assert.Equal(t, []float64{0, 0}, scoreAccessibility(tbl, Resolve(tbl, cfg)))
}

func TestScoreAccessibility_AllWeightsZero(t *testing.T) {
	tbl := columns(t, map[string][]float64{"D3AAO": {1, 2}})
	cfg := DefaultConfig()
	cfg.AccessibilityWeights = weights.Set{"network_weight": 0, "grocery_weight": 0, "gas_station_weight": 0}
	p := Resolve(tbl, cfg)
	assert.True(t, p.IsDisabled(CategoryAccessibility))
	assert.Equal(t, []float64{0, 0}, scoreAccessibility(tbl, p))
}

func TestScoreAccessibility_PrefersRadiusColumn(t *testing.T) {
	tbl := columns(t, map[string][]float64{
		"grocery_within_5mi":      {0, 4},
		"grocery_stores_in_tract": {9, 0},
		"area_sq_mi":              {1, 1},
	})
	p := Resolve(tbl, DefaultConfig())
	s := findSignal(t, p, CategoryAccessibility, "grocery")
	require.True(t, s.Active)
	assert.Equal(t, ModeMinMax, s.Mode)
	assert.Equal(t, "grocery_within_5mi", s.Inputs[0].Column)
	assert.InDeltaSlice(t, []float64{0, 100}, scoreAccessibility(tbl, p), 1e-9)
}

func TestScoreAccessibility_InTractDensityFallback(t *testing.T) {
	tbl := columns(t, map[string][]float64{
		"grocery_stores_in_tract": {1, 2},
		"area_sq_mi":              {1, 4},
	})
	p := Resolve(tbl, DefaultConfig())
	s := findSignal(t, p, CategoryAccessibility, "grocery")
	assert.Equal(t, ModeDensity, s.Mode)
	assert.False(t, findSignal(t, p, CategoryAccessibility, "gas_station").Active)
	// Densities 1 and 0.5: the denser tract scores highest.
	assert.InDeltaSlice(t, []float64{100, 0}, scoreAccessibility(tbl, p), 1e-9)
}

func TestScoreAccessibility_Combined(t *testing.T) {
	tbl := columns(t, map[string][]float64{
		"D3AAO":                   {0, 10},
		"gas_stations_within_5mi": {3, 0},
	})
	got := scoreAccessibility(tbl, Resolve(tbl, DefaultConfig()))
	// Network 0.50 and gas 0.25 renormalize to 2/3 and 1/3.
	assert.InDelta(t, 100.0/3, got[0], 1e-9)
	assert.InDelta(t, 200.0/3, got[1], 1e-9)
}
