package weights

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

var purposeKeys = []string{"home_end_weight", "workplace_end_weight", "other_end_weight"}

func TestNormalizeDict_FractionalUnchanged(t *testing.T) {
	in := Set{"a": 0.5, "b": 0.3, "c": 0.2}
	got := NormalizeDict(in)
	assert.InDelta(t, 0.5, got["a"], 1e-9)
	assert.InDelta(t, 0.3, got["b"], 1e-9)
	assert.InDelta(t, 0.2, got["c"], 1e-9)
}

func TestNormalizeDict_Points(t *testing.T) {
	got := NormalizeDict(Set{"home": 40, "workplace": 40, "other": 20})
	assert.InDelta(t, 0.4, got["home"], 1e-9)
	assert.InDelta(t, 0.4, got["workplace"], 1e-9)
	assert.InDelta(t, 0.2, got["other"], 1e-9)
	assert.InDelta(t, 1.0, Sum(got), 1e-9)
}

func TestNormalizeDict_NullExcludedFromScale(t *testing.T) {
	got := NormalizeDict(Set{"a": 60, "b": 40, "c": math.NaN()})
	assert.InDelta(t, 0.6, got["a"], 1e-9)
	assert.InDelta(t, 0.4, got["b"], 1e-9)
	assert.Equal(t, 0.0, got["c"])
}

func TestNormalizeDict_Idempotent(t *testing.T) {
	once := NormalizeDict(Set{"a": 70, "b": 30})
	twice := NormalizeDict(once)
	assert.InDelta(t, once["a"], twice["a"], 1e-12)
	assert.InDelta(t, once["b"], twice["b"], 1e-12)
}

func TestNormalizeDict_Empty(t *testing.T) {
	assert.Empty(t, NormalizeDict(nil))
}

func TestNormalizeGroup(t *testing.T) {
	tests := []struct {
		name     string
		weights  Set
		defaults []float64
		want     []float64
	}{
		{
			name:     "points scale",
			weights:  Set{"home_end_weight": 40, "workplace_end_weight": 40, "other_end_weight": 20},
			defaults: []float64{0.4, 0.4, 0.2},
			want:     []float64{0.4, 0.4, 0.2},
		},
		{
			name:     "fractional scale",
			weights:  Set{"home_end_weight": 0.5, "workplace_end_weight": 0.25, "other_end_weight": 0.25},
			defaults: []float64{0.4, 0.4, 0.2},
			want:     []float64{0.5, 0.25, 0.25},
		},
		{
			name:     "missing key takes default",
			weights:  Set{"home_end_weight": 0, "workplace_end_weight": 0},
			defaults: []float64{0.4, 0.4, 0.2},
			want:     []float64{0, 0, 1},
		},
		{
			name:     "null value takes default",
			weights:  Set{"home_end_weight": math.NaN(), "workplace_end_weight": 0.4, "other_end_weight": 0.2},
			defaults: []float64{0.4, 0.4, 0.2},
			want:     []float64{0.4, 0.4, 0.2},
		},
		{
			name:     "zero sum falls back to defaults",
			weights:  Set{"home_end_weight": 0, "workplace_end_weight": 0, "other_end_weight": 0},
			defaults: []float64{2, 1, 1},
			want:     []float64{0.5, 0.25, 0.25},
		},
		{
			name:     "zero defaults fall back to equal weights",
			weights:  Set{},
			defaults: []float64{0, 0, 0},
			want:     []float64{1.0 / 3, 1.0 / 3, 1.0 / 3},
		},
		{
			name:     "short defaults",
			weights:  nil,
			defaults: nil,
			want:     []float64{1.0 / 3, 1.0 / 3, 1.0 / 3},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeGroup(tt.weights, purposeKeys, tt.defaults)
			assert.InDeltaSlice(t, tt.want, got, 1e-9)
		})
	}
}

func TestIsGroupDisabled(t *testing.T) {
	tests := []struct {
		name    string
		weights Set
		want    bool
	}{
		{name: "all present and zero", weights: Set{"home_end_weight": 0, "workplace_end_weight": 0, "other_end_weight": 0}, want: true},
		{name: "one key missing", weights: Set{"home_end_weight": 0, "workplace_end_weight": 0}, want: false},
		{name: "non-zero sum", weights: Set{"home_end_weight": 0, "workplace_end_weight": 1, "other_end_weight": 0}, want: false},
		{name: "null value", weights: Set{"home_end_weight": 0, "workplace_end_weight": math.NaN(), "other_end_weight": 0}, want: false},
		{name: "empty weights", weights: nil, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsGroupDisabled(tt.weights, purposeKeys))
		})
	}
}

func TestFromMap(t *testing.T) {
	got := FromMap(map[string]any{"a": 40, "b": "60", "c": nil, "d": "heavy"})
	assert.Equal(t, 40.0, got["a"])
	assert.Equal(t, 60.0, got["b"])
	assert.True(t, math.IsNaN(got["c"]))
	assert.True(t, math.IsNaN(got["d"]))
}

func TestMerge(t *testing.T) {
	defaults := Set{"a": 0.5, "b": 0.5}
	got := Merge(defaults, Set{"b": 0, "c": 1})
	assert.Equal(t, Set{"a": 0.5, "b": 0, "c": 1}, got)
	assert.Equal(t, 0.5, defaults["b"])
}

func TestSet_JSONRoundTrip(t *testing.T) {
	data, err := Set{"a": 0.5, "b": math.NaN()}.MarshalJSON()
	assert.NoError(t, err)
	assert.JSONEq(t, `{"a":0.5,"b":null}`, string(data))

	var got Set
	assert.NoError(t, got.UnmarshalJSON([]byte(`{"a":"40","b":null,"c":60}`)))
	assert.Equal(t, 40.0, got["a"])
	assert.True(t, math.IsNaN(got["b"]))
	assert.Equal(t, 60.0, got["c"])
}
