package scorer

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/siteselect/internal/region"
)

// columns builds a table from column-oriented test data. Every column must
// have the same length.
func columns(t *testing.T, cols map[string][]float64) *region.Table {
	t.Helper()
	n := -1
	for name, c := range cols {
		if n >= 0 {
			require.Len(t, c, n, "column %s", name)
		}
		n = len(c)
	}
	if n < 0 {
		n = 1
	}
	regions := make([]region.Region, n)
	for i := range regions {
		x := float64(i)
		regions[i] = region.Region{
			GEOID: fmt.Sprintf("T%03d", i),
			Geometry: geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{{
				{x, 0}, {x + 0.1, 0}, {x + 0.1, 0.1}, {x, 0.1}, {x, 0},
			}}),
			Values: make(map[string]float64, len(cols)),
		}
		for name, c := range cols {
			regions[i].Values[name] = c[i]
		}
	}
	tbl, err := region.NewTable(regions)
	require.NoError(t, err)
	return tbl
}

// findSignal returns the named signal of a category from a plan.
func findSignal(t *testing.T, p Plan, category, name string) Signal {
	t.Helper()
	for _, s := range p.Signals {
		if s.Category == category && s.Name == name {
			return s
		}
	}
	t.Fatalf("signal %s/%s not in plan", category, name)
	return Signal{}
}
