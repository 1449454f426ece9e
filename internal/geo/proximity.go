package geo

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/quadtree"
	"go.uber.org/zap"

	"github.com/sells-group/siteselect/internal/region"
)

// ChargerDistanceColumn is the derived column holding the distance from each
// tract centroid to the nearest existing charger.
const ChargerDistanceColumn = "nearest_truck_charger_mi"

// DefaultChargerDistanceMi is assigned to every tract when no chargers are
// known.
const DefaultChargerDistanceMi = 50.0

const metersPerMile = 1609.34

// nearestCandidates is how many planar neighbours are re-ranked by
// great-circle distance.
const nearestCandidates = 8

// ChargerIndex answers nearest-charger queries over a fixed point set.
type ChargerIndex struct {
	qt  *quadtree.Quadtree
	n   int
	buf []orb.Pointer
}

// NewChargerIndex builds a quadtree over the charger points.
func NewChargerIndex(points []orb.Point) *ChargerIndex {
	idx := &ChargerIndex{}
	if len(points) == 0 {
		return idx
	}
	bound := orb.MultiPoint(points).Bound().Pad(1)
	idx.qt = quadtree.New(bound)
	for _, p := range points {
		if err := idx.qt.Add(p); err != nil {
			continue
		}
		idx.n++
	}
	return idx
}

// Len returns the number of indexed chargers.
func (c *ChargerIndex) Len() int { return c.n }

// NearestMiles returns the great-circle distance in miles from p to the
// closest charger, or NaN if the index is empty.
func (c *ChargerIndex) NearestMiles(p orb.Point) float64 {
	if c.n == 0 {
		return math.NaN()
	}
	c.buf = c.qt.KNearest(c.buf[:0], p, nearestCandidates)
	best := math.Inf(1)
	for _, n := range c.buf {
		if d := geo.Distance(p, n.Point()); d < best {
			best = d
		}
	}
	return best / metersPerMile
}

// AttachChargerDistance returns t with ChargerDistanceColumn computed from
// tract centroids. An empty charger set assigns fallbackMi everywhere. A
// table that already carries the column is returned unchanged.
func AttachChargerDistance(t *region.Table, chargers []orb.Point, fallbackMi float64) (*region.Table, error) {
	if t.Has(ChargerDistanceColumn) {
		return t, nil
	}

	dist := make([]float64, t.Len())
	idx := NewChargerIndex(chargers)
	if idx.Len() == 0 {
		zap.L().Warn("geo: no charger locations available, using fallback distance",
			zap.Float64("miles", fallbackMi))
		for i := range dist {
			dist[i] = fallbackMi
		}
		return t.WithColumn(ChargerDistanceColumn, dist)
	}

	for i, r := range t.Regions() {
		c, err := r.Centroid()
		if err != nil {
			zap.L().Warn("geo: no centroid, using default charger distance",
				zap.String("geoid", r.GEOID),
				zap.Error(err),
			)
			dist[i] = fallbackMi
			continue
		}
		dist[i] = idx.NearestMiles(orb.Point{c.X(), c.Y()})
	}

	zap.L().Info("geo: computed charger proximity",
		zap.Int("chargers", idx.Len()),
		zap.Int("tracts", len(dist)),
	)
	return t.WithColumn(ChargerDistanceColumn, dist)
}
