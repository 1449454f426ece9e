// Package selector picks a geographically diverse set of top-scoring sites.
package selector

import (
	"sort"

	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/sells-group/siteselect/internal/scorer"
)

// MilesPerDegree converts planar coordinate degrees to miles. The
// approximation holds at the scale of a single US state.
const MilesPerDegree = 69.0

// Site is one selected region with its 1-based rank and centroid.
type Site struct {
	Rank int `json:"rank"`
	scorer.ScoredRegion
	Centroid geom.Coord `json:"centroid"`
}

// Selection is the ordered result of a greedy selection.
type Selection struct {
	Sites         []Site         `json:"sites"`
	Requested     int            `json:"requested"`
	MinDistanceMi float64        `json:"min_distance_mi"`
	Candidates    int            `json:"candidates"`
	Shortfall     bool           `json:"shortfall"`
	ChargingTypes map[string]int `json:"charging_types"`
	// Homogeneous is set when more than one site was selected and all
	// share a charging type.
	Homogeneous bool `json:"homogeneous"`
}

// Distance returns the planar centroid distance in miles.
func Distance(a, b geom.Coord) float64 {
	return floats.Distance(a[:2], b[:2], 2) * MilesPerDegree
}

// Select walks the feasible regions in descending composite order and
// accepts each one whose centroid is at least minDistanceMi from every site
// accepted so far, stopping after n sites. Ties keep input order. A short
// result is flagged, not an error.
func Select(regions []scorer.ScoredRegion, n int, minDistanceMi float64) Selection {
	pool := make([]scorer.ScoredRegion, 0, len(regions))
	for _, r := range regions {
		if r.Feasible {
			pool = append(pool, r)
		}
	}
	sort.SliceStable(pool, func(i, j int) bool {
		return pool[i].CompositeScore > pool[j].CompositeScore
	})

	sel := Selection{
		Requested:     n,
		MinDistanceMi: minDistanceMi,
		Candidates:    len(pool),
		ChargingTypes: make(map[string]int),
	}
	zap.L().Info("selector: selecting sites",
		zap.Int("requested", n),
		zap.Int("candidates", len(pool)),
		zap.Float64("min_distance_mi", minDistanceMi),
	)

	for _, r := range pool {
		if len(sel.Sites) >= n {
			break
		}
		c, err := r.Region.Centroid()
		if err != nil {
			zap.L().Warn("selector: skipping region without centroid",
				zap.String("geoid", r.GEOID),
				zap.Error(err),
			)
			continue
		}
		if tooClose(sel.Sites, c, minDistanceMi) {
			continue
		}
		site := Site{Rank: len(sel.Sites) + 1, ScoredRegion: r, Centroid: c}
		sel.Sites = append(sel.Sites, site)
		sel.ChargingTypes[r.ChargingType]++
		zap.L().Info("selector: site selected",
			zap.Int("rank", site.Rank),
			zap.String("geoid", r.GEOID),
			zap.Float64("composite_score", r.CompositeScore),
			zap.String("charging_type", r.ChargingType),
		)
	}

	if len(sel.Sites) < n {
		sel.Shortfall = true
		zap.L().Warn("selector: fewer sites than requested",
			zap.Int("selected", len(sel.Sites)),
			zap.Int("requested", n),
		)
	}
	if len(sel.Sites) > 1 && len(sel.ChargingTypes) == 1 {
		sel.Homogeneous = true
		zap.L().Warn("selector: all selected sites share one charging type",
			zap.String("charging_type", sel.Sites[0].ChargingType),
		)
	}
	return sel
}

func tooClose(sites []Site, c geom.Coord, minDistanceMi float64) bool {
	if minDistanceMi <= 0 {
		return false
	}
	for _, s := range sites {
		if Distance(s.Centroid, c) < minDistanceMi {
			return true
		}
	}
	return false
}
