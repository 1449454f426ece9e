// Package session holds the loaded region table and the current scoring
// configuration of one interactive host, and serializes recomputation.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/siteselect/internal/config"
	"github.com/sells-group/siteselect/internal/geo"
	"github.com/sells-group/siteselect/internal/region"
	"github.com/sells-group/siteselect/internal/scorer"
	"github.com/sells-group/siteselect/internal/selector"
)

// Snapshot is the output of one recomputation.
type Snapshot struct {
	Result     *scorer.Result
	Selection  selector.Selection
	ComputedAt time.Time
	Duration   time.Duration
}

// Session owns a region table and the configuration it was last scored
// with. All recomputation happens under one lock; readers get the last
// completed snapshot.
type Session struct {
	mu    sync.Mutex
	table *region.Table
	cfg   scorer.Config
	n     int
	minMi float64
	last  *Snapshot
}

// New returns a session over t. Nothing is scored until Rescore.
func New(t *region.Table) *Session {
	return &Session{table: t, cfg: scorer.DefaultConfig()}
}

// Table returns the loaded table.
func (s *Session) Table() *region.Table { return s.table }

// Config returns the configuration and selection parameters of the last
// recomputation.
func (s *Session) Config() (scorer.Config, int, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg, s.n, s.minMi
}

// Snapshot returns the last completed recomputation, or nil.
func (s *Session) Snapshot() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Rescore replaces the configuration wholesale, scores the full table and
// selects up to n sites at least minDistanceMi apart. An invalid
// configuration leaves the previous state untouched. ctx is checked before
// the work starts; a started recomputation runs to completion.
func (s *Session) Rescore(ctx context.Context, cfg scorer.Config, n int, minDistanceMi float64) (*Snapshot, error) {
	if n < 0 {
		return nil, eris.Errorf("session: n_sites must be >= 0, got %d", n)
	}
	if minDistanceMi < 0 {
		return nil, eris.Errorf("session: min_distance_mi must be >= 0, got %g", minDistanceMi)
	}
	eng, err := scorer.NewEngine(cfg)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "session: rescore")
	}

	start := time.Now()
	res := eng.Score(s.table)
	sel := selector.Select(res.Regions, n, minDistanceMi)
	snap := &Snapshot{
		Result:     res,
		Selection:  sel,
		ComputedAt: start.UTC(),
		Duration:   time.Since(start),
	}

	s.cfg, s.n, s.minMi, s.last = cfg, n, minDistanceMi, snap
	zap.L().Info("session: rescored",
		zap.Int("tracts", res.Summary.Total),
		zap.Int("feasible", res.Summary.Feasible),
		zap.Int("selected", len(sel.Sites)),
		zap.Duration("took", snap.Duration),
	)
	return snap, nil
}

// Load reads the region table and, when configured, the charger layer in
// parallel, then attaches the nearest-charger distance column.
func Load(ctx context.Context, data config.DataConfig) (*region.Table, error) {
	var (
		table    *region.Table
		chargers []orb.Point
	)

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := region.LoadGeoJSON(data.RegionsPath)
		if err != nil {
			return err
		}
		table = t
		return nil
	})
	if data.ChargersPath != "" {
		g.Go(func() error {
			pts, err := geo.LoadChargers(data.ChargersPath)
			if err != nil {
				return err
			}
			chargers = pts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "session: load")
	}

	if data.ChargersPath == "" {
		return table, nil
	}
	fallback := data.DefaultChargerDistanceMi
	if fallback <= 0 {
		fallback = geo.DefaultChargerDistanceMi
	}
	return geo.AttachChargerDistance(table, chargers, fallback)
}
