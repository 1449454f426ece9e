// Package store persists scoring runs and their selected sites.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/siteselect/internal/config"
	"github.com/sells-group/siteselect/internal/scorer"
	"github.com/sells-group/siteselect/internal/selector"
)

// ErrNotFound is returned when a run ID is unknown.
var ErrNotFound = eris.New("store: run not found")

// Run is one persisted scoring and selection run.
type Run struct {
	ID            string          `json:"id"`
	CreatedAt     time.Time       `json:"created_at"`
	Config        json.RawMessage `json:"config"`
	NSites        int             `json:"n_sites"`
	MinDistanceMi float64         `json:"min_distance_mi"`
	Total         int             `json:"total"`
	Feasible      int             `json:"feasible"`
	Selected      int             `json:"selected"`
	AvgComposite  float64         `json:"avg_composite_feasible"`
	// Sites is populated by GetRun only.
	Sites []SiteRecord `json:"sites,omitempty"`
}

// SiteRecord is one selected site of a run.
type SiteRecord struct {
	Rank                int     `json:"rank"`
	GEOID               string  `json:"geoid"`
	Name                string  `json:"name,omitempty"`
	CompositeScore      float64 `json:"composite_score"`
	DemandScore         float64 `json:"demand_score"`
	InfrastructureScore float64 `json:"infrastructure_score"`
	AccessibilityScore  float64 `json:"accessibility_score"`
	EquityScore         float64 `json:"equity_feasibility_score"`
	ChargingType        string  `json:"charging_type"`
	UrbanRuralContext   string  `json:"urban_rural_context"`
	Lon                 float64 `json:"lon"`
	Lat                 float64 `json:"lat"`
}

// Store defines the persistence interface for scoring runs.
type Store interface {
	SaveRun(ctx context.Context, run *Run, sites []SiteRecord) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// defaultListLimit caps ListRuns when no positive limit is given.
const defaultListLimit = 50

// NewRun builds the run and site records for a scoring result and its
// selection. The ID and creation time are assigned on save.
func NewRun(res *scorer.Result, sel selector.Selection) (*Run, []SiteRecord, error) {
	cfgJSON, err := json.Marshal(res.Config)
	if err != nil {
		return nil, nil, eris.Wrap(err, "store: marshal config")
	}
	run := &Run{
		Config:        cfgJSON,
		NSites:        sel.Requested,
		MinDistanceMi: sel.MinDistanceMi,
		Total:         res.Summary.Total,
		Feasible:      res.Summary.Feasible,
		Selected:      len(sel.Sites),
		AvgComposite:  res.Summary.AvgCompositeFeasible,
	}
	sites := make([]SiteRecord, len(sel.Sites))
	for i, s := range sel.Sites {
		sites[i] = SiteRecord{
			Rank:                s.Rank,
			GEOID:               s.GEOID,
			Name:                s.Name,
			CompositeScore:      s.CompositeScore,
			DemandScore:         s.DemandScore,
			InfrastructureScore: s.InfrastructureScore,
			AccessibilityScore:  s.AccessibilityScore,
			EquityScore:         s.EquityScore,
			ChargingType:        s.ChargingType,
			UrbanRuralContext:   s.UrbanRuralContext,
		}
		if len(s.Centroid) >= 2 {
			sites[i].Lon, sites[i].Lat = s.Centroid[0], s.Centroid[1]
		}
	}
	return run, sites, nil
}

// prepare assigns an ID and creation time to a run about to be saved.
func prepare(run *Run, sites []SiteRecord) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	if len(run.Config) == 0 {
		run.Config = json.RawMessage("{}")
	}
	run.Selected = len(sites)
}

// Open returns the store selected by cfg.Driver, or nil when persistence is
// disabled ("" or "none").
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "", "none":
		return nil, nil
	case "sqlite":
		dsn := cfg.DatabaseURL
		if dsn == "" {
			dsn = "siteselect.db"
		}
		return NewSQLite(dsn)
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("store: unsupported driver %q", cfg.Driver)
	}
}
