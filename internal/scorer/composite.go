package scorer

import (
	"sort"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/sells-group/siteselect/internal/feature"
	"github.com/sells-group/siteselect/internal/geo"
	"github.com/sells-group/siteselect/internal/region"
	"github.com/sells-group/siteselect/internal/weights"
)

// ScoredRegion is the derived score record of one tract.
type ScoredRegion struct {
	Region              region.Region `json:"-"`
	GEOID               string        `json:"geoid"`
	Name                string        `json:"name,omitempty"`
	DemandScore         float64       `json:"demand_score"`
	InfrastructureScore float64       `json:"infrastructure_score"`
	AccessibilityScore  float64       `json:"accessibility_score"`
	EquityScore         float64       `json:"equity_feasibility_score"`
	CompositeScore      float64       `json:"composite_score"`
	Feasible            bool          `json:"feasible"`
	ChargingType        string        `json:"charging_type"`
	UrbanRuralContext   string        `json:"urban_rural_context"`
	RuralFlag           float64       `json:"rural_flag"`
}

// Summary aggregates a scoring run.
type Summary struct {
	Total                int            `json:"total"`
	Feasible             int            `json:"feasible"`
	AvgCompositeFeasible float64        `json:"avg_composite_feasible"`
	ChargingTypes        map[string]int `json:"charging_types"`
	Contexts             map[string]int `json:"contexts"`
}

// Result is the full output of one scoring run. Regions are in input order.
type Result struct {
	Regions     []ScoredRegion   `json:"regions"`
	Plan        Plan             `json:"plan"`
	Constraints []ConstraintStep `json:"constraints"`
	Summary     Summary          `json:"summary"`
	Config      Config           `json:"config"`
}

// Ranked returns the feasible regions sorted by composite score, highest
// first. Ties keep input order.
func (r *Result) Ranked() []ScoredRegion {
	out := make([]ScoredRegion, 0, r.Summary.Feasible)
	for _, s := range r.Regions {
		if s.Feasible {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CompositeScore > out[j].CompositeScore
	})
	return out
}

// Engine scores region tables under a fixed configuration. It holds no
// state between calls.
type Engine struct {
	cfg Config
}

// NewEngine validates cfg and returns an Engine.
func NewEngine(cfg Config) (*Engine, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg}, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// Score computes the category scores, classifications, feasibility and
// composite score of every tract. The input table is not modified.
func (e *Engine) Score(t *region.Table) *Result {
	plan := Resolve(t, e.cfg)

	demand := scoreDemand(t, plan)
	infra := scoreInfrastructure(t, plan)
	access := scoreAccessibility(t, plan)

	contexts := geo.ClassifyContexts(t)
	chargingTypes := geo.ClassifyChargingTypes(t)
	equity := scoreEquity(t, plan, e.cfg, chargingTypes)

	feasible, steps := EvaluateFeasibility(t, e.cfg.Constraints, contexts)

	top := weights.NormalizeDict(e.cfg.Weights.set())
	composite := feature.Zeros(t.Len())
	feature.Weighted(composite, demand, top[CategoryDemand])
	feature.Weighted(composite, infra, top[CategoryInfrastructure])
	feature.Weighted(composite, access, top[CategoryAccessibility])
	feature.Weighted(composite, equity, top[CategoryEquity])
	composite = feature.Clip(composite, 0, 100)

	rural, hasRural := geo.RuralFlags(t, contexts)

	res := &Result{
		Regions:     make([]ScoredRegion, t.Len()),
		Plan:        plan,
		Constraints: steps,
		Config:      e.cfg,
	}
	for i, r := range t.Regions() {
		s := ScoredRegion{
			Region:              r,
			GEOID:               r.GEOID,
			Name:                r.Name,
			DemandScore:         demand[i],
			InfrastructureScore: infra[i],
			AccessibilityScore:  access[i],
			EquityScore:         equity[i],
			Feasible:            feasible[i],
			ChargingType:        chargingTypes[i],
			UrbanRuralContext:   contexts[i],
		}
		if feasible[i] {
			s.CompositeScore = composite[i]
		}
		if hasRural {
			s.RuralFlag = rural[i]
		}
		res.Regions[i] = s
	}
	res.Summary = summarize(res.Regions)

	zap.L().Info("scorer: scoring complete",
		zap.Int("tracts", res.Summary.Total),
		zap.Int("feasible", res.Summary.Feasible),
		zap.Float64("avg_composite_feasible", res.Summary.AvgCompositeFeasible),
	)
	return res
}

func summarize(regions []ScoredRegion) Summary {
	s := Summary{
		Total:         len(regions),
		ChargingTypes: make(map[string]int),
		Contexts:      make(map[string]int),
	}
	var feasibleScores []float64
	for _, r := range regions {
		s.ChargingTypes[r.ChargingType]++
		s.Contexts[r.UrbanRuralContext]++
		if r.Feasible {
			feasibleScores = append(feasibleScores, r.CompositeScore)
		}
	}
	s.Feasible = len(feasibleScores)
	if s.Feasible > 0 {
		s.AvgCompositeFeasible = stat.Mean(feasibleScores, nil)
	}
	return s
}
