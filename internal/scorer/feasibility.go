package scorer

import (
	"go.uber.org/zap"

	"github.com/sells-group/siteselect/internal/feature"
	"github.com/sells-group/siteselect/internal/geo"
	"github.com/sells-group/siteselect/internal/region"
)

// Feasibility thresholds.
const (
	maxProtectedPct        = 95.0
	minLandSharePct        = 0.5
	minSuitabilityWithTier = 10.0
	minSuitability         = 10.0
)

// Person-activity columns summed for the minimum-activity constraint.
var personTripColumns = []string{"equity_0_trips", "equity_1_trips"}

// Secondary-network buffer flag aliases.
var secondaryBufferColumns = []string{"within_secondary_buffer", "in_secondary_buffer", "is_on_secondary_corridor"}

// ConstraintStep records one feasibility constraint and how many tracts were
// still feasible after it.
type ConstraintStep struct {
	Name    string `json:"name"`
	Column  string `json:"column,omitempty"`
	Applied bool   `json:"applied"`
	Pass    int    `json:"pass"`
	Reason  string `json:"reason,omitempty"`
}

// evaluator narrows a feasibility mask one constraint at a time.
type evaluator struct {
	t        *region.Table
	feasible []bool
	steps    []ConstraintStep
}

func (e *evaluator) apply(name, column string, keep func(i int) bool) {
	for i := range e.feasible {
		if e.feasible[i] && !keep(i) {
			e.feasible[i] = false
		}
	}
	step := ConstraintStep{Name: name, Column: column, Applied: true, Pass: e.count()}
	e.steps = append(e.steps, step)
	zap.L().Info("scorer: constraint applied",
		zap.String("constraint", name),
		zap.String("column", column),
		zap.Int("pass", step.Pass),
	)
}

func (e *evaluator) skip(name, reason string) {
	e.steps = append(e.steps, ConstraintStep{Name: name, Pass: e.count(), Reason: reason})
	zap.L().Info("scorer: constraint skipped",
		zap.String("constraint", name),
		zap.String("reason", reason),
	)
}

func (e *evaluator) count() int {
	var n int
	for _, f := range e.feasible {
		if f {
			n++
		}
	}
	return n
}

// column returns a sanitized column or zeros when absent.
func (e *evaluator) column(name string) []float64 {
	raw, ok := e.t.Column(name)
	if !ok {
		return feature.Zeros(e.t.Len())
	}
	return feature.Sanitize(raw)
}

// EvaluateFeasibility applies the hard constraints in order and returns the
// feasibility mask together with a record of each step. Constraints whose
// columns are absent are skipped; nothing here returns an error. contexts
// holds the classified urban/rural labels used by the rural-only constraint
// when the table has no rural flag column; it may be nil.
func EvaluateFeasibility(t *region.Table, c Constraints, contexts []string) ([]bool, []ConstraintStep) {
	e := &evaluator{t: t, feasible: make([]bool, t.Len())}
	for i := range e.feasible {
		e.feasible[i] = true
	}

	// Minimum person activity.
	person := feature.Zeros(t.Len())
	for _, col := range personTripColumns {
		for i, v := range e.column(col) {
			person[i] += v
		}
	}
	var maxPerson float64
	for _, v := range person {
		if v > maxPerson {
			maxPerson = v
		}
	}
	if maxPerson > 0 {
		e.apply("min_person_trips", "equity_0_trips+equity_1_trips", func(i int) bool {
			return person[i] >= c.MinPersonTrips
		})
	} else {
		e.skip("min_person_trips", "no person-trip activity recorded")
	}

	// Rural only.
	if c.OnlyRural {
		if flags, ok := geo.RuralFlags(t, contexts); ok {
			e.apply("only_rural", "", func(i int) bool { return flags[i] >= 1 })
		} else {
			e.skip("only_rural", "no rural flag column")
		}
	}

	// Secondary-network buffer.
	if c.OnlyWithinSecondaryBuffer {
		if col, ok := t.FirstPresent(secondaryBufferColumns...); ok {
			flags := e.column(col)
			e.apply("only_within_secondary_buffer", col, func(i int) bool { return flags[i] >= 1 })
		} else {
			e.skip("only_within_secondary_buffer", "no secondary buffer column")
		}
	}

	// Land-use sanity.
	switch {
	case t.Has("landuse_pct_protected_natural"):
		protected := e.column("landuse_pct_protected_natural")
		e.apply("protected_land", "landuse_pct_protected_natural", func(i int) bool {
			return protected[i] < maxProtectedPct
		})
	case t.Has("mostly_protected"):
		mostly := e.column("mostly_protected")
		e.apply("protected_land", "mostly_protected", func(i int) bool { return mostly[i] == 0 })
	default:
		e.skip("protected_land", "no protected-land column")
	}

	// Grid headroom.
	if c.ExcludeZeroHeadroom {
		if t.Has("median_feeder_headroom_mva") {
			headroom := e.column("median_feeder_headroom_mva")
			e.apply("grid_headroom", "median_feeder_headroom_mva", func(i int) bool { return headroom[i] > 0 })
		} else {
			e.skip("grid_headroom", "no feeder headroom column")
		}
	}

	// Development potential.
	switch {
	case t.Has("truck_feasibility_tier"):
		tier := e.column("truck_feasibility_tier")
		comm := e.column("landuse_pct_commercial")
		ind := e.column("landuse_pct_industrial")
		suit := e.column("truck_suitability_final")
		e.apply("development_potential", "truck_feasibility_tier", func(i int) bool {
			return tier[i] >= 0 || comm[i] > minLandSharePct || ind[i] > minLandSharePct || suit[i] > minSuitabilityWithTier
		})
	case t.Has("truck_suitability_final"):
		suit := e.column("truck_suitability_final")
		e.apply("development_potential", "truck_suitability_final", func(i int) bool {
			return suit[i] >= minSuitability
		})
	default:
		e.skip("development_potential", "no suitability column")
	}

	zap.L().Info("scorer: feasibility evaluated",
		zap.Int("feasible", e.count()),
		zap.Int("tracts", t.Len()),
	)
	return e.feasible, e.steps
}
