package scorer

import (
	"go.uber.org/zap"

	"github.com/sells-group/siteselect/internal/region"
)

// Category names.
const (
	CategoryDemand         = "demand"
	CategoryInfrastructure = "infrastructure"
	CategoryAccessibility  = "accessibility"
	CategoryEquity         = "equity_feasibility"
)

// Demand component names.
const (
	ComponentPurpose   = "purpose"
	ComponentDayOfWeek = "day_of_week"
	ComponentEquity    = "equity_trips"
	ComponentTemporal  = "temporal_pattern"
)

// AreaColumn holds tract area in square miles for density normalization.
const AreaColumn = "area_sq_mi"

// Mode describes how a signal's input columns become a 0-100 score.
type Mode string

// Signal modes.
const (
	// ModeDensity divides each input by tract area, clips at p95, then min-max scales.
	ModeDensity Mode = "density"
	// ModeMinMax min-max scales each input.
	ModeMinMax Mode = "minmax"
	// ModeRaw uses inputs as precomputed 0-100 scores.
	ModeRaw Mode = "raw"
	// ModeGap scales a distance against its 90th percentile.
	ModeGap Mode = "gap"
	// ModeShareSum adds percentage inputs, clips to 0-100, then min-max scales.
	ModeShareSum Mode = "share_sum"
	// ModeGrid combines the fixed grid-capacity sub-signals.
	ModeGrid Mode = "grid"
)

// Input is one source column of a signal with its in-group weight.
type Input struct {
	Column string  `json:"column"`
	Weight float64 `json:"weight"`
}

// Signal is one resolved sub-signal of a category score.
type Signal struct {
	Category string  `json:"category"`
	Name     string  `json:"name"`
	Mode     Mode    `json:"mode,omitempty"`
	Inputs   []Input `json:"inputs,omitempty"`
	// Weight is the signal's share within its category before
	// renormalization over active signals.
	Weight float64 `json:"weight"`
	// Penalty marks a signal that is subtracted instead of added.
	Penalty bool   `json:"penalty,omitempty"`
	Active  bool   `json:"active"`
	Reason  string `json:"reason,omitempty"`
}

// Plan lists every sub-signal considered for a table, resolved once before
// any score is computed. Scorers read columns only through the plan.
type Plan struct {
	Signals []Signal `json:"signals"`
	// Disabled lists categories whose weights sum to exactly zero.
	Disabled []string `json:"disabled,omitempty"`
	// Area is the area column used for density signals, empty if absent.
	Area string `json:"area,omitempty"`
	// CorridorOnly is set when accessibility comes from the corridor score.
	CorridorOnly bool `json:"corridor_only,omitempty"`
}

// Active returns the active signals of a category in plan order.
func (p Plan) Active(category string) []Signal {
	var out []Signal
	for _, s := range p.Signals {
		if s.Category == category && s.Active {
			out = append(out, s)
		}
	}
	return out
}

// IsDisabled reports whether the category was switched off entirely.
func (p Plan) IsDisabled(category string) bool {
	for _, c := range p.Disabled {
		if c == category {
			return true
		}
	}
	return false
}

// Resolve probes the table once for every optional column the configuration
// can use and returns the resulting plan.
func Resolve(t *region.Table, cfg Config) Plan {
	var p Plan
	if t.Has(AreaColumn) {
		p.Area = AreaColumn
	}

	p.Signals = append(p.Signals, resolveDemand(t, cfg)...)

	infra, off := resolveInfrastructure(t, cfg)
	p.Signals = append(p.Signals, infra...)
	if off {
		p.Disabled = append(p.Disabled, CategoryInfrastructure)
	}

	access, off, corridor := resolveAccessibility(t, cfg)
	p.Signals = append(p.Signals, access...)
	p.CorridorOnly = corridor
	if off {
		p.Disabled = append(p.Disabled, CategoryAccessibility)
	}

	equity, off := resolveEquity(t, cfg)
	p.Signals = append(p.Signals, equity...)
	if off {
		p.Disabled = append(p.Disabled, CategoryEquity)
	}

	for _, s := range p.Signals {
		if s.Active {
			continue
		}
		zap.L().Warn("scorer: signal skipped",
			zap.String("category", s.Category),
			zap.String("signal", s.Name),
			zap.String("reason", s.Reason),
		)
	}
	return p
}

// inactive builds a skipped signal.
func inactive(category, name, reason string) Signal {
	return Signal{Category: category, Name: name, Reason: reason}
}

// allPresent reports whether every column exists in t.
func allPresent(t *region.Table, cols ...string) bool {
	for _, c := range cols {
		if !t.Has(c) {
			return false
		}
	}
	return true
}
