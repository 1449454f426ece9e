// Package scorer implements multi-criteria scoring of census tracts as
// candidate charging sites.
package scorer

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/siteselect/internal/config"
	"github.com/sells-group/siteselect/internal/feature"
	"github.com/sells-group/siteselect/internal/weights"
)

// CategoryWeights are the top-level weights of the four category scores.
type CategoryWeights struct {
	Demand         float64 `yaml:"demand" json:"demand"`
	Infrastructure float64 `yaml:"infrastructure" json:"infrastructure"`
	Accessibility  float64 `yaml:"accessibility" json:"accessibility"`
	Equity         float64 `yaml:"equity_feasibility" json:"equity_feasibility"`
}

func (w CategoryWeights) set() weights.Set {
	return weights.Set{
		CategoryDemand:         w.Demand,
		CategoryInfrastructure: w.Infrastructure,
		CategoryAccessibility:  w.Accessibility,
		CategoryEquity:         w.Equity,
	}
}

// Constraints are the hard feasibility toggles and thresholds.
type Constraints struct {
	MinPersonTrips            float64 `yaml:"min_person_trips" json:"min_person_trips"`
	OnlyRural                 bool    `yaml:"only_rural" json:"only_rural"`
	OnlyWithinSecondaryBuffer bool    `yaml:"only_within_secondary_buffer" json:"only_within_secondary_buffer"`
	ExcludeZeroHeadroom       bool    `yaml:"exclude_zero_headroom" json:"exclude_zero_headroom"`
}

// Config holds every tunable of a scoring run. Weight sets may be fractional
// or point-scaled.
type Config struct {
	Weights                CategoryWeights `yaml:"weights" json:"weights"`
	DemandWeights          weights.Set     `yaml:"demand_weights" json:"demand_weights"`
	DemandComponentWeights weights.Set     `yaml:"demand_component_weights" json:"demand_component_weights"`
	InfrastructureWeights  weights.Set     `yaml:"infrastructure_weights" json:"infrastructure_weights"`
	AccessibilityWeights   weights.Set     `yaml:"accessibility_weights" json:"accessibility_weights"`
	EquityWeights          weights.Set     `yaml:"equity_weights" json:"equity_weights"`
	Constraints            Constraints     `yaml:"constraints" json:"constraints"`

	// SecondaryCorridorMode scores accessibility from the prepared
	// corridor-only score instead of its sub-signals.
	SecondaryCorridorMode bool `yaml:"secondary_corridor_mode" json:"secondary_corridor_mode"`
	// LegacyEJGating zeroes the EJ-priority equity term for tracts whose
	// charging type is listed in EJGatedChargingTypes.
	LegacyEJGating       bool     `yaml:"legacy_ej_gating" json:"legacy_ej_gating"`
	EJGatedChargingTypes []string `yaml:"ej_gated_charging_types" json:"ej_gated_charging_types"`
}

// Default infrastructure, accessibility and equity component weights.
func defaultInfrastructureWeights() weights.Set {
	return weights.Set{
		"truck_charger_gap_weight": 0.45,
		"park_ride_weight":         0.30,
		"government_weight":        0.25,
		"grid_weight":              0,
	}
}

func defaultAccessibilityWeights() weights.Set {
	return weights.Set{
		"network_weight":     0.50,
		"grocery_weight":     0.25,
		"gas_station_weight": 0.25,
	}
}

func defaultEquityWeights() weights.Set {
	return weights.Set{
		"ej_priority_weight":           0.40,
		"landuse_suit_weight":          0.35,
		"commercial_industrial_weight": 0.15,
		"protected_penalty_weight":     0.10,
	}
}

// DefaultConfig returns the baseline scoring configuration.
// Category weights sum to 1; demand sub-weights are points.
func DefaultConfig() Config {
	return Config{
		Weights: CategoryWeights{
			Demand:         0.40,
			Infrastructure: 0.25,
			Accessibility:  0.20,
			Equity:         0.15,
		},
		DemandWeights: weights.Set{
			"home_end_weight":             40,
			"workplace_end_weight":        40,
			"other_end_weight":            20,
			"weekday_weight":              70,
			"weekend_weight":              30,
			"equity_community_weight":     50,
			"non_equity_community_weight": 50,
			"temporal_stability_weight":   60,
			"temporal_peak_weight":        40,
		},
		DemandComponentWeights: weights.Set{
			ComponentPurpose:   0.35,
			ComponentDayOfWeek: 0.25,
			ComponentEquity:    0.20,
			ComponentTemporal:  0.20,
		},
		InfrastructureWeights: defaultInfrastructureWeights(),
		AccessibilityWeights:  defaultAccessibilityWeights(),
		EquityWeights:         defaultEquityWeights(),
		Constraints: Constraints{
			MinPersonTrips: 10,
		},
		EJGatedChargingTypes: []string{"other"},
	}
}

// ValidateConfig checks that a Config is internally consistent.
func ValidateConfig(c Config) error {
	var errs []string

	groups := map[string]weights.Set{
		"weights":                  c.Weights.set(),
		"demand_weights":           c.DemandWeights,
		"demand_component_weights": c.DemandComponentWeights,
		"infrastructure_weights":   c.InfrastructureWeights,
		"accessibility_weights":    c.AccessibilityWeights,
		"equity_weights":           c.EquityWeights,
	}
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		keys := make([]string, 0, len(groups[name]))
		for k := range groups[name] {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if w := groups[name][k]; w < 0 {
				errs = append(errs, fmt.Sprintf("%s.%s must be >= 0", name, k))
			}
		}
	}

	if weights.Sum(c.Weights.set()) <= 0 {
		errs = append(errs, "category weight sum must be > 0")
	}
	if c.Constraints.MinPersonTrips < 0 {
		errs = append(errs, "min_person_trips must be >= 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("scorer: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Profile is a partial, loosely typed override of Config as read from a
// YAML profile or a JSON request body. Unset fields keep the base value.
type Profile struct {
	Weights                map[string]any `yaml:"weights" json:"weights"`
	DemandWeights          map[string]any `yaml:"demand_weights" json:"demand_weights"`
	DemandComponentWeights map[string]any `yaml:"demand_component_weights" json:"demand_component_weights"`
	InfrastructureWeights  map[string]any `yaml:"infrastructure_weights" json:"infrastructure_weights"`
	AccessibilityWeights   map[string]any `yaml:"accessibility_weights" json:"accessibility_weights"`
	EquityWeights          map[string]any `yaml:"equity_weights" json:"equity_weights"`
	Constraints            map[string]any `yaml:"constraints" json:"constraints"`

	SecondaryCorridorMode *bool    `yaml:"secondary_corridor_mode" json:"secondary_corridor_mode"`
	LegacyEJGating        *bool    `yaml:"legacy_ej_gating" json:"legacy_ej_gating"`
	EJGatedChargingTypes  []string `yaml:"ej_gated_charging_types" json:"ej_gated_charging_types"`
}

// equityAlias is accepted for the equity_feasibility category weight.
const equityAlias = "equity"

// Apply overlays p onto base and returns the result. base is not modified.
func (p Profile) Apply(base Config) Config {
	out := base
	out.DemandWeights = weights.Merge(base.DemandWeights, weights.FromMap(p.DemandWeights))
	out.DemandComponentWeights = weights.Merge(base.DemandComponentWeights, weights.FromMap(p.DemandComponentWeights))
	out.InfrastructureWeights = weights.Merge(base.InfrastructureWeights, weights.FromMap(p.InfrastructureWeights))
	out.AccessibilityWeights = weights.Merge(base.AccessibilityWeights, weights.FromMap(p.AccessibilityWeights))
	out.EquityWeights = weights.Merge(base.EquityWeights, weights.FromMap(p.EquityWeights))

	overrides := weights.FromMap(p.Weights)
	if v, ok := overrides[equityAlias]; ok {
		if _, set := overrides[CategoryEquity]; !set {
			overrides[CategoryEquity] = v
		}
		delete(overrides, equityAlias)
	}
	top := weights.Merge(base.Weights.set(), overrides)
	out.Weights = CategoryWeights{
		Demand:         finiteOr(top[CategoryDemand], base.Weights.Demand),
		Infrastructure: finiteOr(top[CategoryInfrastructure], base.Weights.Infrastructure),
		Accessibility:  finiteOr(top[CategoryAccessibility], base.Weights.Accessibility),
		Equity:         finiteOr(top[CategoryEquity], base.Weights.Equity),
	}

	for k, v := range p.Constraints {
		switch k {
		case "min_person_trips":
			out.Constraints.MinPersonTrips = finiteOr(feature.Coerce(v), base.Constraints.MinPersonTrips)
		case "only_rural":
			out.Constraints.OnlyRural = truthy(v)
		case "only_within_secondary_buffer":
			out.Constraints.OnlyWithinSecondaryBuffer = truthy(v)
		case "exclude_zero_headroom":
			out.Constraints.ExcludeZeroHeadroom = truthy(v)
		}
	}

	if p.SecondaryCorridorMode != nil {
		out.SecondaryCorridorMode = *p.SecondaryCorridorMode
	}
	if p.LegacyEJGating != nil {
		out.LegacyEJGating = *p.LegacyEJGating
	}
	if p.EJGatedChargingTypes != nil {
		out.EJGatedChargingTypes = append([]string(nil), p.EJGatedChargingTypes...)
	}
	return out
}

// ParseProfile decodes a YAML (or JSON) profile document.
func ParseProfile(data []byte) (Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, eris.Wrap(err, "scorer: parse profile")
	}
	return p, nil
}

// LoadProfile reads a profile file.
func LoadProfile(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, eris.Wrapf(err, "scorer: read profile %s", path)
	}
	return ParseProfile(data)
}

// ConfigFromSettings builds the run configuration from application
// settings: defaults, then the optional profile file, then the toggles and
// constraints set in config.yaml or the environment.
func ConfigFromSettings(s config.ScoringConfig, c config.ConstraintsConfig) (Config, error) {
	cfg := DefaultConfig()
	if s.ProfilePath != "" {
		p, err := LoadProfile(s.ProfilePath)
		if err != nil {
			return Config{}, err
		}
		cfg = p.Apply(cfg)
	}

	cfg.SecondaryCorridorMode = cfg.SecondaryCorridorMode || s.SecondaryCorridorMode
	cfg.LegacyEJGating = cfg.LegacyEJGating || s.LegacyEJGating
	if len(s.EJGatedChargingTypes) > 0 {
		cfg.EJGatedChargingTypes = append([]string(nil), s.EJGatedChargingTypes...)
	}
	if c.MinPersonTrips != nil {
		cfg.Constraints.MinPersonTrips = *c.MinPersonTrips
	}
	cfg.Constraints.OnlyRural = cfg.Constraints.OnlyRural || c.OnlyRural
	cfg.Constraints.OnlyWithinSecondaryBuffer = cfg.Constraints.OnlyWithinSecondaryBuffer || c.OnlyWithinSecondaryBuffer
	cfg.Constraints.ExcludeZeroHeadroom = cfg.Constraints.ExcludeZeroHeadroom || c.ExcludeZeroHeadroom

	if err := ValidateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func finiteOr(v, fallback float64) float64 {
	if feature.Finite(v) {
		return v
	}
	return fallback
}

func truthy(v any) bool {
	if s, ok := v.(string); ok {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true", "yes", "on":
			return true
		}
	}
	f := feature.Coerce(v)
	return feature.Finite(f) && f != 0
}
