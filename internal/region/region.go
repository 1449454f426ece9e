// Package region models the census-tract table read by the scoring engine.
//
// A Table is immutable once built. Derived columns are attached with
// WithColumn, which returns a new Table sharing the underlying regions.
package region

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"golang.org/x/text/cases"
)

// Required column names.
const (
	ColumnGEOID    = "geoid"
	ColumnGeometry = "geometry"
)

// ErrMissingColumn is returned when the input lacks a required column.
var ErrMissingColumn = eris.New("region: missing required column")

// Region is one census tract.
type Region struct {
	GEOID    string
	Name     string
	Geometry geom.T
	// Values holds every attribute that coerced to a number. Null or
	// non-numeric cells are stored as NaN.
	Values map[string]float64
	// Labels holds every attribute whose raw value was a string.
	Labels map[string]string
}

// Centroid returns the planar centroid of the region geometry as (x, y).
// Empty geometries, whose centroid is not finite, are an error.
func (r Region) Centroid() (geom.Coord, error) {
	if r.Geometry == nil {
		return nil, eris.Errorf("region: %s has no geometry", r.GEOID)
	}
	c, err := xy.Centroid(r.Geometry)
	if err != nil {
		return nil, eris.Wrapf(err, "region: centroid %s", r.GEOID)
	}
	if len(c) < 2 || !finite(c.X()) || !finite(c.Y()) {
		return nil, eris.Errorf("region: %s has an empty geometry", r.GEOID)
	}
	return c, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Attr returns the numeric attribute name, matching exactly first and then
// case-insensitively. Missing or NaN attributes report false.
func (r Region) Attr(name string) (float64, bool) {
	v, ok := r.Values[name]
	if !ok {
		want := fold(name)
		for k, x := range r.Values {
			if fold(k) == want {
				v, ok = x, true
				break
			}
		}
	}
	if !ok || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// Table is an ordered collection of regions with column lookup.
type Table struct {
	regions []Region
	// names maps both exact and case-folded column names to the
	// canonical attribute key.
	names   map[string]string
	derived map[string][]float64
}

// NewTable validates the required identity and geometry of every region and
// indexes the available attribute columns.
func NewTable(regions []Region) (*Table, error) {
	for i, r := range regions {
		if r.GEOID == "" {
			return nil, eris.Wrapf(ErrMissingColumn, "%s (feature %d)", ColumnGEOID, i)
		}
		if r.Geometry == nil {
			return nil, eris.Wrapf(ErrMissingColumn, "%s (feature %d, %s)", ColumnGeometry, i, r.GEOID)
		}
	}
	t := &Table{
		regions: regions,
		names:   make(map[string]string),
		derived: make(map[string][]float64),
	}
	for _, r := range regions {
		for k := range r.Values {
			t.index(k)
		}
		for k := range r.Labels {
			t.index(k)
		}
	}
	return t, nil
}

func (t *Table) index(name string) {
	if _, ok := t.names[name]; !ok {
		t.names[name] = name
	}
	folded := fold(name)
	if _, ok := t.names[folded]; !ok {
		t.names[folded] = name
	}
}

func fold(name string) string {
	return cases.Fold().String(name)
}

// Len returns the number of regions.
func (t *Table) Len() int { return len(t.regions) }

// Regions returns the regions in table order. Callers must not modify them.
func (t *Table) Regions() []Region { return t.regions }

// Region returns the i-th region.
func (t *Table) Region(i int) Region { return t.regions[i] }

// resolve maps a requested column name to its canonical key.
func (t *Table) resolve(name string) (string, bool) {
	if _, ok := t.derived[name]; ok {
		return name, true
	}
	if key, ok := t.names[name]; ok {
		return key, true
	}
	key, ok := t.names[fold(name)]
	return key, ok
}

// Has reports whether a column exists, matching case-insensitively.
func (t *Table) Has(name string) bool {
	_, ok := t.resolve(name)
	return ok
}

// FirstPresent returns the first of aliases that exists in the table.
func (t *Table) FirstPresent(aliases ...string) (string, bool) {
	for _, a := range aliases {
		if t.Has(a) {
			return a, true
		}
	}
	return "", false
}

// Column returns a numeric column in table order. Cells that are missing or
// non-numeric are NaN. The second return value is false if the column does
// not exist at all.
func (t *Table) Column(name string) ([]float64, bool) {
	key, ok := t.resolve(name)
	if !ok {
		return nil, false
	}
	if d, ok := t.derived[key]; ok {
		out := make([]float64, len(d))
		copy(out, d)
		return out, true
	}
	out := make([]float64, len(t.regions))
	for i, r := range t.regions {
		v, ok := r.Values[key]
		if !ok {
			v = math.NaN()
		}
		out[i] = v
	}
	return out, true
}

// Strings returns a text column in table order. Numeric-only cells are
// empty strings.
func (t *Table) Strings(name string) ([]string, bool) {
	key, ok := t.resolve(name)
	if !ok {
		return nil, false
	}
	out := make([]string, len(t.regions))
	for i, r := range t.regions {
		out[i] = r.Labels[key]
	}
	return out, true
}

// Value returns a single numeric cell, or NaN if absent.
func (t *Table) Value(i int, name string) float64 {
	key, ok := t.resolve(name)
	if !ok {
		return math.NaN()
	}
	if d, ok := t.derived[key]; ok {
		return d[i]
	}
	v, ok := t.regions[i].Values[key]
	if !ok {
		return math.NaN()
	}
	return v
}

// WithColumn returns a copy of t with a derived numeric column attached. The
// receiver is left unchanged.
func (t *Table) WithColumn(name string, values []float64) (*Table, error) {
	if len(values) != len(t.regions) {
		return nil, eris.Errorf("region: column %s has %d values for %d regions", name, len(values), len(t.regions))
	}
	out := &Table{
		regions: t.regions,
		names:   make(map[string]string, len(t.names)+2),
		derived: make(map[string][]float64, len(t.derived)+1),
	}
	for k, v := range t.names {
		out.names[k] = v
	}
	for k, v := range t.derived {
		out.derived[k] = v
	}
	cp := make([]float64, len(values))
	copy(cp, values)
	out.derived[name] = cp
	out.names[name] = name
	out.names[fold(name)] = name
	return out, nil
}

// Columns returns the canonical names of every column in the table.
func (t *Table) Columns() []string {
	seen := make(map[string]bool, len(t.names))
	var out []string
	for _, key := range t.names {
		if !seen[key] {
			seen[key] = true
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
}
