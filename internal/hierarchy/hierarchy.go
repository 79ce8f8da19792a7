// Package hierarchy turns a finished reconciliation into the joined output
// table: one row per registry record and its boundary, with ancestor codes
// recomputed from the final code and the ancestors' registry names attached.
// Nothing here feeds back into matching.
package hierarchy

import (
	"github.com/paulmach/orb"

	"github.com/psgc-shape/internal/engine"
	"github.com/psgc-shape/internal/normalize"
	"github.com/psgc-shape/internal/psgc"
)

// Ancestor is an enclosing unit of a row.
type Ancestor struct {
	Tier normalize.Tier `json:"tier"`
	Code normalize.Code `json:"code"`
	Name string         `json:"name"`
}

// Row is one line of the joined table. A registry record without a boundary
// has no Geometry; a boundary without a registry record has no Name.
type Row struct {
	Tier      normalize.Tier `json:"tier"`
	Code      normalize.Code `json:"code"`
	Name      string         `json:"name"`
	Level     psgc.Level     `json:"level"`
	Ancestors []Ancestor     `json:"ancestors"`

	Canonical *psgc.CanonicalRecord `json:"-"`
	Shape     *psgc.GeometryRecord  `json:"-"`
	ShapeName string                `json:"shape_name,omitempty"`
	ShapeCode string                `json:"shape_code,omitempty"`
	Measures  Measures              `json:"measures"`
}

// Matched reports whether the row pairs a registry record with a boundary.
func (r *Row) Matched() bool {
	return r.Canonical != nil && r.Shape != nil
}

// Geometry returns the row's boundary, or nil.
func (r *Row) Geometry() orb.Geometry {
	if r.Shape == nil {
		return nil
	}
	return r.Shape.Geometry
}

// Directory resolves registry codes of every tier to names.
type Directory map[normalize.Code]string

// NewDirectory indexes the full registry. The first record at a code wins.
func NewDirectory(records []psgc.CanonicalRecord) Directory {
	dir := make(Directory, len(records))
	for _, rec := range records {
		if _, ok := dir[rec.Code]; !ok {
			dir[rec.Code] = rec.Name
		}
	}
	return dir
}

// Ancestors recomputes the enclosing units of code above tier.
func (d Directory) Ancestors(code normalize.Code, tier normalize.Tier) []Ancestor {
	if tier <= normalize.TierRegion {
		return nil
	}
	out := make([]Ancestor, 0, int(tier)-1)
	for t := normalize.TierRegion; t < tier; t++ {
		ac := normalize.AncestorCode(code, t)
		out = append(out, Ancestor{Tier: t, Code: ac, Name: d[ac]})
	}
	return out
}

// Parent returns the ancestor one tier up, or the zero Ancestor.
func (r *Row) Parent() Ancestor {
	if len(r.Ancestors) == 0 {
		return Ancestor{}
	}
	return r.Ancestors[len(r.Ancestors)-1]
}

// Build joins the final tables of result on code. Registry records come first
// in registry order, each followed by every boundary now carrying its code;
// leftover boundaries follow in input order.
func Build(result *engine.Result, dir Directory) []Row {
	byCode := make(map[normalize.Code][]int, len(result.Geometry))
	for j := range result.Geometry {
		code := result.Geometry[j].WorkingCode
		byCode[code] = append(byCode[code], j)
	}

	used := make([]bool, len(result.Geometry))
	rows := make([]Row, 0, len(result.Canonical)+len(result.Geometry))

	for i := range result.Canonical {
		canon := &result.Canonical[i]
		matches := byCode[canon.Code]
		if len(matches) == 0 {
			rows = append(rows, newRow(result.Tier, canon, nil, dir))
			continue
		}
		for _, j := range matches {
			used[j] = true
			rows = append(rows, newRow(result.Tier, canon, &result.Geometry[j], dir))
		}
	}

	for j := range result.Geometry {
		if !used[j] {
			rows = append(rows, newRow(result.Tier, nil, &result.Geometry[j], dir))
		}
	}
	return rows
}

func newRow(tier normalize.Tier, canon *psgc.CanonicalRecord, shape *psgc.GeometryRecord, dir Directory) Row {
	row := Row{Tier: tier, Canonical: canon, Shape: shape}

	switch {
	case canon != nil:
		row.Code = canon.Code
		row.Name = canon.Name
		row.Level = canon.Level
	case shape != nil:
		row.Code = shape.WorkingCode
	}

	if shape != nil {
		row.ShapeName = shape.Name
		row.ShapeCode = shape.LegacyCode
		row.Measures = Measure(shape.Geometry)
	}

	if row.Code != normalize.Sentinel {
		row.Ancestors = dir.Ancestors(row.Code, tier)
	}
	return row
}
