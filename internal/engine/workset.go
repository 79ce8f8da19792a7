package engine

import (
	"sort"

	"github.com/psgc-shape/internal/normalize"
	"github.com/psgc-shape/internal/override"
	"github.com/psgc-shape/internal/psgc"
)

// WorkingSet owns the two tables for the duration of a run. Canonical records
// are read only; stages mutate nothing but Geometry[i].WorkingCode, and only
// through rewrite so the join indexes stay current.
type WorkingSet struct {
	Canonical []psgc.CanonicalRecord
	Geometry  []psgc.GeometryRecord

	canonByCode map[normalize.Code][]int
	geoCount    map[normalize.Code]int

	// exact is true until overrides are applied: the join then needs the name
	// as well as the code.
	exact      bool
	pinned     []bool
	exactCanon []bool

	snapshot []normalize.Code
}

// NewWorkingSet copies the geometry records so the caller's slice is never
// mutated.
func NewWorkingSet(canonical []psgc.CanonicalRecord, geometry []psgc.GeometryRecord) *WorkingSet {
	ws := &WorkingSet{
		Canonical:   canonical,
		Geometry:    make([]psgc.GeometryRecord, len(geometry)),
		canonByCode: make(map[normalize.Code][]int, len(canonical)),
		exact:       true,
		pinned:      make([]bool, len(geometry)),
		exactCanon:  make([]bool, len(canonical)),
	}
	copy(ws.Geometry, geometry)

	for i := range canonical {
		code := canonical[i].Code
		ws.canonByCode[code] = append(ws.canonByCode[code], i)
	}
	ws.recount()
	return ws
}

func (ws *WorkingSet) recount() {
	ws.geoCount = make(map[normalize.Code]int, len(ws.Geometry))
	for i := range ws.Geometry {
		ws.geoCount[ws.Geometry[i].WorkingCode]++
	}
}

// joinExact pairs records on code and name. Geometry matched here is pinned:
// later stages and override rules leave it where it is.
func (ws *WorkingSet) joinExact() {
	for j := range ws.Geometry {
		geo := &ws.Geometry[j]
		for _, i := range ws.canonByCode[geo.WorkingCode] {
			if ws.Canonical[i].Name == geo.Name {
				ws.pinned[j] = true
				ws.exactCanon[i] = true
			}
		}
	}
}

// ApplyOverrides applies the rules in declaration order and switches the join
// to code only. Applying again starts from the codes the first application
// saw, so repeated calls leave the same assignment.
func (ws *WorkingSet) ApplyOverrides(rules []override.Rule) []override.Outcome {
	if ws.snapshot == nil {
		ws.snapshot = make([]normalize.Code, len(ws.Geometry))
		for i := range ws.Geometry {
			ws.snapshot[i] = ws.Geometry[i].WorkingCode
		}
	} else {
		for i := range ws.Geometry {
			ws.Geometry[i].WorkingCode = ws.snapshot[i]
		}
	}

	outcomes := override.Apply(ws.Geometry, rules, ws.Pinned)
	ws.exact = false
	ws.recount()
	return outcomes
}

// Pinned reports whether a geometry record was matched on code and name.
func (ws *WorkingSet) Pinned(j int) bool {
	return ws.pinned[j]
}

// CanonicalMatched reports whether canonical record i has a geometry record.
func (ws *WorkingSet) CanonicalMatched(i int) bool {
	if ws.exact {
		return ws.exactCanon[i]
	}
	return ws.geoCount[ws.Canonical[i].Code] > 0
}

// GeometryMatched reports whether geometry record j has a canonical record.
func (ws *WorkingSet) GeometryMatched(j int) bool {
	if ws.exact {
		return ws.pinned[j]
	}
	return len(ws.canonByCode[ws.Geometry[j].WorkingCode]) > 0
}

// UnmatchedCanonical returns the indexes of canonical records without geometry.
func (ws *WorkingSet) UnmatchedCanonical() []int {
	var out []int
	for i := range ws.Canonical {
		if !ws.CanonicalMatched(i) {
			out = append(out, i)
		}
	}
	return out
}

// UnmatchedGeometry returns the indexes of geometry records without a
// canonical record.
func (ws *WorkingSet) UnmatchedGeometry() []int {
	var out []int
	for j := range ws.Geometry {
		if !ws.GeometryMatched(j) {
			out = append(out, j)
		}
	}
	return out
}

// MatchedCodes returns the canonical codes that currently have geometry.
func (ws *WorkingSet) MatchedCodes() []normalize.Code {
	seen := make(map[normalize.Code]bool)
	var out []normalize.Code
	for i := range ws.Canonical {
		code := ws.Canonical[i].Code
		if ws.CanonicalMatched(i) && !seen[code] {
			seen[code] = true
			out = append(out, code)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a] < out[b] })
	return out
}

// rewrite moves geometry record j to code. Pinned records never move.
func (ws *WorkingSet) rewrite(j int, code normalize.Code) bool {
	if ws.pinned[j] {
		return false
	}
	geo := &ws.Geometry[j]
	ws.geoCount[geo.WorkingCode]--
	geo.WorkingCode = code
	ws.geoCount[code]++
	return true
}

// findGeometry returns the unmatched geometry records accepted by match.
func (ws *WorkingSet) findGeometry(match func(*psgc.GeometryRecord) bool) []int {
	var out []int
	for j := range ws.Geometry {
		if ws.GeometryMatched(j) {
			continue
		}
		if match(&ws.Geometry[j]) {
			out = append(out, j)
		}
	}
	return out
}

// findCanonical returns the unmatched canonical records accepted by match.
func (ws *WorkingSet) findCanonical(match func(*psgc.CanonicalRecord) bool) []int {
	var out []int
	for i := range ws.Canonical {
		if ws.CanonicalMatched(i) {
			continue
		}
		if match(&ws.Canonical[i]) {
			out = append(out, i)
		}
	}
	return out
}
