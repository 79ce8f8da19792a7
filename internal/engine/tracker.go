package engine

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/psgc-shape/internal/normalize"
)

// Row is one unmatched record in a report.
type Row struct {
	Side       Side           `json:"side"`
	Code       normalize.Code `json:"code"`
	LegacyCode string         `json:"legacy_code,omitempty"`
	Name       string         `json:"name"`
	ParentName string         `json:"parent_name,omitempty"`
}

// Snapshot is the state of the unmatched sets after one stage.
type Snapshot struct {
	Stage              Stage  `json:"stage"`
	Name               string `json:"name"`
	Matched            int    `json:"matched"`
	UnmatchedCanonical int    `json:"unmatched_canonical"`
	UnmatchedGeometry  int    `json:"unmatched_geometry"`
	Ambiguous          int    `json:"ambiguous"`
	CanonicalSample    []Row  `json:"canonical_sample"`
	GeometrySample     []Row  `json:"geometry_sample"`
}

// Tracker records a snapshot after every stage. It only reads the working set.
type Tracker struct {
	sampleSize int
	snapshots  []Snapshot
}

// NewTracker creates a tracker keeping sampleSize rows per side.
func NewTracker(sampleSize int) *Tracker {
	return &Tracker{sampleSize: sampleSize}
}

// Record takes a snapshot of ws after stage, which logged ambiguous
// ambiguities.
func (t *Tracker) Record(stage Stage, ws *WorkingSet, ambiguous int) Snapshot {
	canonical := CanonicalRows(ws, ws.UnmatchedCanonical())
	geometry := GeometryRows(ws, ws.UnmatchedGeometry())

	matched := 0
	for i := range ws.Canonical {
		if ws.CanonicalMatched(i) {
			matched++
		}
	}

	snapshot := Snapshot{
		Stage:              stage,
		Name:               stage.String(),
		Matched:            matched,
		UnmatchedCanonical: len(canonical),
		UnmatchedGeometry:  len(geometry),
		Ambiguous:          ambiguous,
		CanonicalSample:    head(canonical, t.sampleSize),
		GeometrySample:     head(geometry, t.sampleSize),
	}
	t.snapshots = append(t.snapshots, snapshot)
	return snapshot
}

// Snapshots returns every snapshot in stage order.
func (t *Tracker) Snapshots() []Snapshot {
	out := make([]Snapshot, len(t.snapshots))
	copy(out, t.snapshots)
	return out
}

func head(rows []Row, n int) []Row {
	if len(rows) > n {
		rows = rows[:n]
	}
	out := make([]Row, len(rows))
	copy(out, rows)
	return out
}

// CanonicalRows builds report rows for the given canonical records, sorted
// by name.
func CanonicalRows(ws *WorkingSet, indexes []int) []Row {
	rows := make([]Row, 0, len(indexes))
	for _, i := range indexes {
		rec := &ws.Canonical[i]
		rows = append(rows, Row{
			Side:       SideCanonical,
			Code:       rec.Code,
			Name:       rec.Name,
			ParentName: rec.ParentHint(),
		})
	}
	SortRows(rows)
	return rows
}

// GeometryRows builds report rows for the given geometry records, sorted by
// name.
func GeometryRows(ws *WorkingSet, indexes []int) []Row {
	rows := make([]Row, 0, len(indexes))
	for _, j := range indexes {
		rec := &ws.Geometry[j]
		rows = append(rows, Row{
			Side:       SideGeometry,
			Code:       rec.WorkingCode,
			LegacyCode: rec.LegacyCode,
			Name:       rec.Name,
			ParentName: rec.ParentName,
		})
	}
	SortRows(rows)
	return rows
}

// SortRows orders rows by collated name, then code, then legacy code.
func SortRows(rows []Row) {
	col := collate.New(language.Und)
	sort.SliceStable(rows, func(a, b int) bool {
		if c := col.CompareString(rows[a].Name, rows[b].Name); c != 0 {
			return c < 0
		}
		if rows[a].Code != rows[b].Code {
			return rows[a].Code < rows[b].Code
		}
		return rows[a].LegacyCode < rows[b].LegacyCode
	})
}
