package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psgc-shape/internal/logging"
	"github.com/psgc-shape/internal/normalize"
	"github.com/psgc-shape/internal/override"
	"github.com/psgc-shape/internal/psgc"
)

func bgy(code normalize.Code, name, municipality string) psgc.CanonicalRecord {
	return psgc.CanonicalRecord{
		Code:        code,
		Name:        name,
		Level:       psgc.LevelBarangay,
		ParentHints: psgc.ParentHints{Municipality: municipality},
	}
}

func shape(code normalize.Code, name, parent string) psgc.GeometryRecord {
	return psgc.GeometryRecord{
		LegacyCode:  normalize.FormatPCode(code, normalize.TierBarangay),
		WorkingCode: code,
		Name:        name,
		ParentName:  parent,
	}
}

func corr(c normalize.Code) *normalize.Code {
	return &c
}

func quietContext() context.Context {
	return logging.WithLogger(context.Background(), &logging.Nop)
}

func run(t *testing.T, opts Options, canonical []psgc.CanonicalRecord, geometry []psgc.GeometryRecord) *Result {
	t.Helper()
	result, err := New(opts).Run(quietContext(), canonical, geometry)
	require.NoError(t, err)
	require.Len(t, result.Stages, 6)
	return result
}

func TestCorrespondenceInference(t *testing.T) {
	canon := bgy(1908705001, "Ambolodto", "")
	canon.CorrespondenceCode = corr(198707001)
	canonical := []psgc.CanonicalRecord{canon}
	geometry := []psgc.GeometryRecord{shape(1908707001, "Ambolodto", "Datu Odin Sinsuat")}

	result := run(t, DefaultOptions(normalize.TierBarangay), canonical, geometry)

	assert.Equal(t, 1, result.Stages[StageOverride].UnmatchedGeometry)
	assert.Equal(t, 0, result.Stages[StageCorrespondence].UnmatchedGeometry)
	assert.Equal(t, normalize.Code(1908705001), result.Geometry[0].WorkingCode)
	assert.Equal(t, normalize.Code(1908707001), geometry[0].WorkingCode, "caller's records are not mutated")
}

func TestImpliedCode(t *testing.T) {
	assert.Equal(t, normalize.Code(1908707001), ImpliedCode(198707001))
	assert.Equal(t, normalize.Code(102801001), ImpliedCode(12801001))
}

func TestCorrespondenceExclusion(t *testing.T) {
	canon := bgy(1380601001, "Barangay 1", "")
	canon.CorrespondenceCode = corr(133901001)
	geometry := []psgc.GeometryRecord{shape(1303901001, "Barangay 1 (Tondo)", "Tondo I/II")}

	result := run(t, DefaultOptions(normalize.TierBarangay), []psgc.CanonicalRecord{canon}, geometry)

	assert.Equal(t, 1, result.Stages[StageCorrespondence].UnmatchedCanonical)
	assert.Equal(t, normalize.Code(1303901001), result.Geometry[0].WorkingCode)
}

func TestCorrespondenceAmbiguity(t *testing.T) {
	canon := bgy(1908705001, "Ambolodto", "")
	canon.CorrespondenceCode = corr(198707001)
	geometry := []psgc.GeometryRecord{
		shape(1908707001, "Ambolodto", ""),
		shape(1908707001, "Ambolodto Annex", ""),
	}

	result := run(t, DefaultOptions(normalize.TierBarangay), []psgc.CanonicalRecord{canon}, geometry)

	require.Len(t, result.Ambiguities, 1)
	assert.Equal(t, StageCorrespondence, result.Ambiguities[0].Stage)
	assert.Len(t, result.Ambiguities[0].Candidates, 2)
	assert.ErrorIs(t, &result.Ambiguities[0], ErrAmbiguousMatch)
	assert.Equal(t, normalize.Code(1908707001), result.Geometry[0].WorkingCode)
	assert.Equal(t, normalize.Code(1908707001), result.Geometry[1].WorkingCode)
}

func TestCorrespondenceExclusionStillReportsAmbiguity(t *testing.T) {
	canon := bgy(1380601001, "Barangay 1", "")
	canon.CorrespondenceCode = corr(133901001)
	geometry := []psgc.GeometryRecord{
		shape(1303901001, "Barangay 1 (Tondo)", "Tondo I/II"),
		shape(1303901001, "Barangay 1 Annex", "Tondo I/II"),
	}

	result := run(t, DefaultOptions(normalize.TierBarangay), []psgc.CanonicalRecord{canon}, geometry)

	require.Len(t, result.Ambiguities, 1)
	assert.Equal(t, StageCorrespondence, result.Ambiguities[0].Stage)
	assert.Len(t, result.Ambiguities[0].Candidates, 2)
	assert.Equal(t, normalize.Code(1303901001), result.Geometry[0].WorkingCode)
	assert.Equal(t, normalize.Code(1303901001), result.Geometry[1].WorkingCode)
}

func TestContainmentMatch(t *testing.T) {
	canonical := []psgc.CanonicalRecord{bgy(1908701001, "Barira", "Barira")}
	geometry := []psgc.GeometryRecord{shape(1908718001, "Barira", "Barira")}

	result := run(t, DefaultOptions(normalize.TierBarangay), canonical, geometry)

	assert.Equal(t, 1, result.Stages[StageCorrespondence].UnmatchedCanonical)
	assert.Equal(t, 0, result.Stages[StageContainment].UnmatchedCanonical)
	assert.Equal(t, normalize.Code(1908701001), result.Geometry[0].WorkingCode)
	assert.Empty(t, result.Ambiguities)
}

func TestContainmentAmbiguity(t *testing.T) {
	canonical := []psgc.CanonicalRecord{bgy(1908701001, "Barira", "Barira")}
	geometry := []psgc.GeometryRecord{
		shape(1908718001, "Barira", "Barira"),
		shape(1908718002, "Barira Proper", "Barira"),
	}

	result := run(t, DefaultOptions(normalize.TierBarangay), canonical, geometry)

	require.Len(t, result.Ambiguities, 1)
	amb := result.Ambiguities[0]
	assert.Equal(t, StageContainment, amb.Stage)
	assert.Equal(t, SideCanonical, amb.Side)
	assert.Equal(t, normalize.Code(1908701001), amb.Code)
	require.Len(t, amb.Candidates, 2)
	assert.Equal(t, "Barira", amb.Candidates[0].Name)
	assert.Equal(t, "Barira Proper", amb.Candidates[1].Name)

	require.Len(t, result.UnmatchedCanonical, 1)
	assert.Len(t, result.UnmatchedGeometry, 2)
	assert.Equal(t, normalize.Code(1908718001), result.Geometry[0].WorkingCode)
	assert.Equal(t, normalize.Code(1908718002), result.Geometry[1].WorkingCode)
}

func TestContainmentGeometryPass(t *testing.T) {
	// Poblacion has two candidates until Poblacion Norte takes its own.
	canonical := []psgc.CanonicalRecord{
		bgy(1908701001, "Poblacion", "Barira"),
		bgy(1908701002, "Poblacion Norte", "Barira"),
	}
	geometry := []psgc.GeometryRecord{
		shape(1908718001, "Poblacion Sur", "Barira"),
		shape(1908718002, "Poblacion Norte", "Barira"),
	}

	result := run(t, DefaultOptions(normalize.TierBarangay), canonical, geometry)

	assert.Len(t, result.Ambiguities, 1)
	assert.Equal(t, normalize.Code(1908701001), result.Geometry[0].WorkingCode)
	assert.Equal(t, normalize.Code(1908701002), result.Geometry[1].WorkingCode)
	assert.Empty(t, result.UnmatchedCanonical)
}

func TestContainmentWithBlankGeometryParent(t *testing.T) {
	canonical := []psgc.CanonicalRecord{bgy(1908701001, "Bualan", "Barira")}
	geometry := []psgc.GeometryRecord{shape(1908799001, "Bualan", "")}

	result := run(t, DefaultOptions(normalize.TierBarangay), canonical, geometry)

	assert.Equal(t, 1, result.Stages[StageCorrespondence].UnmatchedCanonical)
	assert.Equal(t, 0, result.Stages[StageContainment].UnmatchedCanonical)
	assert.Equal(t, normalize.Code(1908701001), result.Geometry[0].WorkingCode)
	assert.Empty(t, result.UnmatchedCanonical)
	assert.Empty(t, result.Ambiguities)
}

func TestOverrideWithoutDescendants(t *testing.T) {
	canonical := []psgc.CanonicalRecord{{Code: 1908701000, Name: "Barira", Level: psgc.LevelMunicipality}}
	geometry := []psgc.GeometryRecord{shape(1908718000, "Barira", "Maguindanao del Norte")}

	opts := DefaultOptions(normalize.TierMunicipality)
	opts.Rules = []override.Rule{{OldCode: 1908718000, NewCode: 1908701000}}
	result := run(t, opts, canonical, geometry)

	assert.Equal(t, 1, result.Stages[StageExact].UnmatchedCanonical)
	assert.Equal(t, 0, result.Stages[StageOverride].UnmatchedCanonical)
	assert.Equal(t, normalize.Code(1908701000), result.Geometry[0].WorkingCode)
	require.Len(t, result.Overrides, 1)
	assert.Empty(t, result.StaleOverrides())
}

func TestStaleOverrideIsReported(t *testing.T) {
	canonical := []psgc.CanonicalRecord{{Code: 1908701000, Name: "Barira", Level: psgc.LevelMunicipality}}
	geometry := []psgc.GeometryRecord{shape(1908701000, "Barira", "")}

	opts := DefaultOptions(normalize.TierMunicipality)
	opts.Rules = []override.Rule{{OldCode: 1908730000, NewCode: 1908704000}}
	result := run(t, opts, canonical, geometry)

	stale := result.StaleOverrides()
	require.Len(t, stale, 1)
	assert.Equal(t, normalize.Code(1908730000), stale[0].Rule.OldCode)
}

func TestSpecialDesignation(t *testing.T) {
	canonical := []psgc.CanonicalRecord{{Code: 1999901000, Name: "Carmen Cluster", Level: psgc.LevelSpecialGeographicUnit}}
	geometry := []psgc.GeometryRecord{shape(1909901000, "Carmen", "Special Geographic Area")}

	result := run(t, DefaultOptions(normalize.TierMunicipality), canonical, geometry)

	assert.Equal(t, 1, result.Stages[StageContainment].UnmatchedGeometry)
	assert.Equal(t, 0, result.Stages[StageSpecial].UnmatchedGeometry)
	assert.Equal(t, normalize.Code(1999901000), result.Geometry[0].WorkingCode)
}

func TestSpecialDesignationAmbiguity(t *testing.T) {
	canonical := []psgc.CanonicalRecord{{Code: 1999901000, Name: "Carmen Cluster", Level: psgc.LevelSpecialGeographicUnit}}
	geometry := []psgc.GeometryRecord{
		shape(1909901000, "Carmen", ""),
		shape(1909901000, "Carmen North", ""),
	}

	result := run(t, DefaultOptions(normalize.TierMunicipality), canonical, geometry)

	require.Len(t, result.Ambiguities, 1)
	assert.Equal(t, StageSpecial, result.Ambiguities[0].Stage)
	assert.Len(t, result.UnmatchedGeometry, 2)
}

func TestScopeException(t *testing.T) {
	canonical := []psgc.CanonicalRecord{bgy(1380601001, "Barangay 1", "")}
	geometry := []psgc.GeometryRecord{shape(1303901001, "Barangay 1", "Tondo I/II")}

	result := run(t, DefaultOptions(normalize.TierBarangay), canonical, geometry)

	assert.Equal(t, 1, result.Stages[StageSpecial].UnmatchedCanonical)
	assert.Equal(t, 0, result.Stages[StageScope].UnmatchedCanonical)
	assert.Equal(t, normalize.Code(1380601001), result.Geometry[0].WorkingCode)
}

func TestScopeRequiresSameParent(t *testing.T) {
	canonical := []psgc.CanonicalRecord{bgy(1908701001, "Poblacion", "")}
	geometry := []psgc.GeometryRecord{
		shape(1908701099, "Poblacion", ""),
		shape(1908702001, "Poblacion", ""),
	}

	result := run(t, DefaultOptions(normalize.TierBarangay), canonical, geometry)

	assert.Empty(t, result.Ambiguities)
	assert.Equal(t, normalize.Code(1908701001), result.Geometry[0].WorkingCode)
	assert.Equal(t, normalize.Code(1908702001), result.Geometry[1].WorkingCode)
}

func TestScopeIgnoresMatchedRecords(t *testing.T) {
	canonical := []psgc.CanonicalRecord{
		bgy(1908701001, "Poblacion", ""),
		bgy(1908701002, "Poblacion", ""),
	}
	geometry := []psgc.GeometryRecord{
		shape(1908701002, "Poblacion", ""),
		shape(1908701099, "Poblacion", ""),
	}

	result := run(t, DefaultOptions(normalize.TierBarangay), canonical, geometry)

	assert.Equal(t, 1, result.Stages[StageSpecial].UnmatchedCanonical)
	assert.Empty(t, result.Ambiguities)
	assert.Empty(t, result.UnmatchedCanonical)
	assert.Equal(t, normalize.Code(1908701002), result.Geometry[0].WorkingCode)
	assert.Equal(t, normalize.Code(1908701001), result.Geometry[1].WorkingCode)
}

func TestFinalReportWithoutGeometry(t *testing.T) {
	canonical := []psgc.CanonicalRecord{bgy(1908701001, "Barira", "Barira")}

	result := run(t, DefaultOptions(normalize.TierBarangay), canonical, nil)

	require.Len(t, result.UnmatchedCanonical, 1)
	assert.Equal(t, normalize.Code(1908701001), result.UnmatchedCanonical[0].Code)
	assert.Equal(t, "Barira", result.UnmatchedCanonical[0].ParentName)
	assert.Empty(t, result.UnmatchedGeometry)
	assert.Equal(t, 0, result.Final().Matched)
}

func fixture() ([]psgc.CanonicalRecord, []psgc.GeometryRecord, Options) {
	withCorr := bgy(1908705001, "Ambolodto", "Datu Odin Sinsuat")
	withCorr.CorrespondenceCode = corr(198707001)

	canonical := []psgc.CanonicalRecord{
		bgy(1908707001, "Matanog Proper", "Matanog"),
		withCorr,
		bgy(1908701001, "Barira", "Barira"),
		bgy(1908701002, "Poblacion", "Barira"),
		bgy(1380601001, "Barangay 1", ""),
		bgy(1999901001, "Nanga-an", ""),
		bgy(1908790001, "Nowhere", ""),
	}
	geometry := []psgc.GeometryRecord{
		shape(1908707001, "Matanog Proper", "Matanog"),
		shape(1908707001, "Ambolodto", "Datu Odin Sinsuat"),
		shape(1908718001, "Barira", "Barira"),
		shape(1908718002, "Poblacion", "Barira"),
		shape(1303901001, "Barangay 1", "Tondo I/II"),
		shape(1909901001, "Nanga-an", "Carmen"),
		shape(1908799001, "Unclaimed", ""),
	}

	opts := DefaultOptions(normalize.TierBarangay)
	opts.Rules = []override.Rule{
		{OldCode: 1908707001, NewCode: 1908705099},
		{OldCode: 1908718002, NewCode: 1908701002, Name: "Poblacion"},
	}
	return canonical, geometry, opts
}

func TestRunIsDeterministic(t *testing.T) {
	canonical, geometry, opts := fixture()

	first := run(t, opts, canonical, geometry)
	second := run(t, opts, canonical, geometry)

	assert.Equal(t, first, second)
	assert.Len(t, first.UnmatchedCanonical, 1)
	assert.Len(t, first.UnmatchedGeometry, 1)
}

func TestMatchingIsMonotonic(t *testing.T) {
	canonical, geometry, opts := fixture()
	e := New(opts)
	ws := NewWorkingSet(canonical, geometry)
	logger := logging.Nop

	ws.joinExact()
	matched := ws.MatchedCodes()
	require.Contains(t, matched, normalize.Code(1908707001))

	outcomes := ws.ApplyOverrides(opts.Rules)
	require.Len(t, outcomes, 2)
	assert.Equal(t, 1, outcomes[0].Held, "pinned record is not moved by the override")

	stages := []func(*WorkingSet) []Ambiguity{
		func(ws *WorkingSet) []Ambiguity { return nil },
		func(ws *WorkingSet) []Ambiguity { return e.correspondenceStage(ws, &logger) },
		func(ws *WorkingSet) []Ambiguity { return e.containmentStage(ws, &logger) },
		func(ws *WorkingSet) []Ambiguity { return e.specialStage(ws, &logger) },
		func(ws *WorkingSet) []Ambiguity { return e.scopeStage(ws, &logger) },
	}
	for _, stage := range stages {
		stage(ws)
		next := ws.MatchedCodes()
		assert.Subset(t, next, matched)
		matched = next
	}
	assert.Len(t, matched, 6)
}

func TestOverridesAreIdempotent(t *testing.T) {
	canonical, geometry, opts := fixture()
	// A code that leaves and comes back within one table, as Tacloban does.
	opts.Rules = append(opts.Rules,
		override.Rule{OldCode: 1908799001, NewCode: 1908790001},
		override.Rule{OldCode: 1908790001, NewCode: 1908799001},
	)

	once := NewWorkingSet(canonical, geometry)
	once.joinExact()
	once.ApplyOverrides(opts.Rules)

	twice := NewWorkingSet(canonical, geometry)
	twice.joinExact()
	twice.ApplyOverrides(opts.Rules)
	twice.ApplyOverrides(opts.Rules)

	assert.Equal(t, once.Geometry, twice.Geometry)
	assert.Equal(t, normalize.Code(1908799001), twice.Geometry[6].WorkingCode)
}

func TestTrackerSamplesAreSortedAndBounded(t *testing.T) {
	canonical := []psgc.CanonicalRecord{
		bgy(1908701003, "Zapote", ""),
		bgy(1908701001, "Ñato", ""),
		bgy(1908701002, "Abaca", ""),
	}

	ws := NewWorkingSet(canonical, nil)
	tracker := NewTracker(2)
	snapshot := tracker.Record(StageExact, ws, 0)

	assert.Equal(t, 3, snapshot.UnmatchedCanonical)
	require.Len(t, snapshot.CanonicalSample, 2)
	assert.Equal(t, "Abaca", snapshot.CanonicalSample[0].Name)
	assert.Equal(t, "Ñato", snapshot.CanonicalSample[1].Name)
	assert.Len(t, tracker.Snapshots(), 1)
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(quietContext())
	cancel()

	_, err := New(DefaultOptions(normalize.TierBarangay)).Run(ctx, nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
