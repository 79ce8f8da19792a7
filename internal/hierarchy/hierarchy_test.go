package hierarchy

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psgc-shape/internal/engine"
	"github.com/psgc-shape/internal/normalize"
	"github.com/psgc-shape/internal/psgc"
)

func registry() []psgc.CanonicalRecord {
	return []psgc.CanonicalRecord{
		{Code: 1900000000, Name: "Bangsamoro Autonomous Region In Muslim Mindanao", Level: psgc.LevelRegion},
		{Code: 1908700000, Name: "Maguindanao del Norte", Level: psgc.LevelProvince},
		{Code: 1908701000, Name: "Barira", Level: psgc.LevelMunicipality},
		{Code: 1908701001, Name: "Bualan", Level: psgc.LevelBarangay},
		{Code: 1908701002, Name: "Lipa", Level: psgc.LevelBarangay},
		{Code: 1908701003, Name: "Marang", Level: psgc.LevelBarangay},
	}
}

func square(side float64) orb.Polygon {
	return orb.Polygon{{{0, 0}, {side, 0}, {side, side}, {0, side}, {0, 0}}}
}

func TestAncestorsRecoverParents(t *testing.T) {
	dir := NewDirectory(registry())

	for _, rec := range registry() {
		tier := rec.Level.Tier()
		ancestors := dir.Ancestors(rec.Code, tier)
		require.Len(t, ancestors, int(tier)-1, rec.Name)

		for _, a := range ancestors {
			assert.Equal(t, normalize.AncestorCode(rec.Code, a.Tier), a.Code)
			assert.NotEmpty(t, a.Name, "%s has no %s parent name", rec.Name, a.Tier)
		}
	}

	bualan := dir.Ancestors(1908701001, normalize.TierBarangay)
	assert.Equal(t, "Barira", bualan[2].Name)
	assert.Equal(t, "Maguindanao del Norte", bualan[1].Name)
}

func TestAncestorsOfUnknownParent(t *testing.T) {
	dir := NewDirectory(registry())
	ancestors := dir.Ancestors(1908799001, normalize.TierBarangay)
	require.Len(t, ancestors, 3)
	assert.Equal(t, normalize.Code(1908799000), ancestors[2].Code)
	assert.Empty(t, ancestors[2].Name)
}

func TestBuild(t *testing.T) {
	all := registry()
	barangays := psgc.Select(all, normalize.TierBarangay)

	result := &engine.Result{
		Tier:      normalize.TierBarangay,
		Canonical: barangays,
		Geometry: []psgc.GeometryRecord{
			{LegacyCode: "PH1908718002", WorkingCode: 1908701002, Name: "Lipa", Geometry: square(10)},
			{LegacyCode: "PH1908718001", WorkingCode: 1908701001, Name: "Bualan", Geometry: square(10)},
			{LegacyCode: "PH1908718009", WorkingCode: 1908701001, Name: "Bualan Proper", Geometry: square(5)},
			{LegacyCode: "PH19-087", WorkingCode: normalize.Sentinel, Name: "Garbled"},
			{LegacyCode: "PH1908718950", WorkingCode: 1908718950, Name: "Watershed"},
		},
	}

	rows := Build(result, NewDirectory(all))
	require.Len(t, rows, 6)

	assert.Equal(t, "Bualan", rows[0].Name)
	assert.Equal(t, "Bualan", rows[0].ShapeName)
	assert.Equal(t, "Bualan Proper", rows[1].ShapeName, "fan-out keeps both boundaries")
	assert.True(t, rows[1].Matched())

	assert.Equal(t, "Lipa", rows[2].Name)
	assert.Equal(t, "Barira", rows[2].Parent().Name)

	assert.Equal(t, "Marang", rows[3].Name)
	assert.False(t, rows[3].Matched())
	assert.Nil(t, rows[3].Geometry())
	assert.Zero(t, rows[3].Measures)

	assert.Empty(t, rows[4].Name)
	assert.Equal(t, "Garbled", rows[4].ShapeName)
	assert.Nil(t, rows[4].Ancestors)

	assert.Equal(t, normalize.Code(1908718950), rows[5].Code)
	assert.Equal(t, normalize.Code(1908718000), rows[5].Parent().Code)
	assert.Empty(t, rows[5].Parent().Name)
}

func TestMeasure(t *testing.T) {
	tests := []struct {
		name string
		geom orb.Geometry
		want Measures
	}{
		{
			name: "square in metres",
			geom: square(3000),
			want: Measures{LenCRS: 12000, AreaCRS: 9000000, LenKm: 12, AreaKm2: 9},
		},
		{
			name: "clockwise ring",
			geom: orb.Polygon{{{0, 0}, {0, 2000}, {2000, 2000}, {2000, 0}, {0, 0}}},
			want: Measures{LenCRS: 8000, AreaCRS: 4000000, LenKm: 8, AreaKm2: 4},
		},
		{
			name: "small parcel truncates",
			geom: square(10.5),
			want: Measures{LenCRS: 42, AreaCRS: 110},
		},
		{
			name: "no geometry",
			geom: nil,
			want: Measures{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Measure(tt.geom))
		})
	}
}
