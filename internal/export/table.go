package export

import (
	"fmt"
	"os"

	"github.com/paulmach/orb/geojson"

	"github.com/psgc-shape/internal/engine"
	"github.com/psgc-shape/internal/hierarchy"
	"github.com/psgc-shape/internal/normalize"
)

// Header returns the joined table columns of a tier: every ancestor's code
// and name, then the row's own.
func Header(tier normalize.Tier) []string {
	var header []string
	for t := normalize.TierRegion; t <= tier; t++ {
		header = append(header, fmt.Sprintf("adm%d_psgc", int(t)), fmt.Sprintf("adm%d_en", int(t)))
	}
	return append(header,
		"geo_level", "shape_pcode", "shape_en",
		"len_crs", "area_crs", "len_km", "area_km2",
	)
}

func tableRecords(tier normalize.Tier, rows []hierarchy.Row) [][]string {
	records := make([][]string, 0, len(rows))
	for i := range rows {
		records = append(records, tableRecord(tier, &rows[i]))
	}
	return records
}

func tableRecord(tier normalize.Tier, row *hierarchy.Row) []string {
	record := make([]string, 0, 2*int(tier)+7)
	for t := normalize.TierRegion; t < tier; t++ {
		a := ancestorAt(row, t)
		record = append(record, code(a.Code), a.Name)
	}
	record = append(record, code(row.Code), row.Name, levelLabel(row))
	record = append(record, row.ShapeCode, row.ShapeName)

	m := row.Measures
	return append(record, itoa(m.LenCRS), itoa(m.AreaCRS), itoa(m.LenKm), itoa(m.AreaKm2))
}

func ancestorAt(row *hierarchy.Row, t normalize.Tier) hierarchy.Ancestor {
	for _, a := range row.Ancestors {
		if a.Tier == t {
			return a
		}
	}
	return hierarchy.Ancestor{Tier: t}
}

func levelLabel(row *hierarchy.Row) string {
	if row.Canonical == nil {
		return ""
	}
	return row.Level.String()
}

// Properties returns the GeoJSON properties of a row, keyed like the table
// columns.
func Properties(tier normalize.Tier, row *hierarchy.Row) geojson.Properties {
	props := geojson.Properties{}
	for t := normalize.TierRegion; t < tier; t++ {
		a := ancestorAt(row, t)
		props[fmt.Sprintf("adm%d_psgc", int(t))] = int64(a.Code)
		props[fmt.Sprintf("adm%d_en", int(t))] = a.Name
	}
	props[fmt.Sprintf("adm%d_psgc", int(tier))] = int64(row.Code)
	props[fmt.Sprintf("adm%d_en", int(tier))] = row.Name
	props["geo_level"] = levelLabel(row)
	props["shape_pcode"] = row.ShapeCode
	props["shape_en"] = row.ShapeName
	props["len_crs"] = row.Measures.LenCRS
	props["area_crs"] = row.Measures.AreaCRS
	props["len_km"] = row.Measures.LenKm
	props["area_km2"] = row.Measures.AreaKm2
	return props
}

// FeatureCollection builds the features of every row that has a boundary.
func FeatureCollection(tier normalize.Tier, rows []hierarchy.Row) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for i := range rows {
		geom := rows[i].Geometry()
		if geom == nil {
			continue
		}
		f := geojson.NewFeature(geom)
		f.Properties = Properties(tier, &rows[i])
		fc.Append(f)
	}
	return fc
}

// WriteGeoJSON writes the rows with a boundary as a FeatureCollection.
func WriteGeoJSON(path string, tier normalize.Tier, rows []hierarchy.Row) error {
	data, err := FeatureCollection(tier, rows).MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

var unmatchedHeader = []string{"side", "code", "legacy_code", "name", "parent_name"}

func unmatchedRecords(result *engine.Result) [][]string {
	var records [][]string
	for _, rows := range [][]engine.Row{result.UnmatchedCanonical, result.UnmatchedGeometry} {
		for _, r := range rows {
			records = append(records, []string{string(r.Side), code(r.Code), r.LegacyCode, r.Name, r.ParentName})
		}
	}
	return records
}

var ambiguityHeader = []string{
	"stage", "stage_name", "side", "code", "name",
	"candidate_side", "candidate_code", "candidate_name", "candidate_parent",
}

func ambiguityRecords(result *engine.Result) [][]string {
	var records [][]string
	for _, a := range result.Ambiguities {
		for _, c := range a.Candidates {
			records = append(records, []string{
				itoa(int64(a.Stage)), a.Stage.String(), string(a.Side), code(a.Code), a.Name,
				string(c.Side), code(c.Code), c.Name, c.ParentName,
			})
		}
	}
	return records
}
