// Package export writes the joined table of each tier and its unmatched and
// ambiguity reports to the output directory.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/psgc-shape/internal/engine"
	"github.com/psgc-shape/internal/hierarchy"
	"github.com/psgc-shape/internal/logging"
	"github.com/psgc-shape/internal/normalize"
)

var labels = map[normalize.Tier]string{
	normalize.TierRegion:       "Regions",
	normalize.TierProvince:     "ProvDists",
	normalize.TierMunicipality: "MuniCities",
	normalize.TierBarangay:     "BgySubMuns",
}

// BaseName returns the file stem of a tier's outputs, e.g. PH_Adm4_BgySubMuns.
func BaseName(tier normalize.Tier) string {
	label, ok := labels[tier]
	if !ok {
		label = tier.String()
	}
	return fmt.Sprintf("PH_Adm%d_%s", int(tier), label)
}

// Files are the paths written for one tier.
type Files struct {
	Table     string `json:"table"`
	GeoJSON   string `json:"geojson"`
	Unmatched string `json:"unmatched"`
	Ambiguous string `json:"ambiguous"`
}

// Exporter writes tier outputs below a directory.
type Exporter struct {
	outputDir string
}

// NewExporter creates a new exporter
func NewExporter(outputDir string) *Exporter {
	return &Exporter{outputDir: outputDir}
}

// Export writes all four files of a tier.
func (e *Exporter) Export(result *engine.Result, rows []hierarchy.Row) (Files, error) {
	if err := os.MkdirAll(e.outputDir, 0755); err != nil {
		return Files{}, fmt.Errorf("failed to create output directory: %w", err)
	}

	base := filepath.Join(e.outputDir, BaseName(result.Tier))
	files := Files{
		Table:     base + ".csv",
		GeoJSON:   base + ".geojson",
		Unmatched: base + "_unmatched.csv",
		Ambiguous: base + "_ambiguous.csv",
	}

	if err := writeCSV(files.Table, Header(result.Tier), tableRecords(result.Tier, rows)); err != nil {
		return files, err
	}
	if err := WriteGeoJSON(files.GeoJSON, result.Tier, rows); err != nil {
		return files, err
	}
	if err := writeCSV(files.Unmatched, unmatchedHeader, unmatchedRecords(result)); err != nil {
		return files, err
	}
	if err := writeCSV(files.Ambiguous, ambiguityHeader, ambiguityRecords(result)); err != nil {
		return files, err
	}

	logging.Default().Info().
		Str("tier", result.Tier.String()).
		Int("rows", len(rows)).
		Str("table", files.Table).
		Msg("tier exported")
	return files, nil
}

func writeCSV(path string, header []string, records [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if err := writer.WriteAll(records); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return file.Close()
}

func code(c normalize.Code) string {
	return strconv.FormatInt(int64(c), 10)
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
