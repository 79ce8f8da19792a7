package import_pkg

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/psgc-shape/internal/logging"
	"github.com/psgc-shape/internal/normalize"
	"github.com/psgc-shape/internal/psgc"
)

// Registry publication layout, by column position. Columns 8, 10 and 12 hold
// footnote markers and are ignored.
const (
	colCode           = 0
	colName           = 1
	colCorrespondence = 2
	colLevel          = 3
)

var attributeColumns = []struct {
	index int
	key   string
}{
	{4, "city_class"},
	{5, "income_class"},
	{6, "urban_rural"},
	{7, "pop_2015"},
	{9, "pop_2020"},
	{11, "status"},
}

var errNoCode = errors.New("row has no code")

// LoadRegistry reads the registry from an .xlsx sheet or a .csv file. The
// first row is a header. Rows named in fixes take the fixed code; rows left
// without a code are skipped.
func LoadRegistry(ctx context.Context, path, sheet string, fixes map[string]normalize.Code) ([]psgc.CanonicalRecord, Stats, error) {
	logger := logging.FromContext(ctx)
	var stats Stats

	if err := checkSource(path); err != nil {
		return nil, stats, err
	}
	logger.Info().Str("path", path).Str("sheet", sheet).Msg("loading registry")

	rows, err := readRows(path, sheet)
	if err != nil {
		return nil, stats, err
	}
	if len(rows) == 0 {
		return nil, stats, &SourceError{Path: path, Kind: ErrParseFailure, Err: errors.New("no header row")}
	}

	var records []psgc.CanonicalRecord
	for n, row := range rows[1:] {
		stats.Read++
		rec, err := mapRegistryRow(row, fixes)
		switch {
		case errors.Is(err, errNoCode):
			stats.Skipped++
			continue
		case errors.Is(err, normalize.ErrInvalidCodeFormat):
			logger.Warn().Err(err).Int("row", n+2).Msg("registry row dropped")
			stats.InvalidCodes++
			continue
		case err != nil:
			logger.Warn().Err(err).Int("row", n+2).Msg("registry row dropped")
			stats.Errors++
			continue
		}
		if rec.Level == psgc.LevelUnknown {
			logger.Warn().Stringer("code", rec.Code).Str("level", cell(row, colLevel)).Msg("unknown geographic level")
		}
		records = append(records, rec)
		stats.Loaded++
	}

	DeriveParentHints(records)

	logger.Info().
		Int("loaded", stats.Loaded).
		Int("skipped", stats.Skipped).
		Int("invalid_codes", stats.InvalidCodes).
		Msg("registry loaded")
	return records, stats, nil
}

func readRows(path, sheet string) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		file, err := os.Open(path)
		if err != nil {
			return nil, &SourceError{Path: path, Kind: ErrMissingSource, Err: err}
		}
		defer file.Close()

		reader := csv.NewReader(file)
		reader.FieldsPerRecord = -1
		reader.LazyQuotes = true

		var rows [][]string
		for {
			record, err := reader.Read()
			if err == io.EOF {
				break
			}
			if err != nil {
				return nil, &SourceError{Path: path, Kind: ErrParseFailure, Err: err}
			}
			rows = append(rows, record)
		}
		return rows, nil

	case ".xlsx", ".xlsm":
		book, err := excelize.OpenFile(path)
		if err != nil {
			return nil, &SourceError{Path: path, Kind: ErrParseFailure, Err: err}
		}
		defer book.Close()

		rows, err := book.GetRows(sheet, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, &SourceError{Path: path, Kind: ErrParseFailure, Err: fmt.Errorf("sheet %q: %w", sheet, err)}
		}
		return rows, nil
	}

	return nil, &SourceError{Path: path, Kind: ErrParseFailure, Err: errors.New("unsupported registry format")}
}

func cell(row []string, i int) string {
	if i < len(row) {
		return strings.TrimSpace(row[i])
	}
	return ""
}

func mapRegistryRow(row []string, fixes map[string]normalize.Code) (psgc.CanonicalRecord, error) {
	rec := psgc.CanonicalRecord{Name: cell(row, colName)}

	if fixed, ok := fixes[rec.Name]; ok {
		rec.Code = fixed
	} else {
		raw := cell(row, colCode)
		if raw == "" {
			return rec, errNoCode
		}
		code, err := normalize.ParseCode(raw)
		if err != nil {
			return rec, err
		}
		rec.Code = code
	}

	if raw := cell(row, colCorrespondence); raw != "" {
		if corr, err := normalize.ParseCode(raw); err == nil {
			rec.CorrespondenceCode = &corr
		}
	}

	rec.Level, _ = psgc.ParseLevel(cell(row, colLevel))

	for _, col := range attributeColumns {
		if v := cell(row, col.index); v != "" {
			if rec.Attributes == nil {
				rec.Attributes = make(map[string]string)
			}
			rec.Attributes[col.key] = v
		}
	}

	return rec, nil
}

// DeriveParentHints fills missing parent names from the registry itself: the
// municipality of a barangay is the record at its municipality ancestor code,
// and likewise for provinces.
func DeriveParentHints(records []psgc.CanonicalRecord) {
	names := map[normalize.Tier]map[normalize.Code]string{
		normalize.TierProvince:     {},
		normalize.TierMunicipality: {},
	}
	for i := range records {
		if byCode, ok := names[records[i].Level.Tier()]; ok {
			byCode[records[i].Code] = records[i].Name
		}
	}

	for i := range records {
		rec := &records[i]
		tier := rec.Level.Tier()
		if tier == normalize.TierBarangay && rec.ParentHints.Municipality == "" {
			rec.ParentHints.Municipality = names[normalize.TierMunicipality][normalize.AncestorCode(rec.Code, normalize.TierMunicipality)]
		}
		if tier >= normalize.TierMunicipality && rec.ParentHints.Province == "" {
			rec.ParentHints.Province = names[normalize.TierProvince][normalize.AncestorCode(rec.Code, normalize.TierProvince)]
		}
	}
}
