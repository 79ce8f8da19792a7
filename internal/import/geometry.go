package import_pkg

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/paulmach/orb/geojson"

	"github.com/psgc-shape/internal/logging"
	"github.com/psgc-shape/internal/normalize"
	"github.com/psgc-shape/internal/psgc"
)

// Properties names the feature properties that carry a unit's name, legacy
// code and parent name.
type Properties struct {
	Name   string
	Code   string
	Parent string
}

// PropertiesFor returns the boundary dataset's property keys for a tier.
func PropertiesFor(tier normalize.Tier) Properties {
	n := int(tier)
	return Properties{
		Name:   fmt.Sprintf("adm%d_en", n),
		Code:   fmt.Sprintf("adm%d_pcode", n),
		Parent: fmt.Sprintf("adm%d_en", n-1),
	}
}

// GeometryOptions controls which features are kept.
type GeometryOptions struct {
	// ReservedFrom drops barangay features whose last group is at least this
	// value (forest reserves, unclaimed land, watersheds). Zero keeps all.
	ReservedFrom int64
	// ReservedExempt keeps reserved codes under these parents.
	ReservedExempt []normalize.Code
}

// DefaultGeometryOptions drops reserved barangay areas except in Manila,
// where the high numbers are real barangays.
func DefaultGeometryOptions() GeometryOptions {
	return GeometryOptions{
		ReservedFrom:   900,
		ReservedExempt: []normalize.Code{1303900000},
	}
}

func (o GeometryOptions) reserved(code normalize.Code, tier normalize.Tier) bool {
	if tier != normalize.TierBarangay || o.ReservedFrom <= 0 || code == normalize.Sentinel {
		return false
	}
	if int64(code%1000) < o.ReservedFrom {
		return false
	}
	for _, parent := range o.ReservedExempt {
		if normalize.AncestorCode(code, normalize.TierOf(parent)) == parent {
			return false
		}
	}
	return true
}

// LoadGeometry reads a GeoJSON FeatureCollection of boundaries at tier. Codes
// that do not normalize become normalize.Sentinel and are counted.
func LoadGeometry(ctx context.Context, path string, tier normalize.Tier, opts GeometryOptions) ([]psgc.GeometryRecord, Stats, error) {
	logger := logging.FromContext(ctx)
	var stats Stats

	if err := checkSource(path); err != nil {
		return nil, stats, err
	}
	logger.Info().Str("path", path).Str("tier", tier.String()).Msg("loading boundaries")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, stats, &SourceError{Path: path, Kind: ErrMissingSource, Err: err}
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, stats, &SourceError{Path: path, Kind: ErrParseFailure, Err: err}
	}

	keys := PropertiesFor(tier)
	suffix := normalize.SuffixWidth(tier)

	records := make([]psgc.GeometryRecord, 0, len(fc.Features))
	for n, f := range fc.Features {
		stats.Read++

		raw := strings.TrimSpace(f.Properties.MustString(keys.Code, ""))
		code, err := normalize.Normalize(raw, suffix)
		if err != nil {
			logger.Warn().Err(err).Int("feature", n).Msg("boundary code replaced by sentinel")
			stats.InvalidCodes++
			code = normalize.Sentinel
		}

		if opts.reserved(code, tier) {
			stats.Skipped++
			continue
		}

		records = append(records, psgc.GeometryRecord{
			LegacyCode:  raw,
			WorkingCode: code,
			Name:        strings.TrimSpace(f.Properties.MustString(keys.Name, "")),
			ParentName:  strings.TrimSpace(f.Properties.MustString(keys.Parent, "")),
			Geometry:    f.Geometry,
		})
		stats.Loaded++
	}

	logger.Info().
		Int("loaded", stats.Loaded).
		Int("skipped", stats.Skipped).
		Int("invalid_codes", stats.InvalidCodes).
		Msg("boundaries loaded")
	return records, stats, nil
}
