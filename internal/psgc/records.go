// Package psgc holds the records exchanged between the loaders, the matching
// engine and the writers.
package psgc

import (
	"fmt"
	"strings"

	"github.com/paulmach/orb"

	"github.com/psgc-shape/internal/normalize"
)

// Level is the geographic level a registry row is classified under.
type Level int

const (
	LevelUnknown Level = iota
	LevelRegion
	LevelProvince
	LevelDistrict
	LevelMunicipality
	LevelCity
	LevelSpecialGeographicUnit
	LevelBarangay
	LevelSubMunicipality
)

var levelLabels = map[Level]string{
	LevelRegion:                "Reg",
	LevelProvince:              "Prov",
	LevelDistrict:              "Dist",
	LevelMunicipality:          "Mun",
	LevelCity:                  "City",
	LevelSpecialGeographicUnit: "SGU",
	LevelBarangay:              "Bgy",
	LevelSubMunicipality:       "SubMun",
}

// ParseLevel maps the registry's geo_level label to a Level.
func ParseLevel(s string) (Level, error) {
	label := strings.TrimSpace(s)
	for level, l := range levelLabels {
		if strings.EqualFold(l, label) {
			return level, nil
		}
	}
	return LevelUnknown, fmt.Errorf("unknown geographic level %q", s)
}

// String returns the registry label of the level.
func (l Level) String() string {
	if s, ok := levelLabels[l]; ok {
		return s
	}
	return "Unknown"
}

// Tier returns the digit group the level's codes are defined down to.
func (l Level) Tier() normalize.Tier {
	switch l {
	case LevelRegion:
		return normalize.TierRegion
	case LevelProvince, LevelDistrict:
		return normalize.TierProvince
	case LevelMunicipality, LevelCity, LevelSpecialGeographicUnit:
		return normalize.TierMunicipality
	case LevelBarangay, LevelSubMunicipality:
		return normalize.TierBarangay
	}
	return normalize.TierNone
}

// ParentHints are the enclosing unit names the registry reports for a row.
type ParentHints struct {
	Municipality string `json:"municipality,omitempty"`
	Province     string `json:"province,omitempty"`
}

// CanonicalRecord is one registry row. It is never mutated after loading.
type CanonicalRecord struct {
	Code               normalize.Code    `json:"code"`
	Name               string            `json:"name"`
	CorrespondenceCode *normalize.Code   `json:"correspondence_code,omitempty"`
	Level              Level             `json:"level"`
	Attributes         map[string]string `json:"attributes,omitempty"`
	ParentHints        ParentHints       `json:"parent_hints"`
}

// GeometryRecord is one boundary feature. Only WorkingCode changes once the
// record is loaded.
type GeometryRecord struct {
	LegacyCode  string         `json:"legacy_code"`
	WorkingCode normalize.Code `json:"working_code"`
	Name        string         `json:"name"`
	ParentName  string         `json:"parent_name"`
	Geometry    orb.Geometry   `json:"-"`
}

// ParentHint returns the registry's name for the unit one tier above the
// record, or "" when the registry reports none.
func (r *CanonicalRecord) ParentHint() string {
	switch r.Level.Tier() {
	case normalize.TierBarangay:
		return r.ParentHints.Municipality
	case normalize.TierMunicipality:
		return r.ParentHints.Province
	}
	return ""
}

// Select returns the records reconciled at tier, plus any record whose name is
// listed in alsoNamed.
func Select(records []CanonicalRecord, tier normalize.Tier, alsoNamed ...string) []CanonicalRecord {
	extra := make(map[string]bool, len(alsoNamed))
	for _, name := range alsoNamed {
		extra[name] = true
	}

	var out []CanonicalRecord
	for _, rec := range records {
		if rec.Level.Tier() == tier || extra[rec.Name] {
			out = append(out, rec)
		}
	}
	return out
}
