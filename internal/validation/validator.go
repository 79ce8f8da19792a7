// Package validation checks a joined table for the problems the matching
// stages are allowed to leave behind.
package validation

import (
	"fmt"
	"sort"

	"github.com/psgc-shape/internal/hierarchy"
	"github.com/psgc-shape/internal/logging"
	"github.com/psgc-shape/internal/normalize"
)

// Validator checks joined tables against the full registry.
type Validator struct {
	dir hierarchy.Directory
}

// NewValidator creates a validator resolving ancestors through dir
func NewValidator(dir hierarchy.Directory) *Validator {
	return &Validator{dir: dir}
}

// Validate returns the findings for one tier's rows: sentinel boundary codes,
// then fan-outs, then orphan ancestors by code.
func (v *Validator) Validate(tier normalize.Tier, rows []hierarchy.Row) []Finding {
	var findings []Finding
	findings = append(findings, v.sentinels(tier, rows)...)
	findings = append(findings, v.fanOuts(tier, rows)...)
	findings = append(findings, v.orphans(tier, rows)...)

	if len(findings) > 0 {
		summary := Summarize(findings)
		logging.Default().Warn().
			Str("tier", tier.String()).
			Int("fan_out", summary[KindFanOut]).
			Int("orphan_ancestor", summary[KindOrphanAncestor]).
			Int("sentinel_code", summary[KindSentinel]).
			Msg("joined table has findings")
	}
	return findings
}

func (v *Validator) sentinels(tier normalize.Tier, rows []hierarchy.Row) []Finding {
	var findings []Finding
	for i := range rows {
		row := &rows[i]
		if row.Shape == nil || row.Shape.WorkingCode != normalize.Sentinel {
			continue
		}
		findings = append(findings, Finding{
			Kind:   KindSentinel,
			Tier:   tier,
			Code:   normalize.Sentinel,
			Name:   row.ShapeName,
			Reason: fmt.Sprintf("boundary code %q is not a valid code", row.ShapeCode),
		})
	}
	return findings
}

func (v *Validator) fanOuts(tier normalize.Tier, rows []hierarchy.Row) []Finding {
	shapes := make(map[normalize.Code][]string)
	var order []normalize.Code
	names := make(map[normalize.Code]string)

	for i := range rows {
		row := &rows[i]
		if !row.Matched() {
			continue
		}
		if _, seen := shapes[row.Code]; !seen {
			order = append(order, row.Code)
			names[row.Code] = row.Name
		}
		shapes[row.Code] = append(shapes[row.Code], row.ShapeCode)
	}

	var findings []Finding
	for _, code := range order {
		if len(shapes[code]) < 2 {
			continue
		}
		findings = append(findings, Finding{
			Kind:    KindFanOut,
			Tier:    tier,
			Code:    code,
			Name:    names[code],
			Reason:  fmt.Sprintf("%d boundaries carry this code", len(shapes[code])),
			Details: map[string]interface{}{"shapes": shapes[code]},
		})
	}
	return findings
}

func (v *Validator) orphans(tier normalize.Tier, rows []hierarchy.Row) []Finding {
	missing := make(map[normalize.Code]int)
	tiers := make(map[normalize.Code]normalize.Tier)

	for i := range rows {
		for _, a := range rows[i].Ancestors {
			if _, ok := v.dir[a.Code]; ok {
				continue
			}
			missing[a.Code]++
			tiers[a.Code] = a.Tier
		}
	}

	codes := make([]normalize.Code, 0, len(missing))
	for code := range missing {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(a, b int) bool { return codes[a] < codes[b] })

	findings := make([]Finding, 0, len(codes))
	for _, code := range codes {
		findings = append(findings, Finding{
			Kind:    KindOrphanAncestor,
			Tier:    tier,
			Code:    code,
			Reason:  fmt.Sprintf("%s ancestor is not in the registry", tiers[code]),
			Details: map[string]interface{}{"rows": missing[code]},
		})
	}
	return findings
}
