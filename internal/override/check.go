package override

import (
	"fmt"
	"sort"

	"github.com/psgc-shape/internal/normalize"
)

// Finding is a review note about a table; findings never block a run.
type Finding struct {
	Level    string `json:"level"`
	Position int    `json:"position"`
	Rule     Rule   `json:"rule"`
	Message  string `json:"message"`
}

// Check reviews a table for rules an operator should look at: old codes that
// are reassigned more than once, rules whose codes sit at a different tier
// than the table level, and rules that will not cascade.
func Check(t *Table) []Finding {
	var findings []Finding
	if t == nil {
		return findings
	}

	levels := make([]string, 0, len(t.Levels))
	for level := range t.Levels {
		levels = append(levels, level)
	}
	sort.Strings(levels)

	for _, level := range levels {
		type key struct {
			code normalize.Code
			name string
		}
		seen := make(map[key]int)

		for i, rule := range t.Levels[level] {
			k := key{rule.OldCode, rule.Name}
			if first, ok := seen[k]; ok {
				findings = append(findings, Finding{
					Level:    level,
					Position: i,
					Rule:     rule,
					Message:  fmt.Sprintf("old code reassigned again (first at #%d); applied in declaration order", first+1),
				})
			} else {
				seen[k] = i
			}

			if tier := normalize.TierOf(rule.OldCode); tier > tierByName(level) {
				findings = append(findings, Finding{
					Level:    level,
					Position: i,
					Rule:     rule,
					Message:  fmt.Sprintf("old code is a %s code in the %s table", tier, level),
				})
			}

			if rule.Name == "" && normalize.TierOf(rule.OldCode) < normalize.TierBarangay && !rule.Cascades() {
				findings = append(findings, Finding{
					Level:    level,
					Position: i,
					Rule:     rule,
					Message:  "new code is finer than the old code; descendants will not follow",
				})
			}
		}
	}

	return findings
}

func tierByName(level string) normalize.Tier {
	for tier := normalize.TierRegion; tier <= normalize.TierBarangay; tier++ {
		if tier.String() == level {
			return tier
		}
	}
	return normalize.TierNone
}
