package override

import (
	"strings"

	"github.com/psgc-shape/internal/normalize"
	"github.com/psgc-shape/internal/psgc"
)

// Outcome records what one rule did when it was applied.
type Outcome struct {
	Rule      Rule `json:"rule"`
	Position  int  `json:"position"`
	Rewritten int  `json:"rewritten"`
	Cascaded  int  `json:"cascaded"`
	Held      int  `json:"held"`
}

// Stale reports whether the rule found nothing at its old code. Such rules
// are flagged, never dropped, so the table can be reviewed.
func (o Outcome) Stale() bool {
	return o.Rewritten == 0 && o.Cascaded == 0 && o.Held == 0
}

// Cascades reports whether descendants of the rule's old code follow it.
// Named rules target a single unit and never cascade; a new code finer than
// the old code's tier cannot carry descendants.
func (r Rule) Cascades() bool {
	if r.Name != "" {
		return false
	}
	tier := normalize.TierOf(r.OldCode)
	if tier == normalize.TierNone || tier == normalize.TierBarangay {
		return false
	}
	return normalize.AncestorCode(r.NewCode, tier) == r.NewCode
}

func (r Rule) targets(rec *psgc.GeometryRecord) bool {
	if rec.WorkingCode != r.OldCode {
		return false
	}
	return r.Name == "" || strings.TrimSpace(rec.Name) == r.Name
}

// ApplyRule rewrites every record the rule targets. Records for which held
// returns true are left alone and counted. The rule is atomic: membership is
// decided from each record's code before the rule touches it.
func ApplyRule(records []psgc.GeometryRecord, rule Rule, held func(int) bool) Outcome {
	outcome := Outcome{Rule: rule}
	cascades := rule.Cascades()

	for i := range records {
		rec := &records[i]
		direct := rule.targets(rec)
		descendant := cascades && normalize.IsDescendant(rec.WorkingCode, rule.OldCode)
		if !direct && !descendant {
			continue
		}
		if held != nil && held(i) {
			outcome.Held++
			continue
		}
		if direct {
			rec.WorkingCode = rule.NewCode
			outcome.Rewritten++
			continue
		}
		rec.WorkingCode = rec.WorkingCode - rule.OldCode + rule.NewCode
		outcome.Cascaded++
	}

	return outcome
}

// Apply runs the rules in declaration order and returns one outcome per rule.
func Apply(records []psgc.GeometryRecord, rules []Rule, held func(int) bool) []Outcome {
	outcomes := make([]Outcome, 0, len(rules))
	for i, rule := range rules {
		outcome := ApplyRule(records, rule, held)
		outcome.Position = i
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}
