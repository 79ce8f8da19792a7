package validation

import (
	"fmt"

	"github.com/psgc-shape/internal/normalize"
)

// Kind classifies a finding.
type Kind string

const (
	// KindFanOut marks a registry code carried by more than one boundary.
	KindFanOut Kind = "fan_out"
	// KindOrphanAncestor marks a row whose recomputed ancestor is not in the
	// registry.
	KindOrphanAncestor Kind = "orphan_ancestor"
	// KindSentinel marks a boundary whose code never normalized.
	KindSentinel Kind = "sentinel_code"
)

// Finding is one problem in a joined table. Findings are reported, never
// fatal.
type Finding struct {
	Kind    Kind                   `json:"kind"`
	Tier    normalize.Tier         `json:"tier"`
	Code    normalize.Code         `json:"code"`
	Name    string                 `json:"name"`
	Reason  string                 `json:"reason"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (f Finding) String() string {
	return fmt.Sprintf("%s %s %q: %s", f.Kind, f.Code, f.Name, f.Reason)
}

// Summary counts findings by kind.
type Summary map[Kind]int

// Summarize counts findings by kind.
func Summarize(findings []Finding) Summary {
	s := Summary{}
	for _, f := range findings {
		s[f.Kind]++
	}
	return s
}
