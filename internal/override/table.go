// Package override holds the curated code remap rules that encode structural
// changes (renumbering cascades, reclassification, boundary disputes) that no
// matching heuristic can recover from the data alone.
package override

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/psgc-shape/internal/normalize"
)

// ErrInvalidRule is matched by every *RuleError.
var ErrInvalidRule = errors.New("invalid override rule")

//go:embed tables/psgc_2023_4q.yaml
var defaultTable []byte

// Rule rewrites geometry records at OldCode to NewCode. When Name is set the
// rule only touches records with exactly that name.
type Rule struct {
	OldCode normalize.Code `yaml:"old" json:"old_code"`
	NewCode normalize.Code `yaml:"new" json:"new_code"`
	Name    string         `yaml:"name,omitempty" json:"name,omitempty"`
	Note    string         `yaml:"note,omitempty" json:"note,omitempty"`
}

// String renders the rule for logs and reports.
func (r Rule) String() string {
	s := fmt.Sprintf("%s -> %s", normalize.Format(r.OldCode), normalize.Format(r.NewCode))
	if r.Name != "" {
		s += fmt.Sprintf(" [%s]", r.Name)
	}
	return s
}

// RegistryFix assigns a code to a registry row published without one.
type RegistryFix struct {
	Name string         `yaml:"name"`
	Code normalize.Code `yaml:"code"`
}

// Table is a versioned set of remap rules, one ordered list per tier.
type Table struct {
	Version  string            `yaml:"version"`
	Registry []RegistryFix     `yaml:"registry"`
	Levels   map[string][]Rule `yaml:"levels"`
}

// RuleError describes a malformed rule.
type RuleError struct {
	Level  string
	Index  int
	Rule   Rule
	Reason string
}

// Error implements the error interface
func (e *RuleError) Error() string {
	return fmt.Sprintf("%s rule #%d (%s): %s", e.Level, e.Index+1, e.Rule, e.Reason)
}

// Is implements errors.Is support
func (e *RuleError) Is(target error) bool {
	return target == ErrInvalidRule
}

// Default returns the table shipped with the binary.
func Default() (*Table, error) {
	return Parse(defaultTable)
}

// Load reads a table from a YAML file.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read override table %s: %w", path, err)
	}
	table, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse override table %s: %w", path, err)
	}
	return table, nil
}

// Parse decodes and validates a YAML table.
func Parse(data []byte) (*Table, error) {
	var table Table
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, err
	}
	if table.Levels == nil {
		table.Levels = make(map[string][]Rule)
	}

	for level, rules := range table.Levels {
		if !knownLevel(level) {
			return nil, fmt.Errorf("unknown level %q in override table", level)
		}
		for i, rule := range rules {
			if rule.OldCode <= 0 || rule.NewCode <= 0 {
				return nil, &RuleError{Level: level, Index: i, Rule: rule, Reason: "codes must be positive"}
			}
			if rule.OldCode == rule.NewCode {
				return nil, &RuleError{Level: level, Index: i, Rule: rule, Reason: "old and new code are equal"}
			}
			rules[i].Name = strings.TrimSpace(rule.Name)
		}
	}
	for _, fix := range table.Registry {
		if strings.TrimSpace(fix.Name) == "" || fix.Code <= 0 {
			return nil, fmt.Errorf("registry fix %+v needs a name and a positive code", fix)
		}
	}

	return &table, nil
}

// Rules returns the ordered rules for a tier.
func (t *Table) Rules(tier normalize.Tier) []Rule {
	if t == nil {
		return nil
	}
	return t.Levels[tier.String()]
}

// RegistryCodes returns the name to code fixes as a map.
func (t *Table) RegistryCodes() map[string]normalize.Code {
	fixes := make(map[string]normalize.Code)
	if t == nil {
		return fixes
	}
	for _, fix := range t.Registry {
		fixes[strings.TrimSpace(fix.Name)] = fix.Code
	}
	return fixes
}

func knownLevel(level string) bool {
	for tier := normalize.TierRegion; tier <= normalize.TierBarangay; tier++ {
		if tier.String() == level {
			return true
		}
	}
	return false
}
