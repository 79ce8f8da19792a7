package engine

import (
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/psgc-shape/internal/normalize"
	"github.com/psgc-shape/internal/psgc"
)

// ErrAmbiguousMatch is matched by every *Ambiguity.
var ErrAmbiguousMatch = errors.New("ambiguous match")

// Stage identifies one step of the cascade.
type Stage int

const (
	StageExact Stage = iota
	StageOverride
	StageCorrespondence
	StageContainment
	StageSpecial
	StageScope
)

var stageNames = []string{
	"exact code and name",
	"override table",
	"correspondence code",
	"parent-qualified name",
	"special designation",
	"ancestor scope",
}

// String returns a readable stage name.
func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("stage %d", int(s))
	}
	return stageNames[s]
}

// Side names which table a record belongs to.
type Side string

const (
	SideCanonical Side = "canonical"
	SideGeometry  Side = "geometry"
)

// Candidate is one record a heuristic stage could not choose between.
type Candidate struct {
	Side       Side           `json:"side"`
	Code       normalize.Code `json:"code"`
	Name       string         `json:"name"`
	ParentName string         `json:"parent_name,omitempty"`
}

// Ambiguity is logged whenever a stage finds more than one candidate. The
// subject stays unmatched.
type Ambiguity struct {
	Stage      Stage          `json:"stage"`
	Side       Side           `json:"side"`
	Code       normalize.Code `json:"code"`
	Name       string         `json:"name"`
	Candidates []Candidate    `json:"candidates"`
}

// Error implements the error interface
func (a *Ambiguity) Error() string {
	return fmt.Sprintf("%s %s %q: %d candidates at %s stage", a.Side, a.Code, a.Name, len(a.Candidates), a.Stage)
}

// Is implements errors.Is support
func (a *Ambiguity) Is(target error) bool {
	return target == ErrAmbiguousMatch
}

func (ws *WorkingSet) canonicalAmbiguity(stage Stage, i int, geometry []int) Ambiguity {
	canon := &ws.Canonical[i]
	amb := Ambiguity{Stage: stage, Side: SideCanonical, Code: canon.Code, Name: canon.Name}
	for _, j := range geometry {
		geo := &ws.Geometry[j]
		amb.Candidates = append(amb.Candidates, Candidate{
			Side:       SideGeometry,
			Code:       geo.WorkingCode,
			Name:       geo.Name,
			ParentName: geo.ParentName,
		})
	}
	return amb
}

func (ws *WorkingSet) geometryAmbiguity(stage Stage, j int, canonical []int) Ambiguity {
	geo := &ws.Geometry[j]
	amb := Ambiguity{Stage: stage, Side: SideGeometry, Code: geo.WorkingCode, Name: geo.Name}
	for _, i := range canonical {
		canon := &ws.Canonical[i]
		amb.Candidates = append(amb.Candidates, Candidate{
			Side:       SideCanonical,
			Code:       canon.Code,
			Name:       canon.Name,
			ParentName: canon.ParentHint(),
		})
	}
	return amb
}

func logAmbiguity(logger *zerolog.Logger, amb Ambiguity) {
	names := make([]string, len(amb.Candidates))
	for k, c := range amb.Candidates {
		names[k] = fmt.Sprintf("%s %s", c.Code, c.Name)
	}
	logger.Warn().
		Err(&amb).
		Str("side", string(amb.Side)).
		Strs("candidates", names).
		Msg("skipped: multiple candidates")
}

// ImpliedCode reads a nine-digit correspondence code as a ten-digit code: the
// province group gained a leading digit when the scheme was widened.
func ImpliedCode(correspondence normalize.Code) normalize.Code {
	const (
		oldRest = 10_000_000
		newRest = 100_000_000
	)
	return correspondence/oldRest*newRest + correspondence%oldRest
}

func within(code normalize.Code, scopes []normalize.Code) bool {
	for _, scope := range scopes {
		if normalize.AncestorCode(code, normalize.TierOf(scope)) == scope {
			return true
		}
	}
	return false
}

// correspondenceStage rewrites the single unmatched geometry record sitting at
// a canonical record's implied old code. Excluded scopes only block the
// rewrite; several candidates are still reported.
func (e *Engine) correspondenceStage(ws *WorkingSet, logger *zerolog.Logger) []Ambiguity {
	var ambiguities []Ambiguity

	for _, i := range ws.UnmatchedCanonical() {
		if ws.CanonicalMatched(i) {
			continue
		}
		canon := &ws.Canonical[i]
		if canon.CorrespondenceCode == nil || *canon.CorrespondenceCode == normalize.Sentinel {
			logger.Debug().Str("name", canon.Name).Msg("skipped: no correspondence code")
			continue
		}

		implied := ImpliedCode(*canon.CorrespondenceCode)
		candidates := ws.findGeometry(func(g *psgc.GeometryRecord) bool {
			return g.WorkingCode == implied
		})
		switch len(candidates) {
		case 0:
		case 1:
			if within(implied, e.opts.InferenceExclusions) {
				logger.Debug().Str("name", canon.Name).Stringer("implied", implied).Msg("skipped: implied code is excluded")
				continue
			}
			ws.rewrite(candidates[0], canon.Code)
		default:
			amb := ws.canonicalAmbiguity(StageCorrespondence, i, candidates)
			logAmbiguity(logger, amb)
			ambiguities = append(ambiguities, amb)
		}
	}

	return ambiguities
}

// containment needs a parent hint on the canonical side. A blank parent name
// on the geometry side is contained in any hint.
func containment(canon *psgc.CanonicalRecord, geo *psgc.GeometryRecord) bool {
	hint := canon.ParentHint()
	if hint == "" {
		return false
	}
	return normalize.Equivalent(geo.Name, canon.Name) && normalize.Equivalent(geo.ParentName, hint)
}

// containmentStage pairs records whose names and parent names are equivalent.
// Canonical records are resolved first; the geometry pass then accepts a pair
// only when it is unique from both sides.
func (e *Engine) containmentStage(ws *WorkingSet, logger *zerolog.Logger) []Ambiguity {
	var ambiguities []Ambiguity

	for _, i := range ws.UnmatchedCanonical() {
		if ws.CanonicalMatched(i) {
			continue
		}
		canon := &ws.Canonical[i]
		if canon.ParentHint() == "" {
			continue
		}

		candidates := ws.findGeometry(func(g *psgc.GeometryRecord) bool {
			return containment(canon, g)
		})
		switch len(candidates) {
		case 0:
		case 1:
			ws.rewrite(candidates[0], canon.Code)
		default:
			amb := ws.canonicalAmbiguity(StageContainment, i, candidates)
			logAmbiguity(logger, amb)
			ambiguities = append(ambiguities, amb)
		}
	}

	for _, j := range ws.UnmatchedGeometry() {
		if ws.GeometryMatched(j) {
			continue
		}
		geo := &ws.Geometry[j]

		candidates := ws.findCanonical(func(c *psgc.CanonicalRecord) bool {
			return containment(c, geo)
		})
		switch len(candidates) {
		case 0:
		case 1:
			canon := &ws.Canonical[candidates[0]]
			reverse := ws.findGeometry(func(g *psgc.GeometryRecord) bool {
				return containment(canon, g)
			})
			if len(reverse) == 1 {
				ws.rewrite(j, canon.Code)
			}
		default:
			amb := ws.geometryAmbiguity(StageContainment, j, candidates)
			logAmbiguity(logger, amb)
			ambiguities = append(ambiguities, amb)
		}
	}

	return ambiguities
}

// specialStage moves geometry under the special designation parent into the
// parallel code space, when exactly one record lands on an unmatched
// canonical code.
func (e *Engine) specialStage(ws *WorkingSet, logger *zerolog.Logger) []Ambiguity {
	parent := e.opts.SpecialParent
	tier := normalize.TierOf(parent)
	if tier == normalize.TierNone || tier == normalize.TierBarangay {
		return nil
	}

	targets := make(map[normalize.Code][]int)
	for _, j := range ws.UnmatchedGeometry() {
		code := ws.Geometry[j].WorkingCode
		if normalize.AncestorCode(code, tier) != parent {
			continue
		}
		target := normalize.ReplaceGroup(code, tier, e.opts.SpecialMarker)
		targets[target] = append(targets[target], j)
	}

	codes := make([]normalize.Code, 0, len(targets))
	for code := range targets {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(a, b int) bool { return codes[a] < codes[b] })

	var ambiguities []Ambiguity
	for _, target := range codes {
		canonical := ws.findCanonical(func(c *psgc.CanonicalRecord) bool {
			return c.Code == target
		})
		if len(canonical) == 0 {
			logger.Debug().Stringer("target", target).Msg("skipped: no canonical record in the parallel space")
			continue
		}

		geometry := targets[target]
		if len(geometry) > 1 {
			amb := ws.canonicalAmbiguity(StageSpecial, canonical[0], geometry)
			logAmbiguity(logger, amb)
			ambiguities = append(ambiguities, amb)
			continue
		}
		ws.rewrite(geometry[0], target)
	}

	return ambiguities
}

// scopeStage searches the canonical record's parent unit for an unmatched
// geometry record with exactly the same name. Matched records are not
// candidates. Scope exceptions widen the search to a second parent.
func (e *Engine) scopeStage(ws *WorkingSet, logger *zerolog.Logger) []Ambiguity {
	var ambiguities []Ambiguity

	for _, i := range ws.UnmatchedCanonical() {
		if ws.CanonicalMatched(i) {
			continue
		}
		canon := &ws.Canonical[i]

		tier := canon.Level.Tier()
		if tier == normalize.TierNone {
			tier = e.opts.Tier
		}
		if tier <= normalize.TierRegion {
			continue
		}
		scope := normalize.AncestorCode(canon.Code, tier-1)
		var alternates []normalize.Code
		for _, from := range e.exceptionKeys() {
			if within(canon.Code, []normalize.Code{from}) {
				alternates = append(alternates, e.opts.ScopeExceptions[from])
			}
		}

		candidates := ws.findGeometry(func(g *psgc.GeometryRecord) bool {
			if g.Name != canon.Name {
				return false
			}
			return normalize.AncestorCode(g.WorkingCode, tier-1) == scope || within(g.WorkingCode, alternates)
		})
		switch len(candidates) {
		case 0:
		case 1:
			ws.rewrite(candidates[0], canon.Code)
		default:
			amb := ws.canonicalAmbiguity(StageScope, i, candidates)
			logAmbiguity(logger, amb)
			ambiguities = append(ambiguities, amb)
		}
	}

	return ambiguities
}

func (e *Engine) exceptionKeys() []normalize.Code {
	keys := make([]normalize.Code, 0, len(e.opts.ScopeExceptions))
	for from := range e.opts.ScopeExceptions {
		keys = append(keys, from)
	}
	sort.Slice(keys, func(a, b int) bool { return keys[a] < keys[b] })
	return keys
}
