// Package engine reconciles registry records with boundary records through a
// staged cascade of progressively looser matches. Every heuristic stage only
// accepts a unique candidate; anything else stays unmatched and is reported.
package engine

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/psgc-shape/internal/logging"
	"github.com/psgc-shape/internal/normalize"
	"github.com/psgc-shape/internal/override"
	"github.com/psgc-shape/internal/psgc"
)

// DefaultSampleSize is how many unmatched rows each stage snapshot keeps.
const DefaultSampleSize = 20

// Options configures one run of the cascade.
type Options struct {
	// Tier is the administrative tier of the records being reconciled.
	Tier normalize.Tier
	// Rules is the ordered override list for Tier.
	Rules []override.Rule
	// InferenceExclusions are parents whose implied correspondence codes are
	// never used.
	InferenceExclusions []normalize.Code
	// SpecialParent is the reserved parent of the special designation space;
	// SpecialMarker replaces its finest group.
	SpecialParent normalize.Code
	SpecialMarker int64
	// ScopeExceptions widens the ancestor scope of canonical records under a
	// key to the geometry under its value.
	ScopeExceptions map[normalize.Code]normalize.Code
	SampleSize      int
	// Watch lists record names traced through every stage.
	Watch []string
}

// DefaultOptions returns the options the 2023 registry needs for a tier.
func DefaultOptions(tier normalize.Tier) Options {
	return Options{
		Tier:                tier,
		InferenceExclusions: []normalize.Code{1303900000},
		SpecialParent:       1909900000,
		SpecialMarker:       999,
		ScopeExceptions:     map[normalize.Code]normalize.Code{1380600000: 1303900000},
		SampleSize:          DefaultSampleSize,
	}
}

// Engine runs the cascade. It holds no state between runs.
type Engine struct {
	opts Options
}

// New creates an engine
func New(opts Options) *Engine {
	if opts.SampleSize <= 0 {
		opts.SampleSize = DefaultSampleSize
	}
	return &Engine{opts: opts}
}

// Options returns the engine's options.
func (e *Engine) Options() Options {
	return e.opts
}

// Result is the terminal state of a run. It is a pure function of the inputs
// and the options.
type Result struct {
	Tier               normalize.Tier         `json:"tier"`
	Stages             []Snapshot             `json:"stages"`
	Ambiguities        []Ambiguity            `json:"ambiguities"`
	Overrides          []override.Outcome     `json:"overrides"`
	Canonical          []psgc.CanonicalRecord `json:"-"`
	Geometry           []psgc.GeometryRecord  `json:"-"`
	UnmatchedCanonical []Row                  `json:"unmatched_canonical"`
	UnmatchedGeometry  []Row                  `json:"unmatched_geometry"`
}

// StaleOverrides returns the rules that found nothing at their old code.
func (r *Result) StaleOverrides() []override.Outcome {
	var stale []override.Outcome
	for _, o := range r.Overrides {
		if o.Stale() {
			stale = append(stale, o)
		}
	}
	return stale
}

// Final returns the snapshot taken after the last stage.
func (r *Result) Final() Snapshot {
	if len(r.Stages) == 0 {
		return Snapshot{}
	}
	return r.Stages[len(r.Stages)-1]
}

type step struct {
	stage Stage
	run   func(*WorkingSet, *zerolog.Logger) []Ambiguity
}

// Run reconciles the two tables. The caller's geometry slice is not modified;
// the returned Result carries the rewritten copy.
func (e *Engine) Run(ctx context.Context, canonical []psgc.CanonicalRecord, geometry []psgc.GeometryRecord) (*Result, error) {
	logger := logging.FromContext(ctx).With().Str("tier", e.opts.Tier.String()).Logger()

	ws := NewWorkingSet(canonical, geometry)
	tracker := NewTracker(e.opts.SampleSize)
	result := &Result{Tier: e.opts.Tier}

	steps := []step{
		{StageExact, func(ws *WorkingSet, _ *zerolog.Logger) []Ambiguity {
			ws.joinExact()
			return nil
		}},
		{StageOverride, func(ws *WorkingSet, logger *zerolog.Logger) []Ambiguity {
			result.Overrides = e.overrideStage(ws, logger)
			return nil
		}},
		{StageCorrespondence, e.correspondenceStage},
		{StageContainment, e.containmentStage},
		{StageSpecial, e.specialStage},
		{StageScope, e.scopeStage},
	}

	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("reconciliation stopped before %s stage: %w", s.stage, err)
		}

		stageLogger := logger.With().Int("stage", int(s.stage)).Logger()
		ambiguities := s.run(ws, &stageLogger)
		result.Ambiguities = append(result.Ambiguities, ambiguities...)

		snapshot := tracker.Record(s.stage, ws, len(ambiguities))

		stageLogger.Info().
			Str("name", s.stage.String()).
			Int("matched", snapshot.Matched).
			Int("unmatched_canonical", snapshot.UnmatchedCanonical).
			Int("unmatched_geometry", snapshot.UnmatchedGeometry).
			Int("ambiguous", snapshot.Ambiguous).
			Msg("stage complete")

		e.watch(&stageLogger, s.stage, ws)
	}

	result.Stages = tracker.Snapshots()
	result.Canonical = ws.Canonical
	result.Geometry = ws.Geometry
	result.UnmatchedCanonical = CanonicalRows(ws, ws.UnmatchedCanonical())
	result.UnmatchedGeometry = GeometryRows(ws, ws.UnmatchedGeometry())
	return result, nil
}

func (e *Engine) overrideStage(ws *WorkingSet, logger *zerolog.Logger) []override.Outcome {
	outcomes := ws.ApplyOverrides(e.opts.Rules)
	for _, o := range outcomes {
		if o.Stale() {
			logger.Warn().
				Int("position", o.Position+1).
				Str("rule", o.Rule.String()).
				Msg("override rule found no record at its old code")
		}
	}
	return outcomes
}
