// Package etl runs a whole reconciliation: load the registry once, then for
// each tier load its boundaries, run the cascade, build the joined table,
// validate it and write it out.
package etl

import (
	"context"
	"fmt"
	"time"

	"github.com/psgc-shape/internal/debug"
	"github.com/psgc-shape/internal/engine"
	"github.com/psgc-shape/internal/export"
	"github.com/psgc-shape/internal/hierarchy"
	import_pkg "github.com/psgc-shape/internal/import"
	"github.com/psgc-shape/internal/logging"
	"github.com/psgc-shape/internal/normalize"
	"github.com/psgc-shape/internal/override"
	"github.com/psgc-shape/internal/psgc"
	"github.com/psgc-shape/internal/validation"
)

// TierExtras names registry rows reconciled at a tier other than their
// level's. The City of Isabela is published as a city but drawn among the
// provinces.
var TierExtras = map[normalize.Tier][]string{
	normalize.TierProvince: {"City of Isabela (Not a Province)"},
}

// Options configures a pipeline run.
type Options struct {
	RegistryPath string
	Sheet        string
	// Geometry maps each tier to its boundary file. Tiers without a file are
	// skipped.
	Geometry map[normalize.Tier]string
	// Tiers restricts the run; empty means every tier with a boundary file.
	Tiers []normalize.Tier
	Table *override.Table
	// Boundary filters reserved areas; the zero value keeps every feature.
	Boundary import_pkg.GeometryOptions
	// OutputDir receives the tier files; empty skips writing.
	OutputDir  string
	SampleSize int
	Watch      []string
	LocalDebug bool
}

// TierReport is everything one reconciled tier produced.
type TierReport struct {
	Result   *engine.Result
	Rows     []hierarchy.Row
	Findings []validation.Finding
	Files    export.Files
	Loaded   import_pkg.Stats
}

// Report is a finished run. It is built once and only read afterwards.
type Report struct {
	Label           string
	OverrideVersion string
	GeneratedAt     time.Time
	Registry        import_pkg.Stats
	Tiers           map[normalize.Tier]*TierReport
}

// Results returns the engine results in tier order.
func (r *Report) Results() []*engine.Result {
	var results []*engine.Result
	for t := normalize.TierRegion; t <= normalize.TierBarangay; t++ {
		if tr, ok := r.Tiers[t]; ok {
			results = append(results, tr.Result)
		}
	}
	return results
}

// Pipeline handles a reconciliation run
type Pipeline struct {
	opts Options
}

// NewPipeline creates a new pipeline
func NewPipeline(opts Options) *Pipeline {
	return &Pipeline{opts: opts}
}

// Run executes the pipeline. Only an unreadable input aborts it.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	debug.DebugHeader(p.opts.LocalDebug)
	defer debug.DebugFooter(p.opts.LocalDebug)

	logger := logging.FromContext(ctx)

	table := p.opts.Table
	if table == nil {
		var err error
		if table, err = override.Default(); err != nil {
			return nil, fmt.Errorf("failed to load built-in override table: %w", err)
		}
	}

	done := debug.DebugTiming(p.opts.LocalDebug, "registry load")
	registry, stats, err := import_pkg.LoadRegistry(ctx, p.opts.RegistryPath, p.opts.Sheet, table.RegistryCodes())
	done()
	if err != nil {
		return nil, fmt.Errorf("failed to load registry: %w", err)
	}

	report := &Report{
		Label:           table.Version,
		OverrideVersion: table.Version,
		GeneratedAt:     time.Now().UTC(),
		Registry:        stats,
		Tiers:           make(map[normalize.Tier]*TierReport),
	}
	dir := hierarchy.NewDirectory(registry)

	for _, tier := range p.tiers() {
		path, ok := p.opts.Geometry[tier]
		if !ok || path == "" {
			logger.Warn().Str("tier", tier.String()).Msg("no boundary file, tier skipped")
			continue
		}

		tr, err := p.runTier(ctx, tier, path, registry, dir, table)
		if err != nil {
			return nil, err
		}
		report.Tiers[tier] = tr
	}

	return report, nil
}

func (p *Pipeline) tiers() []normalize.Tier {
	if len(p.opts.Tiers) > 0 {
		return p.opts.Tiers
	}
	var tiers []normalize.Tier
	for t := normalize.TierRegion; t <= normalize.TierBarangay; t++ {
		if p.opts.Geometry[t] != "" {
			tiers = append(tiers, t)
		}
	}
	return tiers
}

func (p *Pipeline) runTier(ctx context.Context, tier normalize.Tier, path string, registry []psgc.CanonicalRecord, dir hierarchy.Directory, table *override.Table) (*TierReport, error) {
	defer debug.DebugTiming(p.opts.LocalDebug, tier.String()+" tier")()

	geometry, stats, err := import_pkg.LoadGeometry(ctx, path, tier, p.opts.Boundary)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s boundaries: %w", tier, err)
	}

	canonical := psgc.Select(registry, tier, TierExtras[tier]...)
	debug.DebugOutput(p.opts.LocalDebug, "%s: %d registry records, %d boundaries", tier, len(canonical), len(geometry))

	opts := engine.DefaultOptions(tier)
	opts.Rules = table.Rules(tier)
	opts.Watch = p.opts.Watch
	if p.opts.SampleSize > 0 {
		opts.SampleSize = p.opts.SampleSize
	}

	result, err := engine.New(opts).Run(ctx, canonical, geometry)
	if err != nil {
		return nil, fmt.Errorf("failed to reconcile %s: %w", tier, err)
	}

	rows := hierarchy.Build(result, dir)
	tr := &TierReport{
		Result:   result,
		Rows:     rows,
		Findings: validation.NewValidator(dir).Validate(tier, rows),
		Loaded:   stats,
	}

	if p.opts.OutputDir != "" {
		files, err := export.NewExporter(p.opts.OutputDir).Export(result, rows)
		if err != nil {
			return nil, fmt.Errorf("failed to export %s: %w", tier, err)
		}
		tr.Files = files
	}
	return tr, nil
}
