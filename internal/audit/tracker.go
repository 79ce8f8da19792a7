// Package audit persists reconciliation runs so that the unmatched report of
// one override table version can be compared with the next.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/psgc-shape/internal/debug"
	"github.com/psgc-shape/internal/engine"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS reconcile_run (
		run_id           uuid PRIMARY KEY,
		label            text NOT NULL,
		override_version text,
		started_at       timestamptz NOT NULL,
		completed_at     timestamptz NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS reconcile_stage (
		run_id              uuid REFERENCES reconcile_run(run_id) ON DELETE CASCADE,
		tier                text NOT NULL,
		stage               int NOT NULL,
		stage_name          text NOT NULL,
		matched             int NOT NULL,
		unmatched_canonical int NOT NULL,
		unmatched_geometry  int NOT NULL,
		ambiguous           int NOT NULL,
		PRIMARY KEY (run_id, tier, stage)
	)`,
	`CREATE TABLE IF NOT EXISTS reconcile_unmatched (
		run_id      uuid REFERENCES reconcile_run(run_id) ON DELETE CASCADE,
		tier        text NOT NULL,
		side        text NOT NULL,
		code        bigint NOT NULL,
		legacy_code text,
		name        text,
		parent_name text
	)`,
	`CREATE TABLE IF NOT EXISTS reconcile_ambiguity (
		run_id          uuid REFERENCES reconcile_run(run_id) ON DELETE CASCADE,
		tier            text NOT NULL,
		stage           int NOT NULL,
		side            text NOT NULL,
		code            bigint NOT NULL,
		name            text,
		candidates_json jsonb
	)`,
	`CREATE TABLE IF NOT EXISTS reconcile_override (
		run_id    uuid REFERENCES reconcile_run(run_id) ON DELETE CASCADE,
		tier      text NOT NULL,
		position  int NOT NULL,
		old_code  bigint NOT NULL,
		new_code  bigint NOT NULL,
		name      text,
		rewritten int NOT NULL,
		cascaded  int NOT NULL,
		held      int NOT NULL,
		stale     boolean NOT NULL
	)`,
}

// Tracker stores reconciliation runs
type Tracker struct {
	db *sql.DB
}

// NewTracker creates a new run tracker
func NewTracker(db *sql.DB) *Tracker {
	return &Tracker{db: db}
}

// Run is one invocation of the reconciler over every requested tier.
type Run struct {
	ID              uuid.UUID
	Label           string
	OverrideVersion string
	StartedAt       time.Time
	CompletedAt     time.Time
	Results         []*engine.Result
}

// StageCount is a stored stage snapshot.
type StageCount struct {
	Tier               string `json:"tier"`
	Stage              int    `json:"stage"`
	StageName          string `json:"stage_name"`
	Matched            int    `json:"matched"`
	UnmatchedCanonical int    `json:"unmatched_canonical"`
	UnmatchedGeometry  int    `json:"unmatched_geometry"`
	Ambiguous          int    `json:"ambiguous"`
}

// EnsureSchema creates the run tables if they do not exist.
func (t *Tracker) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := t.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create run tables: %w", err)
		}
	}
	return nil
}

// RecordRun saves a run and everything its report holds in one transaction.
// A run without an ID is given a new one.
func (t *Tracker) RecordRun(ctx context.Context, localDebug bool, run *Run) error {
	debug.DebugHeader(localDebug)
	defer debug.DebugFooter(localDebug)

	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO reconcile_run (run_id, label, override_version, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5)
	`, run.ID, run.Label, run.OverrideVersion, run.StartedAt, run.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for _, result := range run.Results {
		if err := t.recordResult(ctx, tx, run.ID, result); err != nil {
			return err
		}
		debug.DebugOutput(localDebug, "Recorded %s: %d stages, %d unmatched canonical, %d unmatched geometry",
			result.Tier, len(result.Stages), len(result.UnmatchedCanonical), len(result.UnmatchedGeometry))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run %s: %w", run.ID, err)
	}
	return nil
}

func (t *Tracker) recordResult(ctx context.Context, tx *sql.Tx, runID uuid.UUID, result *engine.Result) error {
	tier := result.Tier.String()

	for _, s := range result.Stages {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO reconcile_stage (run_id, tier, stage, stage_name, matched, unmatched_canonical, unmatched_geometry, ambiguous)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, runID, tier, int(s.Stage), s.Name, s.Matched, s.UnmatchedCanonical, s.UnmatchedGeometry, s.Ambiguous)
		if err != nil {
			return fmt.Errorf("failed to insert %s stage %d: %w", tier, s.Stage, err)
		}
	}

	rows := append(append([]engine.Row{}, result.UnmatchedCanonical...), result.UnmatchedGeometry...)
	for _, row := range rows {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO reconcile_unmatched (run_id, tier, side, code, legacy_code, name, parent_name)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, runID, tier, string(row.Side), int64(row.Code), row.LegacyCode, row.Name, row.ParentName)
		if err != nil {
			return fmt.Errorf("failed to insert unmatched %s %s: %w", row.Side, row.Code, err)
		}
	}

	for _, amb := range result.Ambiguities {
		candidates, err := json.Marshal(amb.Candidates)
		if err != nil {
			return fmt.Errorf("failed to encode candidates of %s: %w", amb.Code, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO reconcile_ambiguity (run_id, tier, stage, side, code, name, candidates_json)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, runID, tier, int(amb.Stage), string(amb.Side), int64(amb.Code), amb.Name, candidates)
		if err != nil {
			return fmt.Errorf("failed to insert ambiguity for %s: %w", amb.Code, err)
		}
	}

	for _, o := range result.Overrides {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO reconcile_override (run_id, tier, position, old_code, new_code, name, rewritten, cascaded, held, stale)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, runID, tier, o.Position+1, int64(o.Rule.OldCode), int64(o.Rule.NewCode), o.Rule.Name,
			o.Rewritten, o.Cascaded, o.Held, o.Stale())
		if err != nil {
			return fmt.Errorf("failed to insert override %s: %w", o.Rule, err)
		}
	}

	return nil
}

// StageCounts returns the stored stage snapshots of a run.
func (t *Tracker) StageCounts(ctx context.Context, runID uuid.UUID) ([]StageCount, error) {
	rows, err := t.db.QueryContext(ctx, `
		SELECT tier, stage, stage_name, matched, unmatched_canonical, unmatched_geometry, ambiguous
		FROM reconcile_stage
		WHERE run_id = $1
		ORDER BY tier, stage
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query stages of run %s: %w", runID, err)
	}
	defer rows.Close()

	var counts []StageCount
	for rows.Next() {
		var c StageCount
		if err := rows.Scan(&c.Tier, &c.Stage, &c.StageName, &c.Matched, &c.UnmatchedCanonical, &c.UnmatchedGeometry, &c.Ambiguous); err != nil {
			return nil, fmt.Errorf("failed to scan stage row: %w", err)
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read stages of run %s: %w", runID, err)
	}
	return counts, nil
}
