package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pkgflow/gatekeeper/pkg/hints"
	"github.com/pkgflow/gatekeeper/pkg/trial"

	_ "modernc.org/sqlite"
)

var ErrRunNotFound = errors.New("run not found")

// Trail is an append-only SQLite record of gatekeeper runs. It exists for
// the humans reviewing why a directive's effect did or did not apply; the
// engine never reads it back into a run.
type Trail struct {
	db *sql.DB
}

// OpenTrail opens (and migrates) a trail at the given SQLite path.
// Use ":memory:" for an ephemeral trail.
func OpenTrail(path string) (*Trail, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("audit: open trail %s: %w", path, err)
	}
	t := &Trail{db: db}
	if err := t.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return t, nil
}

// NewTrail wraps an existing database handle, migrating the schema.
func NewTrail(db *sql.DB) (*Trail, error) {
	t := &Trail{db: db}
	if err := t.migrate(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Trail) migrate() error {
	query := `
    CREATE TABLE IF NOT EXISTS runs (
        run_id TEXT PRIMARY KEY,
        started_at DATETIME NOT NULL,
        snapshot_hash TEXT NOT NULL
    );
    CREATE TABLE IF NOT EXISTS diagnostics (
        id TEXT PRIMARY KEY,
        run_id TEXT NOT NULL,
        class TEXT NOT NULL,
        file TEXT,
        line INTEGER,
        issuer TEXT,
        kind TEXT,
        message TEXT NOT NULL
    );
    CREATE TABLE IF NOT EXISTS trial_outcomes (
        id TEXT PRIMARY KEY,
        run_id TEXT NOT NULL,
        directive TEXT NOT NULL,
        state TEXT NOT NULL,
        accepted INTEGER NOT NULL,
        candidate_set JSON,
        recorded_at DATETIME NOT NULL
    );`
	_, err := t.db.ExecContext(context.Background(), query)
	if err != nil {
		return fmt.Errorf("audit: migrate trail: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (t *Trail) Close() error { return t.db.Close() }

// RecordRun appends one run with its snapshot hash and diagnostics.
func (t *Trail) RecordRun(ctx context.Context, runID, snapshotHash string, diags []hints.Diagnostic) error {
	_, err := t.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, started_at, snapshot_hash) VALUES (?, ?, ?)`,
		runID, time.Now().UTC().Format(time.RFC3339Nano), snapshotHash)
	if err != nil {
		return fmt.Errorf("audit: insert run: %w", err)
	}
	for _, d := range diags {
		_, err := t.db.ExecContext(ctx,
			`INSERT INTO diagnostics (id, run_id, class, file, line, issuer, kind, message)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), runID, string(d.Class), d.File, d.Line, d.Issuer, string(d.Kind), d.Message)
		if err != nil {
			return fmt.Errorf("audit: insert diagnostic: %w", err)
		}
	}
	return nil
}

// RecordOutcome appends one trial outcome to a recorded run.
func (t *Trail) RecordOutcome(ctx context.Context, runID string, out *trial.TrialOutcome) error {
	candidates, err := json.Marshal(out.CandidateSet)
	if err != nil {
		return fmt.Errorf("audit: marshal candidate set: %w", err)
	}
	accepted := 0
	if out.Accepted {
		accepted = 1
	}
	_, err = t.db.ExecContext(ctx,
		`INSERT INTO trial_outcomes (id, run_id, directive, state, accepted, candidate_set, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		out.ID, runID, string(out.Directive.Kind), string(out.State), accepted,
		string(candidates), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("audit: insert outcome: %w", err)
	}
	for _, d := range out.Diagnostics {
		_, err := t.db.ExecContext(ctx,
			`INSERT INTO diagnostics (id, run_id, class, file, line, issuer, kind, message)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), runID, string(d.Class), d.File, d.Line, d.Issuer, string(d.Kind), d.Message)
		if err != nil {
			return fmt.Errorf("audit: insert trial diagnostic: %w", err)
		}
	}
	return nil
}

// SnapshotHash returns the policy snapshot hash recorded for a run.
func (t *Trail) SnapshotHash(ctx context.Context, runID string) (string, error) {
	var hash string
	err := t.db.QueryRowContext(ctx,
		`SELECT snapshot_hash FROM runs WHERE run_id = ?`, runID).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrRunNotFound
	}
	if err != nil {
		return "", fmt.Errorf("audit: query run: %w", err)
	}
	return hash, nil
}

// Diagnostics returns every diagnostic recorded for a run, in insertion order.
func (t *Trail) Diagnostics(ctx context.Context, runID string) ([]hints.Diagnostic, error) {
	rows, err := t.db.QueryContext(ctx,
		`SELECT class, file, line, issuer, kind, message FROM diagnostics WHERE run_id = ? ORDER BY rowid`,
		runID)
	if err != nil {
		return nil, fmt.Errorf("audit: query diagnostics: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var diags []hints.Diagnostic
	for rows.Next() {
		var (
			d           hints.Diagnostic
			class, kind string
		)
		if err := rows.Scan(&class, &d.File, &d.Line, &d.Issuer, &kind, &d.Message); err != nil {
			return nil, fmt.Errorf("audit: scan diagnostic: %w", err)
		}
		d.Class = hints.Class(class)
		d.Kind = hints.Kind(kind)
		diags = append(diags, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return diags, nil
}

// OutcomeRecord is one persisted trial outcome row.
type OutcomeRecord struct {
	ID        string
	Directive string
	State     string
	Accepted  bool
}

// Outcomes returns the trial outcomes recorded for a run, in insertion order.
func (t *Trail) Outcomes(ctx context.Context, runID string) ([]OutcomeRecord, error) {
	rows, err := t.db.QueryContext(ctx,
		`SELECT id, directive, state, accepted FROM trial_outcomes WHERE run_id = ? ORDER BY rowid`,
		runID)
	if err != nil {
		return nil, fmt.Errorf("audit: query outcomes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var outcomes []OutcomeRecord
	for rows.Next() {
		var (
			rec      OutcomeRecord
			accepted int
		)
		if err := rows.Scan(&rec.ID, &rec.Directive, &rec.State, &accepted); err != nil {
			return nil, fmt.Errorf("audit: scan outcome: %w", err)
		}
		rec.Accepted = accepted != 0
		outcomes = append(outcomes, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return outcomes, nil
}
