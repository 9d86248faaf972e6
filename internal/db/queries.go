package db

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/citriage/citriage/internal/report"
)

// RunRow is one recorded triage run.
type RunRow struct {
	ID        int64
	Repo      string
	PR        int
	RunID     int64
	Verdict   string
	Branch    string
	PRURL     string
	Mode      string
	DryRun    bool
	FileCount int
	LineCount int
	CreatedAt string
}

// FindingRow is one recorded finding.
type FindingRow struct {
	Kind       string
	Confidence int
	Summary    string
	File       string
	Line       int
}

// ActionRow is one recorded action result.
type ActionRow struct {
	TargetFile  string
	Description string
	LineDelta   int
	Applied     bool
	Error       string
}

// RecordReport persists a completed invocation's report for audit.
func (d *DB) RecordReport(r *report.Report) (int64, error) {
	tx, err := d.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		INSERT INTO triage_runs (repo, pr, run_id, workflow, verdict, reasons, branch, pr_url, mode, dry_run, file_count, line_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Repo, r.PR, r.RunID, r.Workflow, string(r.Verdict.Decision), strings.Join(r.Verdict.Reasons, "\n"),
		r.Branch, r.PRURL, r.Mode, r.DryRun, r.Verdict.FileCount, r.Verdict.LineCount)
	if err != nil {
		return 0, fmt.Errorf("insert triage run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}

	for _, f := range r.Findings {
		var file sql.NullString
		var line sql.NullInt64
		if f.Location != nil {
			file = sql.NullString{String: f.Location.File, Valid: true}
			line = sql.NullInt64{Int64: int64(f.Location.Line), Valid: f.Location.Line > 0}
		}
		if _, err := tx.Exec(`
			INSERT INTO findings (triage_run_id, kind, confidence, summary, file, line)
			VALUES (?, ?, ?, ?, ?, ?)`,
			runID, string(f.Kind), f.Confidence, f.Summary, file, line); err != nil {
			return 0, fmt.Errorf("insert finding: %w", err)
		}
	}

	for _, a := range r.Actions {
		if _, err := tx.Exec(`
			INSERT INTO actions (triage_run_id, target_file, description, line_delta, applied, error)
			VALUES (?, ?, ?, ?, ?, ?)`,
			runID, a.Action.TargetFile, a.Action.Description, a.Action.LineDelta, a.Applied, a.Error); err != nil {
			return 0, fmt.Errorf("insert action: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return runID, nil
}

// ListRuns returns the most recent triage runs, newest first. When pr is
// positive only that PR's runs are returned.
func (d *DB) ListRuns(pr int, limit int) ([]RunRow, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT id, repo, pr, run_id, verdict, COALESCE(branch,''), COALESCE(pr_url,''), mode, dry_run, file_count, line_count, created_at
		FROM triage_runs`
	args := []any{}
	if pr > 0 {
		query += " WHERE pr = ?"
		args = append(args, pr)
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := d.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunRow
	for rows.Next() {
		var r RunRow
		if err := rows.Scan(&r.ID, &r.Repo, &r.PR, &r.RunID, &r.Verdict, &r.Branch, &r.PRURL, &r.Mode, &r.DryRun, &r.FileCount, &r.LineCount, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RunFindings returns the findings recorded for one triage run.
func (d *DB) RunFindings(triageRunID int64) ([]FindingRow, error) {
	rows, err := d.conn.Query(`
		SELECT kind, confidence, summary, COALESCE(file,''), COALESCE(line,0)
		FROM findings WHERE triage_run_id = ? ORDER BY confidence DESC, id`, triageRunID)
	if err != nil {
		return nil, fmt.Errorf("list findings: %w", err)
	}
	defer rows.Close()

	var out []FindingRow
	for rows.Next() {
		var f FindingRow
		if err := rows.Scan(&f.Kind, &f.Confidence, &f.Summary, &f.File, &f.Line); err != nil {
			return nil, fmt.Errorf("scan finding: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// RunActions returns the action results recorded for one triage run.
func (d *DB) RunActions(triageRunID int64) ([]ActionRow, error) {
	rows, err := d.conn.Query(`
		SELECT target_file, description, line_delta, applied, COALESCE(error,'')
		FROM actions WHERE triage_run_id = ? ORDER BY id`, triageRunID)
	if err != nil {
		return nil, fmt.Errorf("list actions: %w", err)
	}
	defer rows.Close()

	var out []ActionRow
	for rows.Next() {
		var a ActionRow
		if err := rows.Scan(&a.TargetFile, &a.Description, &a.LineDelta, &a.Applied, &a.Error); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Stats aggregates verdict and finding-kind counts across all recorded
// runs.
type Stats struct {
	VerdictCounts map[string]int
	KindCounts    map[string]int
	TotalRuns     int
}

// QueryStats computes aggregate statistics from the audit tables.
func (d *DB) QueryStats() (*Stats, error) {
	s := &Stats{
		VerdictCounts: make(map[string]int),
		KindCounts:    make(map[string]int),
	}

	rows, err := d.conn.Query(`SELECT verdict, COUNT(*) FROM triage_runs GROUP BY verdict`)
	if err != nil {
		return nil, fmt.Errorf("verdict counts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var verdict string
		var n int
		if err := rows.Scan(&verdict, &n); err != nil {
			return nil, fmt.Errorf("scan verdict count: %w", err)
		}
		s.VerdictCounts[verdict] = n
		s.TotalRuns += n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	kindRows, err := d.conn.Query(`SELECT kind, COUNT(*) FROM findings GROUP BY kind`)
	if err != nil {
		return nil, fmt.Errorf("kind counts: %w", err)
	}
	defer kindRows.Close()
	for kindRows.Next() {
		var kind string
		var n int
		if err := kindRows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("scan kind count: %w", err)
		}
		s.KindCounts[kind] = n
	}
	return s, kindRows.Err()
}
