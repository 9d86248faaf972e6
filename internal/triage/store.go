package triage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/citriage/citriage/internal/report"
	"github.com/citriage/citriage/internal/runlog"
)

// Store persists per-invocation artifacts on disk for audit: the
// concatenated redacted log, the rendered report, and per-job logs when
// the fallback transport was used.
type Store struct {
	baseDir string // defaults to ~/.citriage/runs
}

// NewStore creates a Store rooted at baseDir.
func NewStore(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// DefaultStore returns a Store at ~/.citriage/runs, creating the
// directory if needed.
func DefaultStore() (*Store, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("get home dir: %w", err)
	}
	dir := filepath.Join(home, ".citriage", "runs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return &Store{baseDir: dir}, nil
}

// runDir returns the directory for one (pr, run) pair.
func (s *Store) runDir(pr int, runID int64) string {
	return filepath.Join(s.baseDir, strconv.Itoa(pr), strconv.FormatInt(runID, 10))
}

// SaveArtifacts writes the acquisition's redacted logs and the rendered
// report. The caller guarantees acq.Log is already redacted; nothing
// unredacted ever reaches this store.
func (s *Store) SaveArtifacts(acq *runlog.Acquired, r *report.Report) error {
	dir := s.runDir(r.PR, acq.Run.DatabaseID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	if err := os.WriteFile(filepath.Join(dir, "run.log"), []byte(acq.Log), 0o644); err != nil {
		return fmt.Errorf("write run.log: %w", err)
	}

	text, err := r.RenderText()
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "report.txt"), []byte(text), 0o644); err != nil {
		return fmt.Errorf("write report.txt: %w", err)
	}

	if len(acq.JobLogs) > 0 {
		jobsDir := filepath.Join(dir, "jobs")
		if err := os.MkdirAll(jobsDir, 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", jobsDir, err)
		}
		for name, log := range acq.JobLogs {
			path := filepath.Join(jobsDir, sanitizeName(name)+".log")
			if err := os.WriteFile(path, []byte(log), 0o644); err != nil {
				return fmt.Errorf("write job log %s: %w", name, err)
			}
		}
	}
	return nil
}

// LatestReport returns the most recently written report.txt for a PR.
func (s *Store) LatestReport(pr int) (string, error) {
	prDir := filepath.Join(s.baseDir, strconv.Itoa(pr))
	entries, err := os.ReadDir(prDir)
	if err != nil {
		return "", fmt.Errorf("no stored runs for PR #%d: %w", pr, err)
	}

	type candidate struct {
		path string
		mod  int64
	}
	var candidates []candidate
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		path := filepath.Join(prDir, e.Name(), "report.txt")
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		candidates = append(candidates, candidate{path: path, mod: info.ModTime().UnixNano()})
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("no stored report for PR #%d", pr)
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].mod > candidates[j].mod })

	data, err := os.ReadFile(candidates[0].path)
	if err != nil {
		return "", fmt.Errorf("read report: %w", err)
	}
	return string(data), nil
}

// sanitizeName makes a job name safe as a file name.
func sanitizeName(name string) string {
	out := []rune(name)
	for i, r := range out {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
		default:
			out[i] = '-'
		}
	}
	return string(out)
}
