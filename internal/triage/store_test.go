package triage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/citriage/citriage/internal/github"
	"github.com/citriage/citriage/internal/report"
	"github.com/citriage/citriage/internal/runlog"
)

func TestStoreSaveArtifacts(t *testing.T) {
	s := NewStore(t.TempDir())

	acq := &runlog.Acquired{
		Run: github.Run{DatabaseID: 100},
		Log: "line one\nline two\n",
		JobLogs: map[string]string{
			"build / unit tests": "unit log\n",
		},
	}
	rep := report.New("acme/app", 7, string(ModeTriageOnly), false)
	rep.RunID = 100

	if err := s.SaveArtifacts(acq, rep); err != nil {
		t.Fatalf("SaveArtifacts: %v", err)
	}

	dir := s.runDir(7, 100)
	log, err := os.ReadFile(filepath.Join(dir, "run.log"))
	if err != nil {
		t.Fatalf("run.log missing: %v", err)
	}
	if string(log) != acq.Log {
		t.Errorf("run.log = %q, want %q", log, acq.Log)
	}
	if _, err := os.Stat(filepath.Join(dir, "report.txt")); err != nil {
		t.Errorf("report.txt missing: %v", err)
	}
	jobLog, err := os.ReadFile(filepath.Join(dir, "jobs", "build---unit-tests.log"))
	if err != nil {
		t.Fatalf("sanitized job log missing: %v", err)
	}
	if string(jobLog) != "unit log\n" {
		t.Errorf("job log = %q", jobLog)
	}
}

func TestStoreLatestReport(t *testing.T) {
	s := NewStore(t.TempDir())

	for i, runID := range []int64{100, 200} {
		acq := &runlog.Acquired{Run: github.Run{DatabaseID: runID}, Log: "x\n"}
		rep := report.New("acme/app", 7, string(ModeTriageOnly), false)
		rep.RunID = runID
		if err := s.SaveArtifacts(acq, rep); err != nil {
			t.Fatalf("SaveArtifacts: %v", err)
		}
		if i == 0 {
			// mtime resolution is too coarse to distinguish back-to-back
			// writes on some filesystems
			old := time.Now().Add(-time.Hour)
			if err := os.Chtimes(filepath.Join(s.runDir(7, runID), "report.txt"), old, old); err != nil {
				t.Fatal(err)
			}
		}
	}

	text, err := s.LatestReport(7)
	if err != nil {
		t.Fatalf("LatestReport: %v", err)
	}
	if !strings.Contains(text, "200") {
		t.Errorf("latest report does not reference run 200:\n%s", text)
	}
}

func TestStoreLatestReportNoRuns(t *testing.T) {
	s := NewStore(t.TempDir())
	if _, err := s.LatestReport(42); err == nil {
		t.Fatal("want error for unknown PR")
	}
}
