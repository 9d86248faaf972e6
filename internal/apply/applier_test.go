package apply

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/citriage/citriage/internal/classify"
	"github.com/citriage/citriage/internal/plan"
)

// fakeGit records git invocations without running anything.
type fakeGit struct {
	calls [][]string
}

func (f *fakeGit) RunGit(dir string, args ...string) (string, error) {
	f.calls = append(f.calls, args)
	return "", nil
}

func (f *fakeGit) has(sub string) bool {
	for _, call := range f.calls {
		if strings.Contains(strings.Join(call, " "), sub) {
			return true
		}
	}
	return false
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func appendAction(file, text string) plan.Action {
	return plan.Action{
		TargetFile:  file,
		Description: "add " + text + " to " + file,
		LineDelta:   1,
		Edit:        plan.Edit{Op: plan.OpAppendLine, Text: text},
		Findings:    []classify.Finding{{Kind: classify.KindMissingDependency, Confidence: 4, Summary: "missing dependency " + text}},
	}
}

func TestBranchName(t *testing.T) {
	at := time.Date(2026, 8, 29, 14, 15, 2, 0, time.UTC)
	got := BranchName("citriage", 42, at)
	want := "citriage/pr-42-20260829-141502"
	if got != want {
		t.Errorf("BranchName = %q, want %q", got, want)
	}

	// Non-UTC input normalizes to UTC.
	est := time.FixedZone("EST", -5*3600)
	if BranchName("citriage", 42, at.In(est)) != want {
		t.Error("expected identical branch name for same instant in another zone")
	}
}

func TestApply_AppendAndCommit(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "requirements.txt", "flask==3.0.0\n")
	git := &fakeGit{}

	a := New(git, dir, "citriage", false)
	res, err := a.Apply(context.Background(), 42, []plan.Action{appendAction("requirements.txt", "requests")})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if res.Applied != 1 || res.Skipped != 0 {
		t.Errorf("expected 1 applied / 0 skipped, got %d/%d", res.Applied, res.Skipped)
	}
	if !res.Committed {
		t.Error("expected a commit")
	}

	data, _ := os.ReadFile(filepath.Join(dir, "requirements.txt"))
	if string(data) != "flask==3.0.0\nrequests\n" {
		t.Errorf("unexpected file content: %q", string(data))
	}

	if !git.has("checkout -b citriage/pr-42-") {
		t.Errorf("expected branch creation, calls: %v", git.calls)
	}
	if !git.has("commit -m") {
		t.Errorf("expected commit, calls: %v", git.calls)
	}
}

func TestApply_ReplaceEdit(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "ci.yaml", "go-version: 1.21.0\n")
	git := &fakeGit{}

	action := plan.Action{
		TargetFile:  "ci.yaml",
		Description: "pin 1.22.1",
		LineDelta:   1,
		Edit:        plan.Edit{Op: plan.OpReplace, Old: "1.21.0", New: "1.22.1"},
		Findings:    []classify.Finding{{Kind: classify.KindEnvironmentMismatch, Confidence: 4}},
	}
	res, err := New(git, dir, "citriage", false).Apply(context.Background(), 7, []plan.Action{action})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.Applied != 1 {
		t.Fatalf("expected applied, got %+v", res.Results)
	}

	data, _ := os.ReadFile(filepath.Join(dir, "ci.yaml"))
	if string(data) != "go-version: 1.22.1\n" {
		t.Errorf("unexpected content: %q", string(data))
	}
}

func TestApply_MissingTargetSkippedNotFatal(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "requirements.txt", "")
	git := &fakeGit{}

	actions := []plan.Action{
		appendAction("no-such-file.txt", "requests"),
		appendAction("requirements.txt", "requests"),
	}
	res, err := New(git, dir, "citriage", false).Apply(context.Background(), 42, actions)
	if err != nil {
		t.Fatalf("Apply must not fail on a skipped action: %v", err)
	}

	if res.Applied != 1 || res.Skipped != 1 {
		t.Errorf("expected 1 applied / 1 skipped, got %d/%d", res.Applied, res.Skipped)
	}
	if res.Results[0].Applied || res.Results[0].Error == "" {
		t.Errorf("expected first action recorded as failed, got %+v", res.Results[0])
	}
	if !res.Committed {
		t.Error("remaining actions must still commit")
	}
}

func TestApply_DryRunTouchesNothing(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "requirements.txt", "flask\n")
	git := &fakeGit{}

	res, err := New(git, dir, "citriage", true).Apply(context.Background(), 42, []plan.Action{appendAction("requirements.txt", "requests")})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	if len(git.calls) != 0 {
		t.Errorf("dry run must not run git, got calls: %v", git.calls)
	}
	data, _ := os.ReadFile(filepath.Join(dir, "requirements.txt"))
	if string(data) != "flask\n" {
		t.Errorf("dry run must not modify files, got %q", string(data))
	}
	if res.Committed {
		t.Error("dry run must not commit")
	}
	// Same report shape: results are still populated.
	if res.Applied != 1 || len(res.Results) != 1 {
		t.Errorf("expected validated results in dry run, got %+v", res)
	}
	if res.Branch == "" {
		t.Error("dry run still reports the would-be branch name")
	}
}

func TestApply_NoActionsNoBranch(t *testing.T) {
	git := &fakeGit{}
	res, err := New(git, t.TempDir(), "citriage", false).Apply(context.Background(), 42, nil)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if len(git.calls) != 0 {
		t.Errorf("no actions must mean no git calls, got %v", git.calls)
	}
	if res.Committed {
		t.Error("nothing to commit")
	}
}

func TestCommitMessage(t *testing.T) {
	results := []ActionResult{
		{Action: appendAction("requirements.txt", "requests"), Applied: true},
		{Action: appendAction("missing.txt", "flask"), Applied: false, Error: "no such file"},
	}
	msg := CommitMessage(42, results)

	lines := strings.Split(msg, "\n")
	if lines[0] != "Apply automated CI fixes for PR #42" {
		t.Errorf("unexpected summary line: %q", lines[0])
	}
	if lines[1] != "" {
		t.Error("expected blank line after summary")
	}
	if !strings.Contains(msg, "- what: add requests to requirements.txt") {
		t.Errorf("missing what bullet:\n%s", msg)
	}
	if !strings.Contains(msg, "- why: missing dependency requests") {
		t.Errorf("missing why bullet referencing finding summary:\n%s", msg)
	}
	if strings.Contains(msg, "flask") {
		t.Errorf("skipped actions must not appear in the commit message:\n%s", msg)
	}
}
