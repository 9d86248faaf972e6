package github

import (
	"errors"
	"strings"
	"testing"
)

// fakeCmd records gh invocations and plays back canned responses.
type fakeCmd struct {
	calls   [][]string
	outputs []string
	errs    []error
}

func (f *fakeCmd) Run(args ...string) (string, error) {
	f.calls = append(f.calls, args)
	i := len(f.calls) - 1
	var out string
	var err error
	if i < len(f.outputs) {
		out = f.outputs[i]
	}
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return out, err
}

func TestListRuns(t *testing.T) {
	cmd := &fakeCmd{outputs: []string{`[
		{"databaseId": 101, "status": "completed", "conclusion": "failure", "headBranch": "fix-bug", "workflowName": "CI"},
		{"databaseId": 100, "status": "completed", "conclusion": "success", "headBranch": "main", "workflowName": "CI"}
	]`}}
	c := NewClient(cmd, "octo/widgets")

	runs, err := c.ListRuns(RunListOpts{Branch: "fix-bug", Status: "failure", Limit: 5})
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].DatabaseID != 101 || runs[0].Conclusion != "failure" {
		t.Errorf("unexpected first run: %+v", runs[0])
	}

	call := strings.Join(cmd.calls[0], " ")
	for _, want := range []string{"run list", "--branch fix-bug", "--status failure", "--limit 5", "-R octo/widgets"} {
		if !strings.Contains(call, want) {
			t.Errorf("gh call missing %q: %s", want, call)
		}
	}
}

func TestPRHeadBranch(t *testing.T) {
	cmd := &fakeCmd{outputs: []string{`{"headRefName": "feature/login"}`}}
	c := NewClient(cmd, "octo/widgets")

	branch, err := c.PRHeadBranch(42)
	if err != nil {
		t.Fatalf("PRHeadBranch: %v", err)
	}
	if branch != "feature/login" {
		t.Errorf("expected feature/login, got %q", branch)
	}

	if _, err := c.PRHeadBranch(0); err == nil {
		t.Error("expected error for non-positive PR number")
	}
}

func TestCreatePR_LabelsAndDraft(t *testing.T) {
	cmd := &fakeCmd{outputs: []string{"https://github.com/octo/widgets/pull/99"}}
	c := NewClient(cmd, "octo/widgets")

	res, err := c.CreatePR(PRCreateOpts{
		Title:  "citriage: automated CI fixes for PR #42",
		Body:   "body",
		Branch: "citriage/pr-42-20260829-120000",
		Base:   "main",
		Labels: []string{"automated", "needs-review", "invasive"},
		Draft:  true,
	})
	if err != nil {
		t.Fatalf("CreatePR: %v", err)
	}
	if res.URL != "https://github.com/octo/widgets/pull/99" {
		t.Errorf("unexpected URL: %q", res.URL)
	}

	call := strings.Join(cmd.calls[0], " ")
	for _, want := range []string{"--label automated", "--label needs-review", "--label invasive", "--draft", "--base main"} {
		if !strings.Contains(call, want) {
			t.Errorf("gh call missing %q: %s", want, call)
		}
	}
}

func TestResolveAuth(t *testing.T) {
	env := map[string]string{}
	getenv := func(k string) string { return env[k] }

	t.Run("gh session wins", func(t *testing.T) {
		cmd := &fakeCmd{}
		auth, err := ResolveAuth(cmd, getenv)
		if err != nil {
			t.Fatalf("ResolveAuth: %v", err)
		}
		if auth.Source != "gh-session" {
			t.Errorf("expected gh-session, got %q", auth.Source)
		}
	})

	t.Run("falls back to GH_TOKEN", func(t *testing.T) {
		cmd := &fakeCmd{errs: []error{errors.New("not logged in")}}
		env["GH_TOKEN"] = "ghtoken"
		defer delete(env, "GH_TOKEN")

		auth, err := ResolveAuth(cmd, getenv)
		if err != nil {
			t.Fatalf("ResolveAuth: %v", err)
		}
		if auth.Source != "env:GH_TOKEN" || auth.Token != "ghtoken" {
			t.Errorf("unexpected auth: %+v", auth)
		}
	})

	t.Run("falls back to GITHUB_TOKEN", func(t *testing.T) {
		cmd := &fakeCmd{errs: []error{errors.New("not logged in")}}
		env["GITHUB_TOKEN"] = "ghtoken2"
		defer delete(env, "GITHUB_TOKEN")

		auth, err := ResolveAuth(cmd, getenv)
		if err != nil {
			t.Fatalf("ResolveAuth: %v", err)
		}
		if auth.Source != "env:GITHUB_TOKEN" {
			t.Errorf("unexpected auth: %+v", auth)
		}
	})

	t.Run("nothing available", func(t *testing.T) {
		cmd := &fakeCmd{errs: []error{errors.New("not logged in")}}
		if _, err := ResolveAuth(cmd, getenv); !errors.Is(err, ErrNoAuth) {
			t.Errorf("expected ErrNoAuth, got %v", err)
		}
	})
}

func TestCleanLog(t *testing.T) {
	in := "2024-01-15T10:30:45.1234567Z \x1b[31merror\x1b[0m happened\n"
	got := cleanLog(in)
	if got != "error happened\n" {
		t.Errorf("cleanLog: got %q", got)
	}
}
