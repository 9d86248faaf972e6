package runlog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/chainguard-dev/clog"

	"github.com/citriage/citriage/internal/github"
	"github.com/citriage/citriage/internal/redact"
)

// ErrRunNotFound means every resolution strategy came back empty.
var ErrRunNotFound = errors.New("no failed workflow run found")

// ErrLogFetch means the run's logs could not be downloaded or could not
// be safely redacted.
var ErrLogFetch = errors.New("workflow log fetch failed")

// GHClient is the subset of github.Client the acquirer needs.
type GHClient interface {
	PRHeadBranch(pr int) (string, error)
	ListRuns(opts github.RunListOpts) ([]github.Run, error)
	RunLog(runID int64) (string, error)
}

// Fallback is the alternate log transport tried when the primary download
// fails. Returns per-job logs keyed by job name.
type Fallback interface {
	JobLogs(ctx context.Context, runID int64) (map[string]string, error)
}

// Acquired is the acquisition output: a resolved run and its redacted log
// text. JobLogs is populated only when the fallback transport was used.
type Acquired struct {
	Run     github.Run
	Log     string
	JobLogs map[string]string
}

// Acquirer resolves the most relevant failed run for a PR and downloads
// its logs. No log text leaves this package unredacted.
type Acquirer struct {
	gh       GHClient
	api      Fallback
	redactor *redact.Redactor
	workflow string
}

// New creates an Acquirer. api may be nil, disabling the alternate
// transport.
func New(gh GHClient, api Fallback, r *redact.Redactor, workflow string) *Acquirer {
	return &Acquirer{gh: gh, api: api, redactor: r, workflow: workflow}
}

// Acquire resolves and downloads the failed run for pr. Resolution tries,
// in order: runs on the PR's head branch, recent failed runs of the
// configured workflow, then repo-wide failed run discovery. The first
// strategy yielding a failed run wins.
func (a *Acquirer) Acquire(ctx context.Context, pr int) (*Acquired, error) {
	log := clog.FromContext(ctx)

	strategies := []struct {
		name string
		fn   func(pr int) (*github.Run, error)
	}{
		{"pr-branch", a.byPRBranch},
		{"workflow-failed", a.byWorkflowFailures},
		{"repo-failed", a.byRepoFailures},
	}

	var run *github.Run
	for _, s := range strategies {
		r, err := s.fn(pr)
		if err != nil {
			log.Warnf("run resolution strategy %s: %v", s.name, err)
			continue
		}
		if r != nil {
			log.Infof("resolved run %d via strategy %s", r.DatabaseID, s.name)
			run = r
			break
		}
	}
	if run == nil {
		return nil, fmt.Errorf("%w: PR #%d", ErrRunNotFound, pr)
	}

	acq, err := a.download(ctx, *run)
	if err != nil {
		return nil, err
	}
	return acq, nil
}

// byPRBranch looks for failed runs on the PR's head branch.
func (a *Acquirer) byPRBranch(pr int) (*github.Run, error) {
	branch, err := a.gh.PRHeadBranch(pr)
	if err != nil {
		return nil, err
	}
	runs, err := a.gh.ListRuns(github.RunListOpts{Branch: branch, Status: "failure"})
	if err != nil {
		return nil, err
	}
	return newestFailed(runs), nil
}

// byWorkflowFailures falls back to the most recent failed run of the
// configured workflow file.
func (a *Acquirer) byWorkflowFailures(_ int) (*github.Run, error) {
	if a.workflow == "" {
		return nil, nil
	}
	runs, err := a.gh.ListRuns(github.RunListOpts{Workflow: a.workflow, Status: "failure"})
	if err != nil {
		return nil, err
	}
	return newestFailed(runs), nil
}

// byRepoFailures delegates discovery to a plain repo-wide failed-run
// listing, the broadest pre-existing mechanism.
func (a *Acquirer) byRepoFailures(_ int) (*github.Run, error) {
	runs, err := a.gh.ListRuns(github.RunListOpts{Status: "failure", Limit: 50})
	if err != nil {
		return nil, err
	}
	return newestFailed(runs), nil
}

// newestFailed picks the most recent run with a failure conclusion.
func newestFailed(runs []github.Run) *github.Run {
	var failed []github.Run
	for _, r := range runs {
		if r.Conclusion == "failure" || r.Conclusion == "timed_out" {
			failed = append(failed, r)
		}
	}
	if len(failed) == 0 {
		return nil
	}
	sort.SliceStable(failed, func(i, j int) bool {
		return failed[i].CreatedAt.After(failed[j].CreatedAt)
	})
	return &failed[0]
}

// download fetches the run log, falling back to the API transport once,
// then redacts and verifies before returning.
func (a *Acquirer) download(ctx context.Context, run github.Run) (*Acquired, error) {
	log := clog.FromContext(ctx)

	text, primaryErr := a.gh.RunLog(run.DatabaseID)
	var jobLogs map[string]string
	if primaryErr != nil {
		log.Warnf("primary log download failed for run %d, trying API transport: %v", run.DatabaseID, primaryErr)
		if a.api == nil {
			return nil, fmt.Errorf("%w: run %d: %v", ErrLogFetch, run.DatabaseID, primaryErr)
		}
		jl, err := a.api.JobLogs(ctx, run.DatabaseID)
		if err != nil {
			return nil, fmt.Errorf("%w: run %d: primary: %v; fallback: %v", ErrLogFetch, run.DatabaseID, primaryErr, err)
		}
		jobLogs = jl
		text = concatJobLogs(jl)
	}

	redacted := a.redactor.Redact(text)
	if err := a.redactor.Verify(redacted); err != nil {
		// Never persist or return logs we cannot prove clean.
		return nil, fmt.Errorf("%w: run %d: %v", ErrLogFetch, run.DatabaseID, err)
	}

	out := &Acquired{Run: run, Log: redacted}
	if jobLogs != nil {
		out.JobLogs = make(map[string]string, len(jobLogs))
		for name, jl := range jobLogs {
			r := a.redactor.Redact(jl)
			if err := a.redactor.Verify(r); err != nil {
				return nil, fmt.Errorf("%w: job %q: %v", ErrLogFetch, name, err)
			}
			out.JobLogs[name] = r
		}
	}
	return out, nil
}

// concatJobLogs joins per-job logs into one text with job headers, in
// stable name order.
func concatJobLogs(jobLogs map[string]string) string {
	names := make([]string, 0, len(jobLogs))
	for name := range jobLogs {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "==> job: %s\n", name)
		b.WriteString(jobLogs[name])
		if !strings.HasSuffix(jobLogs[name], "\n") {
			b.WriteString("\n")
		}
	}
	return b.String()
}
