package triage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/chainguard-dev/clog"

	"github.com/citriage/citriage/internal/apply"
	"github.com/citriage/citriage/internal/classify"
	"github.com/citriage/citriage/internal/config"
	"github.com/citriage/citriage/internal/db"
	"github.com/citriage/citriage/internal/gate"
	"github.com/citriage/citriage/internal/github"
	"github.com/citriage/citriage/internal/plan"
	"github.com/citriage/citriage/internal/redact"
	"github.com/citriage/citriage/internal/report"
	"github.com/citriage/citriage/internal/runlog"
)

// Mode selects how far the pipeline goes.
type Mode string

const (
	// ModeTriageOnly stops after the gate verdict: no file mutation, no
	// branch, no PR. The report is still produced and persisted.
	ModeTriageOnly Mode = "triage-only"
	// ModeApplyFixes runs the full pipeline through PR creation.
	ModeApplyFixes Mode = "apply-fixes"
)

// Options are the per-invocation parameters.
type Options struct {
	Repo     string
	PR       int
	Mode     Mode
	Override bool // disable the scale guardrail (never the secret rule)
	DryRun   bool
	Dir      string // working tree fixes are applied in
}

// LogAcquirer resolves and downloads the failed run for a PR.
type LogAcquirer interface {
	Acquire(ctx context.Context, pr int) (*runlog.Acquired, error)
}

// FixApplier materializes planned actions on a branch.
type FixApplier interface {
	Apply(ctx context.Context, pr int, actions []plan.Action) (*apply.Result, error)
}

// Publisher pushes the fix branch and opens the PR.
type Publisher interface {
	PushBranch(dir, branch string) error
	CreatePR(opts github.PRCreateOpts) (*github.PRCreateResult, error)
}

// Recorder persists the finished report to the audit database.
type Recorder interface {
	RecordReport(r *report.Report) (int64, error)
}

// ArtifactSaver persists the redacted log and rendered report on disk.
type ArtifactSaver interface {
	SaveArtifacts(acq *runlog.Acquired, r *report.Report) error
}

// Deps are the runner's collaborators. Acquirer, Classifier, Planner,
// Redactor, and Limits are required; the rest degrade gracefully when
// nil (no apply, no publish, no persistence).
type Deps struct {
	Acquirer   LogAcquirer
	Classifier *classify.Classifier
	Planner    *plan.Planner
	Applier    FixApplier
	Publisher  Publisher
	Redactor   *redact.Redactor
	Limits     gate.Limits
	BaseBranch string
	Store      ArtifactSaver
	DB         Recorder
}

// Runner drives one triage invocation through the stage sequence:
// acquire, classify, plan, gate, apply, publish, persist.
type Runner struct {
	deps    Deps
	auditDB *db.DB
}

// NewRunner creates a Runner from its collaborators.
func NewRunner(deps Deps) *Runner {
	return &Runner{deps: deps}
}

// Close releases the audit database when Setup opened one.
func (r *Runner) Close() error {
	if r.auditDB != nil {
		return r.auditDB.Close()
	}
	return nil
}

// Run executes the pipeline for opts and returns the report. A non-nil
// error is always one of the fatal types in this package; guardrail
// aborts and empty findings return a report and a nil error.
func (r *Runner) Run(ctx context.Context, opts Options) (*report.Report, error) {
	log := clog.FromContext(ctx)
	rep := report.New(opts.Repo, opts.PR, string(opts.Mode), opts.DryRun)

	acq, err := r.deps.Acquirer.Acquire(ctx, opts.PR)
	if err != nil {
		switch {
		case errors.Is(err, runlog.ErrRunNotFound):
			return nil, &RunNotFoundError{Repo: opts.Repo, PR: opts.PR, Err: err}
		default:
			return nil, &LogFetchError{Repo: opts.Repo, PR: opts.PR, Err: err}
		}
	}
	rep.RunID = acq.Run.DatabaseID
	rep.Workflow = acq.Run.WorkflowName
	log.Infof("acquired log for run %d (%d bytes)", acq.Run.DatabaseID, len(acq.Log))

	findings := r.deps.Classifier.Classify(acq.Log)
	rep.Findings = findings
	log.Infof("classified %d finding(s)", len(findings))

	pl := r.deps.Planner.Build(findings)
	rep.ManualReview = pl.ManualReview
	// The report carries the plan from here on, so abort and triage-only
	// outcomes still show what would have been done. The applier's results
	// replace these once it runs.
	rep.Actions = pendingResults(pl.Actions)

	secrets := r.scanTargets(ctx, opts.Dir, pl.Actions)
	verdict := gate.Evaluate(pl.Actions, secrets, r.deps.Limits, opts.Override)
	rep.Verdict = verdict
	rep.Labels = report.Labels(verdict)
	for _, reason := range verdict.Reasons {
		log.Infof("gate: %s", reason)
	}

	if verdict.Decision == gate.DecisionAbort {
		log.Warnf("gate verdict abort: no files touched, no PR created")
		r.persist(ctx, acq, rep)
		return rep, nil
	}
	if opts.Mode == ModeTriageOnly || len(pl.Actions) == 0 {
		r.persist(ctx, acq, rep)
		return rep, nil
	}
	if r.deps.Applier == nil {
		r.persist(ctx, acq, rep)
		return rep, nil
	}

	res, err := r.deps.Applier.Apply(ctx, opts.PR, pl.Actions)
	if err != nil {
		return nil, &PublishError{Repo: opts.Repo, PR: opts.PR, Err: err}
	}
	rep.Branch = res.Branch
	rep.Actions = res.Results
	log.Infof("applied %d action(s), skipped %d", res.Applied, res.Skipped)

	if res.Committed && !opts.DryRun && r.deps.Publisher != nil {
		if err := r.publish(ctx, opts, rep, verdict); err != nil {
			r.persist(ctx, acq, rep)
			return rep, err
		}
	}

	r.persist(ctx, acq, rep)
	return rep, nil
}

// publish pushes the fix branch and opens the PR. On failure the local
// branch and commit are left intact.
func (r *Runner) publish(ctx context.Context, opts Options, rep *report.Report, verdict gate.Verdict) error {
	log := clog.FromContext(ctx)

	if err := r.deps.Publisher.PushBranch(opts.Dir, rep.Branch); err != nil {
		return &PublishError{Repo: opts.Repo, PR: opts.PR, Branch: rep.Branch, Err: err}
	}

	body, err := rep.RenderBody()
	if err != nil {
		return &PublishError{Repo: opts.Repo, PR: opts.PR, Branch: rep.Branch, Err: err}
	}
	res, err := r.deps.Publisher.CreatePR(github.PRCreateOpts{
		Title:  report.Title(opts.PR),
		Body:   body,
		Branch: rep.Branch,
		Base:   r.deps.BaseBranch,
		Labels: rep.Labels,
		Draft:  verdict.Decision == gate.DecisionDraft,
	})
	if err != nil {
		return &PublishError{Repo: opts.Repo, PR: opts.PR, Branch: rep.Branch, Err: err}
	}
	rep.PRURL = res.URL
	log.Infof("opened PR %s (draft=%v)", res.URL, verdict.Decision == gate.DecisionDraft)
	return nil
}

// pendingResults converts planned actions into not-yet-applied results.
func pendingResults(actions []plan.Action) []apply.ActionResult {
	out := make([]apply.ActionResult, len(actions))
	for i, a := range actions {
		out[i] = apply.ActionResult{Action: a}
	}
	return out
}

// scanTargets scans every file the plan would touch, plus the text each
// edit would introduce, for unredacted secrets. A missing target file is
// fine (an append may create it).
func (r *Runner) scanTargets(ctx context.Context, dir string, actions []plan.Action) []gate.SecretHit {
	log := clog.FromContext(ctx)
	var hits []gate.SecretHit
	seen := make(map[string]bool)

	for _, a := range actions {
		for _, h := range r.deps.Redactor.Scan(a.Edit.Text + "\n" + a.Edit.New) {
			hits = append(hits, gate.SecretHit{File: a.TargetFile, Hit: h})
		}
		if seen[a.TargetFile] {
			continue
		}
		seen[a.TargetFile] = true
		data, err := os.ReadFile(filepath.Join(dir, a.TargetFile))
		if err != nil {
			continue
		}
		for _, h := range r.deps.Redactor.Scan(string(data)) {
			hits = append(hits, gate.SecretHit{File: a.TargetFile, Hit: h})
		}
	}
	if len(hits) > 0 {
		log.Warnf("secret scan: %d hit(s) in planned targets", len(hits))
	}
	return hits
}

// persist saves artifacts and the audit row. Persistence failures are
// logged, never fatal: the triage outcome already happened.
func (r *Runner) persist(ctx context.Context, acq *runlog.Acquired, rep *report.Report) {
	log := clog.FromContext(ctx)
	if r.deps.Store != nil {
		if err := r.deps.Store.SaveArtifacts(acq, rep); err != nil {
			log.Warnf("save artifacts: %v", err)
		}
	}
	if r.deps.DB != nil {
		if _, err := r.deps.DB.RecordReport(rep); err != nil {
			log.Warnf("record audit row: %v", err)
		}
	}
}

// Setup wires the production collaborators: resolves credentials, builds
// the gh and API clients, and assembles the runner from cfg and opts.
func Setup(ctx context.Context, cfg *config.Config, opts Options) (*Runner, error) {
	log := clog.FromContext(ctx)

	runner := &github.ExecRunner{}
	auth, err := github.ResolveAuth(runner, os.Getenv)
	if err != nil {
		return nil, &AuthMissingError{Err: err}
	}
	log.Infof("authenticated via %s", auth.Source)

	gh := github.NewClient(runner, opts.Repo)

	redactor, err := redact.New(cfg.SecretPatterns...)
	if err != nil {
		return nil, fmt.Errorf("build redactor: %w", err)
	}

	var fallback runlog.Fallback
	if auth.Token != "" {
		api, err := github.NewAPIClient(ctx, opts.Repo, auth.Token)
		if err != nil {
			log.Warnf("API transport unavailable: %v", err)
		} else {
			fallback = api
		}
	}

	deps := Deps{
		Acquirer: runlog.New(gh, fallback, redactor, cfg.Workflow),
		Classifier: classify.New(classify.Options{
			ContextBefore: cfg.ContextBefore,
			ContextAfter:  cfg.ContextAfter,
		}),
		Planner: plan.New(plan.Options{
			ConfidenceThreshold: cfg.ConfidenceThreshold,
			Manifest:            cfg.Manifest,
			WorkflowFile:        cfg.Workflow,
		}),
		Applier:    apply.New(runner, opts.Dir, cfg.BranchPrefix, opts.DryRun),
		Publisher:  gh,
		Redactor:   redactor,
		Limits:     gate.Limits{MaxFiles: cfg.MaxFiles, MaxLines: cfg.MaxLines},
		BaseBranch: cfg.BaseBranch,
	}

	if store, err := DefaultStore(); err != nil {
		log.Warnf("artifact store unavailable: %v", err)
	} else {
		deps.Store = store
	}

	run := NewRunner(deps)
	if audit, err := openAudit(); err != nil {
		log.Warnf("audit database unavailable: %v", err)
	} else {
		run.auditDB = audit
		run.deps.DB = audit
	}
	return run, nil
}

func openAudit() (*db.DB, error) {
	path, err := db.DefaultDBPath()
	if err != nil {
		return nil, err
	}
	audit, err := db.Open(path)
	if err != nil {
		return nil, err
	}
	if err := audit.Migrate(); err != nil {
		audit.Close()
		return nil, err
	}
	return audit, nil
}
