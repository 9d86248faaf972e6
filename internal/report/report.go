package report

import (
	"bytes"
	_ "embed"
	"fmt"
	"text/template"
	"time"

	"github.com/citriage/citriage/internal/apply"
	"github.com/citriage/citriage/internal/classify"
	"github.com/citriage/citriage/internal/gate"
)

//go:embed templates/pr-body.md.tmpl
var prBodyTmpl string

//go:embed templates/report.txt.tmpl
var reportTextTmpl string

// Report is the aggregate output artifact of one pipeline invocation.
// Built incrementally across the stages; immutable once the PR is
// published.
type Report struct {
	Repo     string `json:"repo"`
	PR       int    `json:"pr"`
	RunID    int64  `json:"run_id"`
	Workflow string `json:"workflow,omitempty"`
	Mode     string `json:"mode"`
	DryRun   bool   `json:"dry_run"`

	Findings     []classify.Finding   `json:"findings"`
	ManualReview []classify.Finding   `json:"manual_review,omitempty"`
	Actions      []apply.ActionResult `json:"actions"`
	Verdict      gate.Verdict         `json:"verdict"`

	Branch    string    `json:"branch,omitempty"`
	PRURL     string    `json:"pr_url,omitempty"`
	Labels    []string  `json:"labels,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// New starts a report for one invocation. Stages fill in the rest.
func New(repo string, pr int, mode string, dryRun bool) *Report {
	return &Report{
		Repo:      repo,
		PR:        pr,
		Mode:      mode,
		DryRun:    dryRun,
		CreatedAt: time.Now().UTC(),
	}
}

// Title is the deterministic PR title for a triage of the given PR.
func Title(pr int) string {
	return fmt.Sprintf("citriage: automated CI fixes for PR #%d", pr)
}

// Labels returns the fixed label set for a verdict: always automated and
// needs-review, plus invasive when the scale limits were exceeded.
func Labels(v gate.Verdict) []string {
	labels := []string{"automated", "needs-review"}
	if v.LimitsExceeded {
		labels = append(labels, "invasive")
	}
	return labels
}

var funcs = template.FuncMap{
	"applied": func(results []apply.ActionResult) []apply.ActionResult {
		var out []apply.ActionResult
		for _, r := range results {
			if r.Applied {
				out = append(out, r)
			}
		}
		return out
	},
	"skipped": func(results []apply.ActionResult) []apply.ActionResult {
		var out []apply.ActionResult
		for _, r := range results {
			if !r.Applied {
				out = append(out, r)
			}
		}
		return out
	},
}

var (
	prBody     = template.Must(template.New("pr-body").Funcs(funcs).Parse(prBodyTmpl))
	reportText = template.Must(template.New("report").Funcs(funcs).Parse(reportTextTmpl))
)

// RenderBody renders the PR body markdown.
func (r *Report) RenderBody() (string, error) {
	var b bytes.Buffer
	if err := prBody.Execute(&b, r); err != nil {
		return "", fmt.Errorf("render PR body: %w", err)
	}
	return b.String(), nil
}

// RenderText renders the plain-text report persisted for audit.
func (r *Report) RenderText() (string, error) {
	var b bytes.Buffer
	if err := reportText.Execute(&b, r); err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	return b.String(), nil
}
