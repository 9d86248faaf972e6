package plan

import (
	"fmt"

	"github.com/citriage/citriage/internal/classify"
)

// EditOp names the mechanical change an action performs.
type EditOp string

const (
	// OpAppendLine appends Text as a new line at the end of the target file.
	OpAppendLine EditOp = "append-line"
	// OpReplace replaces the first occurrence of Old with New in the target file.
	OpReplace EditOp = "replace"
)

// Edit describes the concrete change for one action.
type Edit struct {
	Op   EditOp `json:"op"`
	Text string `json:"text,omitempty"`
	Old  string `json:"old,omitempty"`
	New  string `json:"new,omitempty"`
}

// Action is a proposed atomic remediation. Every action traces back to at
// least one originating finding.
type Action struct {
	TargetFile  string             `json:"target_file"`
	Description string             `json:"description"`
	LineDelta   int                `json:"line_delta"`
	Edit        Edit               `json:"edit"`
	Findings    []classify.Finding `json:"findings"`
}

// Plan is the planner's output: the actions to attempt plus the findings
// left for human review (sub-threshold or unmapped kinds).
type Plan struct {
	Actions      []Action           `json:"actions"`
	ManualReview []classify.Finding `json:"manual_review,omitempty"`
}

// Options configures a Planner. Zero values fall back to defaults.
type Options struct {
	// ConfidenceThreshold is the minimum finding confidence that generates
	// an action. Findings below it go to manual review.
	ConfidenceThreshold int
	// Manifest is the dependency manifest file new entries are appended to.
	Manifest string
	// WorkflowFile is the workflow definition version pins and permission
	// grants are edited in.
	WorkflowFile string
}

const (
	defaultThreshold = 3
	defaultManifest  = "requirements.txt"
)

// Planner maps findings to a bounded set of actions. It never touches
// files; it only produces descriptors.
type Planner struct {
	threshold    int
	manifest     string
	workflowFile string
}

// New creates a Planner from opts.
func New(opts Options) *Planner {
	p := &Planner{
		threshold:    opts.ConfidenceThreshold,
		manifest:     opts.Manifest,
		workflowFile: opts.WorkflowFile,
	}
	if p.threshold <= 0 {
		p.threshold = defaultThreshold
	}
	if p.manifest == "" {
		p.manifest = defaultManifest
	}
	return p
}

// Build maps each finding to zero or one action. Unmapped kinds and
// sub-threshold findings are retained for manual review, never an error.
// Identical planned changes are merged, unioning their findings.
func (p *Planner) Build(findings []classify.Finding) Plan {
	var out Plan
	for _, f := range findings {
		if f.Confidence < p.threshold {
			out.ManualReview = append(out.ManualReview, f)
			continue
		}
		a := p.actionFor(f)
		if a == nil {
			out.ManualReview = append(out.ManualReview, f)
			continue
		}
		out.Actions = mergeAction(out.Actions, *a)
	}
	return out
}

// actionFor is the total mapping from (kind, params) to zero-or-one action.
func (p *Planner) actionFor(f classify.Finding) *Action {
	switch f.Kind {
	case classify.KindMissingDependency:
		pkg := f.Params["package"]
		if pkg == "" {
			pkg = f.Subject
		}
		if pkg == "" {
			return nil
		}
		return &Action{
			TargetFile:  p.manifest,
			Description: fmt.Sprintf("add missing dependency %q to %s", pkg, p.manifest),
			LineDelta:   1,
			Edit:        Edit{Op: OpAppendLine, Text: pkg},
			Findings:    []classify.Finding{f},
		}
	case classify.KindEnvironmentMismatch:
		if p.workflowFile == "" {
			return nil
		}
		found, expected := f.Params["found"], f.Params["expected"]
		if found == "" || expected == "" {
			return nil
		}
		return &Action{
			TargetFile:  p.workflowFile,
			Description: fmt.Sprintf("pin version %s instead of %s in %s", expected, found, p.workflowFile),
			LineDelta:   1,
			Edit:        Edit{Op: OpReplace, Old: found, New: expected},
			Findings:    []classify.Finding{f},
		}
	case classify.KindPermissionError:
		if p.workflowFile == "" || f.Subject != "workflow-permissions" {
			return nil
		}
		return &Action{
			TargetFile:  p.workflowFile,
			Description: fmt.Sprintf("grant contents: write permission in %s", p.workflowFile),
			LineDelta:   2,
			Edit:        Edit{Op: OpAppendLine, Text: "permissions:\n  contents: write"},
			Findings:    []classify.Finding{f},
		}
	default:
		// test-failure, runtime-error, job-failure: manual review only.
		return nil
	}
}

// mergeAction appends a or, when an identical change is already planned,
// unions a's findings into the existing action.
func mergeAction(actions []Action, a Action) []Action {
	for i := range actions {
		if actions[i].TargetFile == a.TargetFile && actions[i].Edit == a.Edit {
			actions[i].Findings = append(actions[i].Findings, a.Findings...)
			return actions
		}
	}
	return append(actions, a)
}
