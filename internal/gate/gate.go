package gate

import (
	"fmt"

	"github.com/citriage/citriage/internal/plan"
	"github.com/citriage/citriage/internal/redact"
)

// Decision is the gate's outcome for the whole action set.
type Decision string

const (
	// DecisionApply allows all actions and a ready-for-review PR.
	DecisionApply Decision = "apply"
	// DecisionDraft allows all actions but the PR is opened as a draft
	// requiring explicit human promotion.
	DecisionDraft Decision = "draft"
	// DecisionAbort stops before any file mutation. No PR is created.
	// This is a successful safety outcome, not an error.
	DecisionAbort Decision = "abort"
)

// Limits holds the scale guardrail thresholds. Explicit config, not
// process-wide state, so boundary values are testable.
type Limits struct {
	MaxFiles int `yaml:"max_files"`
	MaxLines int `yaml:"max_lines"`
}

// DefaultLimits returns the documented guardrails: 10 files, 500 lines.
func DefaultLimits() Limits {
	return Limits{MaxFiles: 10, MaxLines: 500}
}

// SecretHit records an unredacted secret found in a file an action touches.
type SecretHit struct {
	File string     `json:"file"`
	Hit  redact.Hit `json:"hit"`
}

// Verdict is the gate's decision plus the facts it was computed from.
// Computed once per run; never mutated afterward.
type Verdict struct {
	Decision  Decision `json:"decision"`
	Reasons   []string `json:"reasons"`
	FileCount int      `json:"file_count"`
	LineCount int      `json:"line_count"`
	// LimitsExceeded is true when Rule 2 thresholds were crossed, even if
	// an override downgraded the verdict to apply. Drives the "invasive"
	// PR label.
	LimitsExceeded bool `json:"limits_exceeded"`
}

// Evaluate renders the verdict for the full action set.
//
// Rule 1: any secret in a touched file forces abort, unconditionally.
// Rule 2: without override, file count > limits.MaxFiles or total line
// estimate > limits.MaxLines downgrades to draft.
// Rule 3: override disables Rule 2 only.
func Evaluate(actions []plan.Action, secrets []SecretHit, limits Limits, override bool) Verdict {
	files := make(map[string]bool)
	lines := 0
	for _, a := range actions {
		files[a.TargetFile] = true
		lines += abs(a.LineDelta)
	}

	v := Verdict{
		Decision:  DecisionApply,
		FileCount: len(files),
		LineCount: lines,
	}

	if len(secrets) > 0 {
		v.Decision = DecisionAbort
		for _, s := range secrets {
			v.Reasons = append(v.Reasons, fmt.Sprintf("secret pattern %q detected in touched file %s (line %d)", s.Hit.Pattern, s.File, s.Hit.Line))
		}
		return v
	}

	if v.FileCount > limits.MaxFiles {
		v.LimitsExceeded = true
		v.Reasons = append(v.Reasons, fmt.Sprintf("touched files %d exceeds limit %d", v.FileCount, limits.MaxFiles))
	}
	if v.LineCount > limits.MaxLines {
		v.LimitsExceeded = true
		v.Reasons = append(v.Reasons, fmt.Sprintf("estimated changed lines %d exceeds limit %d", v.LineCount, limits.MaxLines))
	}

	if v.LimitsExceeded {
		if override {
			v.Reasons = append(v.Reasons, "scale limits overridden by flag")
		} else {
			v.Decision = DecisionDraft
		}
	}
	return v
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
