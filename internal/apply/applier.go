package apply

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chainguard-dev/clog"

	"github.com/citriage/citriage/internal/github"
	"github.com/citriage/citriage/internal/plan"
)

// ActionResult records the outcome of one action. Failed actions are
// skipped and recorded, never fatal.
type ActionResult struct {
	Action  plan.Action `json:"action"`
	Applied bool        `json:"applied"`
	Error   string      `json:"error,omitempty"`
}

// Result is the applier's output for one invocation.
type Result struct {
	Branch  string         `json:"branch"`
	Results []ActionResult `json:"results"`
	Applied int            `json:"applied"`
	Skipped int            `json:"skipped"`
	// Committed is false in dry-run mode or when no action applied.
	Committed bool `json:"committed"`
}

// Applier materializes planned actions on a dedicated branch of a working
// tree. In dry-run mode it validates every action but touches nothing.
type Applier struct {
	git    github.GitRunner
	dir    string // working tree root
	prefix string // branch namespace
	dryRun bool
	now    func() time.Time
}

// New creates an Applier for the working tree at dir.
func New(git github.GitRunner, dir, branchPrefix string, dryRun bool) *Applier {
	return &Applier{
		git:    git,
		dir:    dir,
		prefix: branchPrefix,
		dryRun: dryRun,
		now:    time.Now,
	}
}

// BranchName builds the deterministic, collision-resistant branch name:
// namespace prefix, PR number, then a UTC timestamp to second granularity.
func BranchName(prefix string, pr int, now time.Time) string {
	return fmt.Sprintf("%s/pr-%d-%s", prefix, pr, now.UTC().Format("20060102-150405"))
}

// Apply executes the action list for pr. Each action is applied
// independently; a failing action is skipped and recorded. With no
// applicable actions, or in dry-run mode, no branch or commit is created.
func (a *Applier) Apply(ctx context.Context, pr int, actions []plan.Action) (*Result, error) {
	log := clog.FromContext(ctx)

	res := &Result{Branch: BranchName(a.prefix, pr, a.now())}

	if a.dryRun {
		for _, action := range actions {
			r := ActionResult{Action: action}
			if err := a.validate(action); err != nil {
				r.Error = err.Error()
				res.Skipped++
			} else {
				r.Applied = true
				res.Applied++
			}
			res.Results = append(res.Results, r)
		}
		log.Infof("dry run: %d action(s) validated, no branch or commit created", len(actions))
		return res, nil
	}

	if len(actions) == 0 {
		return res, nil
	}

	if _, err := a.git.RunGit(a.dir, "checkout", "-b", res.Branch); err != nil {
		return nil, fmt.Errorf("create branch %s: %w", res.Branch, err)
	}

	for _, action := range actions {
		r := ActionResult{Action: action}
		if err := a.applyEdit(action); err != nil {
			log.Warnf("skipping action on %s: %v", action.TargetFile, err)
			r.Error = err.Error()
			res.Skipped++
		} else {
			r.Applied = true
			res.Applied++
		}
		res.Results = append(res.Results, r)
	}

	if res.Applied == 0 {
		return res, nil
	}

	if _, err := a.git.RunGit(a.dir, "add", "-A"); err != nil {
		return nil, fmt.Errorf("stage changes: %w", err)
	}
	msg := CommitMessage(pr, res.Results)
	if _, err := a.git.RunGit(a.dir, "commit", "-m", msg); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	res.Committed = true
	return res, nil
}

// validate checks whether an action could apply, without touching files.
func (a *Applier) validate(action plan.Action) error {
	path := filepath.Join(a.dir, action.TargetFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("target file: %w", err)
	}
	if action.Edit.Op == plan.OpReplace && !strings.Contains(string(data), action.Edit.Old) {
		return fmt.Errorf("target file does not contain %q", action.Edit.Old)
	}
	return nil
}

// applyEdit performs one action's edit against the working tree.
func (a *Applier) applyEdit(action plan.Action) error {
	path := filepath.Join(a.dir, action.TargetFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("target file: %w", err)
	}
	text := string(data)

	switch action.Edit.Op {
	case plan.OpAppendLine:
		if text != "" && !strings.HasSuffix(text, "\n") {
			text += "\n"
		}
		text += action.Edit.Text + "\n"
	case plan.OpReplace:
		if !strings.Contains(text, action.Edit.Old) {
			return fmt.Errorf("target file does not contain %q", action.Edit.Old)
		}
		text = strings.Replace(text, action.Edit.Old, action.Edit.New, 1)
	default:
		return fmt.Errorf("unknown edit op %q", action.Edit.Op)
	}

	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("write target file: %w", err)
	}
	return nil
}
