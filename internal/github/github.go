package github

import (
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// CmdRunner provides gh command execution. Interface for testing.
type CmdRunner interface {
	Run(args ...string) (string, error)
}

// GitRunner provides git command execution. Interface for testing.
type GitRunner interface {
	RunGit(dir string, args ...string) (string, error)
}

// ExecRunner runs gh and git commands via exec.
type ExecRunner struct{}

func (r *ExecRunner) Run(args ...string) (string, error) {
	cmd := exec.Command("gh", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return strings.TrimSpace(string(out)), fmt.Errorf("gh %s: %s: %w", strings.Join(args, " "), strings.TrimSpace(string(out)), err)
	}
	return strings.TrimSpace(string(out)), nil
}

// RunGit implements GitRunner using exec.Command.
func (r *ExecRunner) RunGit(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	if dir != "" {
		cmd.Dir = dir
	}
	out, err := cmd.CombinedOutput()
	if err != nil {
		return strings.TrimSpace(string(out)), fmt.Errorf("git %s: %s: %w", strings.Join(args, " "), strings.TrimSpace(string(out)), err)
	}
	return strings.TrimSpace(string(out)), nil
}

// Client provides the GitHub operations the pipeline needs, scoped to one
// repository.
type Client struct {
	cmd  CmdRunner
	git  GitRunner
	repo string // "owner/name"; added as -R to every gh call when set
}

// NewClient creates a client for repo. If cmd also implements GitRunner,
// it is used for git operations.
func NewClient(cmd CmdRunner, repo string) *Client {
	c := &Client{cmd: cmd, repo: repo}
	if git, ok := cmd.(GitRunner); ok {
		c.git = git
	}
	return c
}

// run invokes gh with the repo flag appended.
func (c *Client) run(args ...string) (string, error) {
	if c.repo != "" {
		args = append(args, "-R", c.repo)
	}
	return c.cmd.Run(args...)
}

// Run describes one workflow run as returned by gh run list.
type Run struct {
	DatabaseID   int64     `json:"databaseId"`
	DisplayTitle string    `json:"displayTitle"`
	WorkflowName string    `json:"workflowName"`
	Status       string    `json:"status"`
	Conclusion   string    `json:"conclusion"`
	HeadBranch   string    `json:"headBranch"`
	Event        string    `json:"event"`
	URL          string    `json:"url"`
	CreatedAt    time.Time `json:"createdAt"`
}

const runFields = "databaseId,displayTitle,workflowName,status,conclusion,headBranch,event,url,createdAt"

// RunListOpts filters a run listing. Zero fields are omitted.
type RunListOpts struct {
	Branch   string
	Workflow string
	Status   string
	Limit    int
}

// ListRuns lists workflow runs matching opts, most recent first.
func (c *Client) ListRuns(opts RunListOpts) ([]Run, error) {
	args := []string{"run", "list", "--json", runFields}
	if opts.Branch != "" {
		args = append(args, "--branch", opts.Branch)
	}
	if opts.Workflow != "" {
		args = append(args, "--workflow", opts.Workflow)
	}
	if opts.Status != "" {
		args = append(args, "--status", opts.Status)
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, "--limit", strconv.Itoa(limit))

	out, err := c.run(args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	var runs []Run
	if err := json.Unmarshal([]byte(out), &runs); err != nil {
		return nil, fmt.Errorf("parse run list JSON: %w", err)
	}
	return runs, nil
}

// PRHeadBranch returns the head branch of a pull request.
func (c *Client) PRHeadBranch(pr int) (string, error) {
	if pr <= 0 {
		return "", fmt.Errorf("invalid PR number %d: must be positive", pr)
	}

	out, err := c.run("pr", "view", strconv.Itoa(pr), "--json", "headRefName")
	if err != nil {
		return "", fmt.Errorf("view PR #%d: %w", pr, err)
	}

	var v struct {
		HeadRefName string `json:"headRefName"`
	}
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		return "", fmt.Errorf("parse PR JSON: %w", err)
	}
	return v.HeadRefName, nil
}

// RunLog downloads the full log of a workflow run.
func (c *Client) RunLog(runID int64) (string, error) {
	out, err := c.run("run", "view", strconv.FormatInt(runID, 10), "--log")
	if err != nil {
		return "", fmt.Errorf("download log for run %d: %w", runID, err)
	}
	return out, nil
}

// PRCreateOpts holds options for creating a PR.
type PRCreateOpts struct {
	Title  string
	Body   string
	Branch string
	Base   string
	Labels []string
	Draft  bool
}

// PRCreateResult holds the result of creating a PR.
type PRCreateResult struct {
	URL string
}

// CreatePR creates a pull request. The caller never merges it.
func (c *Client) CreatePR(opts PRCreateOpts) (*PRCreateResult, error) {
	args := []string{"pr", "create", "--title", opts.Title, "--body", opts.Body, "--head", opts.Branch}
	if opts.Base != "" {
		args = append(args, "--base", opts.Base)
	}
	for _, l := range opts.Labels {
		args = append(args, "--label", l)
	}
	if opts.Draft {
		args = append(args, "--draft")
	}

	out, err := c.run(args...)
	if err != nil {
		return nil, fmt.Errorf("create PR: %w", err)
	}

	return &PRCreateResult{URL: out}, nil
}

// PushBranch pushes a branch to the remote.
func (c *Client) PushBranch(dir string, branch string) error {
	if c.git == nil {
		return fmt.Errorf("git runner not configured")
	}
	if strings.HasPrefix(branch, "-") {
		return fmt.Errorf("invalid branch name %q: must not start with -", branch)
	}
	_, err := c.git.RunGit(dir, "push", "-u", "origin", branch)
	if err != nil {
		return fmt.Errorf("push branch: %w", err)
	}
	return nil
}
