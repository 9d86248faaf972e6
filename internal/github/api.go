package github

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	gh "github.com/google/go-github/v84/github"
	"golang.org/x/oauth2"
)

// maxLogRedirects is the maximum number of redirects followed when
// resolving a job-log download URL.
const maxLogRedirects = 2

// maxLogSize caps a single downloaded job log at 4 MiB.
const maxLogSize = 4 << 20

var (
	// timestampRe matches the per-line timestamps GitHub prepends to logs,
	// e.g. "2024-01-15T10:30:45.1234567Z ".
	timestampRe = regexp.MustCompile(`(?m)^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d+Z ?`)
	// ansiRe matches ANSI color codes.
	ansiRe = regexp.MustCompile(`\x1b\[[0-9;]*m`)
)

// APIClient is the alternate log transport: it talks to the GitHub REST
// API directly instead of going through the gh CLI. Used when the primary
// download fails.
type APIClient struct {
	gh    *gh.Client
	http  *http.Client
	owner string
	repo  string
}

// NewAPIClient creates an API client for the "owner/name" repo slug.
// token may be empty for public repositories.
func NewAPIClient(ctx context.Context, repo, token string) (*APIClient, error) {
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" {
		return nil, fmt.Errorf("invalid repository %q: want owner/name", repo)
	}

	var hc *http.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		hc = oauth2.NewClient(ctx, ts)
	}
	return &APIClient{
		gh:    gh.NewClient(hc),
		http:  &http.Client{Timeout: 30 * time.Second},
		owner: owner,
		repo:  name,
	}, nil
}

// JobLogs downloads the log of every job in a run, keyed by job name.
// Timestamps and ANSI codes are stripped.
func (c *APIClient) JobLogs(ctx context.Context, runID int64) (map[string]string, error) {
	jobs, _, err := c.gh.Actions.ListWorkflowJobs(ctx, c.owner, c.repo, runID, &gh.ListWorkflowJobsOptions{
		ListOptions: gh.ListOptions{PerPage: 50},
	})
	if err != nil {
		return nil, fmt.Errorf("list jobs for run %d: %w", runID, err)
	}
	if len(jobs.Jobs) == 0 {
		return nil, fmt.Errorf("run %d has no jobs", runID)
	}

	out := make(map[string]string, len(jobs.Jobs))
	for _, job := range jobs.Jobs {
		logURL, _, err := c.gh.Actions.GetWorkflowJobLogs(ctx, c.owner, c.repo, job.GetID(), maxLogRedirects)
		if err != nil {
			return nil, fmt.Errorf("resolve log URL for job %q: %w", job.GetName(), err)
		}
		text, err := c.download(ctx, logURL.String())
		if err != nil {
			return nil, fmt.Errorf("download log for job %q: %w", job.GetName(), err)
		}
		out[job.GetName()] = text
	}
	return out, nil
}

// download fetches a log URL. The URL carries its own access token, so
// the request is deliberately unauthenticated.
func (c *APIClient) download(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxLogSize))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return cleanLog(string(body)), nil
}

// cleanLog strips timestamps and ANSI color codes.
func cleanLog(text string) string {
	text = timestampRe.ReplaceAllString(text, "")
	return ansiRe.ReplaceAllString(text, "")
}
