package triage

import "fmt"

// Fatal errors abort the whole invocation with no report produced and a
// non-zero exit. Guardrail aborts, empty findings, and per-action
// failures are not errors.

// AuthMissingError means no GitHub credential could be resolved before
// the pipeline started.
type AuthMissingError struct {
	Err error
}

func (e *AuthMissingError) Error() string {
	return fmt.Sprintf("auth: %v (log in with `gh auth login` or set GH_TOKEN/GITHUB_TOKEN)", e.Err)
}

func (e *AuthMissingError) Unwrap() error { return e.Err }

// RunNotFoundError means every run-resolution strategy came back empty.
type RunNotFoundError struct {
	Repo string
	PR   int
	Err  error
}

func (e *RunNotFoundError) Error() string {
	return fmt.Sprintf("acquire: no failed workflow run for %s PR #%d (check the PR number and that a run has completed): %v", e.Repo, e.PR, e.Err)
}

func (e *RunNotFoundError) Unwrap() error { return e.Err }

// LogFetchError means run logs could not be downloaded on either
// transport, or could not be proven fully redacted.
type LogFetchError struct {
	Repo string
	PR   int
	Err  error
}

func (e *LogFetchError) Error() string {
	return fmt.Sprintf("acquire: logs for %s PR #%d unavailable (retry, or check token scopes): %v", e.Repo, e.PR, e.Err)
}

func (e *LogFetchError) Unwrap() error { return e.Err }

// PublishError means the fix could not be delivered: either applying the
// actions failed before anything was committed, or the branch push / PR
// creation failed afterward. Branch is empty in the former case.
type PublishError struct {
	Repo   string
	PR     int
	Branch string
	Err    error
}

func (e *PublishError) Error() string {
	if e.Branch == "" {
		return fmt.Sprintf("apply: fixes for %s PR #%d failed; nothing was pushed or published: %v", e.Repo, e.PR, e.Err)
	}
	return fmt.Sprintf("publish: PR for %s #%d failed; branch %s is intact for manual recovery: %v", e.Repo, e.PR, e.Branch, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }
