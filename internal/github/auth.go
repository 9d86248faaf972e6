package github

import (
	"errors"
)

// ErrNoAuth means no GitHub credential could be resolved.
var ErrNoAuth = errors.New("no GitHub credentials found")

// Auth describes the resolved credential.
type Auth struct {
	// Source is "gh-session", "env:GH_TOKEN", or "env:GITHUB_TOKEN".
	Source string
	// Token is empty for an interactive gh session.
	Token string
}

// ResolveAuth resolves credentials in order: an interactive gh session,
// then GH_TOKEN, then GITHUB_TOKEN. getenv is injectable for tests.
func ResolveAuth(cmd CmdRunner, getenv func(string) string) (*Auth, error) {
	if _, err := cmd.Run("auth", "status"); err == nil {
		return &Auth{Source: "gh-session", Token: getenv("GH_TOKEN")}, nil
	}
	if tok := getenv("GH_TOKEN"); tok != "" {
		return &Auth{Source: "env:GH_TOKEN", Token: tok}, nil
	}
	if tok := getenv("GITHUB_TOKEN"); tok != "" {
		return &Auth{Source: "env:GITHUB_TOKEN", Token: tok}, nil
	}
	return nil, ErrNoAuth
}
