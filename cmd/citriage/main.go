package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/citriage/citriage/internal/cli"
	"github.com/citriage/citriage/internal/triage"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	cli.SetVersion(Version)
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// exitCode distinguishes the fatal pipeline failures from plain usage
// errors. Both are non-zero; guardrail aborts never reach here.
func exitCode(err error) int {
	var (
		auth    *triage.AuthMissingError
		norun   *triage.RunNotFoundError
		fetch   *triage.LogFetchError
		publish *triage.PublishError
	)
	switch {
	case errors.As(err, &auth):
		return 2
	case errors.As(err, &norun):
		return 3
	case errors.As(err, &fetch):
		return 4
	case errors.As(err, &publish):
		return 5
	}
	return 1
}
