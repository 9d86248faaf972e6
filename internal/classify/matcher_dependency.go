package classify

import (
	"fmt"
	"regexp"
	"strings"
)

// DependencyMatcher recognizes package-not-found errors across the common
// package managers (pip, npm, go modules, apt).
type DependencyMatcher struct{}

const dependencyBaseConfidence = 4

var (
	// python: "ModuleNotFoundError: No module named 'requests'"
	pyModuleRe = regexp.MustCompile(`ModuleNotFoundError: No module named '([\w.-]+)'`)
	// older python: "ImportError: No module named requests"
	pyImportRe = regexp.MustCompile(`ImportError: No module named '?([\w.-]+)'?`)
	// generic: "module not found: requests"
	genericModuleRe = regexp.MustCompile(`(?i)module not found:?\s+"?([\w@/.-]+)"?`)
	// node: "Cannot find module 'lodash'"
	nodeModuleRe = regexp.MustCompile(`Cannot find module '([\w@/.-]+)'`)
	// npm registry: "npm ERR! 404 Not Found - GET https://registry.npmjs.org/left-pad"
	npmNotFoundRe = regexp.MustCompile(`npm ERR! 404.*/([\w.-]+)$`)
	// go: "no required module provides package github.com/foo/bar"
	goModuleRe = regexp.MustCompile(`no required module provides package ([\w./-]+)`)
	// apt: "E: Unable to locate package libfoo-dev"
	aptRe = regexp.MustCompile(`E: Unable to locate package ([\w.+-]+)`)
)

func (m *DependencyMatcher) Kind() Kind { return KindMissingDependency }

func (m *DependencyMatcher) Scan(lines []string) []Finding {
	res := []*regexp.Regexp{pyModuleRe, pyImportRe, genericModuleRe, nodeModuleRe, npmNotFoundRe, goModuleRe, aptRe}

	var findings []Finding
	for i, line := range lines {
		for _, re := range res {
			sub := re.FindStringSubmatch(line)
			if sub == nil {
				continue
			}
			pkg := strings.TrimSpace(sub[1])
			findings = append(findings, Finding{
				Kind:       KindMissingDependency,
				Confidence: dependencyBaseConfidence,
				Summary:    fmt.Sprintf("missing dependency %q: %s", pkg, trimLine(line)),
				Subject:    pkg,
				Params:     map[string]string{"package": pkg},
				LogLine:    i,
			})
			break
		}
	}
	return findings
}
