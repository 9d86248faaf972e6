package classify

import (
	"fmt"
	"regexp"
)

// EnvironmentMatcher recognizes tool and runtime version mismatches
// between what the job provides and what the build expects.
type EnvironmentMatcher struct{}

const environmentBaseConfidence = 3

var (
	// "go version go1.21 found, expected go1.22" /
	// "found version 18.2.0, expected 20.1.0"
	foundExpectedRe = regexp.MustCompile(`(?i)found(?: version)? v?([\w.]+),\s*(?:but\s+)?expected v?([\w.]+)`)
	// "requires Node version >= 20" / "package requires go 1.22"
	requiresRe = regexp.MustCompile(`(?i)requires? ([A-Za-z][\w-]*)(?: version)?\s*(?:>=|>|==)?\s*v?(\d[\w.]*)`)
	// npm/yarn: "error <pkg>@<v>: The engine "node" is incompatible with this module"
	engineRe = regexp.MustCompile(`The engine "([\w-]+)" is incompatible`)
	// generic marker
	mismatchRe = regexp.MustCompile(`(?i)version mismatch`)
)

func (m *EnvironmentMatcher) Kind() Kind { return KindEnvironmentMismatch }

func (m *EnvironmentMatcher) Scan(lines []string) []Finding {
	var findings []Finding
	for i, line := range lines {
		switch {
		case foundExpectedRe.MatchString(line):
			sub := foundExpectedRe.FindStringSubmatch(line)
			findings = append(findings, Finding{
				Kind:       KindEnvironmentMismatch,
				Confidence: environmentBaseConfidence + 1,
				Summary:    fmt.Sprintf("version mismatch: found %s, expected %s", sub[1], sub[2]),
				Params:     map[string]string{"found": sub[1], "expected": sub[2]},
				LogLine:    i,
			})
		case requiresRe.MatchString(line):
			sub := requiresRe.FindStringSubmatch(line)
			findings = append(findings, Finding{
				Kind:       KindEnvironmentMismatch,
				Confidence: environmentBaseConfidence,
				Summary:    fmt.Sprintf("%s version %s required: %s", sub[1], sub[2], trimLine(line)),
				Subject:    sub[1],
				Params:     map[string]string{"tool": sub[1], "required": sub[2]},
				LogLine:    i,
			})
		case engineRe.MatchString(line):
			engine := engineRe.FindStringSubmatch(line)[1]
			findings = append(findings, Finding{
				Kind:       KindEnvironmentMismatch,
				Confidence: environmentBaseConfidence,
				Summary:    fmt.Sprintf("engine %q incompatible with this module", engine),
				Subject:    engine,
				Params:     map[string]string{"tool": engine},
				LogLine:    i,
			})
		case mismatchRe.MatchString(line):
			findings = append(findings, Finding{
				Kind:       KindEnvironmentMismatch,
				Confidence: environmentBaseConfidence - 1,
				Summary:    fmt.Sprintf("environment mismatch: %s", trimLine(line)),
				LogLine:    i,
			})
		}
	}
	return findings
}
