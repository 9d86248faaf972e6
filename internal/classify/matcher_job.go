package classify

import (
	"fmt"
	"regexp"
)

// JobFailureMatcher recognizes non-zero job and step exit markers emitted
// by the CI runner itself.
type JobFailureMatcher struct{}

const jobFailureBaseConfidence = 2

var (
	// GitHub Actions: "##[error]Process completed with exit code 1."
	exitCodeRe = regexp.MustCompile(`Process completed with exit code (\d+)`)
	// "Error: Job failed" / "##[error]The job was canceled"
	jobFailedRe = regexp.MustCompile(`(?i)^(?:##\[error\])?(?:Error: )?(?:The )?job (?:has )?(?:failed|was canceled)`)
)

func (m *JobFailureMatcher) Kind() Kind { return KindJobFailure }

func (m *JobFailureMatcher) Scan(lines []string) []Finding {
	var findings []Finding
	for i, line := range lines {
		if sub := exitCodeRe.FindStringSubmatch(line); sub != nil {
			findings = append(findings, Finding{
				Kind:       KindJobFailure,
				Confidence: jobFailureBaseConfidence,
				Summary:    fmt.Sprintf("process exited with code %s", sub[1]),
				Params:     map[string]string{"exit_code": sub[1]},
				LogLine:    i,
			})
			continue
		}
		if jobFailedRe.MatchString(line) {
			findings = append(findings, Finding{
				Kind:       KindJobFailure,
				Confidence: jobFailureBaseConfidence,
				Summary:    fmt.Sprintf("job failure marker: %s", trimLine(line)),
				LogLine:    i,
			})
		}
	}
	return findings
}
