package classify

import (
	"fmt"
	"regexp"
)

// PermissionMatcher recognizes authorization failures: HTTP 401/403
// responses, filesystem permission errors, and the GitHub Actions
// integration-permissions message.
type PermissionMatcher struct{}

const permissionBaseConfidence = 3

var (
	httpAuthRe = regexp.MustCompile(`\b(403 Forbidden|401 Unauthorized|HTTP 40[13])\b`)
	fsPermRe   = regexp.MustCompile(`(?i)\b(permission denied|EACCES|operation not permitted)\b`)
	ghaPermRe  = regexp.MustCompile(`Resource not accessible by integration`)
)

func (m *PermissionMatcher) Kind() Kind { return KindPermissionError }

func (m *PermissionMatcher) Scan(lines []string) []Finding {
	var findings []Finding
	for i, line := range lines {
		switch {
		case ghaPermRe.MatchString(line):
			findings = append(findings, Finding{
				Kind:       KindPermissionError,
				Confidence: permissionBaseConfidence + 1,
				Summary:    "workflow token lacks required permissions (resource not accessible by integration)",
				Subject:    "workflow-permissions",
				LogLine:    i,
			})
		case httpAuthRe.MatchString(line):
			findings = append(findings, Finding{
				Kind:       KindPermissionError,
				Confidence: permissionBaseConfidence,
				Summary:    fmt.Sprintf("authorization failure: %s", trimLine(line)),
				LogLine:    i,
			})
		case fsPermRe.MatchString(line):
			findings = append(findings, Finding{
				Kind:       KindPermissionError,
				Confidence: permissionBaseConfidence - 1,
				Summary:    fmt.Sprintf("permission denied: %s", trimLine(line)),
				LogLine:    i,
			})
		}
	}
	return findings
}
