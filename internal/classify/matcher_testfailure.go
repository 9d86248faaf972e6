package classify

import (
	"fmt"
	"regexp"
	"strconv"
)

// TestFailureMatcher recognizes test-runner failure markers from the common
// runners seen in CI logs (go test, pytest, jest/vitest style output).
type TestFailureMatcher struct{}

const testFailureBaseConfidence = 4

var (
	// go test: "--- FAIL: TestFoo (0.01s)"
	goTestFailRe = regexp.MustCompile(`^--- FAIL: (\S+)`)
	// pytest: "FAILED tests/test_api.py::test_login - AssertionError"
	pytestFailRe = regexp.MustCompile(`^FAILED ([\w./-]+\.py)::(\S+)`)
	// jest/vitest: "✕ renders header" or "FAIL src/app.test.ts"
	jsTestFailRe = regexp.MustCompile(`^FAIL ([\w./-]+\.(?:[jt]sx?))\b`)
	// summary lines like "2 failed, 10 passed" or "Tests: 1 failed"
	testSummaryRe = regexp.MustCompile(`(\d+) failed`)
	// pytest failure location: "tests/test_api.py:42: AssertionError"
	pyAssertLocRe = regexp.MustCompile(`^([\w./-]+\.py):(\d+): \w*(?:Error|Exception|AssertionError)`)
)

func (m *TestFailureMatcher) Kind() Kind { return KindTestFailure }

func (m *TestFailureMatcher) Scan(lines []string) []Finding {
	var findings []Finding
	for i, line := range lines {
		switch {
		case goTestFailRe.MatchString(line):
			name := goTestFailRe.FindStringSubmatch(line)[1]
			findings = append(findings, Finding{
				Kind:       KindTestFailure,
				Confidence: testFailureBaseConfidence,
				Summary:    fmt.Sprintf("test %s failed", name),
				Subject:    name,
				LogLine:    i,
			})
		case pytestFailRe.MatchString(line):
			sub := pytestFailRe.FindStringSubmatch(line)
			findings = append(findings, Finding{
				Kind:       KindTestFailure,
				Confidence: testFailureBaseConfidence,
				Summary:    fmt.Sprintf("test %s failed in %s", sub[2], sub[1]),
				Subject:    sub[2],
				Location:   &Location{File: sub[1]},
				LogLine:    i,
			})
		case jsTestFailRe.MatchString(line):
			file := jsTestFailRe.FindStringSubmatch(line)[1]
			findings = append(findings, Finding{
				Kind:       KindTestFailure,
				Confidence: testFailureBaseConfidence,
				Summary:    fmt.Sprintf("test suite %s failed", file),
				Location:   &Location{File: file},
				LogLine:    i,
			})
		case pyAssertLocRe.MatchString(line):
			sub := pyAssertLocRe.FindStringSubmatch(line)
			n, _ := strconv.Atoi(sub[2])
			findings = append(findings, Finding{
				Kind:       KindTestFailure,
				Confidence: testFailureBaseConfidence - 1,
				Summary:    fmt.Sprintf("assertion failed at %s:%s", sub[1], sub[2]),
				Location:   &Location{File: sub[1], Line: n},
				LogLine:    i,
			})
		case testSummaryRe.MatchString(line) && failedCountPositive(line):
			findings = append(findings, Finding{
				Kind:       KindTestFailure,
				Confidence: testFailureBaseConfidence - 2,
				Summary:    fmt.Sprintf("test summary reports failures: %s", trimLine(line)),
				LogLine:    i,
			})
		}
	}
	return findings
}

// failedCountPositive guards against "0 failed" summary lines.
func failedCountPositive(line string) bool {
	sub := testSummaryRe.FindStringSubmatch(line)
	n, err := strconv.Atoi(sub[1])
	return err == nil && n > 0
}
