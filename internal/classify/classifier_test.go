package classify

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"
)

func classifyText(t *testing.T, text string) []Finding {
	t.Helper()
	return New(Options{}).Classify(text)
}

func TestClassify_MissingDependency(t *testing.T) {
	log := strings.Join([]string{
		"Collecting packages",
		"module not found: requests",
		"##[error]Process completed with exit code 1.",
	}, "\n")

	findings := classifyText(t, log)

	var dep *Finding
	for i := range findings {
		if findings[i].Kind == KindMissingDependency {
			dep = &findings[i]
		}
	}
	if dep == nil {
		t.Fatalf("expected a missing-dependency finding, got %+v", findings)
	}
	if dep.Confidence < 3 {
		t.Errorf("expected confidence >= 3, got %d", dep.Confidence)
	}
	if dep.Subject != "requests" {
		t.Errorf("expected subject=requests, got %q", dep.Subject)
	}
}

func TestClassify_CorroborationBoostsConfidence(t *testing.T) {
	base := strings.Join([]string{
		"ModuleNotFoundError: No module named 'requests'",
	}, "\n")
	corroborated := strings.Join([]string{
		"Traceback (most recent call last):",
		`  File "app/main.py", line 3, in <module>`,
		"ModuleNotFoundError: No module named 'requests'",
	}, "\n")

	lone := classifyText(t, base)
	boosted := classifyText(t, corroborated)

	loneDep := findKind(lone, KindMissingDependency)
	boostedDep := findKind(boosted, KindMissingDependency)
	if loneDep == nil || boostedDep == nil {
		t.Fatal("expected missing-dependency findings in both logs")
	}
	if boostedDep.Confidence <= loneDep.Confidence {
		t.Errorf("expected corroborated confidence > %d, got %d", loneDep.Confidence, boostedDep.Confidence)
	}
	if boostedDep.Confidence > 5 {
		t.Errorf("confidence must cap at 5, got %d", boostedDep.Confidence)
	}
}

func TestClassify_ContextWindowClipped(t *testing.T) {
	// Match on line 0: there is nothing before it to include.
	findings := classifyText(t, "panic: runtime error: index out of range\ngoroutine 1 [running]:")

	f := findKind(findings, KindRuntimeError)
	if f == nil {
		t.Fatal("expected a runtime-error finding")
	}
	if len(f.Context) != 2 {
		t.Errorf("expected clipped context of 2 lines, got %d", len(f.Context))
	}
}

func TestClassify_ContextWindowSize(t *testing.T) {
	var lines []string
	for i := 0; i < 20; i++ {
		lines = append(lines, "noise")
	}
	lines[10] = "--- FAIL: TestThing (0.01s)"

	c := New(Options{ContextBefore: 2, ContextAfter: 3})
	findings := c.Classify(strings.Join(lines, "\n"))

	f := findKind(findings, KindTestFailure)
	if f == nil {
		t.Fatal("expected a test-failure finding")
	}
	if len(f.Context) != 6 { // 2 before + match + 3 after
		t.Errorf("expected 6 context lines, got %d", len(f.Context))
	}
	if f.Context[2] != "--- FAIL: TestThing (0.01s)" {
		t.Errorf("expected match line in the middle, got %q", f.Context[2])
	}
}

func TestClassify_Dedup(t *testing.T) {
	// The same missing module reported twice merges to one finding.
	log := strings.Join([]string{
		"ModuleNotFoundError: No module named 'requests'",
		"some other output",
		"ModuleNotFoundError: No module named 'requests'",
	}, "\n")

	findings := classifyText(t, log)

	n := 0
	for _, f := range findings {
		if f.Kind == KindMissingDependency {
			n++
		}
	}
	if n != 1 {
		t.Errorf("expected 1 deduped missing-dependency finding, got %d", n)
	}
}

func TestClassify_DistinctSubjectsNotMerged(t *testing.T) {
	log := strings.Join([]string{
		"ModuleNotFoundError: No module named 'requests'",
		"ModuleNotFoundError: No module named 'flask'",
	}, "\n")

	findings := classifyText(t, log)

	n := 0
	for _, f := range findings {
		if f.Kind == KindMissingDependency {
			n++
		}
	}
	if n != 2 {
		t.Errorf("expected 2 findings for distinct packages, got %d", n)
	}
}

func TestClassify_EmptyLogYieldsNoFindings(t *testing.T) {
	if got := classifyText(t, ""); len(got) != 0 {
		t.Errorf("expected no findings for empty log, got %+v", got)
	}
	if got := classifyText(t, "all green\neverything passed\n"); len(got) != 0 {
		t.Errorf("expected no findings for clean log, got %+v", got)
	}
}

func TestClassify_Idempotent(t *testing.T) {
	log := strings.Join([]string{
		"--- FAIL: TestLogin (0.02s)",
		"ModuleNotFoundError: No module named 'requests'",
		"##[error]Process completed with exit code 1.",
	}, "\n")

	a := classifyText(t, log)
	b := classifyText(t, log)

	if len(a) != len(b) {
		t.Fatalf("run lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].Kind != b[i].Kind || a[i].Confidence != b[i].Confidence || a[i].Summary != b[i].Summary {
			t.Errorf("finding %d differs between runs:\n%+v\n%+v", i, a[i], b[i])
		}
	}
}

func TestClassify_Signatures(t *testing.T) {
	tests := []struct {
		name string
		line string
		kind Kind
	}{
		{"go test fail", "--- FAIL: TestParse (0.00s)", KindTestFailure},
		{"pytest fail", "FAILED tests/test_api.py::test_login - AssertionError", KindTestFailure},
		{"jest fail", "FAIL src/app.test.ts", KindTestFailure},
		{"node module", "Error: Cannot find module 'lodash'", KindMissingDependency},
		{"go module", "no required module provides package github.com/foo/bar", KindMissingDependency},
		{"apt package", "E: Unable to locate package libpq-dev", KindMissingDependency},
		{"panic", "panic: close of closed channel", KindRuntimeError},
		{"exit code", "##[error]Process completed with exit code 2.", KindJobFailure},
		{"forbidden", "HTTP/2 403 Forbidden", KindPermissionError},
		{"integration", "RequestError: Resource not accessible by integration", KindPermissionError},
		{"engine", `error eslint@9.0.0: The engine "node" is incompatible with this module`, KindEnvironmentMismatch},
		{"found expected", "go: found version 1.21.0, expected 1.22.1", KindEnvironmentMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			findings := classifyText(t, tt.line)
			if findKind(findings, tt.kind) == nil {
				t.Errorf("line %q: expected a %s finding, got %+v", tt.line, tt.kind, findings)
			}
		})
	}
}

// stubMatcher replays canned findings regardless of the input text.
type stubMatcher struct {
	kind     Kind
	findings []Finding
}

func (m *stubMatcher) Kind() Kind { return m.kind }

func (m *stubMatcher) Scan(_ []string) []Finding {
	return append([]Finding(nil), m.findings...)
}

// Property: Classify's output is non-increasing by confidence and keeps
// log order on ties, for arbitrary confidence permutations.
func TestClassify_OrderingProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	text := strings.Repeat("log line\n", 20)

	for trial := 0; trial < 50; trial++ {
		var findings []Finding
		for i := 0; i < 20; i++ {
			findings = append(findings, Finding{
				Kind:       KindJobFailure,
				Confidence: 1 + rng.Intn(5),
				Location:   &Location{File: fmt.Sprintf("job-%d.log", i), Line: i + 1},
				LogLine:    i,
			})
		}

		c := New(Options{Matchers: []Matcher{&stubMatcher{kind: KindJobFailure, findings: findings}}})
		got := c.Classify(text)

		if len(got) != len(findings) {
			t.Fatalf("trial %d: Classify returned %d findings, want %d", trial, len(got), len(findings))
		}
		for i := 1; i < len(got); i++ {
			if got[i].Confidence > got[i-1].Confidence {
				t.Fatalf("trial %d: ordering not non-increasing at %d: %+v", trial, i, got)
			}
			if got[i].Confidence == got[i-1].Confidence && got[i].LogLine < got[i-1].LogLine {
				t.Fatalf("trial %d: tie not in log order at %d: %+v", trial, i, got)
			}
		}
	}
}

func findKind(findings []Finding, kind Kind) *Finding {
	for i := range findings {
		if findings[i].Kind == kind {
			return &findings[i]
		}
	}
	return nil
}
