package classify

import (
	"fmt"
	"regexp"
	"strconv"
)

// RuntimeErrorMatcher recognizes crashes and uncaught exceptions: Python
// tracebacks, Go panics, and segfaults.
type RuntimeErrorMatcher struct{}

const runtimeBaseConfidence = 3

var (
	tracebackRe = regexp.MustCompile(`^Traceback \(most recent call last\)`)
	panicRe     = regexp.MustCompile(`^panic: (.+)`)
	// "NameError: name 'foo' is not defined" and friends, excluding the
	// module errors owned by DependencyMatcher.
	pyExcRe = regexp.MustCompile(`^(\w+(?:Error|Exception)): (.+)`)
	// stack frame: `  File "app/main.py", line 12, in <module>`
	pyFrameRe = regexp.MustCompile(`^\s*File "([\w./-]+)", line (\d+)`)
	segvRe    = regexp.MustCompile(`Segmentation fault|SIGSEGV`)
)

func (m *RuntimeErrorMatcher) Kind() Kind { return KindRuntimeError }

func (m *RuntimeErrorMatcher) Scan(lines []string) []Finding {
	var findings []Finding
	for i, line := range lines {
		switch {
		case tracebackRe.MatchString(line):
			f := Finding{
				Kind:       KindRuntimeError,
				Confidence: runtimeBaseConfidence,
				Summary:    "uncaught exception (traceback)",
				LogLine:    i,
			}
			// Walk the traceback for the innermost frame and the final
			// exception line so the finding carries a real location.
			for j := i + 1; j < len(lines) && j < i+40; j++ {
				if sub := pyFrameRe.FindStringSubmatch(lines[j]); sub != nil {
					n, _ := strconv.Atoi(sub[2])
					f.Location = &Location{File: sub[1], Line: n}
					continue
				}
				if sub := pyExcRe.FindStringSubmatch(lines[j]); sub != nil {
					f.Summary = fmt.Sprintf("uncaught %s: %s", sub[1], sub[2])
					f.Subject = exceptionSubject(sub[1], sub[2])
					break
				}
			}
			findings = append(findings, f)
		case panicRe.MatchString(line):
			msg := panicRe.FindStringSubmatch(line)[1]
			findings = append(findings, Finding{
				Kind:       KindRuntimeError,
				Confidence: runtimeBaseConfidence,
				Summary:    fmt.Sprintf("panic: %s", msg),
				LogLine:    i,
			})
		case segvRe.MatchString(line):
			findings = append(findings, Finding{
				Kind:       KindRuntimeError,
				Confidence: runtimeBaseConfidence,
				Summary:    "segmentation fault",
				LogLine:    i,
			})
		}
	}
	return findings
}

// exceptionSubject extracts a corroboration subject from an exception
// message. Import-style errors name the module they failed to load, which
// lets a traceback corroborate a missing-dependency finding.
var quotedNameRe = regexp.MustCompile(`'([\w.-]+)'`)

func exceptionSubject(excType, msg string) string {
	if excType == "ModuleNotFoundError" || excType == "ImportError" {
		if sub := quotedNameRe.FindStringSubmatch(msg); sub != nil {
			return sub[1]
		}
	}
	return ""
}
