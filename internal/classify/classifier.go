package classify

import (
	"sort"
	"strings"
)

const (
	defaultContextBefore = 5
	defaultContextAfter  = 5
	maxConfidence        = 5
)

// Options configures a Classifier. Zero values fall back to defaults.
type Options struct {
	ContextBefore int
	ContextAfter  int
	Matchers      []Matcher
}

// Classifier turns redacted log text into an ordered sequence of findings.
// It is a pure function of its input: identical text yields identical
// findings.
type Classifier struct {
	matchers []Matcher
	before   int
	after    int
}

// New creates a Classifier from opts.
func New(opts Options) *Classifier {
	c := &Classifier{
		matchers: opts.Matchers,
		before:   opts.ContextBefore,
		after:    opts.ContextAfter,
	}
	if c.matchers == nil {
		c.matchers = DefaultMatchers()
	}
	if c.before <= 0 {
		c.before = defaultContextBefore
	}
	if c.after <= 0 {
		c.after = defaultContextAfter
	}
	return c
}

// Classify scans text with every registered matcher and returns findings
// ordered by descending confidence, stable on the original log order.
// An empty result is valid: it means no recognizable failure signatures.
func (c *Classifier) Classify(text string) []Finding {
	lines := strings.Split(text, "\n")

	var findings []Finding
	for _, m := range c.matchers {
		findings = append(findings, m.Scan(lines)...)
	}

	for i := range findings {
		findings[i].Context = contextWindow(lines, findings[i].LogLine, c.before, c.after)
	}

	findings = corroborate(findings)
	findings = dedupe(findings)

	// Order by original appearance first so the confidence sort is stable
	// with respect to log order on ties.
	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].LogLine < findings[j].LogLine
	})
	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].Confidence > findings[j].Confidence
	})
	return findings
}

// contextWindow returns the lines around idx, clipped at log boundaries.
func contextWindow(lines []string, idx, before, after int) []string {
	lo := idx - before
	if lo < 0 {
		lo = 0
	}
	hi := idx + after + 1
	if hi > len(lines) {
		hi = len(lines)
	}
	if lo >= hi {
		return nil
	}
	out := make([]string, hi-lo)
	copy(out, lines[lo:hi])
	return out
}

// corroborate bumps confidence by one (capped) for findings whose subject
// is implicated by at least one other kind. A dependency-not-found line
// co-occurring with an ImportError traceback for the same module is the
// canonical case.
func corroborate(findings []Finding) []Finding {
	kindsBySubject := make(map[string]map[Kind]bool)
	for _, f := range findings {
		if f.Subject == "" {
			continue
		}
		if kindsBySubject[f.Subject] == nil {
			kindsBySubject[f.Subject] = make(map[Kind]bool)
		}
		kindsBySubject[f.Subject][f.Kind] = true
	}

	for i := range findings {
		s := findings[i].Subject
		if s == "" || len(kindsBySubject[s]) < 2 {
			continue
		}
		if findings[i].Confidence < maxConfidence {
			findings[i].Confidence++
		}
	}
	return findings
}

// dedupe merges findings whose kind and location coincide, keeping the
// highest confidence and unioning the summaries.
func dedupe(findings []Finding) []Finding {
	var out []Finding
	for _, f := range findings {
		merged := false
		for i := range out {
			if out[i].Kind != f.Kind || !sameLocation(out[i].Location, f.Location) {
				continue
			}
			// Location-less findings only coincide when they concern the
			// same subject; distinct missing packages must stay distinct.
			if out[i].Location == nil && out[i].Subject != f.Subject {
				continue
			}
			if f.Confidence > out[i].Confidence {
				out[i].Confidence = f.Confidence
			}
			if !strings.Contains(out[i].Summary, f.Summary) {
				out[i].Summary += "; " + f.Summary
			}
			if out[i].Subject == "" {
				out[i].Subject = f.Subject
			}
			merged = true
			break
		}
		if !merged {
			out = append(out, f)
		}
	}
	return out
}

// trimLine trims whitespace and caps a log line for use in summaries.
func trimLine(line string) string {
	line = strings.TrimSpace(line)
	const max = 160
	if len(line) > max {
		return line[:max] + "…"
	}
	return line
}
