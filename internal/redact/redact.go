package redact

import (
	"fmt"
	"regexp"
	"strings"
)

// mask is the prefix that replaces the hidden portion of a secret.
const mask = "****"

// pattern pairs a named regexp with the index of the capture group that
// holds the secret itself. Group 0 means the whole match is the secret.
type pattern struct {
	name  string
	re    *regexp.Regexp
	group int
}

// defaultPatterns covers the token shapes we expect to see in CI logs:
// GitHub tokens, AWS access key IDs, JWTs, bearer headers, and generic
// key=value assignments for secret-like names.
var defaultPatterns = []pattern{
	{name: "github-token", re: regexp.MustCompile(`\bgh[pousr]_[A-Za-z0-9]{20,251}\b`)},
	{name: "github-pat", re: regexp.MustCompile(`\bgithub_pat_[A-Za-z0-9_]{22,255}\b`)},
	{name: "aws-access-key", re: regexp.MustCompile(`\b(?:AKIA|ASIA)[0-9A-Z]{16}\b`)},
	// The block pattern must precede the header pattern so Redact masks
	// the whole key, not just its first line. Scan works line by line and
	// relies on the header pattern to flag key material.
	{name: "private-key-block", re: regexp.MustCompile(`(?s)-----BEGIN (?:RSA |EC |OPENSSH |DSA )?PRIVATE KEY-----.*?-----END (?:RSA |EC |OPENSSH |DSA )?PRIVATE KEY-----`)},
	{name: "private-key", re: regexp.MustCompile(`-----BEGIN (?:RSA |EC |OPENSSH |DSA )?PRIVATE KEY-----`)},
	{name: "jwt", re: regexp.MustCompile(`\beyJ[A-Za-z0-9_-]{8,}\.[A-Za-z0-9_-]{8,}\.[A-Za-z0-9_-]{8,}\b`)},
	{name: "bearer", re: regexp.MustCompile(`(?i)\bbearer\s+([A-Za-z0-9._~+/=-]{12,})`), group: 1},
	{name: "assignment", re: regexp.MustCompile(`(?i)\b(?:api[_-]?key|access[_-]?key|secret[_-]?access[_-]?key|secret|token|password|passwd)\b["']?\s*[:=]\s*["']?([^\s"']{8,})`), group: 1},
}

// Hit records one secret-pattern match found by Scan.
type Hit struct {
	Pattern string `json:"pattern"`
	Line    int    `json:"line"` // 1-based line number
}

// Redactor replaces secret-like substrings, preserving only the last 4
// characters of each match.
type Redactor struct {
	patterns []pattern
}

// New creates a Redactor with the default pattern set plus any extra
// user-supplied regexes. Extra patterns treat the whole match as secret.
func New(extra ...string) (*Redactor, error) {
	r := &Redactor{patterns: defaultPatterns}
	for _, expr := range extra {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("compile secret pattern %q: %w", expr, err)
		}
		r.patterns = append(r.patterns, pattern{name: "custom", re: re})
	}
	return r, nil
}

// maskSecret hides all but the last 4 characters of a secret.
// Secrets of 4 characters or fewer are masked entirely.
func maskSecret(s string) string {
	if len(s) <= 4 {
		return mask
	}
	return mask + s[len(s)-4:]
}

// Redact replaces every secret-pattern match in text. Each match keeps
// only its last 4 characters. Safe to call on already-redacted text.
func (r *Redactor) Redact(text string) string {
	for _, p := range r.patterns {
		text = p.re.ReplaceAllStringFunc(text, func(m string) string {
			if p.group == 0 {
				return maskSecret(m)
			}
			sub := p.re.FindStringSubmatch(m)
			secret := sub[p.group]
			if strings.HasPrefix(secret, mask) {
				return m
			}
			return strings.Replace(m, secret, maskSecret(secret), 1)
		})
	}
	return text
}

// Scan reports every unredacted secret-pattern match in text. A match
// whose secret portion already starts with the mask is ignored.
func (r *Redactor) Scan(text string) []Hit {
	var hits []Hit
	for i, line := range strings.Split(text, "\n") {
		for _, p := range r.patterns {
			for _, sub := range p.re.FindAllStringSubmatch(line, -1) {
				if strings.HasPrefix(sub[p.group], mask) {
					continue
				}
				hits = append(hits, Hit{Pattern: p.name, Line: i + 1})
			}
		}
	}
	return hits
}

// Verify returns an error if any unredacted secret remains in text.
// Used as the post-redaction check before logs are persisted.
func (r *Redactor) Verify(text string) error {
	if hits := r.Scan(text); len(hits) > 0 {
		return fmt.Errorf("redaction incomplete: %d secret pattern match(es) remain (first: %s at line %d)", len(hits), hits[0].Pattern, hits[0].Line)
	}
	return nil
}
