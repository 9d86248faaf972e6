package classify

// Kind names a category of CI failure.
type Kind string

const (
	KindTestFailure         Kind = "test-failure"
	KindMissingDependency   Kind = "missing-dependency"
	KindRuntimeError        Kind = "runtime-error"
	KindJobFailure          Kind = "job-failure"
	KindPermissionError     Kind = "permission-error"
	KindEnvironmentMismatch Kind = "environment-mismatch"
)

// Location points at a file (and optionally a line) implicated by a finding.
type Location struct {
	File string `json:"file"`
	Line int    `json:"line,omitempty"`
}

// Finding is one classified failure signal extracted from a log.
type Finding struct {
	Kind       Kind              `json:"kind"`
	Confidence int               `json:"confidence"` // 1..5
	Summary    string            `json:"summary"`
	Context    []string          `json:"context,omitempty"` // surrounding log lines
	Location   *Location         `json:"location,omitempty"`
	Subject    string            `json:"subject,omitempty"` // extracted parameter, e.g. a package name
	Params     map[string]string `json:"params,omitempty"`  // kind-specific extracted values

	// LogLine is the 0-based index of the matched line in the scanned log.
	// Used for context windows and stable ordering on confidence ties.
	LogLine int `json:"log_line"`
}

// sameLocation reports whether two findings point at the same place.
// Two nil locations coincide.
func sameLocation(a, b *Location) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.File == b.File && a.Line == b.Line
}
