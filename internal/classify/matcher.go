package classify

// Matcher scans log lines for one category of failure signature.
// Implementations are independent: adding a category never touches
// existing matchers.
type Matcher interface {
	Kind() Kind
	Scan(lines []string) []Finding
}

// DefaultMatchers returns the full matcher registry in scan order.
func DefaultMatchers() []Matcher {
	return []Matcher{
		&TestFailureMatcher{},
		&DependencyMatcher{},
		&RuntimeErrorMatcher{},
		&JobFailureMatcher{},
		&PermissionMatcher{},
		&EnvironmentMatcher{},
	}
}
