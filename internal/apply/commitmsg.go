package apply

import (
	"fmt"
	"strings"
)

// CommitMessage renders the fixed commit template: a short imperative
// summary line, a blank line, then what/why/fixes bullets referencing the
// originating finding summaries.
func CommitMessage(pr int, results []ActionResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Apply automated CI fixes for PR #%d\n\n", pr)

	for _, r := range results {
		if !r.Applied {
			continue
		}
		fmt.Fprintf(&b, "- what: %s\n", r.Action.Description)
		for _, f := range r.Action.Findings {
			fmt.Fprintf(&b, "- why: %s (%s, confidence %d)\n", f.Summary, f.Kind, f.Confidence)
		}
		fmt.Fprintf(&b, "- fixes: %s\n", r.Action.TargetFile)
	}
	return strings.TrimRight(b.String(), "\n")
}
