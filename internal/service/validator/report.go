package validator

import (
	"fmt"
	"strings"
)

// Text renders the report as plain text for logs and console output.
func (r *Report) Text() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Quality report: %s\n", r.GrantType)
	fmt.Fprintf(&b, "Checks passed: %d/%d (%.1f%%) - %s\n", r.ChecksPassed, r.ChecksRun, r.Score(), r.Band)
	if r.OverallPassed {
		b.WriteString("Overall: PASS\n")
	} else {
		b.WriteString("Overall: NEEDS ATTENTION\n")
	}

	if len(r.TrimmedSections) > 0 {
		b.WriteString("\nAuto-trimmed sections:\n")
		for _, result := range r.Results {
			if result.Check != CheckWordCount {
				continue
			}
			if trimmedTo, ok := result.Details["trimmed_to"]; ok {
				fmt.Fprintf(&b, "  %s: %v -> %v words\n", result.Section, result.Details["count"], trimmedTo)
			}
		}
	}

	if failed := r.failures(); len(failed) > 0 {
		b.WriteString("\nFailed checks:\n")
		for _, result := range failed {
			if result.Section != "" {
				fmt.Fprintf(&b, "  [%s] %s: %s\n", result.Check, result.Section, result.Reason)
			} else {
				fmt.Fprintf(&b, "  [%s] %s\n", result.Check, result.Reason)
			}
		}
	}

	if len(r.Suggestions) > 0 {
		b.WriteString("\nSuggestions:\n")
		for i, suggestion := range r.Suggestions {
			fmt.Fprintf(&b, "  %d. %s\n", i+1, suggestion)
		}
	}

	return b.String()
}
