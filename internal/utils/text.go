package utils

import (
	"strings"
)

// CountWords returns the number of whitespace-delimited tokens in s.
// Section word counts are always computed this way so limits, trims, and
// totals agree with each other.
func CountWords(s string) int {
	return len(strings.Fields(s))
}

// SplitSentences splits s on period boundaries and drops empty fragments.
func SplitSentences(s string) []string {
	parts := strings.Split(s, ".")
	sentences := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			sentences = append(sentences, p)
		}
	}
	return sentences
}
