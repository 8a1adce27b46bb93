package validator

import (
	"strings"

	"github.com/grantforge/backend/internal/model"
	"github.com/grantforge/backend/internal/utils"
	"k8s.io/klog/v2"
)

// TrimNotice is appended to every auto-trimmed section.
const TrimNotice = "[Note: Section trimmed to meet length requirements]"

const trimMarker = "Auto-trimmed to fit length limit"

// autoTrim produces a shortened copy of an over-length section: content
// cut to the word ceiling, backed off to the nearest sentence boundary
// inside the last tenth of the truncated text, with the trim notice
// appended. The input section is not modified.
func autoTrim(section *model.GrantSection, maxWords int) *model.GrantSection {
	words := strings.Fields(section.Content)
	if len(words) <= maxWords {
		return section
	}
	truncated := strings.Join(words[:maxWords], " ")

	// Prefer ending on a sentence. Only back off when the period falls
	// within the final 10% of the truncated text, so a near-boundary cut
	// never throws away most of the section.
	cutoff := len(truncated) - len(truncated)/10
	if idx := strings.LastIndex(truncated, "."); idx >= cutoff {
		truncated = truncated[:idx+1]
	}

	content := truncated + "\n\n" + TrimNotice
	notes := trimMarker
	if section.RefinementNotes != "" {
		notes = section.RefinementNotes + "; " + trimMarker
	}

	trimmed := &model.GrantSection{
		Name:            section.Name,
		Content:         content,
		WordCount:       utils.CountWords(content),
		Iteration:       section.Iteration,
		Critique:        section.Critique,
		RefinementNotes: notes,
	}
	klog.V(6).Infof("trimmed %q from %d to %d words (limit %d)", section.Name, section.WordCount, trimmed.WordCount, maxWords)
	return trimmed
}
