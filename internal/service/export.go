package service

import (
	"fmt"
	"strings"

	"github.com/grantforge/backend/internal/model"
)

// ExportFilename names the downloadable proposal document for a run.
// Derived from the grant type plus a run ID prefix so repeated runs for
// the same program do not collide.
func ExportFilename(run *model.GenerationRun) string {
	grantType := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == ' ', r == '-', r == '_':
			return '_'
		}
		return -1
	}, run.GrantType)
	if grantType == "" {
		grantType = "proposal"
	}
	suffix := run.RunID
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	return fmt.Sprintf("%s_proposal_%s.md", grantType, suffix)
}

// RenderMarkdown lays the assembled proposal out as one markdown
// document: a metadata header, then every filled slot in document order
// under its drafted section title. Placeholder slots are left out.
func RenderMarkdown(proposal *model.GrantProposal, run *model.GenerationRun) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s Proposal\n\n", proposal.GrantType)
	fmt.Fprintf(&b, "**Company:** %s\n", proposal.CompanyName)
	fmt.Fprintf(&b, "**Generated:** %s\n", proposal.CreatedAt.Format("January 2, 2006"))
	fmt.Fprintf(&b, "**Total word count:** %d\n", proposal.TotalWordCount)
	if run != nil && run.Iterations > 0 {
		fmt.Fprintf(&b, "**Refinement iterations:** %d\n", run.Iterations)
	}
	b.WriteString("\n---\n")

	for _, slot := range model.SlotKeys {
		section := proposal.Section(slot)
		if section == nil || section.Content == model.PlaceholderContent {
			continue
		}
		fmt.Fprintf(&b, "\n## %s\n\n", section.Name)
		b.WriteString(strings.TrimRight(section.Content, "\n"))
		b.WriteString("\n\n---\n")
	}

	return b.String()
}
