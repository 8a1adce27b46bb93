package service

import (
	"strings"
	"testing"
	"time"

	"github.com/grantforge/backend/internal/model"
)

func TestExportFilename(t *testing.T) {
	run := &model.GenerationRun{
		RunID:     "0123456789abcdef",
		GrantType: "NSF SBIR Phase I",
	}
	got := ExportFilename(run)
	want := "NSF_SBIR_Phase_I_proposal_01234567.md"
	if got != want {
		t.Errorf("ExportFilename = %q, want %q", got, want)
	}
}

func TestExportFilenameStripsPunctuation(t *testing.T) {
	run := &model.GenerationRun{
		RunID:     "abcd1234",
		GrantType: "DoD SBIR, Phase I (AF)",
	}
	got := ExportFilename(run)
	if strings.ContainsAny(got, ",() ") {
		t.Errorf("filename %q contains unsafe characters", got)
	}
	if !strings.HasSuffix(got, "_proposal_abcd1234.md") {
		t.Errorf("filename %q missing run suffix", got)
	}
}

func exportProposal() *model.GrantProposal {
	proposal := &model.GrantProposal{
		CompanyName: "EcoVolt Technologies",
		GrantType:   "NSF SBIR Phase I",
		CreatedAt:   time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC),
	}
	proposal.SetSection(model.SlotProjectPitch, &model.GrantSection{
		Name:      "Project Pitch",
		Content:   "The pitch body.",
		WordCount: 3,
	})
	proposal.SetSection(model.SlotTechnicalObjectives, &model.GrantSection{
		Name:      "Technical Objectives",
		Content:   "The objectives body.\n",
		WordCount: 3,
	})
	proposal.SetSection(model.SlotBroaderImpacts, &model.GrantSection{
		Name:      "Broader Impacts",
		Content:   model.PlaceholderContent,
		WordCount: 0,
	})
	proposal.CalculateTotals()
	return proposal
}

func TestRenderMarkdownLayout(t *testing.T) {
	run := &model.GenerationRun{Iterations: 2}
	got := RenderMarkdown(exportProposal(), run)

	if !strings.HasPrefix(got, "# NSF SBIR Phase I Proposal\n") {
		t.Errorf("missing title heading, got prefix %q", got[:40])
	}
	for _, want := range []string{
		"**Company:** EcoVolt Technologies",
		"**Generated:** March 14, 2025",
		"**Refinement iterations:** 2",
		"## Project Pitch",
		"The pitch body.",
		"## Technical Objectives",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("markdown missing %q", want)
		}
	}

	// Section order follows the document slot order.
	pitch := strings.Index(got, "## Project Pitch")
	objectives := strings.Index(got, "## Technical Objectives")
	if pitch > objectives {
		t.Error("sections out of document order")
	}
}

func TestRenderMarkdownSkipsPlaceholders(t *testing.T) {
	got := RenderMarkdown(exportProposal(), nil)

	if strings.Contains(got, model.PlaceholderContent) {
		t.Error("placeholder content leaked into the export")
	}
	if strings.Contains(got, "## Broader Impacts") {
		t.Error("placeholder slot got a heading")
	}
	if strings.Contains(got, "Refinement iterations") {
		t.Error("iterations line rendered without run metadata")
	}
}

func TestRenderMarkdownTrimsTrailingNewlines(t *testing.T) {
	got := RenderMarkdown(exportProposal(), nil)
	if strings.Contains(got, "body.\n\n\n") {
		t.Error("content trailing newlines were not collapsed")
	}
}
