// Package validator runs quality checks over an assembled proposal:
// word-count limits with auto-trim, required-keyword coverage, budget
// arithmetic, timeline coverage, team bios, citation support, and
// readability. Checks report pass/fail results, never errors; a broken
// proposal is a finding, not a malfunction.
package validator

import (
	"k8s.io/klog/v2"

	"github.com/grantforge/backend/internal/model"
	"github.com/grantforge/backend/internal/service/agency"
)

// Status tags a single check outcome.
type Status string

const (
	Pass Status = "pass"
	Fail Status = "fail"
)

// Check family tags carried on every CheckResult.
const (
	CheckWordCount   = "word_count"
	CheckKeywords    = "keyword_coverage"
	CheckBudget      = "budget_total"
	CheckTimeline    = "timeline_coverage"
	CheckTeamBios    = "team_bios"
	CheckCitations   = "citations"
	CheckReadability = "readability"
)

// CheckResult is one check outcome over one section, team member, or
// the proposal as a whole. A passing result may still carry a
// suggestion, auto-trimmed sections pass but flag the cut for review.
type CheckResult struct {
	Check      string         `json:"check"`
	Section    string         `json:"section,omitempty"`
	Status     Status         `json:"status"`
	Reason     string         `json:"reason"`
	Details    map[string]any `json:"details,omitempty"`
	Suggestion string         `json:"suggestion,omitempty"`
}

func (r CheckResult) Passed() bool { return r.Status == Pass }

// Quality bands over the pass rate.
const (
	BandExcellent = "Excellent"
	BandGood      = "Good"
	BandFair      = "Fair"
	BandNeedsWork = "Needs Work"
)

// Report aggregates every check result for one proposal. TrimmedSections
// holds replacement sections keyed by slot; they are not applied to the
// proposal until the caller invokes ApplyTrims.
type Report struct {
	GrantType       string                         `json:"grant_type"`
	Results         []CheckResult                  `json:"results"`
	TrimmedSections map[string]*model.GrantSection `json:"trimmed_sections,omitempty"`
	Suggestions     []string                       `json:"suggestions,omitempty"`
	ChecksRun       int                            `json:"checks_run"`
	ChecksPassed    int                            `json:"checks_passed"`
	PassRate        float64                        `json:"pass_rate"`
	Band            string                         `json:"band"`
	OverallPassed   bool                           `json:"overall_passed"`
}

// ApplyTrims splices the auto-trimmed sections back onto the proposal
// and recomputes its totals.
func (r *Report) ApplyTrims(proposal *model.GrantProposal) {
	if len(r.TrimmedSections) == 0 {
		return
	}
	for slot, section := range r.TrimmedSections {
		proposal.SetSection(slot, section)
	}
	proposal.CalculateTotals()
}

// Validator checks an assembled proposal against agency requirements.
type Validator struct {
	reqs *agency.Requirements
}

// New builds a validator for the given agency requirements. A nil reqs
// falls back to legacy NSF-shaped limits over the four narrative
// sections; budget and timeline checks need agency context and are
// skipped in that mode.
func New(reqs *agency.Requirements) *Validator {
	return &Validator{reqs: reqs}
}

// Validate runs every check over the proposal and returns the full
// report. company may be nil, in which case team-bio checks are skipped.
func (v *Validator) Validate(proposal *model.GrantProposal, company *model.CompanyContext) *Report {
	var results []CheckResult

	wordResults, trimmed := v.checkWordCounts(proposal)
	results = append(results, wordResults...)
	results = append(results, v.checkKeywords(proposal)...)
	results = append(results, v.checkBudget(proposal)...)
	results = append(results, v.checkTimeline(proposal)...)
	results = append(results, v.checkTeamBios(proposal, company)...)
	results = append(results, v.checkCitations(proposal)...)
	results = append(results, v.checkReadability(proposal)...)

	report := &Report{
		GrantType:       proposal.GrantType,
		Results:         results,
		TrimmedSections: trimmed,
	}
	for _, result := range results {
		report.ChecksRun++
		if result.Passed() {
			report.ChecksPassed++
		}
		if result.Suggestion != "" {
			report.Suggestions = append(report.Suggestions, result.Suggestion)
		}
	}
	if report.ChecksRun > 0 {
		report.PassRate = float64(report.ChecksPassed) / float64(report.ChecksRun)
	} else {
		report.PassRate = 1
	}
	report.Band = band(report.PassRate)
	report.OverallPassed = report.ChecksPassed == report.ChecksRun

	klog.V(6).Infof("validated proposal %q: %d/%d checks passed (%s), %d sections trimmed",
		proposal.GrantType, report.ChecksPassed, report.ChecksRun, report.Band, len(trimmed))
	return report
}

func band(passRate float64) string {
	score := passRate * 100
	switch {
	case score >= 90:
		return BandExcellent
	case score >= 75:
		return BandGood
	case score >= 60:
		return BandFair
	default:
		return BandNeedsWork
	}
}

// Score is the pass rate on a 0-100 scale.
func (r *Report) Score() float64 {
	return r.PassRate * 100
}

func (r *Report) failures() []CheckResult {
	var failed []CheckResult
	for _, result := range r.Results {
		if !result.Passed() {
			failed = append(failed, result)
		}
	}
	return failed
}
