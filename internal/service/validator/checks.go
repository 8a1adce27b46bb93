package validator

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/grantforge/backend/internal/model"
	"github.com/grantforge/backend/internal/service/agency"
	"github.com/grantforge/backend/internal/service/assembly"
	"github.com/grantforge/backend/internal/utils"
)

type wordBounds struct {
	min int
	max int
}

// nsfDefaultBounds reproduces the legacy single-agency limits, used when
// the validator runs without agency context.
var nsfDefaultBounds = map[string]wordBounds{
	model.SlotProjectPitch:          {400, 800},
	model.SlotTechnicalObjectives:   {2000, 2500},
	model.SlotBroaderImpacts:        {400, 800},
	model.SlotCommercializationPlan: {800, 1200},
}

var nsfDefaultKeywords = map[string][]string{
	"Project Pitch":          {"problem", "solution", "innovation", "market", "Phase I"},
	"Technical Objectives":   {"methodology", "risk", "milestone", "feasibility", "TRL"},
	"Broader Impacts":        {"societal", "impact", "benefit"},
	"Commercialization Plan": {"market", "customer", "revenue", "competitive"},
}

// narrativeSlots are the prose sections covered by the citation and
// readability heuristics.
var narrativeSlots = []string{
	model.SlotProjectPitch,
	model.SlotTechnicalObjectives,
	model.SlotBroaderImpacts,
	model.SlotCommercializationPlan,
}

func isPlaceholder(s *model.GrantSection) bool {
	return s == nil || s.Content == model.PlaceholderContent
}

// slotBounds sums the word bounds of every required agency section that
// maps onto a slot; merged slots get merged limits.
func (v *Validator) slotBounds() map[string]wordBounds {
	if v.reqs == nil {
		return nsfDefaultBounds
	}
	bounds := make(map[string]wordBounds)
	for _, entry := range v.reqs.RequiredSections() {
		slot, ok := assembly.SlotFor(entry.Section.Name)
		if !ok {
			continue
		}
		b := bounds[slot]
		b.min += entry.Section.MinWords
		b.max += entry.Section.MaxWords
		bounds[slot] = b
	}
	return bounds
}

func (v *Validator) checkWordCounts(p *model.GrantProposal) ([]CheckResult, map[string]*model.GrantSection) {
	bounds := v.slotBounds()
	var results []CheckResult
	trimmed := make(map[string]*model.GrantSection)

	for _, slot := range model.SlotKeys {
		b, ok := bounds[slot]
		if !ok {
			continue
		}
		section := p.Section(slot)
		if isPlaceholder(section) {
			continue
		}

		count := section.WordCount
		details := map[string]any{"count": count, "min": b.min, "max": b.max}
		switch {
		case count < b.min:
			results = append(results, CheckResult{
				Check:   CheckWordCount,
				Section: section.Name,
				Status:  Fail,
				Reason:  fmt.Sprintf("%d words, below the %d-%d word range", count, b.min, b.max),
				Details: details,
				Suggestion: fmt.Sprintf("%s: add at least %d more words to reach the %d-word minimum",
					section.Name, b.min-count, b.min),
			})
		case count > b.max:
			// Over-length is not a failure; the section is trimmed to fit.
			t := autoTrim(section, b.max)
			trimmed[slot] = t
			details["trimmed_to"] = t.WordCount
			results = append(results, CheckResult{
				Check:   CheckWordCount,
				Section: section.Name,
				Status:  Pass,
				Reason:  fmt.Sprintf("%d words, trimmed to %d to fit the %d-%d word range", count, t.WordCount, b.min, b.max),
				Details: details,
				Suggestion: fmt.Sprintf("%s: auto-trimmed from %d to %d words, review the cut point",
					section.Name, count, t.WordCount),
			})
		default:
			results = append(results, CheckResult{
				Check:   CheckWordCount,
				Section: section.Name,
				Status:  Pass,
				Reason:  fmt.Sprintf("%d words, within the %d-%d word range", count, b.min, b.max),
				Details: details,
			})
		}
	}
	return results, trimmed
}

type keywordTarget struct {
	section  string
	slot     string
	keywords []string
}

func (v *Validator) keywordTargets() []keywordTarget {
	if v.reqs == nil {
		targets := make([]keywordTarget, 0, len(nsfDefaultKeywords))
		for _, slot := range narrativeSlots {
			name := model.SlotTitle(slot)
			targets = append(targets, keywordTarget{section: name, slot: slot, keywords: nsfDefaultKeywords[name]})
		}
		return targets
	}
	var targets []keywordTarget
	for _, entry := range v.reqs.RequiredSections() {
		if len(entry.Section.RequiredKeywords) == 0 {
			continue
		}
		slot, ok := assembly.SlotFor(entry.Section.Name)
		if !ok {
			continue
		}
		targets = append(targets, keywordTarget{
			section:  entry.Section.Name,
			slot:     slot,
			keywords: entry.Section.RequiredKeywords,
		})
	}
	return targets
}

func (v *Validator) checkKeywords(p *model.GrantProposal) []CheckResult {
	var results []CheckResult
	for _, target := range v.keywordTargets() {
		section := p.Section(target.slot)
		if isPlaceholder(section) {
			continue
		}

		content := strings.ToLower(section.Content)
		var found, missing []string
		for _, kw := range target.keywords {
			if strings.Contains(content, strings.ToLower(kw)) {
				found = append(found, kw)
			} else {
				missing = append(missing, kw)
			}
		}

		result := CheckResult{
			Check:   CheckKeywords,
			Section: target.section,
			Details: map[string]any{
				"found":    found,
				"missing":  missing,
				"coverage": fmt.Sprintf("%d/%d", len(found), len(target.keywords)),
			},
		}
		if len(missing) == 0 {
			result.Status = Pass
			result.Reason = fmt.Sprintf("all %d required keywords present", len(target.keywords))
		} else {
			result.Status = Fail
			result.Reason = fmt.Sprintf("%d/%d required keywords present", len(found), len(target.keywords))
			result.Suggestion = fmt.Sprintf("%s: cover the missing required elements: %s",
				target.section, strings.Join(missing, ", "))
		}
		results = append(results, result)
	}
	return results
}

var (
	totalPattern  = regexp.MustCompile(`(?i)\b(?:grand\s+total|total|sum)\b[^$\n]*\$\s*([\d,]+(?:\.\d{1,2})?)`)
	dollarPattern = regexp.MustCompile(`\$\s*[\d,]+(?:\.\d{1,2})?`)
)

// parseDollars reads "275,000.00" as whole dollars; cents are dropped.
func parseDollars(s string) int {
	f, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0
	}
	return int(f)
}

func (v *Validator) checkBudget(p *model.GrantProposal) []CheckResult {
	if v.reqs == nil {
		return nil
	}
	section := p.Section(model.SlotBudgetJustification)
	if isPlaceholder(section) {
		return nil
	}

	target := v.reqs.FundingAmount
	dollarFigures := len(dollarPattern.FindAllString(section.Content, -1))
	matches := totalPattern.FindAllStringSubmatch(section.Content, -1)

	if len(matches) == 0 {
		return []CheckResult{{
			Check:   CheckBudget,
			Section: section.Name,
			Status:  Fail,
			Reason:  "no explicit budget total found",
			Details: map[string]any{"dollar_figures": dollarFigures, "target": target},
			Suggestion: fmt.Sprintf("%s: state an explicit total matching the $%s award amount",
				section.Name, agency.FormatDollars(target)),
		}}
	}

	// The last stated total wins; budgets close with the grand total.
	actual := parseDollars(matches[len(matches)-1][1])
	difference := actual - target
	details := map[string]any{
		"actual":         actual,
		"target":         target,
		"difference":     difference,
		"dollar_figures": dollarFigures,
	}

	if difference == 0 {
		return []CheckResult{{
			Check:   CheckBudget,
			Section: section.Name,
			Status:  Pass,
			Reason:  fmt.Sprintf("total $%s matches the funding amount", agency.FormatDollars(actual)),
			Details: details,
		}}
	}
	return []CheckResult{{
		Check:   CheckBudget,
		Section: section.Name,
		Status:  Fail,
		Reason: fmt.Sprintf("total $%s differs from the $%s award by %+d",
			agency.FormatDollars(actual), agency.FormatDollars(target), difference),
		Details: details,
		Suggestion: fmt.Sprintf("%s: adjust line items so the total equals $%s exactly",
			section.Name, agency.FormatDollars(target)),
	}}
}

var (
	monthWordPattern  = regexp.MustCompile(`(?i)\bmonths?\s+(\d{1,2})\b`)
	monthShortPattern = regexp.MustCompile(`\bM(\d{1,2})\b`)
	monthNamePattern  = regexp.MustCompile(`(?i)\b(january|february|march|april|may|june|july|august|september|october|november|december)\b`)
)

var monthIndex = map[string]int{
	"january": 1, "february": 2, "march": 3, "april": 4,
	"may": 5, "june": 6, "july": 7, "august": 8,
	"september": 9, "october": 10, "november": 11, "december": 12,
}

// mentionedMonths collects distinct month numbers within 1..limit from
// "month N", "MN", and calendar month name references.
func mentionedMonths(content string, limit int) map[int]bool {
	months := make(map[int]bool)
	add := func(n int) {
		if n >= 1 && n <= limit {
			months[n] = true
		}
	}
	for _, m := range monthWordPattern.FindAllStringSubmatch(content, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil {
			add(n)
		}
	}
	for _, m := range monthShortPattern.FindAllStringSubmatch(content, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil {
			add(n)
		}
	}
	for _, m := range monthNamePattern.FindAllStringSubmatch(content, -1) {
		add(monthIndex[strings.ToLower(m[1])])
	}
	return months
}

func (v *Validator) checkTimeline(p *model.GrantProposal) []CheckResult {
	if v.reqs == nil {
		return nil
	}
	section := p.Section(model.SlotWorkPlan)
	if isPlaceholder(section) {
		return nil
	}

	duration := v.reqs.DurationMonths
	months := mentionedMonths(section.Content, duration)
	var missing []int
	for m := 1; m <= duration; m++ {
		if !months[m] {
			missing = append(missing, m)
		}
	}

	coverage := fmt.Sprintf("%d/%d months", len(months), duration)
	details := map[string]any{"coverage": coverage, "duration_months": duration}

	if len(months) >= duration || (months[1] && months[duration]) {
		return []CheckResult{{
			Check:   CheckTimeline,
			Section: section.Name,
			Status:  Pass,
			Reason:  fmt.Sprintf("timeline covers %s", coverage),
			Details: details,
		}}
	}

	missingText := make([]string, len(missing))
	for i, m := range missing {
		missingText[i] = strconv.Itoa(m)
	}
	details["missing_months"] = missing
	return []CheckResult{{
		Check:   CheckTimeline,
		Section: section.Name,
		Status:  Fail,
		Reason:  fmt.Sprintf("timeline covers %s", coverage),
		Details: details,
		Suggestion: fmt.Sprintf("%s: cover months %s of the %d-month period explicitly",
			section.Name, strings.Join(missingText, ", "), duration),
	}}
}

var educationIndicators = []string{
	"phd", "ph.d", "m.s.", "b.s.", "mba", "m.d.", "degree", "university", "college", "institute",
}

var experienceIndicators = []string{
	"years", "experience", "led", "developed", "managed", "founded", "previously", "prior", "worked",
}

func containsAny(content string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(content, term) {
			return true
		}
	}
	return false
}

func (v *Validator) checkTeamBios(p *model.GrantProposal, company *model.CompanyContext) []CheckResult {
	if company == nil || len(company.Team) == 0 {
		return nil
	}
	section := p.Section(model.SlotBiographicalSketches)
	if isPlaceholder(section) {
		return nil
	}

	content := strings.ToLower(section.Content)
	hasEducation := containsAny(content, educationIndicators)
	hasExperience := containsAny(content, experienceIndicators)

	var results []CheckResult
	for _, member := range company.Team {
		result := CheckResult{
			Check:   CheckTeamBios,
			Section: member.Name,
			Details: map[string]any{"role": member.Role},
		}
		if !strings.Contains(content, strings.ToLower(member.Name)) {
			result.Status = Fail
			result.Reason = "no biographical sketch found"
			result.Suggestion = fmt.Sprintf("add a biographical sketch for %s (%s)", member.Name, member.Role)
			results = append(results, result)
			continue
		}

		result.Status = Pass
		complete := hasEducation && hasExperience
		result.Details["complete"] = complete
		if complete {
			result.Reason = "bio present with education and experience detail"
		} else {
			result.Reason = "bio present but education or experience detail is thin"
		}
		results = append(results, result)
	}
	return results
}

var claimPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\d+(?:\.\d+)?\s*%`),
	regexp.MustCompile(`(?i)\$[\d,.]+\s*(?:million|billion)`),
	regexp.MustCompile(`(?i)\b(?:studies\s+show|research\s+shows|according\s+to|it\s+is\s+estimated)\b`),
	regexp.MustCompile(`\b(?:NSF|NASA|DOE|NIH|DARPA|DoD)\b`),
}

var citationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\[\d+\]`),
	regexp.MustCompile(`\([A-Z][A-Za-z-]+(?:\s+et\s+al\.?)?,?\s+\d{4}\)`),
	regexp.MustCompile(`https?://\S+`),
}

func countMatches(content string, patterns []*regexp.Regexp) int {
	total := 0
	for _, p := range patterns {
		total += len(p.FindAllString(content, -1))
	}
	return total
}

func (v *Validator) checkCitations(p *model.GrantProposal) []CheckResult {
	var results []CheckResult
	for _, slot := range narrativeSlots {
		section := p.Section(slot)
		if isPlaceholder(section) {
			continue
		}

		claims := countMatches(section.Content, claimPatterns)
		citations := countMatches(section.Content, citationPatterns)
		result := CheckResult{
			Check:   CheckCitations,
			Section: section.Name,
			Details: map[string]any{"claims": claims, "citations": citations},
		}
		if claims > 0 && citations == 0 {
			result.Status = Fail
			result.Reason = fmt.Sprintf("%d quantitative claims with no supporting citations", claims)
			result.Suggestion = fmt.Sprintf("%s: add citations or sources for the %d quantitative claims", section.Name, claims)
		} else {
			result.Status = Pass
			result.Reason = fmt.Sprintf("%d claims, %d citations", claims, citations)
		}
		results = append(results, result)
	}
	return results
}

const maxAvgSentenceLength = 30.0

var passivePattern = regexp.MustCompile(`(?i)\b(?:was|were|been|being|is|are)\s+\w+ed\b`)

func (v *Validator) checkReadability(p *model.GrantProposal) []CheckResult {
	var results []CheckResult
	for _, slot := range narrativeSlots {
		section := p.Section(slot)
		if isPlaceholder(section) {
			continue
		}

		sentences := utils.SplitSentences(section.Content)
		if len(sentences) == 0 {
			continue
		}
		totalWords := 0
		for _, s := range sentences {
			totalWords += utils.CountWords(s)
		}
		avg := float64(totalWords) / float64(len(sentences))
		passive := len(passivePattern.FindAllString(section.Content, -1))

		result := CheckResult{
			Check:   CheckReadability,
			Section: section.Name,
			Details: map[string]any{
				"avg_sentence_length": fmt.Sprintf("%.1f", avg),
				"passive_indicators":  passive,
			},
		}
		if avg > maxAvgSentenceLength {
			result.Status = Fail
			result.Reason = fmt.Sprintf("average sentence runs %.1f words", avg)
			result.Suggestion = fmt.Sprintf("%s: shorten sentences, the average of %.1f words is hard to follow", section.Name, avg)
		} else {
			result.Status = Pass
			result.Reason = fmt.Sprintf("average sentence runs %.1f words", avg)
		}
		results = append(results, result)
	}
	return results
}
