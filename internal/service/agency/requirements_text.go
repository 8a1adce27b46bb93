package agency

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// RequirementsText renders the agency rules as a markdown blob. The blob is
// injected verbatim into every drafting, critique, and refinement prompt as
// shared context.
func (r *Requirements) RequirementsText() string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s %s Requirements\n\n", r.Agency, r.Program)
	fmt.Fprintf(&b, "**Funding Amount:** $%s\n", FormatDollars(r.FundingAmount))
	fmt.Fprintf(&b, "**Duration:** %d months\n\n", r.DurationMonths)

	b.WriteString("## Evaluation Criteria\n\n")
	for _, name := range sortedKeys(r.EvaluationCriteria) {
		crit := r.EvaluationCriteria[name]
		fmt.Fprintf(&b, "### %s (%.0f%%)\n", titleWords(name), crit.Weight*100)
		b.WriteString(crit.Description)
		b.WriteString("\n\n")
		for _, sub := range crit.SubCriteria {
			fmt.Fprintf(&b, "- %s\n", sub)
		}
		b.WriteString("\n")
	}

	specs := r.FormatSpecifications
	b.WriteString("## Format Specifications\n\n")
	fmt.Fprintf(&b, "- Font: %s, %dpt\n", specs.Font, specs.FontSize)
	fmt.Fprintf(&b, "- Line spacing: %s\n", strconv.FormatFloat(specs.LineSpacing, 'f', -1, 64))
	fmt.Fprintf(&b, "- Margins: %s\" (all sides)\n", strconv.FormatFloat(specs.Margins["top"], 'f', -1, 64))
	fmt.Fprintf(&b, "- Approximately %d words per page\n\n", specs.WordsPerPage)

	if len(r.SpecialRequirements) > 0 {
		b.WriteString("## Special Requirements\n\n")
		for _, key := range sortedKeys(r.SpecialRequirements) {
			value := r.SpecialRequirements[key]
			if flag, ok := value.(bool); ok {
				status := "Not required"
				if flag {
					status = "Required"
				}
				fmt.Fprintf(&b, "- %s: %s\n", titleWords(key), status)
			} else {
				fmt.Fprintf(&b, "- %s: %v\n", titleWords(key), value)
			}
		}
		b.WriteString("\n")
	}

	return b.String()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// titleWords turns "intellectual_merit" into "Intellectual Merit".
func titleWords(s string) string {
	words := strings.Split(strings.ReplaceAll(s, "_", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// FormatDollars renders 275000 as "275,000".
func FormatDollars(amount int) string {
	s := strconv.Itoa(amount)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
