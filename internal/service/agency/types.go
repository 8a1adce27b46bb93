package agency

import (
	"fmt"
	"strconv"
	"strings"
)

// Code identifies a supported funding agency.
type Code string

const (
	NSF  Code = "nsf"
	DoD  Code = "dod"
	NASA Code = "nasa"
)

// Supported lists the agency codes with built-in templates.
var Supported = []Code{NSF, DoD, NASA}

// ParseCode normalizes and checks an agency code string.
func ParseCode(s string) (Code, error) {
	switch code := Code(strings.ToLower(strings.TrimSpace(s))); code {
	case NSF, DoD, NASA:
		return code, nil
	}
	return "", &ConfigurationError{Agency: s, Reason: fmt.Sprintf("unknown agency %q, supported: %v", s, Supported)}
}

// SectionRequirement is one proposal section's contract. Loaded once at
// agency-selection time and immutable afterward.
type SectionRequirement struct {
	Name             string   `json:"name"`
	Required         bool     `json:"required"`
	MinPages         float64  `json:"min_pages"`
	MaxPages         float64  `json:"max_pages"`
	MinWords         int      `json:"min_words"`
	MaxWords         int      `json:"max_words"`
	Order            int      `json:"order"`
	Guidelines       string   `json:"guidelines"`
	RequiredKeywords []string `json:"required_keywords"`
	Description      string   `json:"description"`
}

// TargetLength renders the page bounds as the target-length string fed to
// the drafting prompts: "N pages" when the bounds agree, "min-max pages"
// otherwise.
func (s *SectionRequirement) TargetLength() string {
	min := strconv.FormatFloat(s.MinPages, 'f', -1, 64)
	if s.MinPages == s.MaxPages {
		return fmt.Sprintf("%s pages", min)
	}
	max := strconv.FormatFloat(s.MaxPages, 'f', -1, 64)
	return fmt.Sprintf("%s-%s pages", min, max)
}

type EvaluationCriterion struct {
	Weight      float64  `json:"weight"`
	Description string   `json:"description"`
	SubCriteria []string `json:"sub_criteria"`
}

type FormatSpecification struct {
	Font             string             `json:"font"`
	FontSize         int                `json:"font_size"`
	LineSpacing      float64            `json:"line_spacing"`
	Margins          map[string]float64 `json:"margins"`
	PageNumbers      bool               `json:"page_numbers"`
	HeadersFooters   bool               `json:"headers_footers"`
	WordsPerPage     int                `json:"words_per_page"`
	ReferencesFormat string             `json:"references_format"`
	VolumeLimit      string             `json:"volume_limit,omitempty"`
}

// Requirements is one agency's complete rule set.
type Requirements struct {
	Code                   Code                            `json:"-"`
	Agency                 string                          `json:"agency"`
	Program                string                          `json:"program"`
	FundingAmount          int                             `json:"funding_amount"`
	DurationMonths         int                             `json:"duration_months"`
	Description            string                          `json:"description"`
	Sections               map[string]*SectionRequirement  `json:"sections"`
	EvaluationCriteria     map[string]*EvaluationCriterion `json:"evaluation_criteria"`
	FormatSpecifications   FormatSpecification             `json:"format_specifications"`
	SpecialRequirements    map[string]any                  `json:"special_requirements"`
	SubmissionRequirements map[string]string               `json:"submission_requirements"`
}

// SectionEntry pairs a section's config key with its requirement.
type SectionEntry struct {
	Key     string
	Section *SectionRequirement
}

// ConfigurationError reports an unknown agency or an agency template that
// fails schema validation. Fatal to the run; never retried.
type ConfigurationError struct {
	Agency string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("agency configuration %s: %s: %v", e.Agency, e.Reason, e.Err)
	}
	return fmt.Sprintf("agency configuration %s: %s", e.Agency, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}
