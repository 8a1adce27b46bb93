package agency

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/grantforge/backend/config"
	"k8s.io/klog/v2"
)

// Service loads and validates agency requirement templates. Built-in
// templates are embedded; a templates directory can override them per code.
type Service struct {
	templatesDir string
}

func NewService(templatesDir string) *Service {
	return &Service{templatesDir: templatesDir}
}

// Load parses and validates the template for the given agency code.
func (s *Service) Load(code string) (*Requirements, error) {
	agencyCode, err := ParseCode(code)
	if err != nil {
		return nil, err
	}

	data, err := s.readTemplate(agencyCode)
	if err != nil {
		return nil, &ConfigurationError{Agency: code, Reason: "template not readable", Err: err}
	}

	var req Requirements
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, &ConfigurationError{Agency: code, Reason: "template is not valid JSON", Err: err}
	}

	if err := validate(code, &req); err != nil {
		return nil, err
	}
	req.Code = agencyCode
	deriveWordBounds(&req)

	klog.V(6).Infof("loaded %d sections for %s %s", len(req.Sections), req.Agency, req.Program)
	return &req, nil
}

func (s *Service) readTemplate(code Code) ([]byte, error) {
	if s.templatesDir != "" {
		path := filepath.Join(s.templatesDir, string(code)+".json")
		if data, err := os.ReadFile(path); err == nil {
			klog.V(6).Infof("agency template override: %s", path)
			return data, nil
		}
	}
	return config.AgencyTemplates.ReadFile("agencies/" + string(code) + ".json")
}

func validate(code string, req *Requirements) error {
	fail := func(reason string) error {
		return &ConfigurationError{Agency: code, Reason: reason}
	}

	if req.Agency == "" || req.Program == "" {
		return fail("agency and program are required")
	}
	if req.FundingAmount <= 0 {
		return fail("funding_amount must be positive")
	}
	if req.DurationMonths <= 0 {
		return fail("duration_months must be positive")
	}
	if len(req.Sections) == 0 {
		return fail("at least one section is required")
	}
	if req.FormatSpecifications.WordsPerPage <= 0 {
		return fail("format_specifications.words_per_page must be positive")
	}

	orders := make(map[int]string, len(req.Sections))
	for key, sec := range req.Sections {
		if sec == nil || sec.Name == "" {
			return fail(fmt.Sprintf("section %q is missing a name", key))
		}
		if sec.MinPages > sec.MaxPages {
			return fail(fmt.Sprintf("section %q: min_pages %.1f exceeds max_pages %.1f", key, sec.MinPages, sec.MaxPages))
		}
		if sec.MinWords > sec.MaxWords {
			return fail(fmt.Sprintf("section %q: min_words %d exceeds max_words %d", key, sec.MinWords, sec.MaxWords))
		}
		if other, dup := orders[sec.Order]; dup {
			return fail(fmt.Sprintf("sections %q and %q share order %d", other, key, sec.Order))
		}
		orders[sec.Order] = key
	}

	for name, crit := range req.EvaluationCriteria {
		if crit == nil {
			return fail(fmt.Sprintf("criterion %q is empty", name))
		}
		if crit.Weight <= 0 || crit.Weight > 1 {
			return fail(fmt.Sprintf("criterion %q: weight %.2f out of range (0,1]", name, crit.Weight))
		}
	}

	return nil
}

// deriveWordBounds fills absent word bounds from page bounds using the
// words-per-page conversion. Explicit word bounds in the template win.
func deriveWordBounds(req *Requirements) {
	wpp := req.FormatSpecifications.WordsPerPage
	for _, sec := range req.Sections {
		if sec.MinWords == 0 && sec.MaxWords == 0 {
			sec.MinWords = int(sec.MinPages * float64(wpp))
			sec.MaxWords = int(sec.MaxPages * float64(wpp))
		}
	}
}

// OrderedSections returns the sections sorted ascending by order, tie-broken
// by config key for determinism.
func (r *Requirements) OrderedSections() []SectionEntry {
	entries := make([]SectionEntry, 0, len(r.Sections))
	for key, sec := range r.Sections {
		entries = append(entries, SectionEntry{Key: key, Section: sec})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Section.Order != entries[j].Section.Order {
			return entries[i].Section.Order < entries[j].Section.Order
		}
		return entries[i].Key < entries[j].Key
	})
	return entries
}

// RequiredSections returns the ordered subset with required=true.
func (r *Requirements) RequiredSections() []SectionEntry {
	all := r.OrderedSections()
	required := make([]SectionEntry, 0, len(all))
	for _, e := range all {
		if e.Section.Required {
			required = append(required, e)
		}
	}
	return required
}

// SectionByName looks a section up by its display name.
func (r *Requirements) SectionByName(name string) (*SectionRequirement, bool) {
	for _, sec := range r.Sections {
		if sec.Name == name {
			return sec, true
		}
	}
	return nil, false
}

// RequiredKeywords returns each section's required keywords keyed by
// display name. Sections without keywords are omitted.
func (r *Requirements) RequiredKeywords() map[string][]string {
	keywords := make(map[string][]string)
	for _, sec := range r.Sections {
		if len(sec.RequiredKeywords) > 0 {
			keywords[sec.Name] = sec.RequiredKeywords
		}
	}
	return keywords
}

// SectionGuidelines returns guidance text keyed by display name.
func (r *Requirements) SectionGuidelines() map[string]string {
	guidelines := make(map[string]string, len(r.Sections))
	for _, sec := range r.Sections {
		guidelines[sec.Name] = sec.Guidelines
	}
	return guidelines
}
