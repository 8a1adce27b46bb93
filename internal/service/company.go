package service

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/grantforge/backend/internal/model"
	"gopkg.in/yaml.v3"
	"k8s.io/klog/v2"
)

// CompanyService loads the company profile that grounds every drafting
// prompt. The profile lives outside the binary so operators can swap
// companies without a rebuild.
type CompanyService struct {
	profilePath string
}

func NewCompanyService(profilePath string) *CompanyService {
	return &CompanyService{profilePath: profilePath}
}

// Load reads the configured profile file. YAML is the documented format;
// JSON profiles parse too since yaml.v3 accepts JSON input.
func (s *CompanyService) Load() (*model.CompanyContext, error) {
	data, err := os.ReadFile(s.profilePath)
	if err != nil {
		return nil, fmt.Errorf("read company profile %s: %w", s.profilePath, err)
	}
	company, err := ParseCompanyProfile(data)
	if err != nil {
		return nil, fmt.Errorf("parse company profile %s: %w", s.profilePath, err)
	}
	klog.V(6).Infof("company profile loaded: company=%s, team=%d", company.CompanyName, len(company.Team))
	return company, nil
}

// ParseCompanyProfile decodes and validates one profile document.
func ParseCompanyProfile(data []byte) (*model.CompanyContext, error) {
	var company model.CompanyContext
	if err := yaml.Unmarshal(data, &company); err != nil {
		return nil, err
	}
	if err := ValidateCompany(&company); err != nil {
		return nil, err
	}
	return &company, nil
}

// ValidateCompany rejects profiles that cannot produce a coherent
// proposal. Team entries need names; the bio section is written per
// named member.
func ValidateCompany(company *model.CompanyContext) error {
	if company.CompanyName == "" {
		return fmt.Errorf("company_name is required")
	}
	for i, member := range company.Team {
		if member.Name == "" {
			return fmt.Errorf("team[%d]: name is required", i)
		}
	}
	return nil
}

// DecodeCompanyOverride parses the inline company context attached to a
// run request. Stored as JSON on the run row so execution after a restart
// sees the same profile the caller submitted.
func DecodeCompanyOverride(raw string) (*model.CompanyContext, error) {
	var company model.CompanyContext
	if err := json.Unmarshal([]byte(raw), &company); err != nil {
		return nil, fmt.Errorf("parse inline company context: %w", err)
	}
	if err := ValidateCompany(&company); err != nil {
		return nil, err
	}
	return &company, nil
}
