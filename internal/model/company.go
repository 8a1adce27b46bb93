package model

// TeamMember is one entry of the company team roster.
type TeamMember struct {
	Name       string `json:"name" yaml:"name"`
	Role       string `json:"role" yaml:"role"`
	Background string `json:"background,omitempty" yaml:"background,omitempty"`
}

// CompanyContext holds the company facts fed into every drafting prompt.
// It is read-only input; nothing in the generation pipeline mutates it.
type CompanyContext struct {
	CompanyName          string         `json:"company_name" yaml:"company_name"`
	Founded              string         `json:"founded" yaml:"founded"`
	Location             string         `json:"location" yaml:"location"`
	Industry             string         `json:"industry" yaml:"industry"`
	FocusArea            string         `json:"focus_area" yaml:"focus_area"`
	Mission              string         `json:"mission" yaml:"mission"`
	Technology           map[string]any `json:"technology" yaml:"technology"`
	ProblemStatement     string         `json:"problem_statement" yaml:"problem_statement"`
	Solution             string         `json:"solution" yaml:"solution"`
	Team                 []TeamMember   `json:"team" yaml:"team"`
	MarketOpportunity    map[string]any `json:"market_opportunity" yaml:"market_opportunity"`
	CurrentProgress      map[string]any `json:"current_progress" yaml:"current_progress"`
	FundingNeeds         map[string]any `json:"funding_needs" yaml:"funding_needs"`
	IntellectualProperty map[string]any `json:"intellectual_property" yaml:"intellectual_property"`
	SocialImpact         string         `json:"social_impact" yaml:"social_impact"`
}
