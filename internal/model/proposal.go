package model

import (
	"time"
)

// Schema slot keys of the assembled proposal, in document order. Every
// proposal carries exactly these eight sections regardless of agency.
const (
	SlotProjectPitch         = "project_pitch"
	SlotTechnicalObjectives  = "technical_objectives"
	SlotBroaderImpacts       = "broader_impacts"
	SlotCommercializationPlan = "commercialization_plan"
	SlotBudgetJustification  = "budget_justification"
	SlotWorkPlan             = "work_plan"
	SlotBiographicalSketches = "biographical_sketches"
	SlotFacilitiesEquipment  = "facilities_equipment"
)

// SlotKeys lists the schema slots in document order.
var SlotKeys = []string{
	SlotProjectPitch,
	SlotTechnicalObjectives,
	SlotBroaderImpacts,
	SlotCommercializationPlan,
	SlotBudgetJustification,
	SlotWorkPlan,
	SlotBiographicalSketches,
	SlotFacilitiesEquipment,
}

var slotTitles = map[string]string{
	SlotProjectPitch:          "Project Pitch",
	SlotTechnicalObjectives:   "Technical Objectives",
	SlotBroaderImpacts:        "Broader Impacts",
	SlotCommercializationPlan: "Commercialization Plan",
	SlotBudgetJustification:   "Budget Justification",
	SlotWorkPlan:              "Work Plan",
	SlotBiographicalSketches:  "Biographical Sketches",
	SlotFacilitiesEquipment:   "Facilities Equipment",
}

// SlotTitle returns the human-readable title for a schema slot key.
func SlotTitle(slot string) string {
	if t, ok := slotTitles[slot]; ok {
		return t
	}
	return slot
}

// PlaceholderContent fills slots no agency section maps onto.
const PlaceholderContent = "[Section not generated for this agency]"

// GrantProposal is the assembled deliverable: eight fixed schema slots plus
// run-level totals.
type GrantProposal struct {
	CompanyName           string        `json:"company_name"`
	GrantType             string        `json:"grant_type"`
	CreatedAt             time.Time     `json:"created_at"`
	ProjectPitch          *GrantSection `json:"project_pitch"`
	TechnicalObjectives   *GrantSection `json:"technical_objectives"`
	BroaderImpacts        *GrantSection `json:"broader_impacts"`
	CommercializationPlan *GrantSection `json:"commercialization_plan"`
	BudgetJustification   *GrantSection `json:"budget_justification"`
	WorkPlan              *GrantSection `json:"work_plan"`
	BiographicalSketches  *GrantSection `json:"biographical_sketches"`
	FacilitiesEquipment   *GrantSection `json:"facilities_equipment"`
	TotalWordCount        int           `json:"total_word_count"`
	TotalCost             float64       `json:"total_cost"`
	GenerationSeconds     float64       `json:"generation_time_seconds"`
}

// Section returns the section stored in the named slot, or nil for an
// unknown slot key.
func (p *GrantProposal) Section(slot string) *GrantSection {
	switch slot {
	case SlotProjectPitch:
		return p.ProjectPitch
	case SlotTechnicalObjectives:
		return p.TechnicalObjectives
	case SlotBroaderImpacts:
		return p.BroaderImpacts
	case SlotCommercializationPlan:
		return p.CommercializationPlan
	case SlotBudgetJustification:
		return p.BudgetJustification
	case SlotWorkPlan:
		return p.WorkPlan
	case SlotBiographicalSketches:
		return p.BiographicalSketches
	case SlotFacilitiesEquipment:
		return p.FacilitiesEquipment
	}
	return nil
}

// SetSection stores a section into the named slot. Returns false for an
// unknown slot key.
func (p *GrantProposal) SetSection(slot string, s *GrantSection) bool {
	switch slot {
	case SlotProjectPitch:
		p.ProjectPitch = s
	case SlotTechnicalObjectives:
		p.TechnicalObjectives = s
	case SlotBroaderImpacts:
		p.BroaderImpacts = s
	case SlotCommercializationPlan:
		p.CommercializationPlan = s
	case SlotBudgetJustification:
		p.BudgetJustification = s
	case SlotWorkPlan:
		p.WorkPlan = s
	case SlotBiographicalSketches:
		p.BiographicalSketches = s
	case SlotFacilitiesEquipment:
		p.FacilitiesEquipment = s
	default:
		return false
	}
	return true
}

// CalculateTotals recomputes TotalWordCount from the slot word counts.
func (p *GrantProposal) CalculateTotals() {
	total := 0
	for _, slot := range SlotKeys {
		if s := p.Section(slot); s != nil {
			total += s.WordCount
		}
	}
	p.TotalWordCount = total
}
