package assembly

import (
	"fmt"
	"strings"
	"time"

	"github.com/grantforge/backend/internal/model"
	"github.com/grantforge/backend/internal/service/agency"
	"k8s.io/klog/v2"
)

// sectionSlots maps agency section display names onto the fixed proposal
// schema. The map is flat across agencies; several agency sections can
// land in the same slot.
var sectionSlots = map[string]string{
	// NSF
	"Project Pitch":                             model.SlotProjectPitch,
	"Technical Objectives":                      model.SlotTechnicalObjectives,
	"Broader Impacts":                           model.SlotBroaderImpacts,
	"Commercialization Plan":                    model.SlotCommercializationPlan,
	"Budget and Budget Justification":           model.SlotBudgetJustification,
	"Work Plan and Timeline":                    model.SlotWorkPlan,
	"Key Personnel Biographical Sketches":       model.SlotBiographicalSketches,
	"Facilities, Equipment, and Other Resources": model.SlotFacilitiesEquipment,

	// DoD
	"Technical Abstract":                        model.SlotProjectPitch,
	"Identification and Significance of Problem": model.SlotBroaderImpacts,
	"Phase I Technical Objectives":              model.SlotTechnicalObjectives,
	"Work Plan":                                 model.SlotWorkPlan,
	"Related Work":                              model.SlotTechnicalObjectives,
	"Dual Use and Commercialization":            model.SlotCommercializationPlan,
	"Company Capabilities and Experience":       model.SlotFacilitiesEquipment,
	"Key Personnel":                             model.SlotBiographicalSketches,
	"Cost Proposal and Budget Justification":    model.SlotBudgetJustification,

	// NASA
	"Innovation and Technical Approach": model.SlotTechnicalObjectives,
	"Anticipated Benefits":              model.SlotBroaderImpacts,
	"Related Research":                  model.SlotTechnicalObjectives,
	"Commercialization Strategy":        model.SlotCommercializationPlan,
	"Facilities and Equipment":          model.SlotFacilitiesEquipment,
	"Key Personnel and Qualifications":  model.SlotBiographicalSketches,
	"Budget Narrative and Justification": model.SlotBudgetJustification,
}

// SlotFor returns the schema slot an agency section name maps onto.
func SlotFor(sectionName string) (string, bool) {
	slot, ok := sectionSlots[sectionName]
	return slot, ok
}

var mergeSeparator = "\n\n" + strings.Repeat("=", 50) + "\n\n"

// MergeSections combines two sections that target the same schema slot.
// Contents are joined with a visible separator, word counts are summed,
// and iteration is the max of the two. Inputs are not modified.
func MergeSections(a, b *model.GrantSection) *model.GrantSection {
	iteration := a.Iteration
	if b.Iteration > iteration {
		iteration = b.Iteration
	}
	return &model.GrantSection{
		Name:      fmt.Sprintf("%s + %s", a.Name, b.Name),
		Content:   a.Content + mergeSeparator + b.Content,
		WordCount: a.WordCount + b.WordCount,
		Iteration: iteration,
	}
}

// placeholderSection fills a slot no agency section covers.
func placeholderSection(slot string) *model.GrantSection {
	return &model.GrantSection{
		Name:      model.SlotTitle(slot),
		Content:   model.PlaceholderContent,
		WordCount: 0,
	}
}

// BuildProposal maps drafted sections onto the eight-slot schema in the
// agency's section order, merging collisions and filling uncovered slots
// with placeholders. Cost and timing totals are left for the caller.
func BuildProposal(companyName string, reqs *agency.Requirements, sections map[string]*model.GrantSection) *model.GrantProposal {
	proposal := &model.GrantProposal{
		CompanyName: companyName,
		GrantType:   fmt.Sprintf("%s %s", reqs.Agency, reqs.Program),
		CreatedAt:   time.Now(),
	}

	// Walking the agency order keeps merge order deterministic: the
	// earlier-generated section always comes first in a merged slot.
	for _, entry := range reqs.OrderedSections() {
		section, ok := sections[entry.Section.Name]
		if !ok {
			continue
		}
		slot, ok := SlotFor(section.Name)
		if !ok {
			klog.Warningf("section %q has no schema slot, dropping from assembly", section.Name)
			continue
		}
		if existing := proposal.Section(slot); existing != nil {
			proposal.SetSection(slot, MergeSections(existing, section))
		} else {
			proposal.SetSection(slot, section)
		}
	}

	for _, slot := range model.SlotKeys {
		if proposal.Section(slot) == nil {
			proposal.SetSection(slot, placeholderSection(slot))
		}
	}

	proposal.CalculateTotals()
	return proposal
}

// FromRecord rebuilds the assembled form from its persisted rows. Slots
// with no stored row come back as placeholders, so a proposal round-trips
// through the database unchanged.
func FromRecord(record *model.Proposal) *model.GrantProposal {
	proposal := &model.GrantProposal{
		CompanyName:       record.CompanyName,
		GrantType:         record.GrantType,
		CreatedAt:         record.CreatedAt,
		TotalWordCount:    record.TotalWordCount,
		TotalCost:         record.TotalCost,
		GenerationSeconds: record.GenerationSeconds,
	}
	for i := range record.Sections {
		row := &record.Sections[i]
		proposal.SetSection(row.Slot, &model.GrantSection{
			Name:            row.Name,
			Content:         row.Content,
			WordCount:       row.WordCount,
			Iteration:       row.Iteration,
			Critique:        row.Critique,
			RefinementNotes: row.RefinementNotes,
		})
	}
	for _, slot := range model.SlotKeys {
		if proposal.Section(slot) == nil {
			proposal.SetSection(slot, placeholderSection(slot))
		}
	}
	return proposal
}
