package drafter

import (
	"strings"

	"github.com/grantforge/backend/internal/service/agency"
	"k8s.io/klog/v2"
)

// PromptKey addresses one entry in the section guidance knowledge base.
// Section is the lowercased display name.
type PromptKey struct {
	Agency  agency.Code
	Section string
}

// NormalizeSection canonicalizes a display name for knowledge-base lookup.
func NormalizeSection(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// DefaultGuidance is used when a section has no knowledge-base entry and
// the agency template carries no guidelines either.
const DefaultGuidance = "Write a complete, well-structured section grounded in the company facts. " +
	"State specific evidence for every claim, respect the target length, and keep the scope realistic for Phase I."

// sectionGuidance tells the model what reviewers reward for each section
// type. Keyed per agency because the same heading carries different
// expectations across programs.
var sectionGuidance = map[PromptKey]string{
	// NSF
	{agency.NSF, "project pitch"}:                             "Write a compelling 1-2 page project pitch that clearly states the problem, solution, innovation, market opportunity, and Phase I objectives. Make it accessible to non-specialist reviewers.",
	{agency.NSF, "technical objectives"}:                      "Write a detailed 5-6 page technical plan covering: innovation details, current TRL level, Phase I research methodology, key technical risks and mitigation strategies, success metrics, timeline with milestones, and path to Phase II. Be specific and demonstrate deep technical expertise.",
	{agency.NSF, "broader impacts"}:                           "Write a 1-2 page broader impacts section covering societal benefits beyond commercialization, advancement of scientific knowledge, diversity and inclusion efforts, and ethical considerations. Show genuine commitment to positive impact.",
	{agency.NSF, "commercialization plan"}:                    "Write a 2-3 page commercialization plan with market analysis, target customers, competitive positioning, business model, go-to-market strategy, customer validation evidence, IP strategy, and financial projections. Demonstrate commercial viability.",
	{agency.NSF, "budget and budget justification"}:           "Write a line-item budget justification that accounts for the full award amount. Cover personnel with effort levels, equipment, materials and supplies, travel, and indirect costs, and close with an explicit total that matches the funding amount exactly.",
	{agency.NSF, "work plan and timeline"}:                    "Write a month-by-month work plan covering the full project duration. Tie every task to a technical objective, name the responsible team member, and state a measurable milestone for each phase of the effort.",
	{agency.NSF, "key personnel biographical sketches"}:       "Write a biographical sketch for every team member, covering education and degrees, relevant professional experience, and the specific role each person plays in the Phase I effort.",
	{agency.NSF, "facilities, equipment, and other resources"}: "Describe the facilities, equipment, and other resources available to the project and why they are sufficient for the Phase I scope. Identify any external resources or partnerships and the terms of access.",

	// DoD
	{agency.DoD, "technical abstract"}:                        "Write a concise technical abstract stating the problem, the proposed solution, the innovation, and the expected Phase I result. Keep it self-contained so a program manager can judge topic relevance at a glance.",
	{agency.DoD, "identification and significance of problem"}: "Describe the operational problem and why it matters to the mission. Connect the capability gap to the solicitation topic and quantify the impact on current operations.",
	{agency.DoD, "phase i technical objectives"}:              "State specific, measurable Phase I objectives and tie each one to a feasibility question. Give the current TRL, the TRL expected at Phase I exit, and objective success criteria for each milestone.",
	{agency.DoD, "work plan"}:                                 "Write a month-by-month work plan for the full period of performance. Assign tasks, milestones, and decision points, and show how the schedule retires the dominant technical risks early.",
	{agency.DoD, "related work"}:                              "Summarize prior and ongoing work related to the proposed effort, including competing approaches. Make clear what is new here and why the proposed approach wins.",
	{agency.DoD, "dual use and commercialization"}:            "Describe the defense application and the dual use commercial market. Name candidate platforms or programs for transition, address SWaP-C constraints where relevant, and outline the commercialization path.",
	{agency.DoD, "company capabilities and experience"}:       "Describe the company's facilities, equipment, and past performance relevant to this effort, including any prior government work, and show the team can execute on schedule.",
	{agency.DoD, "key personnel"}:                             "Provide a sketch for each key person covering education, directly relevant experience, and role on the project. Identify the principal investigator and their time commitment.",
	{agency.DoD, "cost proposal and budget justification"}:    "Write a cost proposal that accounts for the full award amount with labor, materials, travel, and indirect costs, and close with an explicit total that matches the funding amount exactly.",

	// NASA
	{agency.NASA, "innovation and technical approach"}: "Write a detailed technical section covering the innovation, its current TRL, the Phase I technical approach and methodology, key risks with mitigations, and measurable success criteria. Demonstrate feasibility for mission use.",
	{agency.NASA, "anticipated benefits"}:              "Describe the benefits of the innovation to NASA missions and programs and to the nation more broadly. Distinguish NASA infusion opportunities from commercial spin-off benefits.",
	{agency.NASA, "work plan"}:                         "Write a month-by-month work plan for the full period of performance with tasks, milestones, and deliverables tied to the technical objectives.",
	{agency.NASA, "related research"}:                  "Summarize related research and development, including prior NASA work in the area, and state how the proposed effort differs from and advances past approaches.",
	{agency.NASA, "key personnel and qualifications"}:  "Provide a biographical sketch for each team member covering education, relevant experience, and project role. Establish that the team can execute the proposed Phase I scope.",
	{agency.NASA, "facilities and equipment"}:          "Describe the facilities and equipment available for the effort and their adequacy for the Phase I scope. Note any government-furnished equipment or facilities the plan assumes.",
	{agency.NASA, "commercialization strategy"}:        "Write a commercialization strategy covering target markets, customers, competition, business model, and the path from Phase II to commercial or NASA operational use.",
	{agency.NASA, "budget narrative and justification"}: "Write a budget narrative that accounts for the full award amount across personnel, materials, travel, and indirect costs, and close with an explicit total that matches the funding amount exactly.",
}

// guidanceFor resolves guidance for a section. A knowledge-base miss is
// logged and falls back to the agency template's guidelines, then to
// DefaultGuidance, never to an empty string.
func guidanceFor(code agency.Code, name string, reqs *agency.Requirements) string {
	if text, ok := sectionGuidance[PromptKey{Agency: code, Section: NormalizeSection(name)}]; ok {
		return text
	}
	klog.Warningf("no guidance entry for agency=%s section=%q, using template guidelines", code, name)
	if sec, ok := reqs.SectionByName(name); ok && sec.Guidelines != "" {
		return sec.Guidelines
	}
	return DefaultGuidance
}

type persona struct {
	writer   string
	reviewer string
	refiner  string
}

var personas = map[agency.Code]persona{
	agency.NSF: {
		writer: "You are an expert grant writer specializing in NSF SBIR proposals.\n" +
			"You have deep knowledge of what makes successful grant applications and how to communicate complex technical concepts clearly.",
		reviewer: "You are a critical NSF SBIR grant reviewer with high standards.\n" +
			"Your job is to identify weaknesses, gaps, and areas for improvement in grant proposals.",
		refiner: "You are an expert grant writer who excels at incorporating feedback to improve proposals.\n" +
			"Your task is to refine grant sections based on constructive critique while maintaining the core message and evidence.",
	},
	agency.DoD: {
		writer: "You are an expert grant writer specializing in DoD SBIR proposals.\n" +
			"You understand how program managers evaluate topic relevance, technical risk, and transition potential, and how to communicate both technical depth and mission impact.",
		reviewer: "You are a critical DoD SBIR technical evaluator with high standards.\n" +
			"Your job is to identify weaknesses, gaps, and unsupported claims, with particular attention to mission relevance, feasibility, and transition potential.",
		refiner: "You are an expert grant writer who excels at incorporating evaluator feedback into DoD SBIR proposals.\n" +
			"Your task is to refine grant sections based on constructive critique while maintaining the core message and evidence.",
	},
	agency.NASA: {
		writer: "You are an expert grant writer specializing in NASA SBIR proposals.\n" +
			"You understand how NASA evaluates technical merit, mission infusion potential, and commercial value, and how to communicate complex aerospace concepts clearly.",
		reviewer: "You are a critical NASA SBIR reviewer with high standards.\n" +
			"Your job is to identify weaknesses, gaps, and areas for improvement, with particular attention to technical feasibility and NASA mission relevance.",
		refiner: "You are an expert grant writer who excels at incorporating reviewer feedback into NASA SBIR proposals.\n" +
			"Your task is to refine grant sections based on constructive critique while maintaining the core message and evidence.",
	},
}

// phrasePair is one weak-to-strong rewrite example shown to the refiner.
type phrasePair struct {
	weak   string
	strong string
}

var phraseExamples = map[agency.Code][]phrasePair{
	agency.NSF: {
		{"we hope to demonstrate", "we will demonstrate"},
		{"could potentially improve", "improves by a measured amount, with the supporting data"},
		{"cutting-edge technology", "a quantified advance over the published state of the art"},
		{"world-class team", "a team whose specific prior results are named"},
	},
	agency.DoD: {
		{"may support the mission", "closes a documented capability gap, named explicitly"},
		{"advanced solution", "a prototype at a stated TRL, validated in a relevant environment"},
		{"small and lightweight", "a concrete SWaP-C envelope with numbers"},
		{"we believe", "bench testing shows"},
	},
	agency.NASA: {
		{"could benefit NASA", "infuses into a named mission or program architecture"},
		{"novel approach", "the first demonstration of the technique at the stated TRL"},
		{"significant improvement", "a quantified gain over the current flight baseline"},
		{"we hope to show", "Phase I testing will show"},
	},
}
