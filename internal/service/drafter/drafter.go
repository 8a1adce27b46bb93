package drafter

import (
	"context"
	"fmt"
	"strings"

	"github.com/grantforge/backend/config"
	"github.com/grantforge/backend/internal/model"
	"github.com/grantforge/backend/internal/pkg/llm"
	"github.com/grantforge/backend/internal/service/agency"
	"github.com/grantforge/backend/internal/service/costtracker"
	"github.com/grantforge/backend/internal/utils"
	"k8s.io/klog/v2"
)

// RefinementNote marks sections that went through a refinement pass.
const RefinementNote = "Refined based on critical feedback"

// UsageSink receives token usage after every completed model call.
// *costtracker.Tracker satisfies it.
type UsageSink interface {
	Record(ctx context.Context, section, operation string, inputTokens, outputTokens int, model string) float64
}

// Drafter writes, critiques, and refines proposal sections for one agency
// and one company. Each operation makes exactly one model call and reports
// its usage to the sink exactly once, whether or not the caller keeps the
// result.
type Drafter struct {
	completer llm.Completer
	sink      UsageSink
	budgets   config.DraftingConfig
	company   *model.CompanyContext
	reqs      *agency.Requirements

	companyJSON string
	reqsText    string
}

func New(completer llm.Completer, sink UsageSink, budgets config.DraftingConfig, company *model.CompanyContext, reqs *agency.Requirements) *Drafter {
	return &Drafter{
		completer:   completer,
		sink:        sink,
		budgets:     budgets,
		company:     company,
		reqs:        reqs,
		companyJSON: utils.ToJSONIndent(company),
		reqsText:    reqs.RequirementsText(),
	}
}

// Generate drafts a section from scratch. The returned section has
// iteration 0 and a word count recomputed from the returned text.
func (d *Drafter) Generate(ctx context.Context, name, targetLength string) (*model.GrantSection, error) {
	systemPrompt := fmt.Sprintf(`%s

Your task is to write compelling, evidence-based grant proposal sections that:
1. Clearly articulate value and innovation
2. Demonstrate technical feasibility
3. Show commercial potential
4. Follow %s evaluation criteria
5. Are written in clear, accessible language

%s Requirements:
%s`, personas[d.reqs.Code].writer, d.reqs.Agency, d.reqs.Agency, d.reqsText)

	userPrompt := fmt.Sprintf(`Generate the %q section for a %s %s grant proposal.

Target length: %s

Guidelines for this section:
%s

Company Information:
%s

Requirements:
- Follow %s evaluation criteria exactly
- Write in clear, professional, compelling prose
- Use specific details and evidence from the company context
- Avoid jargon and explain technical concepts clearly
- Create a strong, coherent narrative
- Focus on what will be accomplished in Phase I (%d months, $%s)
- Be realistic about scope and timeline

Generate the complete section now:`,
		name, d.reqs.Agency, d.reqs.Program,
		targetLength,
		guidanceFor(d.reqs.Code, name, d.reqs),
		d.companyJSON,
		d.reqs.Agency,
		d.reqs.DurationMonths, agency.FormatDollars(d.reqs.FundingAmount))

	completion, err := d.completer.Complete(ctx, systemPrompt, userPrompt, d.budgets.GenerateMaxTokens)
	if err != nil {
		return nil, &GenerationError{Section: name, Operation: costtracker.OpGenerate, Err: err}
	}
	d.sink.Record(ctx, name, costtracker.OpGenerate, completion.InputTokens, completion.OutputTokens, completion.Model)

	section := &model.GrantSection{
		Name:      name,
		Content:   completion.Text,
		WordCount: utils.CountWords(completion.Text),
		Iteration: 0,
	}
	klog.V(6).Infof("generated %q: %d words", name, section.WordCount)
	return section, nil
}

// Critique reviews a drafted section and returns free-text feedback.
// The input section is not modified.
func (d *Drafter) Critique(ctx context.Context, section *model.GrantSection) (string, error) {
	systemPrompt := fmt.Sprintf(`%s

Be constructive but thorough in identifying:
- Missing information or insufficient detail
- Weak arguments or unsupported claims
- Unclear explanations
- Misalignment with %s criteria
- Overly ambitious or unrealistic statements
- Missing risk mitigation
- Generic or vague content

%s Requirements:
%s`, personas[d.reqs.Code].reviewer, d.reqs.Agency, d.reqs.Agency, d.reqsText)

	userPrompt := fmt.Sprintf(`Review this grant section and provide detailed, actionable critique:

Section: %s
Current draft:

%s

Provide specific feedback on:
1. Alignment with %s evaluation criteria
2. Clarity and accessibility for non-specialist reviewers
3. Strength of evidence and specificity
4. Missing information or gaps
5. Overstatements or unrealistic claims
6. Areas that need more detail or better explanation

Be thorough and constructive:`, section.Name, section.Content, d.reqs.Agency)

	completion, err := d.completer.Complete(ctx, systemPrompt, userPrompt, d.budgets.CritiqueMaxTokens)
	if err != nil {
		return "", &GenerationError{Section: section.Name, Operation: costtracker.OpCritique, Err: err}
	}
	d.sink.Record(ctx, section.Name, costtracker.OpCritique, completion.InputTokens, completion.OutputTokens, completion.Model)

	klog.V(6).Infof("critiqued %q", section.Name)
	return completion.Text, nil
}

// Refine produces a new section addressing the critique. The input is
// left untouched; the result carries iteration+1, the applied critique,
// and the fixed refinement note.
func (d *Drafter) Refine(ctx context.Context, section *model.GrantSection, critique string) (*model.GrantSection, error) {
	systemPrompt := fmt.Sprintf(`%s

%s Requirements:
%s`, personas[d.reqs.Code].refiner, d.reqs.Agency, d.reqsText)

	userPrompt := fmt.Sprintf(`Refine this grant section based on the critique provided:

Original Section:
%s

Critique:
%s

Instructions:
- Address all points raised in the critique
- Strengthen weak arguments with specific evidence
- Add missing information
- Improve clarity and accessibility
- Maintain appropriate scope for Phase I
- Keep the compelling narrative
- Ensure alignment with %s criteria
- Replace weak phrasing with specific, evidence-backed language:
%s

Generate the improved version:`, section.Content, critique, d.reqs.Agency, phraseExampleLines(d.reqs.Code))

	completion, err := d.completer.Complete(ctx, systemPrompt, userPrompt, d.budgets.RefineMaxTokens)
	if err != nil {
		return nil, &GenerationError{Section: section.Name, Operation: costtracker.OpRefine, Err: err}
	}
	d.sink.Record(ctx, section.Name, costtracker.OpRefine, completion.InputTokens, completion.OutputTokens, completion.Model)

	refined := &model.GrantSection{
		Name:            section.Name,
		Content:         completion.Text,
		WordCount:       utils.CountWords(completion.Text),
		Iteration:       section.Iteration + 1,
		Critique:        critique,
		RefinementNotes: RefinementNote,
	}
	klog.V(6).Infof("refined %q to %d words, iteration %d", refined.Name, refined.WordCount, refined.Iteration)
	return refined, nil
}

func phraseExampleLines(code agency.Code) string {
	pairs := phraseExamples[code]
	lines := make([]string, 0, len(pairs))
	for _, p := range pairs {
		lines = append(lines, fmt.Sprintf("  instead of %q, write %q", p.weak, p.strong))
	}
	return strings.Join(lines, "\n")
}
