package workflow

import (
	"context"
	"errors"
	"testing"

	"github.com/grantforge/backend/internal/eventbus"
	"github.com/grantforge/backend/internal/model"
	"github.com/grantforge/backend/internal/service/agency"
	"github.com/grantforge/backend/internal/service/drafter"
)

type fakeDrafter struct {
	calls  []string
	failOn string
}

func (f *fakeDrafter) Generate(ctx context.Context, name, targetLength string) (*model.GrantSection, error) {
	f.calls = append(f.calls, "generate:"+name)
	if f.failOn == "generate:"+name {
		return nil, &drafter.GenerationError{Section: name, Operation: "generate", Err: errors.New("boom")}
	}
	return &model.GrantSection{Name: name, Content: "draft of " + name, WordCount: 3, Iteration: 0}, nil
}

func (f *fakeDrafter) Critique(ctx context.Context, section *model.GrantSection) (string, error) {
	f.calls = append(f.calls, "critique:"+section.Name)
	if f.failOn == "critique:"+section.Name {
		return "", &drafter.GenerationError{Section: section.Name, Operation: "critique", Err: errors.New("boom")}
	}
	return "needs more evidence", nil
}

func (f *fakeDrafter) Refine(ctx context.Context, section *model.GrantSection, critique string) (*model.GrantSection, error) {
	f.calls = append(f.calls, "refine:"+section.Name)
	if f.failOn == "refine:"+section.Name {
		return nil, &drafter.GenerationError{Section: section.Name, Operation: "refine", Err: errors.New("boom")}
	}
	return &model.GrantSection{
		Name:            section.Name,
		Content:         section.Content + ", refined",
		WordCount:       section.WordCount + 1,
		Iteration:       section.Iteration + 1,
		Critique:        critique,
		RefinementNotes: "Refined based on critical feedback",
	}, nil
}

func testRequirements() *agency.Requirements {
	return &agency.Requirements{
		Code:           agency.NSF,
		Agency:         "NSF",
		Program:        "SBIR Phase I",
		FundingAmount:  275000,
		DurationMonths: 6,
		Sections: map[string]*agency.SectionRequirement{
			"pitch":    {Name: "Project Pitch", Required: true, MinPages: 1, MaxPages: 2, Order: 1},
			"plan":     {Name: "Work Plan", Required: true, MinPages: 2, MaxPages: 3, Order: 2},
			"optional": {Name: "Letters of Support", Required: false, MinPages: 1, MaxPages: 1, Order: 3},
		},
		FormatSpecifications: agency.FormatSpecification{WordsPerPage: 400},
	}
}

func TestProcessSectionRunsDraftCritiqueRefine(t *testing.T) {
	fake := &fakeDrafter{}
	c := New(fake, testRequirements(), nil)

	section, err := c.ProcessSection(context.Background(), "Project Pitch", "1-2 pages", 1)
	if err != nil {
		t.Fatalf("ProcessSection failed: %v", err)
	}

	want := []string{"generate:Project Pitch", "critique:Project Pitch", "refine:Project Pitch"}
	if len(fake.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", fake.calls, want)
	}
	for i := range want {
		if fake.calls[i] != want[i] {
			t.Errorf("call %d = %s, want %s", i, fake.calls[i], want[i])
		}
	}
	if section.Iteration != 1 {
		t.Errorf("Iteration = %d, want 1", section.Iteration)
	}
	if section.Critique != "needs more evidence" {
		t.Errorf("Critique = %q", section.Critique)
	}
}

func TestProcessSectionZeroIterationsShipsDraft(t *testing.T) {
	fake := &fakeDrafter{}
	c := New(fake, testRequirements(), nil)

	section, err := c.ProcessSection(context.Background(), "Project Pitch", "1-2 pages", 0)
	if err != nil {
		t.Fatalf("ProcessSection failed: %v", err)
	}
	if len(fake.calls) != 1 || fake.calls[0] != "generate:Project Pitch" {
		t.Errorf("zero iterations should only generate, calls = %v", fake.calls)
	}
	if section.Iteration != 0 {
		t.Errorf("Iteration = %d, want 0", section.Iteration)
	}
}

func TestProcessSectionMultipleIterations(t *testing.T) {
	fake := &fakeDrafter{}
	c := New(fake, testRequirements(), nil)

	section, err := c.ProcessSection(context.Background(), "Project Pitch", "1-2 pages", 2)
	if err != nil {
		t.Fatalf("ProcessSection failed: %v", err)
	}
	if len(fake.calls) != 5 {
		t.Errorf("expected 1 generate + 2x(critique+refine) = 5 calls, got %v", fake.calls)
	}
	if section.Iteration != 2 {
		t.Errorf("Iteration = %d, want 2", section.Iteration)
	}
}

func TestProcessSectionPropagatesFailure(t *testing.T) {
	fake := &fakeDrafter{failOn: "critique:Project Pitch"}
	c := New(fake, testRequirements(), nil)

	_, err := c.ProcessSection(context.Background(), "Project Pitch", "1-2 pages", 1)
	var genErr *drafter.GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("expected GenerationError, got %v", err)
	}
	if genErr.Operation != "critique" {
		t.Errorf("Operation = %s, want critique", genErr.Operation)
	}
	// Refine never runs after a failed critique.
	for _, call := range fake.calls {
		if call == "refine:Project Pitch" {
			t.Errorf("refine should not run after critique failure")
		}
	}
}

func TestGenerateFullProposalRequiredOnly(t *testing.T) {
	fake := &fakeDrafter{}
	bus := eventbus.NewRunEventBus()
	var events []eventbus.RunEvent
	eventbus.SubscribeAll(bus, func(ctx context.Context, event eventbus.RunEvent) error {
		events = append(events, event)
		return nil
	})

	c := New(fake, testRequirements(), &Progress{Bus: bus, RunID: "run-1"})
	sections, err := c.GenerateFullProposal(context.Background(), 1)
	if err != nil {
		t.Fatalf("GenerateFullProposal failed: %v", err)
	}

	// Exactly one entry per required section, none for optional ones.
	if len(sections) != 2 {
		t.Fatalf("got %d sections, want 2", len(sections))
	}
	if _, ok := sections["Letters of Support"]; ok {
		t.Errorf("optional section should not be generated")
	}
	for name, section := range sections {
		if section.Iteration != 1 {
			t.Errorf("section %q iteration = %d, want 1", name, section.Iteration)
		}
	}

	// 2 sections x (generate + critique + refine) = 6 drafter calls,
	// ordered by the sections' order values.
	if len(fake.calls) != 6 {
		t.Fatalf("got %d drafter calls, want 6: %v", len(fake.calls), fake.calls)
	}
	if fake.calls[0] != "generate:Project Pitch" || fake.calls[3] != "generate:Work Plan" {
		t.Errorf("sections out of order: %v", fake.calls)
	}

	// Event sequence: init, then start/complete per section.
	wantTypes := []eventbus.RunEventType{
		eventbus.RunEventInit,
		eventbus.RunEventSectionStart,
		eventbus.RunEventSectionComplete,
		eventbus.RunEventSectionStart,
		eventbus.RunEventSectionComplete,
	}
	if len(events) != len(wantTypes) {
		t.Fatalf("got %d events, want %d", len(events), len(wantTypes))
	}
	for i, want := range wantTypes {
		if events[i].Type != want {
			t.Errorf("event %d = %s, want %s", i, events[i].Type, want)
		}
	}
	if events[0].TotalSections != 2 {
		t.Errorf("init total_sections = %d, want 2", events[0].TotalSections)
	}
	if events[1].Progress != 50 || events[1].Target != "1-2 pages" {
		t.Errorf("first section_start = %+v", events[1])
	}
	if events[3].Progress != 100 {
		t.Errorf("second section_start progress = %d, want 100", events[3].Progress)
	}
	if events[1].RunID != "run-1" {
		t.Errorf("events should carry the run id")
	}
}

func TestGenerateFullProposalAbortsOnFirstFailure(t *testing.T) {
	fake := &fakeDrafter{failOn: "generate:Work Plan"}
	c := New(fake, testRequirements(), nil)

	_, err := c.GenerateFullProposal(context.Background(), 1)
	if err == nil {
		t.Fatalf("expected failure to propagate")
	}
	var genErr *drafter.GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("expected GenerationError, got %v", err)
	}
	if genErr.Section != "Work Plan" {
		t.Errorf("failed section = %s, want Work Plan", genErr.Section)
	}
}

func TestGenerateFullProposalHonorsCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fake := &fakeDrafter{}
	c := New(fake, testRequirements(), nil)
	_, err := c.GenerateFullProposal(ctx, 1)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(fake.calls) != 0 {
		t.Errorf("no drafter calls should run after cancel, got %v", fake.calls)
	}
}
