package workflow

import (
	"context"
	"fmt"

	"github.com/grantforge/backend/internal/eventbus"
	"github.com/grantforge/backend/internal/model"
	"github.com/grantforge/backend/internal/service/agency"
	"k8s.io/klog/v2"
)

// SectionDrafter is the slice of the drafter the workflow drives.
type SectionDrafter interface {
	Generate(ctx context.Context, name, targetLength string) (*model.GrantSection, error)
	Critique(ctx context.Context, section *model.GrantSection) (string, error)
	Refine(ctx context.Context, section *model.GrantSection, critique string) (*model.GrantSection, error)
}

// RunningCost reports cost accumulated so far, for progress events.
type RunningCost interface {
	TotalCost() float64
}

// Progress wires a controller to one run's event stream. A nil Progress
// disables event publishing.
type Progress struct {
	Bus   *eventbus.RunEventBus
	RunID string
	Costs RunningCost
}

// Controller runs the draft, critique, refine loop per section and walks
// an agency's required sections in order. Sections run strictly one after
// another; each model call depends on the previous one's output.
type Controller struct {
	drafter  SectionDrafter
	reqs     *agency.Requirements
	progress *Progress
}

func New(drafter SectionDrafter, reqs *agency.Requirements, progress *Progress) *Controller {
	return &Controller{drafter: drafter, reqs: reqs, progress: progress}
}

// ProcessSection drafts one section, then applies the requested number of
// critique and refine cycles. Zero iterations ships the first draft.
func (c *Controller) ProcessSection(ctx context.Context, name, targetLength string, iterations int) (*model.GrantSection, error) {
	klog.V(6).Infof("section %q: target %s, iterations %d", name, targetLength, iterations)

	current, err := c.drafter.Generate(ctx, name, targetLength)
	if err != nil {
		return nil, err
	}

	for i := 0; i < iterations; i++ {
		critique, err := c.drafter.Critique(ctx, current)
		if err != nil {
			return nil, err
		}
		refined, err := c.drafter.Refine(ctx, current, critique)
		if err != nil {
			return nil, err
		}
		current = refined
		klog.V(6).Infof("section %q: iteration %d/%d done, %d words", name, i+1, iterations, current.WordCount)
	}
	return current, nil
}

// GenerateFullProposal walks the agency's required sections in ascending
// order and returns one drafted section per required entry. The first
// failed section aborts the whole run; no partial result is returned.
func (c *Controller) GenerateFullProposal(ctx context.Context, iterations int) (map[string]*model.GrantSection, error) {
	required := c.reqs.RequiredSections()
	total := len(required)
	c.publish(ctx, eventbus.RunEvent{Type: eventbus.RunEventInit, TotalSections: total})

	sections := make(map[string]*model.GrantSection, total)
	for i, entry := range required {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		number := i + 1
		percent := number * 100 / total
		target := entry.Section.TargetLength()

		c.publish(ctx, eventbus.RunEvent{
			Type:     eventbus.RunEventSectionStart,
			Section:  entry.Section.Name,
			Number:   number,
			Total:    total,
			Progress: percent,
			Target:   target,
		})

		section, err := c.ProcessSection(ctx, entry.Section.Name, target, iterations)
		if err != nil {
			return nil, err
		}
		sections[entry.Section.Name] = section

		event := eventbus.RunEvent{
			Type:      eventbus.RunEventSectionComplete,
			Section:   entry.Section.Name,
			WordCount: section.WordCount,
			Progress:  percent,
		}
		if c.progress != nil && c.progress.Costs != nil {
			event.Cost = fmt.Sprintf("$%.2f", c.progress.Costs.TotalCost())
		}
		c.publish(ctx, event)
	}

	klog.V(6).Infof("all %d required sections generated", total)
	return sections, nil
}

func (c *Controller) publish(ctx context.Context, event eventbus.RunEvent) {
	if c.progress == nil || c.progress.Bus == nil {
		return
	}
	event.RunID = c.progress.RunID
	if err := c.progress.Bus.Publish(ctx, event.Type, event); err != nil {
		klog.Errorf("progress event %s not delivered: %v", event.Type, err)
	}
}
