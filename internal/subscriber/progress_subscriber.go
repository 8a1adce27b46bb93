// Package subscriber persists run progress events onto the run row, so
// polling clients see the same state the SSE stream carries.
package subscriber

import (
	"context"
	"fmt"

	"github.com/grantforge/backend/internal/eventbus"
	"github.com/grantforge/backend/internal/model"
	"github.com/grantforge/backend/internal/repository"
	"k8s.io/klog/v2"
)

// ProgressSubscriber mirrors progress events into the generation_runs
// table. Status transitions stay with the run service; only the progress
// counters are written here.
type ProgressSubscriber struct {
	runs repository.RunRepository
}

func NewProgressSubscriber(runs repository.RunRepository) *ProgressSubscriber {
	return &ProgressSubscriber{runs: runs}
}

func (s *ProgressSubscriber) Register(bus *eventbus.RunEventBus) {
	if bus == nil {
		return
	}
	bus.Subscribe(eventbus.RunEventInit, s.handleInit)
	bus.Subscribe(eventbus.RunEventSectionStart, s.handleSectionStart)
	bus.Subscribe(eventbus.RunEventSectionComplete, s.handleSectionComplete)
}

func (s *ProgressSubscriber) handleInit(ctx context.Context, event eventbus.RunEvent) error {
	return s.update(ctx, event, func(run *model.GenerationRun) {
		run.TotalSections = event.TotalSections
		run.CompletedSections = 0
		run.Progress = 0
	})
}

func (s *ProgressSubscriber) handleSectionStart(ctx context.Context, event eventbus.RunEvent) error {
	return s.update(ctx, event, func(run *model.GenerationRun) {
		// Entering section N means N-1 sections are done.
		run.CompletedSections = event.Number - 1
		if event.Total > 0 {
			run.Progress = (event.Number - 1) * 100 / event.Total
		}
	})
}

func (s *ProgressSubscriber) handleSectionComplete(ctx context.Context, event eventbus.RunEvent) error {
	return s.update(ctx, event, func(run *model.GenerationRun) {
		run.CompletedSections++
		run.Progress = event.Progress
		run.TotalWords += event.WordCount
	})
}

func (s *ProgressSubscriber) update(ctx context.Context, event eventbus.RunEvent, apply func(*model.GenerationRun)) error {
	if event.RunID == "" {
		return fmt.Errorf("run event %s has no run id", event.Type)
	}
	run, err := s.runs.GetByRunID(ctx, event.RunID)
	if err != nil {
		klog.Errorf("progress event %s: load run %s: %v", event.Type, event.RunID, err)
		return err
	}
	apply(run)
	if err := s.runs.Save(ctx, run); err != nil {
		klog.Errorf("progress event %s: save run %s: %v", event.Type, event.RunID, err)
		return err
	}
	klog.V(6).Infof("progress recorded: runID=%s, type=%s, completed=%d/%d, progress=%d%%",
		event.RunID, event.Type, run.CompletedSections, run.TotalSections, run.Progress)
	return nil
}
