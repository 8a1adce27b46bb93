package subscriber

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/grantforge/backend/internal/eventbus"
	"github.com/grantforge/backend/internal/model"
	"github.com/grantforge/backend/internal/repository"
	"gorm.io/gorm"
)

func setupSubscriber(t *testing.T) (*eventbus.RunEventBus, *gorm.DB, *model.GenerationRun) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}
	if err := db.AutoMigrate(&model.GenerationRun{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	run := &model.GenerationRun{RunID: "run-123", Agency: "nsf", Status: "running"}
	if err := db.Create(run).Error; err != nil {
		t.Fatalf("failed to seed run: %v", err)
	}

	bus := eventbus.NewRunEventBus()
	NewProgressSubscriber(repository.NewRunRepository(db)).Register(bus)
	return bus, db, run
}

func reloadRun(t *testing.T, db *gorm.DB, id uint) *model.GenerationRun {
	t.Helper()
	var run model.GenerationRun
	if err := db.First(&run, id).Error; err != nil {
		t.Fatalf("failed to reload run: %v", err)
	}
	return &run
}

func TestProgressSubscriberTracksLifecycle(t *testing.T) {
	bus, db, run := setupSubscriber(t)
	ctx := context.Background()

	// 1. init resets the counters.
	err := bus.Publish(ctx, eventbus.RunEventInit, eventbus.RunEvent{
		Type: eventbus.RunEventInit, RunID: run.RunID, TotalSections: 4,
	})
	if err != nil {
		t.Fatalf("publish init: %v", err)
	}
	got := reloadRun(t, db, run.ID)
	if got.TotalSections != 4 || got.CompletedSections != 0 || got.Progress != 0 {
		t.Errorf("after init: total=%d completed=%d progress=%d", got.TotalSections, got.CompletedSections, got.Progress)
	}

	// 2. Starting section 3 of 4 means half the work is done.
	err = bus.Publish(ctx, eventbus.RunEventSectionStart, eventbus.RunEvent{
		Type: eventbus.RunEventSectionStart, RunID: run.RunID,
		Section: "Broader Impacts", Number: 3, Total: 4,
	})
	if err != nil {
		t.Fatalf("publish section_start: %v", err)
	}
	got = reloadRun(t, db, run.ID)
	if got.CompletedSections != 2 {
		t.Errorf("completed = %d, want 2 when entering section 3", got.CompletedSections)
	}
	if got.Progress != 50 {
		t.Errorf("progress = %d, want 50", got.Progress)
	}

	// 3. Completing the section advances the counters and word total.
	err = bus.Publish(ctx, eventbus.RunEventSectionComplete, eventbus.RunEvent{
		Type: eventbus.RunEventSectionComplete, RunID: run.RunID,
		Section: "Broader Impacts", Progress: 75, WordCount: 450,
	})
	if err != nil {
		t.Fatalf("publish section_complete: %v", err)
	}
	got = reloadRun(t, db, run.ID)
	if got.CompletedSections != 3 {
		t.Errorf("completed = %d, want 3", got.CompletedSections)
	}
	if got.Progress != 75 {
		t.Errorf("progress = %d, want 75", got.Progress)
	}
	if got.TotalWords != 450 {
		t.Errorf("total words = %d, want 450", got.TotalWords)
	}

	// 4. Word counts accumulate across sections.
	err = bus.Publish(ctx, eventbus.RunEventSectionComplete, eventbus.RunEvent{
		Type: eventbus.RunEventSectionComplete, RunID: run.RunID,
		Section: "Commercialization Plan", Progress: 100, WordCount: 900,
	})
	if err != nil {
		t.Fatalf("publish section_complete: %v", err)
	}
	got = reloadRun(t, db, run.ID)
	if got.TotalWords != 1350 {
		t.Errorf("total words = %d, want 1350", got.TotalWords)
	}

	// Status is never touched by the subscriber.
	if got.Status != "running" {
		t.Errorf("status = %q, want running untouched", got.Status)
	}
}

func TestProgressSubscriberUnknownRun(t *testing.T) {
	bus, _, _ := setupSubscriber(t)

	err := bus.Publish(context.Background(), eventbus.RunEventInit, eventbus.RunEvent{
		Type: eventbus.RunEventInit, RunID: "missing", TotalSections: 4,
	})
	if err == nil {
		t.Fatal("expected publish to surface the handler error")
	}
}

func TestProgressSubscriberIgnoresTerminalEvents(t *testing.T) {
	bus, db, run := setupSubscriber(t)

	// complete and error events belong to the run service; the
	// subscriber must not register for them.
	err := bus.Publish(context.Background(), eventbus.RunEventComplete, eventbus.RunEvent{
		Type: eventbus.RunEventComplete, RunID: run.RunID, TotalWords: 9999,
	})
	if err != nil {
		t.Fatalf("publish complete: %v", err)
	}
	if got := reloadRun(t, db, run.ID); got.TotalWords != 0 {
		t.Errorf("total words = %d, want 0 (event ignored)", got.TotalWords)
	}
}
