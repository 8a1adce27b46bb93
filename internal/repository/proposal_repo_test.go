package repository

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/grantforge/backend/internal/model"
	"gorm.io/gorm"
)

func setupProposalDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}
	if err := db.AutoMigrate(&model.Proposal{}, &model.ProposalSection{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func TestProposalRepository_CreateWithSections(t *testing.T) {
	db := setupProposalDB(t)
	repo := NewProposalRepository(db)
	ctx := context.Background()

	proposal := &model.Proposal{
		RunID:          7,
		CompanyName:    "EcoVolt",
		GrantType:      "NSF SBIR Phase I",
		TotalWordCount: 1200,
		Sections: []model.ProposalSection{
			{Slot: "technical_objectives", Name: "Technical Objectives", Content: "objectives", WordCount: 800, Iteration: 1, SortOrder: 2},
			{Slot: "project_pitch", Name: "Project Pitch", Content: "pitch", WordCount: 400, Iteration: 1, SortOrder: 1},
		},
	}
	if err := repo.Create(ctx, proposal); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := repo.GetByRunID(ctx, 7)
	if err != nil {
		t.Fatalf("GetByRunID failed: %v", err)
	}
	if len(got.Sections) != 2 {
		t.Fatalf("expected 2 sections, got %d", len(got.Sections))
	}
	// Sections come back in sort order, not insertion order.
	if got.Sections[0].Slot != "project_pitch" {
		t.Errorf("first section = %s, want project_pitch", got.Sections[0].Slot)
	}
}

func TestProposalRepository_GetByRunIDNotFound(t *testing.T) {
	db := setupProposalDB(t)
	repo := NewProposalRepository(db)

	if _, err := repo.GetByRunID(context.Background(), 999); err != ErrNotFound {
		t.Errorf("GetByRunID on missing proposal should return ErrNotFound, got %v", err)
	}
}

func TestProposalRepository_ReplaceSections(t *testing.T) {
	db := setupProposalDB(t)
	repo := NewProposalRepository(db)
	ctx := context.Background()

	proposal := &model.Proposal{
		RunID: 3,
		Sections: []model.ProposalSection{
			{Slot: "project_pitch", Name: "Project Pitch", Content: "old", WordCount: 1, SortOrder: 1},
		},
	}
	if err := repo.Create(ctx, proposal); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	replacement := []model.ProposalSection{
		{Slot: "project_pitch", Name: "Project Pitch", Content: "trimmed", WordCount: 1, SortOrder: 1},
		{Slot: "work_plan", Name: "Work Plan", Content: "plan", WordCount: 1, SortOrder: 6},
	}
	if err := repo.ReplaceSections(ctx, proposal.ID, replacement); err != nil {
		t.Fatalf("ReplaceSections failed: %v", err)
	}

	got, err := repo.GetByRunID(ctx, 3)
	if err != nil {
		t.Fatalf("GetByRunID failed: %v", err)
	}
	if len(got.Sections) != 2 {
		t.Fatalf("expected 2 sections after replace, got %d", len(got.Sections))
	}
	if got.Sections[0].Content != "trimmed" {
		t.Errorf("replace should drop old content, got %q", got.Sections[0].Content)
	}

	// No orphan rows left behind.
	var count int64
	db.Model(&model.ProposalSection{}).Count(&count)
	if count != 2 {
		t.Errorf("expected 2 section rows total, got %d", count)
	}
}

func TestProposalRepository_DeleteByRunID(t *testing.T) {
	db := setupProposalDB(t)
	repo := NewProposalRepository(db)
	ctx := context.Background()

	proposal := &model.Proposal{
		RunID: 5,
		Sections: []model.ProposalSection{
			{Slot: "project_pitch", Name: "Project Pitch", Content: "x", WordCount: 1, SortOrder: 1},
		},
	}
	if err := repo.Create(ctx, proposal); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := repo.DeleteByRunID(ctx, 5); err != nil {
		t.Fatalf("DeleteByRunID failed: %v", err)
	}
	if _, err := repo.GetByRunID(ctx, 5); err != ErrNotFound {
		t.Errorf("proposal should be gone after delete, got %v", err)
	}

	var count int64
	db.Model(&model.ProposalSection{}).Count(&count)
	if count != 0 {
		t.Errorf("sections should be deleted with the proposal, %d left", count)
	}

	// Deleting a run with no proposal is not an error.
	if err := repo.DeleteByRunID(ctx, 999); err != nil {
		t.Errorf("DeleteByRunID on missing proposal should be a no-op, got %v", err)
	}
}
