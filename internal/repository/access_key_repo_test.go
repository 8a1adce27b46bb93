package repository

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/grantforge/backend/internal/model"
	"gorm.io/gorm"
)

func setupAccessKeyDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect database: %v", err)
	}
	if err := db.AutoMigrate(&model.AccessKey{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func TestAccessKeyRepository_CreateAndLookup(t *testing.T) {
	db := setupAccessKeyDB(t)
	repo := NewAccessKeyRepository(db)
	ctx := context.Background()

	key := &model.AccessKey{Name: "ci-bot", KeyHash: "hash-1", Prefix: "gf_abcd", Status: "enabled"}
	if err := repo.Create(ctx, key); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	byHash, err := repo.GetByHash(ctx, "hash-1")
	if err != nil {
		t.Fatalf("GetByHash failed: %v", err)
	}
	if byHash.Name != "ci-bot" {
		t.Errorf("GetByHash returned %s, want ci-bot", byHash.Name)
	}

	byName, err := repo.GetByName(ctx, "ci-bot")
	if err != nil {
		t.Fatalf("GetByName failed: %v", err)
	}
	if byName.ID != key.ID {
		t.Errorf("GetByName returned ID %d, want %d", byName.ID, key.ID)
	}

	if _, err := repo.GetByHash(ctx, "missing"); err != ErrNotFound {
		t.Errorf("GetByHash on unknown hash should return ErrNotFound, got %v", err)
	}
}

func TestAccessKeyRepository_RecordRequest(t *testing.T) {
	db := setupAccessKeyDB(t)
	repo := NewAccessKeyRepository(db)
	ctx := context.Background()

	key := &model.AccessKey{Name: "counter", KeyHash: "hash-2", Prefix: "gf_efgh", Status: "enabled"}
	if err := repo.Create(ctx, key); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := repo.RecordRequest(ctx, key.ID); err != nil {
			t.Fatalf("RecordRequest failed: %v", err)
		}
	}

	got, err := repo.GetByName(ctx, "counter")
	if err != nil {
		t.Fatalf("GetByName failed: %v", err)
	}
	if got.RequestCount != 3 {
		t.Errorf("RequestCount = %d, want 3", got.RequestCount)
	}
	if got.LastUsedAt == nil {
		t.Errorf("LastUsedAt should be set after RecordRequest")
	}
}

func TestAccessKeyRepository_StatusAndDelete(t *testing.T) {
	db := setupAccessKeyDB(t)
	repo := NewAccessKeyRepository(db)
	ctx := context.Background()

	key := &model.AccessKey{Name: "revoked", KeyHash: "hash-3", Prefix: "gf_ijkl", Status: "enabled"}
	if err := repo.Create(ctx, key); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := repo.UpdateStatus(ctx, key.ID, "disabled"); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}
	got, err := repo.GetByName(ctx, "revoked")
	if err != nil {
		t.Fatalf("GetByName failed: %v", err)
	}
	if got.Status != "disabled" {
		t.Errorf("Status = %s, want disabled", got.Status)
	}

	if err := repo.Delete(ctx, key.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := repo.GetByHash(ctx, "hash-3"); err != ErrNotFound {
		t.Errorf("deleted key should not resolve by hash, got %v", err)
	}
	list, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("List should omit deleted keys, got %d", len(list))
	}
}
