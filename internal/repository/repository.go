package repository

import (
	"context"
	"errors"
	"time"

	"github.com/grantforge/backend/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

type RunRepository interface {
	Create(ctx context.Context, run *model.GenerationRun) error
	Get(ctx context.Context, id uint) (*model.GenerationRun, error)
	GetByRunID(ctx context.Context, runID string) (*model.GenerationRun, error)
	List(ctx context.Context, limit int) ([]model.GenerationRun, error)
	GetByStatus(ctx context.Context, status string) ([]model.GenerationRun, error)
	Save(ctx context.Context, run *model.GenerationRun) error
	CleanupStuckRuns(ctx context.Context, timeout time.Duration) (int64, error)
}

type ProposalRepository interface {
	Create(ctx context.Context, proposal *model.Proposal) error
	GetByRunID(ctx context.Context, runID uint) (*model.Proposal, error)
	Save(ctx context.Context, proposal *model.Proposal) error
	ReplaceSections(ctx context.Context, proposalID uint, sections []model.ProposalSection) error
	DeleteByRunID(ctx context.Context, runID uint) error
}

type UsageRepository interface {
	Create(ctx context.Context, record *model.UsageRecord) error
	ListByRun(ctx context.Context, runID uint) ([]model.UsageRecord, error)
	SumCostByRun(ctx context.Context, runID uint) (float64, error)
}

type AccessKeyRepository interface {
	Create(ctx context.Context, key *model.AccessKey) error
	GetByHash(ctx context.Context, hash string) (*model.AccessKey, error)
	GetByName(ctx context.Context, name string) (*model.AccessKey, error)
	List(ctx context.Context) ([]*model.AccessKey, error)
	UpdateStatus(ctx context.Context, id uint, status string) error
	RecordRequest(ctx context.Context, id uint) error
	Delete(ctx context.Context, id uint) error
}
