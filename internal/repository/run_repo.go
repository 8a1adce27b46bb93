package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/grantforge/backend/internal/model"
	"gorm.io/gorm"
)

type runRepository struct {
	db *gorm.DB
}

func NewRunRepository(db *gorm.DB) RunRepository {
	return &runRepository{db: db}
}

func (r *runRepository) Create(ctx context.Context, run *model.GenerationRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *runRepository) Get(ctx context.Context, id uint) (*model.GenerationRun, error) {
	var run model.GenerationRun
	err := r.db.WithContext(ctx).First(&run, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &run, nil
}

func (r *runRepository) GetByRunID(ctx context.Context, runID string) (*model.GenerationRun, error) {
	var run model.GenerationRun
	err := r.db.WithContext(ctx).Where("run_id = ?", runID).First(&run).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &run, nil
}

func (r *runRepository) List(ctx context.Context, limit int) ([]model.GenerationRun, error) {
	var runs []model.GenerationRun
	q := r.db.WithContext(ctx).Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&runs).Error
	return runs, err
}

func (r *runRepository) GetByStatus(ctx context.Context, status string) ([]model.GenerationRun, error) {
	var runs []model.GenerationRun
	err := r.db.WithContext(ctx).Where("status = ?", status).Find(&runs).Error
	return runs, err
}

func (r *runRepository) Save(ctx context.Context, run *model.GenerationRun) error {
	return r.db.WithContext(ctx).Save(run).Error
}

// CleanupStuckRuns marks running runs older than the timeout as failed.
// Recovers state after an unclean shutdown.
func (r *runRepository) CleanupStuckRuns(ctx context.Context, timeout time.Duration) (int64, error) {
	cutoff := time.Now().Add(-timeout)
	result := r.db.WithContext(ctx).Model(&model.GenerationRun{}).
		Where("status IN ? AND updated_at < ?", []string{"queued", "running"}, cutoff).
		Updates(map[string]interface{}{
			"status":    "failed",
			"error_msg": fmt.Sprintf("run exceeded %v without completing", timeout),
		})
	return result.RowsAffected, result.Error
}
