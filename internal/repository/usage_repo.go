package repository

import (
	"context"

	"github.com/grantforge/backend/internal/model"
	"gorm.io/gorm"
)

type usageRepository struct {
	db *gorm.DB
}

func NewUsageRepository(db *gorm.DB) UsageRepository {
	return &usageRepository{db: db}
}

func (r *usageRepository) Create(ctx context.Context, record *model.UsageRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// ListByRun returns records in insertion order, which reflects the real
// call sequence of the run.
func (r *usageRepository) ListByRun(ctx context.Context, runID uint) ([]model.UsageRecord, error) {
	var records []model.UsageRecord
	err := r.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("id").
		Find(&records).Error
	return records, err
}

func (r *usageRepository) SumCostByRun(ctx context.Context, runID uint) (float64, error) {
	var total float64
	err := r.db.WithContext(ctx).Model(&model.UsageRecord{}).
		Where("run_id = ?", runID).
		Select("COALESCE(SUM(cost_usd), 0)").
		Scan(&total).Error
	return total, err
}
