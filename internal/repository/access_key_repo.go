package repository

import (
	"context"
	"errors"
	"time"

	"github.com/grantforge/backend/internal/model"
	"gorm.io/gorm"
)

type accessKeyRepository struct {
	db *gorm.DB
}

func NewAccessKeyRepository(db *gorm.DB) AccessKeyRepository {
	return &accessKeyRepository{db: db}
}

func (r *accessKeyRepository) Create(ctx context.Context, key *model.AccessKey) error {
	return r.db.WithContext(ctx).Create(key).Error
}

func (r *accessKeyRepository) GetByHash(ctx context.Context, hash string) (*model.AccessKey, error) {
	var key model.AccessKey
	err := r.db.WithContext(ctx).
		Where("key_hash = ? AND deleted_at IS NULL", hash).
		First(&key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &key, nil
}

func (r *accessKeyRepository) GetByName(ctx context.Context, name string) (*model.AccessKey, error) {
	var key model.AccessKey
	err := r.db.WithContext(ctx).
		Where("name = ? AND deleted_at IS NULL", name).
		First(&key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &key, nil
}

func (r *accessKeyRepository) List(ctx context.Context) ([]*model.AccessKey, error) {
	var keys []*model.AccessKey
	err := r.db.WithContext(ctx).
		Where("deleted_at IS NULL").
		Order("id").
		Find(&keys).Error
	return keys, err
}

func (r *accessKeyRepository) UpdateStatus(ctx context.Context, id uint, status string) error {
	result := r.db.WithContext(ctx).Model(&model.AccessKey{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Update("status", status)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *accessKeyRepository) RecordRequest(ctx context.Context, id uint) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&model.AccessKey{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"request_count": gorm.Expr("request_count + 1"),
			"last_used_at":  &now,
		}).Error
}

// Delete soft-deletes so the key name stays reserved in history.
func (r *accessKeyRepository) Delete(ctx context.Context, id uint) error {
	now := time.Now()
	result := r.db.WithContext(ctx).Model(&model.AccessKey{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Update("deleted_at", &now)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
