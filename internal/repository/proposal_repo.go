package repository

import (
	"context"
	"errors"

	"github.com/grantforge/backend/internal/model"
	"gorm.io/gorm"
)

type proposalRepository struct {
	db *gorm.DB
}

func NewProposalRepository(db *gorm.DB) ProposalRepository {
	return &proposalRepository{db: db}
}

func (r *proposalRepository) Create(ctx context.Context, proposal *model.Proposal) error {
	return r.db.WithContext(ctx).Create(proposal).Error
}

func (r *proposalRepository) GetByRunID(ctx context.Context, runID uint) (*model.Proposal, error) {
	var proposal model.Proposal
	err := r.db.WithContext(ctx).
		Preload("Sections", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order")
		}).
		Where("run_id = ?", runID).
		First(&proposal).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &proposal, nil
}

func (r *proposalRepository) Save(ctx context.Context, proposal *model.Proposal) error {
	return r.db.WithContext(ctx).Save(proposal).Error
}

// ReplaceSections swaps a proposal's section rows in one transaction, used
// when validation trims sections after the initial store.
func (r *proposalRepository) ReplaceSections(ctx context.Context, proposalID uint, sections []model.ProposalSection) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("proposal_id = ?", proposalID).Delete(&model.ProposalSection{}).Error; err != nil {
			return err
		}
		for i := range sections {
			sections[i].ID = 0
			sections[i].ProposalID = proposalID
		}
		if len(sections) == 0 {
			return nil
		}
		return tx.Create(&sections).Error
	})
}

func (r *proposalRepository) DeleteByRunID(ctx context.Context, runID uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var proposal model.Proposal
		err := tx.Where("run_id = ?", runID).First(&proposal).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := tx.Where("proposal_id = ?", proposal.ID).Delete(&model.ProposalSection{}).Error; err != nil {
			return err
		}
		return tx.Delete(&proposal).Error
	})
}
