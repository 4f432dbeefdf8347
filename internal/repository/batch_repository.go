package repository

import (
	"context"

	"github.com/lshigami/padhoplus/internal/model"
	"gorm.io/gorm"
)

type BatchFilter struct {
	TargetExam string
	IsFree     *bool
	Status     string
}

type BatchRepository interface {
	Create(ctx context.Context, batch *model.Batch) error
	FindByID(ctx context.Context, id uint) (*model.Batch, error)
	FindAll(ctx context.Context, filter BatchFilter) ([]model.Batch, error)
	CountByStatus(ctx context.Context, status string) (int64, error)
}

type batchRepository struct {
	db *gorm.DB
}

func NewBatchRepository(db *gorm.DB) BatchRepository {
	return &batchRepository{db: db}
}

func (r *batchRepository) Create(ctx context.Context, batch *model.Batch) error {
	return translate(r.db.WithContext(ctx).Create(batch).Error)
}

func (r *batchRepository) FindByID(ctx context.Context, id uint) (*model.Batch, error) {
	var batch model.Batch
	if err := r.db.WithContext(ctx).First(&batch, id).Error; err != nil {
		return nil, translate(err)
	}
	return &batch, nil
}

func (r *batchRepository) FindAll(ctx context.Context, filter BatchFilter) ([]model.Batch, error) {
	var batches []model.Batch
	query := r.db.WithContext(ctx).Model(&model.Batch{})
	if filter.TargetExam != "" {
		query = query.Where("target_exam = ?", filter.TargetExam)
	}
	if filter.IsFree != nil {
		query = query.Where("is_free = ?", *filter.IsFree)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	err := query.Order("created_at DESC").Find(&batches).Error
	return batches, err
}

func (r *batchRepository) CountByStatus(ctx context.Context, status string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Batch{}).Where("status = ?", status).Count(&n).Error
	return n, err
}
