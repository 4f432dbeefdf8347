package repository

import (
	"context"

	"github.com/lshigami/padhoplus/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type EnrollmentRepository interface {
	// Activate creates or reactivates the (student, batch) enrollment.
	Activate(ctx context.Context, enrollment *model.Enrollment) error
	IsActive(ctx context.Context, studentID, batchID uint) (bool, error)
	ActiveBatchIDs(ctx context.Context, studentID uint) ([]uint, error)
	FindActiveByStudent(ctx context.Context, studentID uint) ([]model.Enrollment, error)
	CountActive(ctx context.Context) (int64, error)
}

type enrollmentRepository struct {
	db *gorm.DB
}

func NewEnrollmentRepository(db *gorm.DB) EnrollmentRepository {
	return &enrollmentRepository{db: db}
}

func (r *enrollmentRepository) Activate(ctx context.Context, enrollment *model.Enrollment) error {
	enrollment.Status = model.EnrollmentActive
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "student_id"}, {Name: "batch_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "amount_paid", "payment_method", "transaction_id", "updated_at"}),
	}).Create(enrollment).Error
}

func (r *enrollmentRepository) IsActive(ctx context.Context, studentID, batchID uint) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Enrollment{}).
		Where("student_id = ? AND batch_id = ? AND status = ?", studentID, batchID, model.EnrollmentActive).
		Count(&n).Error
	return n > 0, err
}

func (r *enrollmentRepository) ActiveBatchIDs(ctx context.Context, studentID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&model.Enrollment{}).
		Where("student_id = ? AND status = ?", studentID, model.EnrollmentActive).
		Pluck("batch_id", &ids).Error
	return ids, err
}

func (r *enrollmentRepository) FindActiveByStudent(ctx context.Context, studentID uint) ([]model.Enrollment, error) {
	var enrollments []model.Enrollment
	err := r.db.WithContext(ctx).Preload("Batch").
		Where("student_id = ? AND status = ?", studentID, model.EnrollmentActive).
		Order("enrolled_at DESC").
		Find(&enrollments).Error
	return enrollments, err
}

func (r *enrollmentRepository) CountActive(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Enrollment{}).Where("status = ?", model.EnrollmentActive).Count(&n).Error
	return n, err
}
