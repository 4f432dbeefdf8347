package repository

import (
	"context"

	"github.com/lshigami/padhoplus/internal/model"
	"gorm.io/gorm"
)

type PracticeRepository interface {
	Create(ctx context.Context, session *model.PracticeSession) error
	FindByID(ctx context.Context, id uint) (*model.PracticeSession, error)
	Update(ctx context.Context, session *model.PracticeSession) error
	FindByStudent(ctx context.Context, studentID uint) ([]model.PracticeSession, error)
}

type practiceRepository struct {
	db *gorm.DB
}

func NewPracticeRepository(db *gorm.DB) PracticeRepository {
	return &practiceRepository{db: db}
}

func (r *practiceRepository) Create(ctx context.Context, session *model.PracticeSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *practiceRepository) FindByID(ctx context.Context, id uint) (*model.PracticeSession, error) {
	var session model.PracticeSession
	if err := r.db.WithContext(ctx).Preload("Subject").Preload("Questions").First(&session, id).Error; err != nil {
		return nil, translate(err)
	}
	return &session, nil
}

func (r *practiceRepository) Update(ctx context.Context, session *model.PracticeSession) error {
	return r.db.WithContext(ctx).Model(session).Select(
		"correct_count", "incorrect_count", "time_taken_seconds", "is_completed", "completed_at",
	).Updates(session).Error
}

func (r *practiceRepository) FindByStudent(ctx context.Context, studentID uint) ([]model.PracticeSession, error) {
	var sessions []model.PracticeSession
	err := r.db.WithContext(ctx).Preload("Subject").
		Where("student_id = ?", studentID).
		Order("started_at DESC").
		Find(&sessions).Error
	return sessions, err
}
