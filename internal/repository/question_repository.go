package repository

import (
	"context"

	"github.com/lshigami/padhoplus/internal/model"
	"gorm.io/gorm"
)

type QuestionFilter struct {
	SubjectID  uint
	TopicID    *uint
	Difficulty string
}

type QuestionRepository interface {
	Create(ctx context.Context, question *model.Question) error
	FindByID(ctx context.Context, id uint) (*model.Question, error)
	FindByIDs(ctx context.Context, ids []uint) ([]model.Question, error)
	FindAll(ctx context.Context, filter QuestionFilter) ([]model.Question, error)
	// FindRandom returns up to limit active questions in random order.
	FindRandom(ctx context.Context, filter QuestionFilter, limit int) ([]model.Question, error)
	Update(ctx context.Context, question *model.Question) error
}

type questionRepository struct {
	db *gorm.DB
}

func NewQuestionRepository(db *gorm.DB) QuestionRepository {
	return &questionRepository{db: db}
}

func (r *questionRepository) Create(ctx context.Context, question *model.Question) error {
	return r.db.WithContext(ctx).Create(question).Error
}

func (r *questionRepository) FindByID(ctx context.Context, id uint) (*model.Question, error) {
	var question model.Question
	if err := r.db.WithContext(ctx).Preload("Topic").First(&question, id).Error; err != nil {
		return nil, translate(err)
	}
	return &question, nil
}

func (r *questionRepository) FindByIDs(ctx context.Context, ids []uint) ([]model.Question, error) {
	var questions []model.Question
	if len(ids) == 0 {
		return questions, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&questions).Error
	return questions, err
}

func (r *questionRepository) filtered(ctx context.Context, filter QuestionFilter) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&model.Question{}).Where("is_active = ?", true)
	if filter.SubjectID != 0 {
		query = query.Where("subject_id = ?", filter.SubjectID)
	}
	if filter.TopicID != nil {
		query = query.Where("topic_id = ?", *filter.TopicID)
	}
	if filter.Difficulty != "" {
		query = query.Where("difficulty = ?", filter.Difficulty)
	}
	return query
}

func (r *questionRepository) FindAll(ctx context.Context, filter QuestionFilter) ([]model.Question, error) {
	var questions []model.Question
	err := r.filtered(ctx, filter).Preload("Topic").Order("created_at DESC").Find(&questions).Error
	return questions, err
}

func (r *questionRepository) FindRandom(ctx context.Context, filter QuestionFilter, limit int) ([]model.Question, error) {
	var questions []model.Question
	err := r.filtered(ctx, filter).Order("RANDOM()").Limit(limit).Find(&questions).Error
	return questions, err
}

func (r *questionRepository) Update(ctx context.Context, question *model.Question) error {
	return r.db.WithContext(ctx).Save(question).Error
}
