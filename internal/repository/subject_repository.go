package repository

import (
	"context"

	"github.com/lshigami/padhoplus/internal/model"
	"gorm.io/gorm"
)

type SubjectRepository interface {
	Create(ctx context.Context, subject *model.Subject) error
	FindByID(ctx context.Context, id uint) (*model.Subject, error)
	FindBySlug(ctx context.Context, slug string) (*model.Subject, error)
	FindAll(ctx context.Context) ([]model.Subject, error)
	CreateTopic(ctx context.Context, topic *model.Topic) error
	FindTopicByID(ctx context.Context, id uint) (*model.Topic, error)
}

type subjectRepository struct {
	db *gorm.DB
}

func NewSubjectRepository(db *gorm.DB) SubjectRepository {
	return &subjectRepository{db: db}
}

func (r *subjectRepository) Create(ctx context.Context, subject *model.Subject) error {
	return translate(r.db.WithContext(ctx).Create(subject).Error)
}

func (r *subjectRepository) FindByID(ctx context.Context, id uint) (*model.Subject, error) {
	var subject model.Subject
	if err := r.db.WithContext(ctx).First(&subject, id).Error; err != nil {
		return nil, translate(err)
	}
	return &subject, nil
}

func (r *subjectRepository) FindBySlug(ctx context.Context, slug string) (*model.Subject, error) {
	var subject model.Subject
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&subject).Error; err != nil {
		return nil, translate(err)
	}
	return &subject, nil
}

func (r *subjectRepository) FindAll(ctx context.Context) ([]model.Subject, error) {
	var subjects []model.Subject
	err := r.db.WithContext(ctx).Preload("Topics").Order("name ASC").Find(&subjects).Error
	return subjects, err
}

func (r *subjectRepository) CreateTopic(ctx context.Context, topic *model.Topic) error {
	return translate(r.db.WithContext(ctx).Create(topic).Error)
}

func (r *subjectRepository) FindTopicByID(ctx context.Context, id uint) (*model.Topic, error) {
	var topic model.Topic
	if err := r.db.WithContext(ctx).First(&topic, id).Error; err != nil {
		return nil, translate(err)
	}
	return &topic, nil
}
