package repository

import (
	"context"

	"github.com/lshigami/padhoplus/internal/model"
	"gorm.io/gorm"
)

// TestFilter narrows test listings. Scoping fields are set by the service
// from the caller's role.
type TestFilter struct {
	RestrictBatches bool
	BatchIDs        []uint
	TeacherID       uint
	ExcludeDraft    bool
	BatchSlug       string
	Status          model.TestStatus
	TestType        string
}

type TestSummary struct {
	model.Test
	QuestionCount int
}

type TestRepository interface {
	Create(ctx context.Context, test *model.Test) error
	FindByID(ctx context.Context, id uint) (*model.Test, error)
	FindByIDWithQuestions(ctx context.Context, id uint) (*model.Test, error)
	FindAllWithQuestionCount(ctx context.Context, filter TestFilter) ([]TestSummary, error)
	QuestionCount(ctx context.Context, testID uint) (int, error)
	AttachQuestions(ctx context.Context, test *model.Test, questions []model.Question) error
	UpdateStatus(ctx context.Context, id uint, status model.TestStatus) error
	// IsOwnedByTeacher reports whether the teacher created the test or teaches its batch.
	IsOwnedByTeacher(ctx context.Context, testID, teacherID uint) (bool, error)
	CountByStatus(ctx context.Context, statuses ...model.TestStatus) (int64, error)
}

type testRepository struct {
	db *gorm.DB
}

func NewTestRepository(db *gorm.DB) TestRepository {
	return &testRepository{db: db}
}

func (r *testRepository) Create(ctx context.Context, test *model.Test) error {
	// Questions in test.Questions are linked through test_questions.
	return r.db.WithContext(ctx).Create(test).Error
}

func (r *testRepository) FindByID(ctx context.Context, id uint) (*model.Test, error) {
	var test model.Test
	if err := r.db.WithContext(ctx).First(&test, id).Error; err != nil {
		return nil, translate(err)
	}
	return &test, nil
}

func (r *testRepository) FindByIDWithQuestions(ctx context.Context, id uint) (*model.Test, error) {
	var test model.Test
	err := r.db.WithContext(ctx).
		Preload("Batch").
		Preload("Subject").
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("questions.id ASC")
		}).
		Preload("Questions.Topic").
		First(&test, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &test, nil
}

func (r *testRepository) FindAllWithQuestionCount(ctx context.Context, filter TestFilter) ([]TestSummary, error) {
	var results []TestSummary
	query := r.db.WithContext(ctx).Model(&model.Test{}).
		Select("tests.*, (SELECT COUNT(*) FROM test_questions WHERE test_questions.test_id = tests.id) as question_count").
		Joins("JOIN batches ON batches.id = tests.batch_id").
		Where("tests.deleted_at IS NULL")

	if filter.RestrictBatches {
		if len(filter.BatchIDs) == 0 {
			return results, nil
		}
		query = query.Where("tests.batch_id IN ?", filter.BatchIDs)
	}
	if filter.TeacherID != 0 {
		query = query.Where("(tests.created_by_id = ? OR batches.faculty_id = ?)", filter.TeacherID, filter.TeacherID)
	}
	if filter.ExcludeDraft {
		query = query.Where("tests.status <> ?", model.TestStatusDraft)
	}
	if filter.BatchSlug != "" {
		query = query.Where("batches.slug = ?", filter.BatchSlug)
	}
	if filter.Status != "" {
		query = query.Where("tests.status = ?", filter.Status)
	}
	if filter.TestType != "" {
		query = query.Where("tests.test_type = ?", filter.TestType)
	}

	err := query.Order("tests.start_time DESC NULLS LAST, tests.created_at DESC").Scan(&results).Error
	return results, err
}

func (r *testRepository) QuestionCount(ctx context.Context, testID uint) (int, error) {
	var n int64
	err := r.db.WithContext(ctx).Table("test_questions").Where("test_id = ?", testID).Count(&n).Error
	return int(n), err
}

func (r *testRepository) AttachQuestions(ctx context.Context, test *model.Test, questions []model.Question) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(test).Association("Questions").Append(questions); err != nil {
			return err
		}
		var total float64
		if err := tx.Table("questions").
			Joins("JOIN test_questions ON test_questions.question_id = questions.id").
			Where("test_questions.test_id = ?", test.ID).
			Select("COALESCE(SUM(questions.marks), 0)").
			Scan(&total).Error; err != nil {
			return err
		}
		test.TotalMarks = total
		return tx.Model(test).Update("total_marks", total).Error
	})
}

func (r *testRepository) UpdateStatus(ctx context.Context, id uint, status model.TestStatus) error {
	res := r.db.WithContext(ctx).Model(&model.Test{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *testRepository) IsOwnedByTeacher(ctx context.Context, testID, teacherID uint) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Test{}).
		Joins("JOIN batches ON batches.id = tests.batch_id").
		Where("tests.id = ?", testID).
		Where("(tests.created_by_id = ? OR batches.faculty_id = ?)", teacherID, teacherID).
		Count(&n).Error
	return n > 0, err
}

func (r *testRepository) CountByStatus(ctx context.Context, statuses ...model.TestStatus) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Test{}).Where("status IN ?", statuses).Count(&n).Error
	return n, err
}
