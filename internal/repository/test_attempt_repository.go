package repository

import (
	"context"

	"github.com/lshigami/padhoplus/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RankFunc receives every submitted attempt of a test, the one being
// submitted included, and returns the rows whose rank or percentile changed.
type RankFunc func(submitted []model.TestAttempt) []model.TestAttempt

// AttemptScope limits which attempts a listing can see.
type AttemptScope struct {
	RestrictStudents bool
	StudentIDs       []uint
	TeacherID        uint
	TestID           uint
}

type TestAttemptRepository interface {
	Create(ctx context.Context, attempt *model.TestAttempt) error
	FindByID(ctx context.Context, id uint) (*model.TestAttempt, error)
	FindByIDWithDetails(ctx context.Context, id uint) (*model.TestAttempt, error)
	FindByTestAndStudent(ctx context.Context, testID, studentID uint) (*model.TestAttempt, error)
	// TransitionStatus moves the attempt from one status to another and
	// returns ErrStateChanged if it was no longer in from.
	TransitionStatus(ctx context.Context, id uint, from, to model.AttemptStatus) error
	UpsertResponse(ctx context.Context, response *model.TestResponse) error
	// CommitSubmission writes graded responses and attempt aggregates and
	// reranks the test in one transaction holding the test row lock.
	CommitSubmission(ctx context.Context, attempt *model.TestAttempt, responses []model.TestResponse, rank RankFunc) error
	FindSubmittedByTest(ctx context.Context, testID uint, limit int) ([]model.TestAttempt, error)
	CountSubmitted(ctx context.Context, testID uint) (int64, error)
	FindByIDs(ctx context.Context, ids []uint) ([]model.TestAttempt, error)
	FindScoped(ctx context.Context, scope AttemptScope) ([]model.TestAttempt, error)
	FindSubmittedByStudent(ctx context.Context, studentID uint) ([]model.TestAttempt, error)
}

type testAttemptRepository struct {
	db *gorm.DB
}

func NewTestAttemptRepository(db *gorm.DB) TestAttemptRepository {
	return &testAttemptRepository{db: db}
}

func (r *testAttemptRepository) Create(ctx context.Context, attempt *model.TestAttempt) error {
	return translate(r.db.WithContext(ctx).Create(attempt).Error)
}

func (r *testAttemptRepository) FindByID(ctx context.Context, id uint) (*model.TestAttempt, error) {
	var attempt model.TestAttempt
	if err := r.db.WithContext(ctx).First(&attempt, id).Error; err != nil {
		return nil, translate(err)
	}
	return &attempt, nil
}

func (r *testAttemptRepository) FindByIDWithDetails(ctx context.Context, id uint) (*model.TestAttempt, error) {
	var attempt model.TestAttempt
	err := r.db.WithContext(ctx).
		Preload("Test").
		Preload("Student").
		Preload("Responses", func(db *gorm.DB) *gorm.DB {
			return db.Order("test_responses.question_id ASC")
		}).
		Preload("Responses.Question").
		Preload("Responses.Question.Topic").
		First(&attempt, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &attempt, nil
}

func (r *testAttemptRepository) FindByTestAndStudent(ctx context.Context, testID, studentID uint) (*model.TestAttempt, error) {
	var attempt model.TestAttempt
	err := r.db.WithContext(ctx).Where("test_id = ? AND student_id = ?", testID, studentID).First(&attempt).Error
	if err != nil {
		return nil, translate(err)
	}
	return &attempt, nil
}

func (r *testAttemptRepository) TransitionStatus(ctx context.Context, id uint, from, to model.AttemptStatus) error {
	res := r.db.WithContext(ctx).Model(&model.TestAttempt{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStateChanged
	}
	return nil
}

func (r *testAttemptRepository) UpsertResponse(ctx context.Context, response *model.TestResponse) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "attempt_id"}, {Name: "question_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"selected_answer", "time_spent_seconds", "is_marked_for_review", "updated_at"}),
	}).Create(response).Error
}

func (r *testAttemptRepository) CommitSubmission(ctx context.Context, attempt *model.TestAttempt, responses []model.TestResponse, rank RankFunc) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Serializes submissions of the same test so ranking passes never interleave.
		var test model.Test
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id").First(&test, attempt.TestID).Error; err != nil {
			return translate(err)
		}

		var current model.TestAttempt
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id", "status").First(&current, attempt.ID).Error; err != nil {
			return translate(err)
		}
		if current.Status != model.AttemptStarted {
			return ErrStateChanged
		}

		for _, resp := range responses {
			if err := tx.Model(&model.TestResponse{}).Where("id = ?", resp.ID).Updates(map[string]any{
				"is_correct":     resp.IsCorrect,
				"marks_obtained": resp.MarksObtained,
			}).Error; err != nil {
				return err
			}
		}

		if err := tx.Model(&model.TestAttempt{}).Where("id = ?", attempt.ID).Updates(map[string]any{
			"status":             attempt.Status,
			"score":              attempt.Score,
			"correct_count":      attempt.CorrectCount,
			"incorrect_count":    attempt.IncorrectCount,
			"unattempted_count":  attempt.UnattemptedCount,
			"time_taken_seconds": attempt.TimeTakenSeconds,
			"submitted_at":       attempt.SubmittedAt,
		}).Error; err != nil {
			return err
		}

		var submitted []model.TestAttempt
		if err := tx.Where("test_id = ? AND status = ?", attempt.TestID, model.AttemptSubmitted).
			Find(&submitted).Error; err != nil {
			return err
		}
		for _, changed := range rank(submitted) {
			if err := tx.Model(&model.TestAttempt{}).Where("id = ?", changed.ID).Updates(map[string]any{
				"rank":       changed.Rank,
				"percentile": changed.Percentile,
			}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *testAttemptRepository) FindSubmittedByTest(ctx context.Context, testID uint, limit int) ([]model.TestAttempt, error) {
	var attempts []model.TestAttempt
	query := r.db.WithContext(ctx).Preload("Student").
		Where("test_id = ? AND status = ?", testID, model.AttemptSubmitted).
		Order("score DESC, time_taken_seconds ASC, submitted_at ASC, id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&attempts).Error
	return attempts, err
}

func (r *testAttemptRepository) CountSubmitted(ctx context.Context, testID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.TestAttempt{}).
		Where("test_id = ? AND status = ?", testID, model.AttemptSubmitted).
		Count(&count).Error
	return count, err
}

func (r *testAttemptRepository) FindByIDs(ctx context.Context, ids []uint) ([]model.TestAttempt, error) {
	var attempts []model.TestAttempt
	if len(ids) == 0 {
		return attempts, nil
	}
	err := r.db.WithContext(ctx).Preload("Student").Where("id IN ?", ids).Find(&attempts).Error
	return attempts, err
}

func (r *testAttemptRepository) FindScoped(ctx context.Context, scope AttemptScope) ([]model.TestAttempt, error) {
	var attempts []model.TestAttempt
	query := r.db.WithContext(ctx).Model(&model.TestAttempt{}).Preload("Test").Preload("Student")
	if scope.RestrictStudents {
		if len(scope.StudentIDs) == 0 {
			return attempts, nil
		}
		query = query.Where("test_attempts.student_id IN ?", scope.StudentIDs)
	}
	if scope.TeacherID != 0 {
		query = query.
			Joins("JOIN tests ON tests.id = test_attempts.test_id").
			Joins("JOIN batches ON batches.id = tests.batch_id").
			Where("(tests.created_by_id = ? OR batches.faculty_id = ?)", scope.TeacherID, scope.TeacherID)
	}
	if scope.TestID != 0 {
		query = query.Where("test_attempts.test_id = ?", scope.TestID)
	}
	err := query.Order("test_attempts.started_at DESC").Find(&attempts).Error
	return attempts, err
}

func (r *testAttemptRepository) FindSubmittedByStudent(ctx context.Context, studentID uint) ([]model.TestAttempt, error) {
	var attempts []model.TestAttempt
	err := r.db.WithContext(ctx).Preload("Test").Preload("Test.Subject").
		Where("student_id = ? AND status = ?", studentID, model.AttemptSubmitted).
		Order("submitted_at DESC").
		Find(&attempts).Error
	return attempts, err
}
