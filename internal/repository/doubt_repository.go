package repository

import (
	"context"
	"time"

	"github.com/lshigami/padhoplus/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DoubtFilter struct {
	SubjectSlug string
	Status      model.DoubtStatus
	Search      string
	StudentID   uint
	// VisibleTo shows public doubts plus the caller's own. Zero disables it.
	VisibleTo uint
}

// UpvoteTarget names exactly one of a doubt or a response.
type UpvoteTarget struct {
	DoubtID    uint
	ResponseID uint
}

type DoubtRepository interface {
	Create(ctx context.Context, doubt *model.Doubt) error
	FindByID(ctx context.Context, id uint) (*model.Doubt, error)
	FindAll(ctx context.Context, filter DoubtFilter) ([]model.Doubt, error)
	Update(ctx context.Context, doubt *model.Doubt) error
	IncrementViews(ctx context.Context, id uint) error
	CreateResponse(ctx context.Context, response *model.DoubtResponse) error
	FindResponseByID(ctx context.Context, id uint) (*model.DoubtResponse, error)
	// AcceptResponse marks the response accepted, clears any other accepted
	// response of the doubt and closes the doubt.
	AcceptResponse(ctx context.Context, responseID uint) (*model.DoubtResponse, error)
	// ToggleUpvote adds the caller's upvote or removes it if present and
	// returns the new state and counter.
	ToggleUpvote(ctx context.Context, userID uint, target UpvoteTarget) (bool, int, error)
	CountByStatus(ctx context.Context, statuses ...model.DoubtStatus) (int64, error)
}

type doubtRepository struct {
	db *gorm.DB
}

func NewDoubtRepository(db *gorm.DB) DoubtRepository {
	return &doubtRepository{db: db}
}

func (r *doubtRepository) Create(ctx context.Context, doubt *model.Doubt) error {
	return r.db.WithContext(ctx).Create(doubt).Error
}

func (r *doubtRepository) FindByID(ctx context.Context, id uint) (*model.Doubt, error) {
	var doubt model.Doubt
	err := r.db.WithContext(ctx).
		Preload("Student").
		Preload("Subject").
		Preload("Responses", func(db *gorm.DB) *gorm.DB {
			return db.Order("doubt_responses.is_accepted DESC, doubt_responses.upvotes DESC, doubt_responses.created_at ASC")
		}).
		Preload("Responses.Responder").
		First(&doubt, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &doubt, nil
}

func (r *doubtRepository) FindAll(ctx context.Context, filter DoubtFilter) ([]model.Doubt, error) {
	var doubts []model.Doubt
	query := r.db.WithContext(ctx).Model(&model.Doubt{}).Preload("Student").Preload("Subject")
	if filter.SubjectSlug != "" {
		query = query.Joins("JOIN subjects ON subjects.id = doubts.subject_id").Where("subjects.slug = ?", filter.SubjectSlug)
	}
	if filter.Status != "" {
		query = query.Where("doubts.status = ?", filter.Status)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where("(doubts.title ILIKE ? OR doubts.description ILIKE ?)", like, like)
	}
	if filter.StudentID != 0 {
		query = query.Where("doubts.student_id = ?", filter.StudentID)
	}
	if filter.VisibleTo != 0 {
		query = query.Where("(doubts.is_public = ? OR doubts.student_id = ?)", true, filter.VisibleTo)
	}
	err := query.Order("doubts.created_at DESC").Find(&doubts).Error
	return doubts, err
}

func (r *doubtRepository) Update(ctx context.Context, doubt *model.Doubt) error {
	return r.db.WithContext(ctx).Model(doubt).Select(
		"status", "assigned_to_id", "is_resolved", "resolved_at", "priority",
	).Updates(doubt).Error
}

func (r *doubtRepository) IncrementViews(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Model(&model.Doubt{}).Where("id = ?", id).
		UpdateColumn("views_count", gorm.Expr("views_count + 1")).Error
}

func (r *doubtRepository) CreateResponse(ctx context.Context, response *model.DoubtResponse) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(response).Error; err != nil {
			return err
		}
		return tx.Model(&model.Doubt{}).
			Where("id = ? AND status = ?", response.DoubtID, model.DoubtPending).
			Update("status", model.DoubtAnswered).Error
	})
}

func (r *doubtRepository) FindResponseByID(ctx context.Context, id uint) (*model.DoubtResponse, error) {
	var response model.DoubtResponse
	if err := r.db.WithContext(ctx).Preload("Responder").First(&response, id).Error; err != nil {
		return nil, translate(err)
	}
	return &response, nil
}

func (r *doubtRepository) AcceptResponse(ctx context.Context, responseID uint) (*model.DoubtResponse, error) {
	var response model.DoubtResponse
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&response, responseID).Error; err != nil {
			return translate(err)
		}
		if err := tx.Model(&model.DoubtResponse{}).
			Where("doubt_id = ? AND id <> ?", response.DoubtID, response.ID).
			Update("is_accepted", false).Error; err != nil {
			return err
		}
		if err := tx.Model(&response).Update("is_accepted", true).Error; err != nil {
			return err
		}
		now := time.Now()
		return tx.Model(&model.Doubt{}).Where("id = ?", response.DoubtID).Updates(map[string]any{
			"status":      model.DoubtClosed,
			"is_resolved": true,
			"resolved_at": now,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	response.IsAccepted = true
	return &response, nil
}

func (r *doubtRepository) ToggleUpvote(ctx context.Context, userID uint, target UpvoteTarget) (bool, int, error) {
	var (
		upvoted bool
		count   int
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var (
			counterModel any
			id           uint
			column       string
		)
		if target.ResponseID != 0 {
			counterModel, id, column = &model.DoubtResponse{}, target.ResponseID, "response_id"
		} else {
			counterModel, id, column = &model.Doubt{}, target.DoubtID, "doubt_id"
		}

		// Locking the counter row serializes toggles on the same target.
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Select("id", "upvotes").First(counterModel, id).Error; err != nil {
			return translate(err)
		}

		var existing model.DoubtUpvote
		err := tx.Where("user_id = ? AND "+column+" = ?", userID, id).First(&existing).Error
		switch {
		case err == nil:
			if err := tx.Delete(&existing).Error; err != nil {
				return err
			}
			if err := tx.Model(counterModel).Where("id = ?", id).
				UpdateColumn("upvotes", gorm.Expr("GREATEST(upvotes - 1, 0)")).Error; err != nil {
				return err
			}
		case translate(err) == ErrNotFound:
			vote := model.DoubtUpvote{UserID: userID}
			if target.ResponseID != 0 {
				vote.ResponseID = &id
			} else {
				vote.DoubtID = &id
			}
			if err := tx.Create(&vote).Error; err != nil {
				return err
			}
			if err := tx.Model(counterModel).Where("id = ?", id).
				UpdateColumn("upvotes", gorm.Expr("upvotes + 1")).Error; err != nil {
				return err
			}
			upvoted = true
		default:
			return err
		}

		return tx.Model(counterModel).Where("id = ?", id).Select("upvotes").Scan(&count).Error
	})
	return upvoted, count, err
}

func (r *doubtRepository) CountByStatus(ctx context.Context, statuses ...model.DoubtStatus) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Doubt{}).Where("status IN ?", statuses).Count(&n).Error
	return n, err
}
