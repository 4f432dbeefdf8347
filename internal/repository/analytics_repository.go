package repository

import (
	"context"
	"time"

	"github.com/lshigami/padhoplus/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AnalyticsRepository interface {
	FindAchievementByName(ctx context.Context, name string) (*model.Achievement, error)
	ListAchievements(ctx context.Context) ([]model.Achievement, error)
	FindUserAchievements(ctx context.Context, userID uint) ([]model.UserAchievement, error)
	// AwardAchievement creates the user achievement if absent and credits
	// its points to the user's streak. awarded is false when it already existed.
	AwardAchievement(ctx context.Context, userID uint, achievement model.Achievement) (*model.UserAchievement, bool, error)
	FindStreak(ctx context.Context, userID uint) (*model.Streak, error)
	// RecordActivity adds delta to the user's activity row for day and
	// advances the streak.
	RecordActivity(ctx context.Context, userID uint, day time.Time, delta model.ActivityDelta) (*model.Streak, error)
	FindDailyActivity(ctx context.Context, userID uint, from, to time.Time) ([]model.DailyActivity, error)
}

type analyticsRepository struct {
	db *gorm.DB
}

func NewAnalyticsRepository(db *gorm.DB) AnalyticsRepository {
	return &analyticsRepository{db: db}
}

func (r *analyticsRepository) FindAchievementByName(ctx context.Context, name string) (*model.Achievement, error) {
	var achievement model.Achievement
	err := r.db.WithContext(ctx).Where("name = ? AND is_active = ?", name, true).First(&achievement).Error
	if err != nil {
		return nil, translate(err)
	}
	return &achievement, nil
}

func (r *analyticsRepository) ListAchievements(ctx context.Context) ([]model.Achievement, error) {
	var achievements []model.Achievement
	err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("points ASC").Find(&achievements).Error
	return achievements, err
}

func (r *analyticsRepository) FindUserAchievements(ctx context.Context, userID uint) ([]model.UserAchievement, error) {
	var earned []model.UserAchievement
	err := r.db.WithContext(ctx).Preload("Achievement").
		Where("user_id = ?", userID).
		Order("earned_at DESC").
		Find(&earned).Error
	return earned, err
}

// lockStreak loads the user's streak row for update, creating it first if needed.
func lockStreak(tx *gorm.DB, userID uint) (*model.Streak, error) {
	streak := model.Streak{UserID: userID}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&streak).Error; err != nil {
		return nil, err
	}
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("user_id = ?", userID).First(&streak).Error; err != nil {
		return nil, err
	}
	return &streak, nil
}

func (r *analyticsRepository) AwardAchievement(ctx context.Context, userID uint, achievement model.Achievement) (*model.UserAchievement, bool, error) {
	earned := model.UserAchievement{UserID: userID, AchievementID: achievement.ID}
	awarded := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&earned)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return tx.Where("user_id = ? AND achievement_id = ?", userID, achievement.ID).First(&earned).Error
		}
		awarded = true
		streak, err := lockStreak(tx, userID)
		if err != nil {
			return err
		}
		return tx.Model(streak).UpdateColumn("total_points", gorm.Expr("total_points + ?", achievement.Points)).Error
	})
	if err != nil {
		return nil, false, err
	}
	earned.Achievement = achievement
	return &earned, awarded, nil
}

func (r *analyticsRepository) FindStreak(ctx context.Context, userID uint) (*model.Streak, error) {
	var streak model.Streak
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&streak).Error
	if err != nil {
		if translate(err) == ErrNotFound {
			return &model.Streak{UserID: userID}, nil
		}
		return nil, err
	}
	return &streak, nil
}

func (r *analyticsRepository) RecordActivity(ctx context.Context, userID uint, day time.Time, delta model.ActivityDelta) (*model.Streak, error) {
	var streak *model.Streak
	date := model.Day(day)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		activity := model.DailyActivity{
			UserID:             userID,
			Date:               date,
			TestsTaken:         delta.TestsTaken,
			QuestionsPracticed: delta.QuestionsPracticed,
			DoubtsAsked:        delta.DoubtsAsked,
			TimeSpentMinutes:   delta.TimeSpentMinutes,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "date"}},
			DoUpdates: clause.Assignments(map[string]any{
				"tests_taken":         gorm.Expr("daily_activities.tests_taken + ?", delta.TestsTaken),
				"questions_practiced": gorm.Expr("daily_activities.questions_practiced + ?", delta.QuestionsPracticed),
				"doubts_asked":        gorm.Expr("daily_activities.doubts_asked + ?", delta.DoubtsAsked),
				"time_spent_minutes":  gorm.Expr("daily_activities.time_spent_minutes + ?", delta.TimeSpentMinutes),
			}),
		}).Create(&activity).Error; err != nil {
			return err
		}

		var err error
		streak, err = lockStreak(tx, userID)
		if err != nil {
			return err
		}
		streak.Touch(date)
		return tx.Model(streak).Select("current_streak", "longest_streak", "last_activity_date").Updates(streak).Error
	})
	return streak, err
}

func (r *analyticsRepository) FindDailyActivity(ctx context.Context, userID uint, from, to time.Time) ([]model.DailyActivity, error) {
	var days []model.DailyActivity
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND date BETWEEN ? AND ?", userID, model.Day(from), model.Day(to)).
		Order("date ASC").
		Find(&days).Error
	return days, err
}
