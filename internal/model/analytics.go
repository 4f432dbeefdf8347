package model

import (
	"time"
)

const (
	AchievementTestCount = "test_count"
	AchievementStreak    = "streak"
	AchievementScore     = "score"
	AchievementPractice  = "practice"
	AchievementSpecial   = "special"
)

type Achievement struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	Name        string    `json:"name" gorm:"size:100;not null;uniqueIndex"`
	Description string    `json:"description" gorm:"type:text"`
	Type        string    `json:"achievement_type" gorm:"size:20;not null"`
	Icon        string    `json:"icon,omitempty" gorm:"size:50"`
	Points      int       `json:"points" gorm:"not null;default:10"`
	IsActive    bool      `json:"is_active" gorm:"not null;default:true"`
	CreatedAt   time.Time `json:"created_at"`
}

type UserAchievement struct {
	ID            uint        `gorm:"primarykey" json:"id"`
	UserID        uint        `json:"user_id" gorm:"not null;uniqueIndex:idx_user_achievement"`
	AchievementID uint        `json:"achievement_id" gorm:"not null;uniqueIndex:idx_user_achievement"`
	Achievement   Achievement `json:"achievement,omitempty" gorm:"foreignKey:AchievementID"`
	EarnedAt      time.Time   `json:"earned_at" gorm:"autoCreateTime"`
}

type Streak struct {
	ID               uint       `gorm:"primarykey" json:"id"`
	UserID           uint       `json:"user_id" gorm:"not null;uniqueIndex"`
	CurrentStreak    int        `json:"current_streak" gorm:"not null;default:0"`
	LongestStreak    int        `json:"longest_streak" gorm:"not null;default:0"`
	LastActivityDate *time.Time `json:"last_activity_date,omitempty" gorm:"type:date"`
	TotalPoints      int        `json:"total_points" gorm:"not null;default:0"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Touch registers activity on day. Same day is a no-op, the next calendar day
// extends the streak and any longer gap restarts it at 1.
func (s *Streak) Touch(day time.Time) {
	today := truncateDay(day)
	if s.LastActivityDate != nil {
		last := truncateDay(*s.LastActivityDate)
		switch {
		case !today.After(last):
			return
		case last.AddDate(0, 0, 1).Equal(today):
			s.CurrentStreak++
		default:
			s.CurrentStreak = 1
		}
	} else {
		s.CurrentStreak = 1
	}
	if s.CurrentStreak > s.LongestStreak {
		s.LongestStreak = s.CurrentStreak
	}
	s.LastActivityDate = &today
}

type DailyActivity struct {
	ID                 uint      `gorm:"primarykey" json:"id"`
	UserID             uint      `json:"user_id" gorm:"not null;uniqueIndex:idx_daily_activity_user_date"`
	Date               time.Time `json:"date" gorm:"type:date;not null;uniqueIndex:idx_daily_activity_user_date"`
	TestsTaken         int       `json:"tests_taken" gorm:"not null;default:0"`
	QuestionsPracticed int       `json:"questions_practiced" gorm:"not null;default:0"`
	DoubtsAsked        int       `json:"doubts_asked" gorm:"not null;default:0"`
	TimeSpentMinutes   int       `json:"time_spent_minutes" gorm:"not null;default:0"`
}

// ActivityDelta is added to the caller's DailyActivity row for the day.
type ActivityDelta struct {
	TestsTaken         int
	QuestionsPracticed int
	DoubtsAsked        int
	TimeSpentMinutes   int
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Day returns t truncated to midnight in its own location.
func Day(t time.Time) time.Time {
	return truncateDay(t)
}
