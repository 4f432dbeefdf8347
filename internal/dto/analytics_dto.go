package dto

import "time"

type AchievementDTO struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Type        string `json:"achievement_type"`
	Icon        string `json:"icon,omitempty"`
	Points      int    `json:"points"`
}

type UserAchievementDTO struct {
	Achievement AchievementDTO `json:"achievement"`
	EarnedAt    time.Time      `json:"earned_at"`
}

type AwardResultDTO struct {
	Awarded     bool               `json:"awarded"`
	Achievement UserAchievementDTO `json:"user_achievement"`
}

type StreakDTO struct {
	CurrentStreak    int        `json:"current_streak"`
	LongestStreak    int        `json:"longest_streak"`
	LastActivityDate *time.Time `json:"last_activity_date,omitempty"`
	TotalPoints      int        `json:"total_points"`
}

type PerformanceDTO struct {
	TotalTests        int          `json:"total_tests"`
	AverageScore      float64      `json:"average_score"`
	AveragePercentile float64      `json:"average_percentile"`
	BestRank          *int         `json:"best_rank,omitempty"`
	RecentTests       []AttemptDTO `json:"recent_tests"`
}

type StudentDashboardDTO struct {
	EnrolledBatches int                  `json:"enrolled_batches"`
	TestsTaken      int                  `json:"tests_taken"`
	Streak          StreakDTO            `json:"streak"`
	RecentTests     []AttemptDTO         `json:"recent_tests"`
	Achievements    []UserAchievementDTO `json:"achievements"`
}

type AdminDashboardDTO struct {
	TotalStudents     int64 `json:"total_students"`
	TotalTeachers     int64 `json:"total_teachers"`
	ActiveBatches     int64 `json:"active_batches"`
	ActiveEnrollments int64 `json:"active_enrollments"`
	LiveTests         int64 `json:"live_tests"`
	OpenDoubts        int64 `json:"open_doubts"`
}

type TeacherDashboardDTO struct {
	ManagedTests      int   `json:"managed_tests"`
	LiveTests         int   `json:"live_tests"`
	SubmittedAttempts int   `json:"submitted_attempts"`
	PendingDoubts     int64 `json:"pending_doubts"`
}

type AwardRequestDTO struct {
	UserID          uint   `json:"user_id" binding:"required"`
	AchievementName string `json:"achievement_name" binding:"required"`
}
