package model

import (
	"time"
)

type AttemptStatus string

const (
	AttemptStarted   AttemptStatus = "started"
	AttemptSubmitted AttemptStatus = "submitted"
	AttemptAbandoned AttemptStatus = "abandoned"
)

// TestAttempt is unique per (test, student). Aggregates are written once at
// submission and afterwards only rank and percentile change.
type TestAttempt struct {
	ID               uint           `gorm:"primarykey" json:"id"`
	TestID           uint           `json:"test_id" gorm:"not null;uniqueIndex:idx_attempt_test_student"`
	Test             Test           `json:"test,omitempty" gorm:"foreignKey:TestID"`
	StudentID        uint           `json:"student_id" gorm:"not null;uniqueIndex:idx_attempt_test_student;index"`
	Student          User           `json:"student,omitempty" gorm:"foreignKey:StudentID"`
	Status           AttemptStatus  `json:"status" gorm:"type:varchar(20);not null;default:'started';index"`
	Score            float64        `json:"score" gorm:"not null;default:0"`
	CorrectCount     int            `json:"correct_count" gorm:"not null;default:0"`
	IncorrectCount   int            `json:"incorrect_count" gorm:"not null;default:0"`
	UnattemptedCount int            `json:"unattempted_count" gorm:"not null;default:0"`
	TimeTakenSeconds int            `json:"time_taken_seconds" gorm:"not null;default:0"`
	Rank             *int           `json:"rank,omitempty"`
	Percentile       *float64       `json:"percentile,omitempty"`
	StartedAt        time.Time      `json:"started_at" gorm:"not null"`
	SubmittedAt      *time.Time     `json:"submitted_at,omitempty"`
	Responses        []TestResponse `json:"responses,omitempty" gorm:"foreignKey:AttemptID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}
