package model

import (
	"time"
)

// TestResponse is unique per (attempt, question). IsCorrect and MarksObtained
// stay zero until the attempt is submitted.
type TestResponse struct {
	ID                uint      `gorm:"primarykey" json:"id"`
	AttemptID         uint      `json:"attempt_id" gorm:"not null;uniqueIndex:idx_response_attempt_question"`
	QuestionID        uint      `json:"question_id" gorm:"not null;uniqueIndex:idx_response_attempt_question"`
	Question          Question  `json:"question,omitempty" gorm:"foreignKey:QuestionID"`
	SelectedAnswer    *string   `json:"selected_answer,omitempty" gorm:"size:200"`
	IsCorrect         bool      `json:"is_correct" gorm:"not null;default:false"`
	MarksObtained     float64   `json:"marks_obtained" gorm:"not null;default:0"`
	TimeSpentSeconds  int       `json:"time_spent_seconds" gorm:"not null;default:0"`
	IsMarkedForReview bool      `json:"is_marked_for_review" gorm:"not null;default:false"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}
