package model

import (
	"time"
)

const (
	PracticeModeTopicWise   = "topic_wise"
	PracticeModeSubjectWise = "subject_wise"
	PracticeModeRandom      = "random"
	PracticeModeWeakAreas   = "weak_areas"
)

// PracticeSession counts are self-reported by the client on completion.
type PracticeSession struct {
	ID               uint       `gorm:"primarykey" json:"id"`
	StudentID        uint       `json:"student_id" gorm:"not null;index"`
	SubjectID        uint       `json:"subject_id" gorm:"not null;index"`
	Subject          Subject    `json:"subject,omitempty" gorm:"foreignKey:SubjectID"`
	TopicID          *uint      `json:"topic_id,omitempty"`
	Mode             string     `json:"mode" gorm:"size:20;not null;default:'topic_wise'"`
	Questions        []Question `json:"questions,omitempty" gorm:"many2many:practice_session_questions;"`
	TotalQuestions   int        `json:"total_questions" gorm:"not null;default:0"`
	CorrectCount     int        `json:"correct_count" gorm:"not null;default:0"`
	IncorrectCount   int        `json:"incorrect_count" gorm:"not null;default:0"`
	TimeTakenSeconds int        `json:"time_taken_seconds" gorm:"not null;default:0"`
	IsCompleted      bool       `json:"is_completed" gorm:"not null;default:false"`
	StartedAt        time.Time  `json:"started_at" gorm:"autoCreateTime"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}
