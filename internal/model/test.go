package model

import (
	"time"

	"gorm.io/gorm"
)

type TestStatus string

const (
	TestStatusDraft     TestStatus = "draft"
	TestStatusScheduled TestStatus = "scheduled"
	TestStatusLive      TestStatus = "live"
	TestStatusCompleted TestStatus = "completed"
)

func (s TestStatus) Valid() bool {
	switch s {
	case TestStatusDraft, TestStatusScheduled, TestStatusLive, TestStatusCompleted:
		return true
	}
	return false
}

const (
	TestTypeMock       = "mock"
	TestTypeChapter    = "chapter"
	TestTypeFullLength = "full_length"
	TestTypePractice   = "practice"
)

type Test struct {
	ID              uint           `gorm:"primarykey" json:"id"`
	Title           string         `json:"title" gorm:"size:200;not null"`
	Description     string         `json:"description,omitempty" gorm:"type:text"`
	TestType        string         `json:"test_type" gorm:"size:20;not null;default:'mock'"`
	BatchID         uint           `json:"batch_id" gorm:"not null;index"`
	Batch           Batch          `json:"batch,omitempty" gorm:"foreignKey:BatchID"`
	SubjectID       *uint          `json:"subject_id,omitempty" gorm:"index"`
	Subject         *Subject       `json:"subject,omitempty" gorm:"foreignKey:SubjectID"`
	Questions       []Question     `json:"questions,omitempty" gorm:"many2many:test_questions;"`
	DurationMinutes int            `json:"duration_minutes" gorm:"not null;default:60"`
	TotalMarks      float64        `json:"total_marks" gorm:"not null;default:0"`
	PassingMarks    float64        `json:"passing_marks" gorm:"not null;default:0"`
	StartTime       *time.Time     `json:"start_time,omitempty"`
	EndTime         *time.Time     `json:"end_time,omitempty"`
	Status          TestStatus     `json:"status" gorm:"type:varchar(20);not null;default:'draft';index"`
	IsFree          bool           `json:"is_free" gorm:"not null;default:false"`
	CreatedByID     *uint          `json:"created_by_id,omitempty" gorm:"index"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

// AcceptsAttempts reports whether a new attempt may be started at now.
func (t Test) AcceptsAttempts(now time.Time) bool {
	switch t.Status {
	case TestStatusLive:
	case TestStatusScheduled:
		if t.StartTime == nil || now.Before(*t.StartTime) {
			return false
		}
	default:
		return false
	}
	if t.EndTime != nil && now.After(*t.EndTime) {
		return false
	}
	return true
}
