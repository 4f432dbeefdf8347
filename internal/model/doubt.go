package model

import (
	"time"
)

type DoubtStatus string

const (
	DoubtPending    DoubtStatus = "pending"
	DoubtInProgress DoubtStatus = "in_progress"
	DoubtAnswered   DoubtStatus = "answered"
	DoubtClosed     DoubtStatus = "closed"
)

type Doubt struct {
	ID           uint            `gorm:"primarykey" json:"id"`
	StudentID    uint            `json:"student_id" gorm:"not null;index"`
	Student      User            `json:"student,omitempty" gorm:"foreignKey:StudentID"`
	SubjectID    uint            `json:"subject_id" gorm:"not null;index"`
	Subject      Subject         `json:"subject,omitempty" gorm:"foreignKey:SubjectID"`
	TopicID      *uint           `json:"topic_id,omitempty"`
	QuestionID   *uint           `json:"question_id,omitempty"`
	Title        string          `json:"title" gorm:"size:200;not null"`
	Description  string          `json:"description" gorm:"type:text;not null"`
	ImagePath    *string         `json:"image_path,omitempty"`
	Status       DoubtStatus     `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	Priority     string          `json:"priority" gorm:"size:10;not null;default:'medium'"`
	AssignedToID *uint           `json:"assigned_to_id,omitempty" gorm:"index"`
	IsPublic     bool            `json:"is_public" gorm:"not null;default:true"`
	IsResolved   bool            `json:"is_resolved" gorm:"not null;default:false"`
	ViewsCount   int             `json:"views_count" gorm:"not null;default:0"`
	Upvotes      int             `json:"upvotes" gorm:"not null;default:0"`
	Responses    []DoubtResponse `json:"responses,omitempty" gorm:"foreignKey:DoubtID;constraint:OnDelete:CASCADE;"`
	ResolvedAt   *time.Time      `json:"resolved_at,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type DoubtResponse struct {
	ID            uint      `gorm:"primarykey" json:"id"`
	DoubtID       uint      `json:"doubt_id" gorm:"not null;index"`
	ResponderID   uint      `json:"responder_id" gorm:"not null;index"`
	Responder     User      `json:"responder,omitempty" gorm:"foreignKey:ResponderID"`
	Content       string    `json:"content" gorm:"type:text;not null"`
	ImagePath     *string   `json:"image_path,omitempty"`
	IsAccepted    bool      `json:"is_accepted" gorm:"not null;default:false"`
	IsAIGenerated bool      `json:"is_ai_generated" gorm:"not null;default:false"`
	Upvotes       int       `json:"upvotes" gorm:"not null;default:0"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// DoubtUpvote references exactly one of DoubtID or ResponseID.
type DoubtUpvote struct {
	ID         uint      `gorm:"primarykey" json:"id"`
	UserID     uint      `json:"user_id" gorm:"not null;uniqueIndex:idx_upvote_user_doubt;uniqueIndex:idx_upvote_user_response"`
	DoubtID    *uint     `json:"doubt_id,omitempty" gorm:"uniqueIndex:idx_upvote_user_doubt"`
	ResponseID *uint     `json:"response_id,omitempty" gorm:"uniqueIndex:idx_upvote_user_response"`
	CreatedAt  time.Time `json:"created_at"`
}
