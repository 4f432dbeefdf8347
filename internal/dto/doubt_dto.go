package dto

import "time"

type DoubtCreateDTO struct {
	SubjectID   uint    `json:"subject_id" binding:"required"`
	TopicID     *uint   `json:"topic_id"`
	QuestionID  *uint   `json:"question_id"`
	Title       string  `json:"title" binding:"required,max=200"`
	Description string  `json:"description" binding:"required"`
	ImagePath   *string `json:"image_path"`
	Priority    string  `json:"priority" binding:"omitempty,oneof=low medium high"`
	IsPublic    *bool   `json:"is_public"`
}

type DoubtListQuery struct {
	Subject string `form:"subject"`
	Status  string `form:"status" binding:"omitempty,oneof=pending in_progress answered closed"`
	Search  string `form:"search"`
	Mine    bool   `form:"mine"`
}

type DoubtRespondDTO struct {
	Content   string  `json:"content" binding:"required"`
	ImagePath *string `json:"image_path"`
}

type DoubtAssignDTO struct {
	AssigneeID uint `json:"assignee_id" binding:"required"`
}

type DoubtResponseDTO struct {
	ID            uint      `json:"id"`
	DoubtID       uint      `json:"doubt_id"`
	ResponderID   uint      `json:"responder_id"`
	ResponderName string    `json:"responder_name,omitempty"`
	Content       string    `json:"content"`
	ImagePath     *string   `json:"image_path,omitempty"`
	IsAccepted    bool      `json:"is_accepted"`
	IsAIGenerated bool      `json:"is_ai_generated"`
	Upvotes       int       `json:"upvotes"`
	CreatedAt     time.Time `json:"created_at"`
}

type DoubtDTO struct {
	ID           uint               `json:"id"`
	StudentID    uint               `json:"student_id"`
	StudentName  string             `json:"student_name,omitempty"`
	SubjectID    uint               `json:"subject_id"`
	SubjectName  string             `json:"subject_name,omitempty"`
	TopicID      *uint              `json:"topic_id,omitempty"`
	Title        string             `json:"title"`
	Description  string             `json:"description"`
	Status       string             `json:"status"`
	Priority     string             `json:"priority"`
	AssignedToID *uint              `json:"assigned_to_id,omitempty"`
	IsPublic     bool               `json:"is_public"`
	IsResolved   bool               `json:"is_resolved"`
	ViewsCount   int                `json:"views_count"`
	Upvotes      int                `json:"upvotes"`
	ResolvedAt   *time.Time         `json:"resolved_at,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	Responses    []DoubtResponseDTO `json:"responses,omitempty"`
}

type UpvoteResultDTO struct {
	Upvoted bool `json:"upvoted"`
	Upvotes int  `json:"upvotes"`
}
