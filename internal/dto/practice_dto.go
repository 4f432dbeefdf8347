package dto

import "time"

type PracticeStartDTO struct {
	SubjectID  uint   `json:"subject_id" binding:"required"`
	TopicID    *uint  `json:"topic_id"`
	Mode       string `json:"mode" binding:"omitempty,oneof=topic_wise subject_wise random weak_areas"`
	Difficulty string `json:"difficulty" binding:"omitempty,oneof=easy medium hard"`
	Count      int    `json:"count" binding:"omitempty,min=1,max=100"`
}

// PracticeCompleteDTO carries the counts the client observed.
type PracticeCompleteDTO struct {
	CorrectCount     int `json:"correct_count" binding:"min=0"`
	IncorrectCount   int `json:"incorrect_count" binding:"min=0"`
	TimeTakenSeconds int `json:"time_taken_seconds" binding:"min=0"`
}

type PracticeSessionDTO struct {
	ID               uint          `json:"id"`
	SubjectID        uint          `json:"subject_id"`
	SubjectName      string        `json:"subject_name,omitempty"`
	TopicID          *uint         `json:"topic_id,omitempty"`
	Mode             string        `json:"mode"`
	TotalQuestions   int           `json:"total_questions"`
	CorrectCount     int           `json:"correct_count"`
	IncorrectCount   int           `json:"incorrect_count"`
	Accuracy         float64       `json:"accuracy"`
	TimeTakenSeconds int           `json:"time_taken_seconds"`
	IsCompleted      bool          `json:"is_completed"`
	StartedAt        time.Time     `json:"started_at"`
	CompletedAt      *time.Time    `json:"completed_at,omitempty"`
	Questions        []QuestionDTO `json:"questions,omitempty"`
}
