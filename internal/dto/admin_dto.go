package dto

import "time"

type SubjectCreateDTO struct {
	Name        string `json:"name" binding:"required,max=100"`
	Slug        string `json:"slug" binding:"required,max=100"`
	Description string `json:"description"`
}

type TopicCreateDTO struct {
	Name string `json:"name" binding:"required,max=200"`
	Slug string `json:"slug" binding:"required,max=200"`
}

type BatchCreateDTO struct {
	Name            string     `json:"name" binding:"required,max=200"`
	Slug            string     `json:"slug" binding:"required,max=200"`
	Description     string     `json:"description"`
	TargetExam      string     `json:"target_exam" binding:"max=50"`
	Price           float64    `json:"price" binding:"min=0"`
	DiscountedPrice *float64   `json:"discounted_price" binding:"omitempty,min=0"`
	IsFree          bool       `json:"is_free"`
	Features        []string   `json:"features"`
	FacultyID       *uint      `json:"faculty_id"`
	Status          string     `json:"status" binding:"omitempty,oneof=upcoming active completed"`
	StartDate       *time.Time `json:"start_date"`
}

// QuestionCreateDTO is used by teachers and admins to add a question to the bank.
type QuestionCreateDTO struct {
	SubjectID     uint     `json:"subject_id" binding:"required"`
	TopicID       *uint    `json:"topic_id"`
	Text          string   `json:"question_text" binding:"required"`
	Type          string   `json:"question_type" binding:"omitempty,oneof=mcq numerical"`
	ImagePath     *string  `json:"image_path"`
	OptionA       *string  `json:"option_a"`
	OptionB       *string  `json:"option_b"`
	OptionC       *string  `json:"option_c"`
	OptionD       *string  `json:"option_d"`
	CorrectAnswer string   `json:"correct_answer" binding:"required,answer_option"`
	Explanation   string   `json:"explanation"`
	Difficulty    string   `json:"difficulty" binding:"omitempty,oneof=easy medium hard"`
	Marks         *float64 `json:"marks" binding:"omitempty,gt=0"`
	NegativeMarks *float64 `json:"negative_marks" binding:"omitempty,min=0"`
}

// TestCreateDTO creates a test, optionally linking existing questions.
type TestCreateDTO struct {
	Title           string     `json:"title" binding:"required,max=200"`
	Description     string     `json:"description,omitempty"`
	TestType        string     `json:"test_type" binding:"omitempty,oneof=mock chapter full_length practice"`
	BatchID         uint       `json:"batch_id" binding:"required"`
	SubjectID       *uint      `json:"subject_id"`
	DurationMinutes int        `json:"duration_minutes" binding:"omitempty,min=1"`
	PassingMarks    float64    `json:"passing_marks" binding:"min=0"`
	StartTime       *time.Time `json:"start_time"`
	EndTime         *time.Time `json:"end_time"`
	IsFree          bool       `json:"is_free"`
	QuestionIDs     []uint     `json:"question_ids"`
}

type AttachQuestionsDTO struct {
	QuestionIDs []uint `json:"question_ids" binding:"required,min=1"`
}

type TestStatusDTO struct {
	Status string `json:"status" binding:"required,oneof=draft scheduled live completed"`
}
