package dto

import "time"

// QuestionDTO is the public view of a question. The correct answer and
// explanation are only set for staff or after the attempt is submitted.
type QuestionDTO struct {
	ID            uint     `json:"id"`
	SubjectID     uint     `json:"subject_id"`
	TopicID       *uint    `json:"topic_id,omitempty"`
	Text          string   `json:"question_text"`
	Type          string   `json:"question_type"`
	ImagePath     *string  `json:"image_path,omitempty"`
	OptionA       *string  `json:"option_a,omitempty"`
	OptionB       *string  `json:"option_b,omitempty"`
	OptionC       *string  `json:"option_c,omitempty"`
	OptionD       *string  `json:"option_d,omitempty"`
	Difficulty    string   `json:"difficulty"`
	Marks         float64  `json:"marks"`
	NegativeMarks float64  `json:"negative_marks"`
	CorrectAnswer *string  `json:"correct_answer,omitempty"`
	Explanation   *string  `json:"explanation,omitempty"`
}

type TestSummaryDTO struct {
	ID              uint       `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	TestType        string     `json:"test_type"`
	BatchID         uint       `json:"batch_id"`
	Status          string     `json:"status"`
	DurationMinutes int        `json:"duration_minutes"`
	TotalMarks      float64    `json:"total_marks"`
	QuestionCount   int        `json:"question_count"`
	StartTime       *time.Time `json:"start_time,omitempty"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	IsFree          bool       `json:"is_free"`
}

type TestDetailDTO struct {
	TestSummaryDTO
	PassingMarks float64       `json:"passing_marks"`
	BatchName    string        `json:"batch_name,omitempty"`
	SubjectName  string        `json:"subject_name,omitempty"`
	Questions    []QuestionDTO `json:"questions"`
}

type ResponseDTO struct {
	ID                uint         `json:"id"`
	QuestionID        uint         `json:"question_id"`
	Question          *QuestionDTO `json:"question,omitempty"`
	SelectedAnswer    *string      `json:"selected_answer,omitempty"`
	IsCorrect         bool         `json:"is_correct"`
	MarksObtained     float64      `json:"marks_obtained"`
	TimeSpentSeconds  int          `json:"time_spent_seconds"`
	IsMarkedForReview bool         `json:"is_marked_for_review"`
}

type AttemptDTO struct {
	ID               uint          `json:"id"`
	TestID           uint          `json:"test_id"`
	TestTitle        string        `json:"test_title,omitempty"`
	StudentID        uint          `json:"student_id"`
	StudentName      string        `json:"student_name,omitempty"`
	Status           string        `json:"status"`
	Score            float64       `json:"score"`
	Percentage       float64       `json:"percentage"`
	Passed           bool          `json:"passed"`
	CorrectCount     int           `json:"correct_count"`
	IncorrectCount   int           `json:"incorrect_count"`
	UnattemptedCount int           `json:"unattempted_count"`
	TimeTakenSeconds int           `json:"time_taken_seconds"`
	Rank             *int          `json:"rank,omitempty"`
	Percentile       *float64      `json:"percentile,omitempty"`
	StartedAt        time.Time     `json:"started_at"`
	SubmittedAt      *time.Time    `json:"submitted_at,omitempty"`
	Responses        []ResponseDTO `json:"responses,omitempty"`
}

type TopicAnalysisDTO struct {
	Topic       string `json:"topic"`
	Correct     int    `json:"correct"`
	Incorrect   int    `json:"incorrect"`
	Unattempted int    `json:"unattempted"`
}

type AttemptAnalysisDTO struct {
	Attempt         AttemptDTO         `json:"attempt"`
	TotalSubmitted  int                `json:"total_submitted"`
	TopicBreakdown  []TopicAnalysisDTO `json:"topic_analysis"`
	AccuracyPercent float64            `json:"accuracy"`
}

type LeaderboardEntryDTO struct {
	Rank             int     `json:"rank"`
	AttemptID        uint    `json:"attempt_id"`
	StudentID        uint    `json:"student_id"`
	StudentName      string  `json:"student_name"`
	Score            float64 `json:"score"`
	TimeTakenSeconds int     `json:"time_taken_seconds"`
}

type LeaderboardDTO struct {
	TestID  uint                  `json:"test_id"`
	Source  string                `json:"source"`
	Entries []LeaderboardEntryDTO `json:"entries"`
}
