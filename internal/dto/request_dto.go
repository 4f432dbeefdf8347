package dto

type RegisterDTO struct {
	Username   string  `json:"username" binding:"required,min=3,max=150"`
	Email      string  `json:"email" binding:"required,email"`
	Password   string  `json:"password" binding:"required,min=8,max=72"`
	FirstName  string  `json:"first_name" binding:"max=150"`
	LastName   string  `json:"last_name" binding:"max=150"`
	Role       string  `json:"role" binding:"omitempty,oneof=student teacher parent"`
	ParentID   *uint   `json:"parent_id"`
	Phone      *string `json:"phone" binding:"omitempty,max=15"`
	TargetExam *string `json:"target_exam" binding:"omitempty,max=50"`
}

type LoginDTO struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// SaveResponseDTO records or overwrites the answer to one question of a started attempt.
type SaveResponseDTO struct {
	QuestionID        uint    `json:"question_id" binding:"required"`
	SelectedAnswer    *string `json:"selected_answer" binding:"omitempty,answer_option"`
	TimeSpentSeconds  int     `json:"time_spent_seconds" binding:"min=0"`
	IsMarkedForReview bool    `json:"is_marked_for_review"`
}

type SubmitAttemptDTO struct {
	TimeTakenSeconds int `json:"time_taken_seconds" binding:"min=0"`
}

type ListTestsQuery struct {
	Batch    string `form:"batch"`
	Status   string `form:"status" binding:"omitempty,oneof=draft scheduled live completed"`
	TestType string `form:"test_type" binding:"omitempty,oneof=mock chapter full_length practice"`
}

type ListAttemptsQuery struct {
	TestID uint `form:"test_id"`
}

type LeaderboardQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=50"`
}

type QuestionListQuery struct {
	SubjectID  uint   `form:"subject_id"`
	TopicID    *uint  `form:"topic_id"`
	Difficulty string `form:"difficulty" binding:"omitempty,oneof=easy medium hard"`
}

type BatchListQuery struct {
	TargetExam string `form:"target_exam"`
	IsFree     *bool  `form:"is_free"`
	Status     string `form:"status" binding:"omitempty,oneof=upcoming active completed"`
}
