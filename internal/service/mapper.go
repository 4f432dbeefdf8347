package service

import (
	"github.com/jinzhu/copier"
	"github.com/lshigami/padhoplus/internal/dto"
	"github.com/lshigami/padhoplus/internal/model"
	"github.com/lshigami/padhoplus/internal/scoring"
	"github.com/rs/zerolog/log"
)

func copyInto(to, from any) {
	if err := copier.Copy(to, from); err != nil {
		log.Error().Err(err).Msgf("Failed to copy %T into %T", from, to)
	}
}

func toUserDTO(u model.User) dto.UserDTO {
	var out dto.UserDTO
	copyInto(&out, &u)
	out.Role = string(u.Role)
	return out
}

// toQuestionDTO hides the answer key unless reveal is set.
func toQuestionDTO(q model.Question, reveal bool) dto.QuestionDTO {
	var out dto.QuestionDTO
	copyInto(&out, &q)
	out.CorrectAnswer = nil
	out.Explanation = nil
	if reveal {
		answer, explanation := q.CorrectAnswer, q.Explanation
		out.CorrectAnswer = &answer
		if explanation != "" {
			out.Explanation = &explanation
		}
	}
	return out
}

func toQuestionDTOs(questions []model.Question, reveal bool) []dto.QuestionDTO {
	out := make([]dto.QuestionDTO, len(questions))
	for i, q := range questions {
		out[i] = toQuestionDTO(q, reveal)
	}
	return out
}

func toTestSummaryDTO(t model.Test, questionCount int) dto.TestSummaryDTO {
	var out dto.TestSummaryDTO
	t.Questions = nil
	copyInto(&out, &t)
	out.Status = string(t.Status)
	out.QuestionCount = questionCount
	return out
}

func toResponseDTO(r model.TestResponse, reveal bool) dto.ResponseDTO {
	out := dto.ResponseDTO{
		ID:                r.ID,
		QuestionID:        r.QuestionID,
		SelectedAnswer:    r.SelectedAnswer,
		TimeSpentSeconds:  r.TimeSpentSeconds,
		IsMarkedForReview: r.IsMarkedForReview,
	}
	if reveal {
		out.IsCorrect = r.IsCorrect
		out.MarksObtained = r.MarksObtained
	}
	if r.Question.ID != 0 {
		q := toQuestionDTO(r.Question, reveal)
		out.Question = &q
	}
	return out
}

// toAttemptDTO maps an attempt. Responses are included when loaded, with
// grading and the answer key only once the attempt is submitted or the
// caller is staff.
func toAttemptDTO(a model.TestAttempt, converter ScoreConverterService, revealToStaff bool) dto.AttemptDTO {
	responses := a.Responses
	a.Responses = nil

	var out dto.AttemptDTO
	copyInto(&out, &a)
	out.Status = string(a.Status)
	out.TestTitle = a.Test.Title
	if a.Student.ID != 0 {
		out.StudentName = a.Student.FullName()
	}
	if a.Status == model.AttemptSubmitted && a.Test.ID != 0 {
		summary := converter.Summarize(a.Score, a.Test.TotalMarks, a.Test.PassingMarks)
		out.Percentage = summary.Percentage
		out.Passed = summary.Passed
	}

	reveal := revealToStaff || a.Status == model.AttemptSubmitted
	if len(responses) > 0 {
		out.Responses = make([]dto.ResponseDTO, len(responses))
		for i, r := range responses {
			out.Responses[i] = toResponseDTO(r, reveal)
		}
	}
	return out
}

func toTopicAnalysisDTOs(stats []scoring.TopicStats) []dto.TopicAnalysisDTO {
	out := make([]dto.TopicAnalysisDTO, len(stats))
	for i, s := range stats {
		out[i] = dto.TopicAnalysisDTO(s)
	}
	return out
}

func toPracticeSessionDTO(s model.PracticeSession, withQuestions bool) dto.PracticeSessionDTO {
	questions := s.Questions
	s.Questions = nil

	var out dto.PracticeSessionDTO
	copyInto(&out, &s)
	out.SubjectName = s.Subject.Name
	out.Accuracy = scoring.Accuracy(s.CorrectCount, s.IncorrectCount)
	if withQuestions {
		out.Questions = toQuestionDTOs(questions, false)
	}
	return out
}

func toPaymentDTO(p model.Payment) dto.PaymentDTO {
	var out dto.PaymentDTO
	copyInto(&out, &p)
	out.Status = string(p.Status)
	out.BatchName = p.Batch.Name
	return out
}

func toDoubtResponseDTO(r model.DoubtResponse) dto.DoubtResponseDTO {
	var out dto.DoubtResponseDTO
	copyInto(&out, &r)
	if r.Responder.ID != 0 {
		out.ResponderName = r.Responder.FullName()
	}
	return out
}

func toDoubtDTO(d model.Doubt) dto.DoubtDTO {
	responses := d.Responses
	d.Responses = nil

	var out dto.DoubtDTO
	copyInto(&out, &d)
	out.Status = string(d.Status)
	if d.Student.ID != 0 {
		out.StudentName = d.Student.FullName()
	}
	out.SubjectName = d.Subject.Name
	for _, r := range responses {
		out.Responses = append(out.Responses, toDoubtResponseDTO(r))
	}
	return out
}

func toAchievementDTO(a model.Achievement) dto.AchievementDTO {
	var out dto.AchievementDTO
	copyInto(&out, &a)
	return out
}

func toUserAchievementDTO(ua model.UserAchievement) dto.UserAchievementDTO {
	return dto.UserAchievementDTO{
		Achievement: toAchievementDTO(ua.Achievement),
		EarnedAt:    ua.EarnedAt,
	}
}

func toStreakDTO(s model.Streak) dto.StreakDTO {
	var out dto.StreakDTO
	copyInto(&out, &s)
	return out
}
