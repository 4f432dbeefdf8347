package scoring

import (
	"testing"
	"time"

	"github.com/lshigami/padhoplus/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strp(s string) *string { return &s }

func question(id uint, correct string) model.Question {
	return model.Question{ID: id, CorrectAnswer: correct, Marks: 4, NegativeMarks: 1}
}

func TestGradeCaseInsensitive(t *testing.T) {
	qs := map[uint]model.Question{1: question(1, "B")}
	res := Grade([]model.TestResponse{{QuestionID: 1, SelectedAnswer: strp("b")}}, qs, 1)

	assert.Equal(t, 1, res.Correct)
	assert.True(t, res.Responses[0].IsCorrect)
	assert.Equal(t, 4.0, res.Responses[0].MarksObtained)
}

func TestGradeMixedAnswers(t *testing.T) {
	qs := map[uint]model.Question{1: question(1, "A"), 2: question(2, "C")}
	res := Grade([]model.TestResponse{
		{QuestionID: 1, SelectedAnswer: strp("A")},
		{QuestionID: 2, SelectedAnswer: strp("D")},
	}, qs, 2)

	assert.Equal(t, 3.0, res.Score)
	assert.Equal(t, 1, res.Correct)
	assert.Equal(t, 1, res.Incorrect)
	assert.Equal(t, 0, res.Unattempted)
	assert.Equal(t, -1.0, res.Responses[1].MarksObtained)
}

func TestGradeUnattemptedAndCountsSum(t *testing.T) {
	qs := map[uint]model.Question{1: question(1, "A"), 2: question(2, "B"), 3: question(3, "C"), 4: question(4, "D")}
	res := Grade([]model.TestResponse{
		{QuestionID: 1, SelectedAnswer: strp("a")},
		{QuestionID: 2, SelectedAnswer: nil},
		{QuestionID: 3, SelectedAnswer: strp("  ")},
	}, qs, 4)

	assert.Equal(t, 1, res.Correct)
	assert.Equal(t, 0, res.Incorrect)
	assert.Equal(t, 3, res.Unattempted)
	assert.Equal(t, 4, res.Correct+res.Incorrect+res.Unattempted)
	assert.False(t, res.Responses[1].IsCorrect)
	assert.Zero(t, res.Responses[2].MarksObtained)
}

func TestGradeScoreFlooredAtZero(t *testing.T) {
	qs := map[uint]model.Question{1: question(1, "A"), 2: question(2, "A")}
	res := Grade([]model.TestResponse{
		{QuestionID: 1, SelectedAnswer: strp("B")},
		{QuestionID: 2, SelectedAnswer: strp("C")},
	}, qs, 2)

	assert.Equal(t, -2.0, res.RawTotal)
	assert.Equal(t, 0.0, res.Score)
}

func TestGradeDoesNotMutateInput(t *testing.T) {
	qs := map[uint]model.Question{1: question(1, "A")}
	in := []model.TestResponse{{QuestionID: 1, SelectedAnswer: strp("A")}}
	Grade(in, qs, 1)
	assert.False(t, in[0].IsCorrect)
}

func TestRankTieBreak(t *testing.T) {
	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	entries := []Entry{
		{AttemptID: 1, Score: 90, TimeTakenSeconds: 600, SubmittedAt: base},
		{AttemptID: 2, Score: 70, TimeTakenSeconds: 100, SubmittedAt: base},
		{AttemptID: 3, Score: 90, TimeTakenSeconds: 500, SubmittedAt: base.Add(time.Minute)},
	}
	got := Rank(entries)
	require.Len(t, got, 3)

	assert.Equal(t, uint(3), got[0].AttemptID)
	assert.Equal(t, uint(1), got[1].AttemptID)
	assert.Equal(t, uint(2), got[2].AttemptID)
	assert.Equal(t, 3, got[2].Rank)
	assert.Equal(t, 0.0, got[2].Percentile)
	assert.Equal(t, 66.67, got[0].Percentile)
	assert.Equal(t, 33.33, got[1].Percentile)
}

func TestRankFullTieFallsBackToSubmissionThenID(t *testing.T) {
	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	got := Rank([]Entry{
		{AttemptID: 9, Score: 50, TimeTakenSeconds: 60, SubmittedAt: base},
		{AttemptID: 4, Score: 50, TimeTakenSeconds: 60, SubmittedAt: base},
		{AttemptID: 2, Score: 50, TimeTakenSeconds: 60, SubmittedAt: base.Add(time.Second)},
	})
	assert.Equal(t, []uint{4, 9, 2}, []uint{got[0].AttemptID, got[1].AttemptID, got[2].AttemptID})
}

func TestRankEmpty(t *testing.T) {
	assert.Empty(t, Rank(nil))
}

func TestChangedOnlyReturnsMovedRows(t *testing.T) {
	one, hundred := 1, 0.0
	attempts := []model.TestAttempt{
		{ID: 1, Score: 10, Rank: &one, Percentile: &hundred},
		{ID: 2, Score: 20},
	}
	placements := Rank([]Entry{EntryOf(attempts[0]), EntryOf(attempts[1])})
	changed := Changed(attempts, placements)

	require.Len(t, changed, 2)
	assert.Equal(t, 2, *changed[0].Rank)
	assert.Equal(t, 1, *changed[1].Rank)

	again := Changed(changed, placements)
	assert.Empty(t, again)
}

func TestAccuracy(t *testing.T) {
	assert.Equal(t, 0.0, Accuracy(0, 0))
	assert.Equal(t, 66.67, Accuracy(2, 1))
	assert.Equal(t, 100.0, Accuracy(5, 0))
}

func TestTopicBreakdown(t *testing.T) {
	algebra := &model.Topic{Name: "Algebra"}
	responses := []model.TestResponse{
		{SelectedAnswer: strp("A"), IsCorrect: true, Question: model.Question{Topic: algebra}},
		{SelectedAnswer: strp("B"), Question: model.Question{Topic: algebra}},
		{SelectedAnswer: nil, Question: model.Question{}},
	}
	got := TopicBreakdown(responses)
	require.Len(t, got, 2)
	assert.Equal(t, TopicStats{Topic: "Algebra", Correct: 1, Incorrect: 1}, got[0])
	assert.Equal(t, TopicStats{Topic: "General", Unattempted: 1}, got[1])
}
