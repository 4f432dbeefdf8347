package service

import (
	"context"
	"testing"
	"time"

	"github.com/lshigami/padhoplus/internal/dto"
	"github.com/lshigami/padhoplus/internal/model"
	"github.com/lshigami/padhoplus/internal/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCatalogFixture(t *testing.T) (*memStore, CatalogService) {
	t.Helper()
	store := newMemStore()
	svc := NewCatalogService(fakeSubjectRepo{store}, fakeBatchRepo{store}, fakeEnrollmentRepo{store}, fakeQuestionRepo{store}, fakeTestRepo{store})
	return store, svc
}

func TestCreateSubjectAndTopic(t *testing.T) {
	_, svc := newCatalogFixture(t)
	ctx := context.Background()

	subject, err := svc.CreateSubject(ctx, dto.SubjectCreateDTO{Name: "Physics", Slug: "PHYSICS"})
	require.NoError(t, err)
	assert.Equal(t, "physics", subject.Slug)

	_, err = svc.CreateSubject(ctx, dto.SubjectCreateDTO{Name: "Physics again", Slug: "physics"})
	assert.ErrorIs(t, err, ErrConflict)

	topic, err := svc.CreateTopic(ctx, subject.ID, dto.TopicCreateDTO{Name: "Optics", Slug: "optics"})
	require.NoError(t, err)
	assert.Equal(t, subject.ID, topic.SubjectID)

	_, err = svc.CreateTopic(ctx, 999, dto.TopicCreateDTO{Name: "x", Slug: "x"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateBatch(t *testing.T) {
	_, svc := newCatalogFixture(t)
	ctx := context.Background()

	discount := 4999.0
	batch, err := svc.CreateBatch(ctx, dto.BatchCreateDTO{
		Name:            "JEE 2027",
		Slug:            "jee-2027",
		Price:           7999,
		DiscountedPrice: &discount,
		Features:        []string{"live classes", "mock tests"},
	})
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusUpcoming, batch.Status)
	assert.Equal(t, 4999.0, batch.EffectivePrice())
	assert.JSONEq(t, `["live classes","mock tests"]`, string(batch.Features))

	free, err := svc.CreateBatch(ctx, dto.BatchCreateDTO{Name: "Crash", Slug: "crash"})
	require.NoError(t, err)
	assert.True(t, free.IsFree, "zero price implies free")

	tooHigh := 9000.0
	_, err = svc.CreateBatch(ctx, dto.BatchCreateDTO{Name: "Bad", Slug: "bad", Price: 100, DiscountedPrice: &tooHigh})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestEnrollFree(t *testing.T) {
	store, svc := newCatalogFixture(t)
	ctx := context.Background()
	student := principal(store.addUser(policy.RoleStudent, "s"))
	free := store.addBatch(0, true)
	paid := store.addBatch(999, false)

	enrollment, err := svc.EnrollFree(ctx, student, free.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EnrollmentActive, enrollment.Status)

	mine, err := svc.MyEnrollments(ctx, student)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	_, err = svc.EnrollFree(ctx, student, paid.ID)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.EnrollFree(ctx, principal(store.addUser(policy.RoleTeacher, "t")), free.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.EnrollFree(ctx, student, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateQuestionValidatesAnswer(t *testing.T) {
	store, svc := newCatalogFixture(t)
	ctx := context.Background()
	teacher := principal(store.addUser(policy.RoleTeacher, "t"))
	subject := store.addSubject("Maths")
	other := store.addSubject("Biology")
	foreign := store.addTopic(other.ID, "Cells")

	q, err := svc.CreateQuestion(ctx, teacher, dto.QuestionCreateDTO{SubjectID: subject.ID, Text: "2+2?", CorrectAnswer: " b "})
	require.NoError(t, err)
	require.NotNil(t, q.CorrectAnswer)
	assert.Equal(t, "B", *q.CorrectAnswer)
	assert.Equal(t, model.QuestionTypeMCQ, q.Type)
	assert.Equal(t, 4.0, q.Marks)
	assert.Equal(t, 1.0, q.NegativeMarks)

	_, err = svc.CreateQuestion(ctx, teacher, dto.QuestionCreateDTO{SubjectID: subject.ID, Text: "x", CorrectAnswer: "E"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	numeric, err := svc.CreateQuestion(ctx, teacher, dto.QuestionCreateDTO{SubjectID: subject.ID, Text: "pi?", Type: model.QuestionTypeNumerical, CorrectAnswer: "3.14"})
	require.NoError(t, err)
	assert.Equal(t, "3.14", *numeric.CorrectAnswer)

	_, err = svc.CreateQuestion(ctx, teacher, dto.QuestionCreateDTO{SubjectID: subject.ID, TopicID: &foreign.ID, Text: "x", CorrectAnswer: "A"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.CreateQuestion(ctx, teacher, dto.QuestionCreateDTO{SubjectID: 999, Text: "x", CorrectAnswer: "A"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateTestAndAttach(t *testing.T) {
	store, svc := newCatalogFixture(t)
	ctx := context.Background()
	owner := principal(store.addUser(policy.RoleTeacher, "owner"))
	rival := principal(store.addUser(policy.RoleTeacher, "rival"))
	admin := principal(store.addUser(policy.RoleAdmin, "admin"))
	subject := store.addSubject("Physics")
	q1 := store.addQuestion(subject.ID, nil, "A")
	q2 := store.addQuestion(subject.ID, nil, "B")
	batch := store.addBatch(0, true)

	detail, err := svc.CreateTest(ctx, owner, dto.TestCreateDTO{Title: "Mock 1", BatchID: batch.ID, QuestionIDs: []uint{q1.ID, q1.ID}})
	require.NoError(t, err)
	assert.Equal(t, string(model.TestStatusDraft), detail.Status)
	assert.Equal(t, 60, detail.DurationMinutes)
	assert.Equal(t, 1, detail.QuestionCount, "duplicate ids collapse")
	assert.Equal(t, 4.0, detail.TotalMarks)
	assert.Equal(t, batch.Name, detail.BatchName)

	_, err = svc.AttachQuestions(ctx, rival, detail.ID, dto.AttachQuestionsDTO{QuestionIDs: []uint{q2.ID}})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.AttachQuestions(ctx, owner, detail.ID, dto.AttachQuestionsDTO{QuestionIDs: []uint{q2.ID, 999}})
	assert.ErrorIs(t, err, ErrInvalidInput)

	summary, err := svc.AttachQuestions(ctx, owner, detail.ID, dto.AttachQuestionsDTO{QuestionIDs: []uint{q2.ID}})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.QuestionCount)
	assert.Equal(t, 8.0, summary.TotalMarks)

	live, err := svc.UpdateTestStatus(ctx, admin, detail.ID, dto.TestStatusDTO{Status: "live"})
	require.NoError(t, err)
	assert.Equal(t, string(model.TestStatusLive), live.Status)

	_, err = svc.AttachQuestions(ctx, owner, detail.ID, dto.AttachQuestionsDTO{QuestionIDs: []uint{q1.ID}})
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestCreateTestRejectsBadWindow(t *testing.T) {
	store, svc := newCatalogFixture(t)
	owner := principal(store.addUser(policy.RoleTeacher, "owner"))
	batch := store.addBatch(0, true)
	start := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(-time.Hour)

	_, err := svc.CreateTest(context.Background(), owner, dto.TestCreateDTO{Title: "t", BatchID: batch.ID, StartTime: &start, EndTime: &end})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.CreateTest(context.Background(), owner, dto.TestCreateDTO{Title: "t", BatchID: 999})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateTestStatusRules(t *testing.T) {
	store, svc := newCatalogFixture(t)
	ctx := context.Background()
	owner := principal(store.addUser(policy.RoleTeacher, "owner"))
	batch := store.addBatch(0, true)

	empty, err := svc.CreateTest(ctx, owner, dto.TestCreateDTO{Title: "empty", BatchID: batch.ID})
	require.NoError(t, err)

	_, err = svc.UpdateTestStatus(ctx, owner, empty.ID, dto.TestStatusDTO{Status: "live"})
	assert.ErrorIs(t, err, ErrInvalidState, "no questions")

	_, err = svc.UpdateTestStatus(ctx, owner, empty.ID, dto.TestStatusDTO{Status: "archived"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	q := store.addQuestion(store.addSubject("s").ID, nil, "A")
	_, err = svc.AttachQuestions(ctx, owner, empty.ID, dto.AttachQuestionsDTO{QuestionIDs: []uint{q.ID}})
	require.NoError(t, err)

	_, err = svc.UpdateTestStatus(ctx, owner, empty.ID, dto.TestStatusDTO{Status: "scheduled"})
	assert.ErrorIs(t, err, ErrInvalidState, "scheduled without start time")

	done, err := svc.UpdateTestStatus(ctx, owner, empty.ID, dto.TestStatusDTO{Status: "completed"})
	require.NoError(t, err)
	assert.Equal(t, "completed", done.Status)

	_, err = svc.UpdateTestStatus(ctx, owner, 999, dto.TestStatusDTO{Status: "live"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserTestScoping(t *testing.T) {
	store := newMemStore()
	svc := NewUserTestService(fakeTestRepo{store}, fakeEnrollmentRepo{store}, fakeUserRepo{store})
	ctx := context.Background()

	subject := store.addSubject("Physics")
	q := store.addQuestion(subject.ID, nil, "A")
	enrolledBatch := store.addBatch(0, true)
	otherBatch := store.addBatch(0, true)
	live := store.addTest(enrolledBatch.ID, model.TestStatusLive, q)
	draft := store.addTest(enrolledBatch.ID, model.TestStatusDraft, q)
	elsewhere := store.addTest(otherBatch.ID, model.TestStatusLive, q)

	student := store.addUser(policy.RoleStudent, "s")
	store.enroll(student.ID, enrolledBatch.ID)
	parent := store.addUser(policy.RoleParent, "p")
	student.ParentID = &parent.ID
	admin := principal(store.addUser(policy.RoleAdmin, "a"))

	tests, err := svc.ListTests(ctx, principal(student), dto.ListTestsQuery{})
	require.NoError(t, err)
	require.Len(t, tests, 1)
	assert.Equal(t, live.ID, tests[0].ID)
	assert.Equal(t, 1, tests[0].QuestionCount)

	tests, err = svc.ListTests(ctx, principal(parent), dto.ListTestsQuery{})
	require.NoError(t, err)
	assert.Len(t, tests, 1, "parents see their children's batches")

	tests, err = svc.ListTests(ctx, admin, dto.ListTestsQuery{})
	require.NoError(t, err)
	assert.Len(t, tests, 3)

	detail, err := svc.GetTestDetails(ctx, principal(student), live.ID)
	require.NoError(t, err)
	require.Len(t, detail.Questions, 1)
	assert.Nil(t, detail.Questions[0].CorrectAnswer)

	for _, hidden := range []uint{draft.ID, elsewhere.ID, 999} {
		_, err = svc.GetTestDetails(ctx, principal(student), hidden)
		assert.ErrorIs(t, err, ErrNotFound)
	}

	detail, err = svc.GetTestDetails(ctx, admin, draft.ID)
	require.NoError(t, err)
	assert.Equal(t, string(model.TestStatusDraft), detail.Status)
}
