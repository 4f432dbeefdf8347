package service

import (
	"context"
	"testing"

	"github.com/lshigami/padhoplus/internal/dto"
	"github.com/lshigami/padhoplus/internal/model"
	"github.com/lshigami/padhoplus/internal/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPracticeFixture(t *testing.T) (*memStore, PracticeService, *recordingProgress, *model.Subject, *model.Topic) {
	t.Helper()
	store := newMemStore()
	progress := newRecordingProgress()
	subject := store.addSubject("Chemistry")
	topic := store.addTopic(subject.ID, "Bonding")
	for i := 0; i < 3; i++ {
		store.addQuestion(subject.ID, topic, "A")
	}
	store.addQuestion(subject.ID, nil, "B")
	svc := NewPracticeService(fakePracticeRepo{store}, fakeQuestionRepo{store}, fakeSubjectRepo{store}, progress)
	return store, svc, progress, subject, topic
}

func TestPracticeStartPicksQuestions(t *testing.T) {
	store, svc, _, subject, topic := newPracticeFixture(t)
	ctx := context.Background()
	student := principal(store.addUser(policy.RoleStudent, "s"))

	session, err := svc.Start(ctx, student, dto.PracticeStartDTO{SubjectID: subject.ID, TopicID: &topic.ID, Count: 2})
	require.NoError(t, err)
	assert.Equal(t, model.PracticeModeTopicWise, session.Mode)
	assert.Equal(t, 2, session.TotalQuestions)
	assert.Len(t, session.Questions, 2)
	for _, q := range session.Questions {
		assert.Nil(t, q.CorrectAnswer)
	}

	session, err = svc.Start(ctx, student, dto.PracticeStartDTO{SubjectID: subject.ID})
	require.NoError(t, err)
	assert.Equal(t, model.PracticeModeSubjectWise, session.Mode)
	assert.Equal(t, 4, session.TotalQuestions, "default count is capped by what exists")
}

func TestPracticeStartRejections(t *testing.T) {
	store, svc, _, subject, _ := newPracticeFixture(t)
	ctx := context.Background()
	student := principal(store.addUser(policy.RoleStudent, "s"))

	_, err := svc.Start(ctx, principal(store.addUser(policy.RoleParent, "p")), dto.PracticeStartDTO{SubjectID: subject.ID})
	assert.ErrorIs(t, err, ErrForbidden)

	other := store.addSubject("Biology")
	foreign := store.addTopic(other.ID, "Cells")
	_, err = svc.Start(ctx, student, dto.PracticeStartDTO{SubjectID: subject.ID, TopicID: &foreign.ID})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Start(ctx, student, dto.PracticeStartDTO{SubjectID: other.ID})
	assert.ErrorIs(t, err, ErrInvalidInput, "no questions to practice")

	_, err = svc.Start(ctx, student, dto.PracticeStartDTO{SubjectID: 999})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPracticeComplete(t *testing.T) {
	store, svc, progress, subject, _ := newPracticeFixture(t)
	ctx := context.Background()
	student := principal(store.addUser(policy.RoleStudent, "s"))
	intruder := principal(store.addUser(policy.RoleStudent, "x"))

	session, err := svc.Start(ctx, student, dto.PracticeStartDTO{SubjectID: subject.ID, Count: 3})
	require.NoError(t, err)

	_, err = svc.Complete(ctx, intruder, session.ID, dto.PracticeCompleteDTO{CorrectCount: 1})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Complete(ctx, student, session.ID, dto.PracticeCompleteDTO{CorrectCount: 3, IncorrectCount: 1})
	assert.ErrorIs(t, err, ErrInvalidInput)

	done, err := svc.Complete(ctx, student, session.ID, dto.PracticeCompleteDTO{CorrectCount: 2, IncorrectCount: 1, TimeTakenSeconds: 180})
	require.NoError(t, err)
	assert.True(t, done.IsCompleted)
	assert.NotNil(t, done.CompletedAt)
	assert.Equal(t, 66.67, done.Accuracy)
	assert.Equal(t, []model.ActivityDelta{{QuestionsPracticed: 3, TimeSpentMinutes: 3}}, progress.deltas[student.UserID])

	_, err = svc.Complete(ctx, student, session.ID, dto.PracticeCompleteDTO{})
	assert.ErrorIs(t, err, ErrInvalidState)

	sessions, err := svc.List(ctx, student)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Empty(t, sessions[0].Questions)

	got, err := svc.Get(ctx, student, session.ID)
	require.NoError(t, err)
	assert.Len(t, got.Questions, 3)
}
