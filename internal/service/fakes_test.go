package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/lshigami/padhoplus/internal/cache"
	"github.com/lshigami/padhoplus/internal/dto"
	"github.com/lshigami/padhoplus/internal/gateway"
	"github.com/lshigami/padhoplus/internal/model"
	"github.com/lshigami/padhoplus/internal/policy"
	"github.com/lshigami/padhoplus/internal/repository"
)

// memStore backs every fake repository. It mimics the database rules the
// services depend on: unique keys, row states and the payment state machine.
type memStore struct {
	mu sync.RWMutex

	nextID           uint
	users            map[uint]*model.User
	subjects         map[uint]*model.Subject
	topics           map[uint]*model.Topic
	batches          map[uint]*model.Batch
	enrollments      map[[2]uint]*model.Enrollment
	questions        map[uint]*model.Question
	tests            map[uint]*model.Test
	attempts         map[uint]*model.TestAttempt
	responses        map[uint]*model.TestResponse
	practice         map[uint]*model.PracticeSession
	payments         map[uint]*model.Payment
	events           []model.PaymentGatewayEvent
	doubts           map[uint]*model.Doubt
	doubtResponses   map[uint]*model.DoubtResponse
	upvotes          map[string]bool
	achievements     map[uint]*model.Achievement
	userAchievements []model.UserAchievement
	streaks          map[uint]*model.Streak
	activity         map[string]*model.DailyActivity
}

func newMemStore() *memStore {
	return &memStore{
		users:          map[uint]*model.User{},
		subjects:       map[uint]*model.Subject{},
		topics:         map[uint]*model.Topic{},
		batches:        map[uint]*model.Batch{},
		enrollments:    map[[2]uint]*model.Enrollment{},
		questions:      map[uint]*model.Question{},
		tests:          map[uint]*model.Test{},
		attempts:       map[uint]*model.TestAttempt{},
		responses:      map[uint]*model.TestResponse{},
		practice:       map[uint]*model.PracticeSession{},
		payments:       map[uint]*model.Payment{},
		doubts:         map[uint]*model.Doubt{},
		doubtResponses: map[uint]*model.DoubtResponse{},
		upvotes:        map[string]bool{},
		achievements:   map[uint]*model.Achievement{},
		streaks:        map[uint]*model.Streak{},
		activity:       map[string]*model.DailyActivity{},
	}
}

func (m *memStore) id() uint {
	m.nextID++
	return m.nextID
}

// seed helpers

func (m *memStore) addUser(role policy.Role, username string) *model.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := &model.User{ID: m.id(), Username: username, FirstName: username, Role: role}
	m.users[u.ID] = u
	return u
}

func (m *memStore) addSubject(name string) *model.Subject {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &model.Subject{ID: m.id(), Name: name, Slug: strings.ToLower(name)}
	m.subjects[s.ID] = s
	return s
}

func (m *memStore) addTopic(subjectID uint, name string) *model.Topic {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &model.Topic{ID: m.id(), SubjectID: subjectID, Name: name, Slug: strings.ToLower(name)}
	m.topics[t.ID] = t
	return t
}

func (m *memStore) addBatch(price float64, free bool) *model.Batch {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := &model.Batch{ID: m.id(), Price: price, IsFree: free, Status: model.BatchStatusActive}
	b.Name = fmt.Sprintf("batch-%d", b.ID)
	b.Slug = b.Name
	m.batches[b.ID] = b
	return b
}

func (m *memStore) enroll(studentID, batchID uint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enrollments[[2]uint{studentID, batchID}] = &model.Enrollment{ID: m.id(), StudentID: studentID, BatchID: batchID, Status: model.EnrollmentActive}
}

func (m *memStore) addQuestion(subjectID uint, topic *model.Topic, correct string) *model.Question {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := &model.Question{ID: m.id(), SubjectID: subjectID, Text: "q", Type: model.QuestionTypeMCQ, CorrectAnswer: correct, Marks: 4, NegativeMarks: 1, IsActive: true, Difficulty: "medium"}
	if topic != nil {
		q.TopicID = &topic.ID
		q.Topic = topic
	}
	m.questions[q.ID] = q
	return q
}

func (m *memStore) addTest(batchID uint, status model.TestStatus, questions ...*model.Question) *model.Test {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &model.Test{ID: m.id(), Title: "Mock", BatchID: batchID, Status: status, DurationMinutes: 60, PassingMarks: 4}
	for _, q := range questions {
		t.Questions = append(t.Questions, *q)
		t.TotalMarks += q.Marks
	}
	m.tests[t.ID] = t
	return t
}

// users

type fakeUserRepo struct{ *memStore }

func (r fakeUserRepo) Create(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == user.Username {
			return repository.ErrDuplicate
		}
	}
	user.ID = r.id()
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r fakeUserRepo) FindByID(_ context.Context, id uint) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r fakeUserRepo) FindByUsername(_ context.Context, username string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r fakeUserRepo) ChildIDs(_ context.Context, parentID uint) ([]uint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []uint
	for _, u := range r.users {
		if u.ParentID != nil && *u.ParentID == parentID {
			ids = append(ids, u.ID)
		}
	}
	return ids, nil
}

func (r fakeUserRepo) CountByRole(_ context.Context, role policy.Role) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var n int64
	for _, u := range r.users {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

// subjects

type fakeSubjectRepo struct{ *memStore }

func (r fakeSubjectRepo) Create(_ context.Context, subject *model.Subject) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.subjects {
		if s.Slug == subject.Slug {
			return repository.ErrDuplicate
		}
	}
	subject.ID = r.id()
	cp := *subject
	r.subjects[subject.ID] = &cp
	return nil
}

func (r fakeSubjectRepo) FindByID(_ context.Context, id uint) (*model.Subject, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.subjects[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (r fakeSubjectRepo) FindBySlug(_ context.Context, slug string) (*model.Subject, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.subjects {
		if s.Slug == slug {
			cp := *s
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r fakeSubjectRepo) FindAll(_ context.Context) ([]model.Subject, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.Subject
	for _, s := range r.subjects {
		out = append(out, *s)
	}
	return out, nil
}

func (r fakeSubjectRepo) CreateTopic(_ context.Context, topic *model.Topic) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	topic.ID = r.id()
	cp := *topic
	r.topics[topic.ID] = &cp
	return nil
}

func (r fakeSubjectRepo) FindTopicByID(_ context.Context, id uint) (*model.Topic, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.topics[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

// batches and enrollments

type fakeBatchRepo struct{ *memStore }

func (r fakeBatchRepo) Create(_ context.Context, batch *model.Batch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	batch.ID = r.id()
	cp := *batch
	r.batches[batch.ID] = &cp
	return nil
}

func (r fakeBatchRepo) FindByID(_ context.Context, id uint) (*model.Batch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.batches[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (r fakeBatchRepo) FindAll(_ context.Context, filter repository.BatchFilter) ([]model.Batch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.Batch
	for _, b := range r.batches {
		if filter.Status != "" && b.Status != filter.Status {
			continue
		}
		if filter.IsFree != nil && b.IsFree != *filter.IsFree {
			continue
		}
		out = append(out, *b)
	}
	return out, nil
}

func (r fakeBatchRepo) CountByStatus(_ context.Context, status string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var n int64
	for _, b := range r.batches {
		if b.Status == status {
			n++
		}
	}
	return n, nil
}

type fakeEnrollmentRepo struct{ *memStore }

func (r fakeEnrollmentRepo) Activate(_ context.Context, enrollment *model.Enrollment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activateLocked(enrollment)
	return nil
}

func (m *memStore) activateLocked(enrollment *model.Enrollment) {
	key := [2]uint{enrollment.StudentID, enrollment.BatchID}
	enrollment.Status = model.EnrollmentActive
	if existing, ok := m.enrollments[key]; ok {
		enrollment.ID = existing.ID
	} else {
		enrollment.ID = m.id()
	}
	cp := *enrollment
	m.enrollments[key] = &cp
}

func (r fakeEnrollmentRepo) IsActive(_ context.Context, studentID, batchID uint) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.enrollments[[2]uint{studentID, batchID}]
	return ok && e.Status == model.EnrollmentActive, nil
}

func (r fakeEnrollmentRepo) ActiveBatchIDs(_ context.Context, studentID uint) ([]uint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []uint
	for key, e := range r.enrollments {
		if key[0] == studentID && e.Status == model.EnrollmentActive {
			ids = append(ids, key[1])
		}
	}
	return ids, nil
}

func (r fakeEnrollmentRepo) FindActiveByStudent(_ context.Context, studentID uint) ([]model.Enrollment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.Enrollment
	for key, e := range r.enrollments {
		if key[0] == studentID && e.Status == model.EnrollmentActive {
			cp := *e
			if b, ok := r.batches[key[1]]; ok {
				cp.Batch = *b
			}
			out = append(out, cp)
		}
	}
	return out, nil
}

func (r fakeEnrollmentRepo) CountActive(_ context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var n int64
	for _, e := range r.enrollments {
		if e.Status == model.EnrollmentActive {
			n++
		}
	}
	return n, nil
}

// questions

type fakeQuestionRepo struct{ *memStore }

func (r fakeQuestionRepo) Create(_ context.Context, question *model.Question) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	question.ID = r.id()
	cp := *question
	r.questions[question.ID] = &cp
	return nil
}

func (r fakeQuestionRepo) FindByID(_ context.Context, id uint) (*model.Question, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	q, ok := r.questions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *q
	return &cp, nil
}

func (r fakeQuestionRepo) FindByIDs(_ context.Context, ids []uint) ([]model.Question, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.Question
	for _, id := range ids {
		if q, ok := r.questions[id]; ok {
			out = append(out, *q)
		}
	}
	return out, nil
}

func (r fakeQuestionRepo) FindAll(_ context.Context, filter repository.QuestionFilter) ([]model.Question, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.Question
	for _, q := range r.questions {
		if filter.SubjectID != 0 && q.SubjectID != filter.SubjectID {
			continue
		}
		if filter.TopicID != nil && (q.TopicID == nil || *q.TopicID != *filter.TopicID) {
			continue
		}
		if filter.Difficulty != "" && q.Difficulty != filter.Difficulty {
			continue
		}
		out = append(out, *q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r fakeQuestionRepo) FindRandom(ctx context.Context, filter repository.QuestionFilter, limit int) ([]model.Question, error) {
	all, _ := r.FindAll(ctx, filter)
	var out []model.Question
	for _, q := range all {
		if q.IsActive {
			out = append(out, q)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r fakeQuestionRepo) Update(_ context.Context, question *model.Question) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *question
	r.questions[question.ID] = &cp
	return nil
}

// tests

type fakeTestRepo struct{ *memStore }

func (r fakeTestRepo) Create(_ context.Context, test *model.Test) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	test.ID = r.id()
	cp := *test
	r.tests[test.ID] = &cp
	return nil
}

func (r fakeTestRepo) FindByID(_ context.Context, id uint) (*model.Test, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tests[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *t
	cp.Questions = nil
	return &cp, nil
}

func (r fakeTestRepo) FindByIDWithQuestions(_ context.Context, id uint) (*model.Test, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tests[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *t
	cp.Questions = append([]model.Question(nil), t.Questions...)
	return &cp, nil
}

func (r fakeTestRepo) FindAllWithQuestionCount(_ context.Context, filter repository.TestFilter) ([]repository.TestSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	allowed := map[uint]bool{}
	for _, id := range filter.BatchIDs {
		allowed[id] = true
	}
	var out []repository.TestSummary
	for _, t := range r.tests {
		if filter.RestrictBatches && !allowed[t.BatchID] {
			continue
		}
		if filter.ExcludeDraft && t.Status == model.TestStatusDraft {
			continue
		}
		if filter.TeacherID != 0 && (t.CreatedByID == nil || *t.CreatedByID != filter.TeacherID) {
			continue
		}
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		cp := *t
		cp.Questions = nil
		out = append(out, repository.TestSummary{Test: cp, QuestionCount: len(t.Questions)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r fakeTestRepo) QuestionCount(_ context.Context, testID uint) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tests[testID]
	if !ok {
		return 0, repository.ErrNotFound
	}
	return len(t.Questions), nil
}

func (r fakeTestRepo) AttachQuestions(_ context.Context, test *model.Test, questions []model.Question) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tests[test.ID]
	if !ok {
		return repository.ErrNotFound
	}
	seen := map[uint]bool{}
	for _, q := range t.Questions {
		seen[q.ID] = true
	}
	for _, q := range questions {
		if !seen[q.ID] {
			t.Questions = append(t.Questions, q)
			t.TotalMarks += q.Marks
		}
	}
	test.Questions = t.Questions
	test.TotalMarks = t.TotalMarks
	return nil
}

func (r fakeTestRepo) UpdateStatus(_ context.Context, id uint, status model.TestStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tests[id]
	if !ok {
		return repository.ErrNotFound
	}
	t.Status = status
	return nil
}

func (r fakeTestRepo) IsOwnedByTeacher(_ context.Context, testID, teacherID uint) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tests[testID]
	if !ok {
		return false, nil
	}
	if t.CreatedByID != nil && *t.CreatedByID == teacherID {
		return true, nil
	}
	b, ok := r.batches[t.BatchID]
	return ok && b.FacultyID != nil && *b.FacultyID == teacherID, nil
}

func (r fakeTestRepo) CountByStatus(_ context.Context, statuses ...model.TestStatus) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var n int64
	for _, t := range r.tests {
		for _, s := range statuses {
			if t.Status == s {
				n++
			}
		}
	}
	return n, nil
}

// attempts

type fakeAttemptRepo struct {
	*memStore
	commitErr error
}

func (r *fakeAttemptRepo) Create(_ context.Context, attempt *model.TestAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.attempts {
		if a.TestID == attempt.TestID && a.StudentID == attempt.StudentID {
			return repository.ErrDuplicate
		}
	}
	attempt.ID = r.id()
	cp := *attempt
	cp.Test = model.Test{}
	r.attempts[attempt.ID] = &cp
	return nil
}

func (r *fakeAttemptRepo) FindByID(_ context.Context, id uint) (*model.TestAttempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.attempts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memStore) detailsLocked(a *model.TestAttempt) model.TestAttempt {
	cp := *a
	if t, ok := m.tests[a.TestID]; ok {
		cp.Test = *t
		cp.Test.Questions = nil
	}
	if u, ok := m.users[a.StudentID]; ok {
		cp.Student = *u
	}
	cp.Responses = nil
	for _, resp := range m.responses {
		if resp.AttemptID == a.ID {
			rc := *resp
			if q, ok := m.questions[resp.QuestionID]; ok {
				rc.Question = *q
			}
			cp.Responses = append(cp.Responses, rc)
		}
	}
	sort.Slice(cp.Responses, func(i, j int) bool { return cp.Responses[i].QuestionID < cp.Responses[j].QuestionID })
	return cp
}

func (r *fakeAttemptRepo) FindByIDWithDetails(_ context.Context, id uint) (*model.TestAttempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.attempts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := r.detailsLocked(a)
	return &cp, nil
}

func (r *fakeAttemptRepo) FindByTestAndStudent(_ context.Context, testID, studentID uint) (*model.TestAttempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.attempts {
		if a.TestID == testID && a.StudentID == studentID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeAttemptRepo) TransitionStatus(_ context.Context, id uint, from, to model.AttemptStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.attempts[id]
	if !ok {
		return repository.ErrNotFound
	}
	if a.Status != from {
		return repository.ErrStateChanged
	}
	a.Status = to
	return nil
}

func (r *fakeAttemptRepo) UpsertResponse(_ context.Context, response *model.TestResponse) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.responses {
		if existing.AttemptID == response.AttemptID && existing.QuestionID == response.QuestionID {
			response.ID = existing.ID
			cp := *response
			cp.Question = model.Question{}
			r.responses[existing.ID] = &cp
			return nil
		}
	}
	response.ID = r.id()
	cp := *response
	cp.Question = model.Question{}
	r.responses[response.ID] = &cp
	return nil
}

func (r *fakeAttemptRepo) CommitSubmission(_ context.Context, attempt *model.TestAttempt, responses []model.TestResponse, rank repository.RankFunc) error {
	if r.commitErr != nil {
		return r.commitErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.attempts[attempt.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if current.Status != model.AttemptStarted {
		return repository.ErrStateChanged
	}
	for _, resp := range responses {
		if stored, ok := r.responses[resp.ID]; ok {
			stored.IsCorrect = resp.IsCorrect
			stored.MarksObtained = resp.MarksObtained
		}
	}
	current.Status = attempt.Status
	current.Score = attempt.Score
	current.CorrectCount = attempt.CorrectCount
	current.IncorrectCount = attempt.IncorrectCount
	current.UnattemptedCount = attempt.UnattemptedCount
	current.TimeTakenSeconds = attempt.TimeTakenSeconds
	current.SubmittedAt = attempt.SubmittedAt

	var submitted []model.TestAttempt
	for _, a := range r.attempts {
		if a.TestID == attempt.TestID && a.Status == model.AttemptSubmitted {
			submitted = append(submitted, *a)
		}
	}
	for _, changed := range rank(submitted) {
		stored := r.attempts[changed.ID]
		stored.Rank = changed.Rank
		stored.Percentile = changed.Percentile
	}
	return nil
}

func (r *fakeAttemptRepo) submittedLocked(testID uint) []model.TestAttempt {
	var out []model.TestAttempt
	for _, a := range r.attempts {
		if a.TestID == testID && a.Status == model.AttemptSubmitted {
			cp := *a
			if u, ok := r.users[a.StudentID]; ok {
				cp.Student = *u
			}
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ri, rj := out[i].Rank, out[j].Rank
		if ri == nil || rj == nil {
			return out[i].ID < out[j].ID
		}
		return *ri < *rj
	})
	return out
}

func (r *fakeAttemptRepo) FindSubmittedByTest(_ context.Context, testID uint, limit int) ([]model.TestAttempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := r.submittedLocked(testID)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeAttemptRepo) CountSubmitted(_ context.Context, testID uint) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.submittedLocked(testID))), nil
}

func (r *fakeAttemptRepo) FindByIDs(_ context.Context, ids []uint) ([]model.TestAttempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.TestAttempt
	for _, id := range ids {
		if a, ok := r.attempts[id]; ok {
			cp := *a
			if u, ok := r.users[a.StudentID]; ok {
				cp.Student = *u
			}
			out = append(out, cp)
		}
	}
	return out, nil
}

func (r *fakeAttemptRepo) FindScoped(_ context.Context, scope repository.AttemptScope) ([]model.TestAttempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	allowed := map[uint]bool{}
	for _, id := range scope.StudentIDs {
		allowed[id] = true
	}
	var out []model.TestAttempt
	for _, a := range r.attempts {
		if scope.RestrictStudents && !allowed[a.StudentID] {
			continue
		}
		if scope.TestID != 0 && a.TestID != scope.TestID {
			continue
		}
		if scope.TeacherID != 0 {
			t := r.tests[a.TestID]
			if t == nil || t.CreatedByID == nil || *t.CreatedByID != scope.TeacherID {
				continue
			}
		}
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeAttemptRepo) FindSubmittedByStudent(_ context.Context, studentID uint) ([]model.TestAttempt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.TestAttempt
	for _, a := range r.attempts {
		if a.StudentID == studentID && a.Status == model.AttemptSubmitted {
			out = append(out, r.detailsLocked(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

// practice

type fakePracticeRepo struct{ *memStore }

func (r fakePracticeRepo) Create(_ context.Context, session *model.PracticeSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	session.ID = r.id()
	cp := *session
	r.practice[session.ID] = &cp
	return nil
}

func (r fakePracticeRepo) FindByID(_ context.Context, id uint) (*model.PracticeSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.practice[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (r fakePracticeRepo) Update(_ context.Context, session *model.PracticeSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *session
	r.practice[session.ID] = &cp
	return nil
}

func (r fakePracticeRepo) FindByStudent(_ context.Context, studentID uint) ([]model.PracticeSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.PracticeSession
	for _, s := range r.practice {
		if s.StudentID == studentID {
			out = append(out, *s)
		}
	}
	return out, nil
}

// payments

type fakePaymentRepo struct{ *memStore }

func (r fakePaymentRepo) Create(_ context.Context, payment *model.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	payment.ID = r.id()
	payment.CreatedAt = time.Now()
	cp := *payment
	r.payments[payment.ID] = &cp
	return nil
}

func (r fakePaymentRepo) FindByTransactionID(_ context.Context, transactionID string) (*model.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.payments {
		if p.TransactionID == transactionID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r fakePaymentRepo) FindByMerchantTransactionID(_ context.Context, merchantTxnID string) (*model.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.payments {
		if p.MerchantTransactionID != nil && *p.MerchantTransactionID == merchantTxnID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r fakePaymentRepo) FindByStudent(_ context.Context, studentID uint) ([]model.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.Payment
	for _, p := range r.payments {
		if p.StudentID == studentID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r fakePaymentRepo) FindStale(_ context.Context, statuses []model.PaymentStatus, olderThan time.Time, limit int) ([]model.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.Payment
	for _, p := range r.payments {
		if !p.CreatedAt.Before(olderThan) {
			continue
		}
		for _, s := range statuses {
			if p.Status == s {
				out = append(out, *p)
			}
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r fakePaymentRepo) ApplyTransition(_ context.Context, paymentID uint, t repository.PaymentTransition) (*model.Payment, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[paymentID]
	if !ok {
		return nil, false, repository.ErrNotFound
	}
	if !p.Status.CanTransitionTo(t.To) {
		cp := *p
		return &cp, false, nil
	}
	p.Status = t.To
	if t.GatewayTransactionID != nil {
		p.GatewayTransactionID = t.GatewayTransactionID
	}
	if len(t.GatewayResponse) > 0 {
		p.GatewayResponse = t.GatewayResponse
	}
	if t.FailedReason != "" {
		p.FailedReason = t.FailedReason
	}
	if t.PaidAt != nil {
		p.PaidAt = t.PaidAt
	}
	if t.To == model.PaymentCompleted {
		r.activateLocked(&model.Enrollment{StudentID: p.StudentID, BatchID: p.BatchID, AmountPaid: p.Amount})
	}
	cp := *p
	return &cp, true, nil
}

func (r fakePaymentRepo) RecordEvent(_ context.Context, event *model.PaymentGatewayEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	event.ID = r.id()
	r.events = append(r.events, *event)
	return nil
}

// doubts

type fakeDoubtRepo struct{ *memStore }

func (r fakeDoubtRepo) Create(_ context.Context, doubt *model.Doubt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doubt.ID = r.id()
	cp := *doubt
	r.doubts[doubt.ID] = &cp
	return nil
}

func (r fakeDoubtRepo) FindByID(_ context.Context, id uint) (*model.Doubt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.doubts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *d
	cp.Responses = nil
	for _, resp := range r.doubtResponses {
		if resp.DoubtID == id {
			cp.Responses = append(cp.Responses, *resp)
		}
	}
	sort.Slice(cp.Responses, func(i, j int) bool { return cp.Responses[i].ID < cp.Responses[j].ID })
	return &cp, nil
}

func (r fakeDoubtRepo) FindAll(_ context.Context, filter repository.DoubtFilter) ([]model.Doubt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.Doubt
	for _, d := range r.doubts {
		if filter.StudentID != 0 && d.StudentID != filter.StudentID {
			continue
		}
		if filter.VisibleTo != 0 && !d.IsPublic && d.StudentID != filter.VisibleTo {
			continue
		}
		if filter.Status != "" && d.Status != filter.Status {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(d.Title+d.Description), strings.ToLower(filter.Search)) {
			continue
		}
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r fakeDoubtRepo) Update(_ context.Context, doubt *model.Doubt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.doubts[doubt.ID]
	if !ok {
		return repository.ErrNotFound
	}
	d.Status = doubt.Status
	d.AssignedToID = doubt.AssignedToID
	d.IsResolved = doubt.IsResolved
	d.ResolvedAt = doubt.ResolvedAt
	d.Priority = doubt.Priority
	return nil
}

func (r fakeDoubtRepo) IncrementViews(_ context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.doubts[id]; ok {
		d.ViewsCount++
	}
	return nil
}

func (r fakeDoubtRepo) CreateResponse(_ context.Context, response *model.DoubtResponse) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.doubts[response.DoubtID]
	if !ok {
		return repository.ErrNotFound
	}
	response.ID = r.id()
	cp := *response
	r.doubtResponses[response.ID] = &cp
	if d.Status == model.DoubtPending {
		d.Status = model.DoubtAnswered
	}
	return nil
}

func (r fakeDoubtRepo) FindResponseByID(_ context.Context, id uint) (*model.DoubtResponse, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	resp, ok := r.doubtResponses[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *resp
	return &cp, nil
}

func (r fakeDoubtRepo) AcceptResponse(_ context.Context, responseID uint) (*model.DoubtResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	resp, ok := r.doubtResponses[responseID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	for _, other := range r.doubtResponses {
		if other.DoubtID == resp.DoubtID {
			other.IsAccepted = other.ID == responseID
		}
	}
	now := time.Now()
	d := r.doubts[resp.DoubtID]
	d.Status = model.DoubtClosed
	d.IsResolved = true
	d.ResolvedAt = &now
	cp := *resp
	return &cp, nil
}

func (r fakeDoubtRepo) ToggleUpvote(_ context.Context, userID uint, target repository.UpvoteTarget) (bool, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var counter *int
	key := fmt.Sprintf("%d:", userID)
	if target.ResponseID != 0 {
		resp, ok := r.doubtResponses[target.ResponseID]
		if !ok {
			return false, 0, repository.ErrNotFound
		}
		counter = &resp.Upvotes
		key += fmt.Sprintf("r%d", target.ResponseID)
	} else {
		d, ok := r.doubts[target.DoubtID]
		if !ok {
			return false, 0, repository.ErrNotFound
		}
		counter = &d.Upvotes
		key += fmt.Sprintf("d%d", target.DoubtID)
	}
	if r.upvotes[key] {
		delete(r.upvotes, key)
		if *counter > 0 {
			*counter--
		}
		return false, *counter, nil
	}
	r.upvotes[key] = true
	*counter++
	return true, *counter, nil
}

func (r fakeDoubtRepo) CountByStatus(_ context.Context, statuses ...model.DoubtStatus) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var n int64
	for _, d := range r.doubts {
		for _, s := range statuses {
			if d.Status == s {
				n++
			}
		}
	}
	return n, nil
}

// analytics

type fakeAnalyticsRepo struct{ *memStore }

func (m *memStore) addAchievement(name string, points int) *model.Achievement {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := &model.Achievement{ID: m.id(), Name: name, Type: model.AchievementTestCount, Points: points, IsActive: true}
	m.achievements[a.ID] = a
	return a
}

func (r fakeAnalyticsRepo) FindAchievementByName(_ context.Context, name string) (*model.Achievement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.achievements {
		if a.Name == name {
			cp := *a
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r fakeAnalyticsRepo) ListAchievements(_ context.Context) ([]model.Achievement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.Achievement
	for _, a := range r.achievements {
		out = append(out, *a)
	}
	return out, nil
}

func (r fakeAnalyticsRepo) FindUserAchievements(_ context.Context, userID uint) ([]model.UserAchievement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.UserAchievement
	for _, ua := range r.userAchievements {
		if ua.UserID == userID {
			out = append(out, ua)
		}
	}
	return out, nil
}

func (m *memStore) streakLocked(userID uint) *model.Streak {
	s, ok := m.streaks[userID]
	if !ok {
		s = &model.Streak{ID: m.id(), UserID: userID}
		m.streaks[userID] = s
	}
	return s
}

func (r fakeAnalyticsRepo) AwardAchievement(_ context.Context, userID uint, achievement model.Achievement) (*model.UserAchievement, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ua := range r.userAchievements {
		if ua.UserID == userID && ua.AchievementID == achievement.ID {
			ua.Achievement = achievement
			return &ua, false, nil
		}
	}
	ua := model.UserAchievement{ID: r.id(), UserID: userID, AchievementID: achievement.ID, Achievement: achievement, EarnedAt: time.Now()}
	r.userAchievements = append(r.userAchievements, ua)
	r.streakLocked(userID).TotalPoints += achievement.Points
	return &ua, true, nil
}

func (r fakeAnalyticsRepo) FindStreak(_ context.Context, userID uint) (*model.Streak, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.streaks[userID]; ok {
		cp := *s
		return &cp, nil
	}
	return &model.Streak{UserID: userID}, nil
}

func (r fakeAnalyticsRepo) RecordActivity(_ context.Context, userID uint, day time.Time, delta model.ActivityDelta) (*model.Streak, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	date := model.Day(day)
	key := fmt.Sprintf("%d:%s", userID, date.Format("2006-01-02"))
	a, ok := r.activity[key]
	if !ok {
		a = &model.DailyActivity{ID: r.id(), UserID: userID, Date: date}
		r.activity[key] = a
	}
	a.TestsTaken += delta.TestsTaken
	a.QuestionsPracticed += delta.QuestionsPracticed
	a.DoubtsAsked += delta.DoubtsAsked
	a.TimeSpentMinutes += delta.TimeSpentMinutes
	s := r.streakLocked(userID)
	s.Touch(date)
	cp := *s
	return &cp, nil
}

func (r fakeAnalyticsRepo) FindDailyActivity(_ context.Context, userID uint, from, to time.Time) ([]model.DailyActivity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.DailyActivity
	for _, a := range r.activity {
		if a.UserID == userID && !a.Date.Before(from) && !a.Date.After(to) {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (m *memStore) activityFor(userID uint) model.DailyActivity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var total model.DailyActivity
	for _, a := range m.activity {
		if a.UserID == userID {
			total.TestsTaken += a.TestsTaken
			total.QuestionsPracticed += a.QuestionsPracticed
			total.DoubtsAsked += a.DoubtsAsked
			total.TimeSpentMinutes += a.TimeSpentMinutes
		}
	}
	return total
}

// leaderboard index

type fakeLeaderboard struct {
	mu      sync.Mutex
	entries map[uint]map[uint]float64
	fail    bool
	reads   int
}

func newFakeLeaderboard() *fakeLeaderboard {
	return &fakeLeaderboard{entries: map[uint]map[uint]float64{}}
}

func (l *fakeLeaderboard) Record(_ context.Context, testID, attemptID uint, score float64, timeTaken int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail {
		return fmt.Errorf("redis down")
	}
	if l.entries[testID] == nil {
		l.entries[testID] = map[uint]float64{}
	}
	l.entries[testID][attemptID] = cache.Weight(score, timeTaken)
	return nil
}

func (l *fakeLeaderboard) Top(_ context.Context, testID uint, limit int) ([]uint, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail {
		return nil, fmt.Errorf("redis down")
	}
	l.reads++
	set := l.entries[testID]
	ids := make([]uint, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	// Like a redis ZREVRANGE: weight descending, equal weights in reverse member order.
	sort.Slice(ids, func(i, j int) bool {
		if set[ids[i]] != set[ids[j]] {
			return set[ids[i]] > set[ids[j]]
		}
		return strconv.FormatUint(uint64(ids[i]), 10) > strconv.FormatUint(uint64(ids[j]), 10)
	})
	if len(ids) > limit {
		cutoff := set[ids[limit-1]]
		n := limit
		for n < len(ids) && set[ids[n]] == cutoff {
			n++
		}
		ids = ids[:n]
	}
	return ids, nil
}

func (l *fakeLeaderboard) Size(_ context.Context, testID uint) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail {
		return 0, fmt.Errorf("redis down")
	}
	return int64(len(l.entries[testID])), nil
}

func (l *fakeLeaderboard) Close() error { return nil }

func (l *fakeLeaderboard) forget(testID, attemptID uint) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries[testID], attemptID)
}

// payment gateway

type fakeGateway struct {
	mu        sync.Mutex
	initErr   error
	status    *gateway.StatusResult
	statusErr error
	secret    string
	initiated []gateway.InitiateRequest
}

func (g *fakeGateway) Name() string { return gateway.PhonePe }

func (g *fakeGateway) Initiate(_ context.Context, req gateway.InitiateRequest) (*gateway.InitiateResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.initErr != nil {
		return nil, g.initErr
	}
	g.initiated = append(g.initiated, req)
	return &gateway.InitiateResult{
		PaymentURL:            "https://pay.example/" + req.MerchantTransactionID,
		MerchantTransactionID: req.MerchantTransactionID,
		Raw:                   []byte(`{"success":true}`),
	}, nil
}

func (g *fakeGateway) Status(_ context.Context, _ string) (*gateway.StatusResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.statusErr != nil {
		return nil, g.statusErr
	}
	if g.status == nil {
		return &gateway.StatusResult{State: gateway.StatePending}, nil
	}
	cp := *g.status
	return &cp, nil
}

func (g *fakeGateway) VerifyWebhook(responseB64, header string) bool {
	return gateway.VerifyWebhook(responseB64, header, g.secret)
}

// progress tracker spy

type recordingProgress struct {
	mu      sync.Mutex
	deltas  map[uint][]model.ActivityDelta
	awarded map[uint][]string
}

func newRecordingProgress() *recordingProgress {
	return &recordingProgress{deltas: map[uint][]model.ActivityDelta{}, awarded: map[uint][]string{}}
}

func (p *recordingProgress) RecordActivity(_ context.Context, userID uint, delta model.ActivityDelta) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deltas[userID] = append(p.deltas[userID], delta)
	return nil
}

func (p *recordingProgress) AwardByName(_ context.Context, userID uint, name string) (*dto.AwardResultDTO, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.awarded[userID] = append(p.awarded[userID], name)
	return &dto.AwardResultDTO{Awarded: true}, nil
}

func principal(u *model.User) policy.Principal {
	return policy.Principal{UserID: u.ID, Role: u.Role}
}
