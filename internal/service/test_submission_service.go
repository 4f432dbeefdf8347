package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/lshigami/padhoplus/config"
	"github.com/lshigami/padhoplus/internal/cache"
	"github.com/lshigami/padhoplus/internal/dto"
	"github.com/lshigami/padhoplus/internal/model"
	"github.com/lshigami/padhoplus/internal/policy"
	"github.com/lshigami/padhoplus/internal/repository"
	"github.com/lshigami/padhoplus/internal/scoring"
	"github.com/rs/zerolog/log"
)

const maxLeaderboard = 50

// TestSubmissionService runs the attempt lifecycle: start, save responses,
// submit or abandon, and the read views over attempts.
type TestSubmissionService interface {
	// StartTest returns the caller's attempt for the test and whether it was created.
	StartTest(ctx context.Context, caller policy.Principal, testID uint) (*dto.AttemptDTO, bool, error)
	SaveResponse(ctx context.Context, caller policy.Principal, attemptID uint, req dto.SaveResponseDTO) (*dto.ResponseDTO, error)
	SubmitAttempt(ctx context.Context, caller policy.Principal, attemptID uint, req dto.SubmitAttemptDTO) (*dto.AttemptDTO, error)
	AbandonAttempt(ctx context.Context, caller policy.Principal, attemptID uint) (*dto.AttemptDTO, error)
	GetTestAttemptDetails(ctx context.Context, caller policy.Principal, attemptID uint) (*dto.AttemptDTO, error)
	ListAttempts(ctx context.Context, caller policy.Principal, query dto.ListAttemptsQuery) ([]dto.AttemptDTO, error)
	Analysis(ctx context.Context, caller policy.Principal, attemptID uint) (*dto.AttemptAnalysisDTO, error)
	Leaderboard(ctx context.Context, testID uint, limit int) (*dto.LeaderboardDTO, error)
}

type testSubmissionService struct {
	testRepo        repository.TestRepository
	testAttemptRepo repository.TestAttemptRepository
	enrollmentRepo  repository.EnrollmentRepository
	userRepo        repository.UserRepository
	leaderboard     cache.Leaderboard
	progress        ProgressTracker
	scoreConverter  ScoreConverterService
	firstTestAward  string
	now             func() time.Time
}

func NewTestSubmissionService(
	testRepo repository.TestRepository,
	testAttemptRepo repository.TestAttemptRepository,
	enrollmentRepo repository.EnrollmentRepository,
	userRepo repository.UserRepository,
	leaderboard cache.Leaderboard,
	progress ProgressTracker,
	scoreConverter ScoreConverterService,
	cfg *config.Config,
) TestSubmissionService {
	return &testSubmissionService{
		testRepo:        testRepo,
		testAttemptRepo: testAttemptRepo,
		enrollmentRepo:  enrollmentRepo,
		userRepo:        userRepo,
		leaderboard:     leaderboard,
		progress:        progress,
		scoreConverter:  scoreConverter,
		firstTestAward:  cfg.FirstTestAchievement,
		now:             time.Now,
	}
}

func (s *testSubmissionService) StartTest(ctx context.Context, caller policy.Principal, testID uint) (*dto.AttemptDTO, bool, error) {
	if !caller.Can(policy.TakeTests) {
		return nil, false, fmt.Errorf("%w: only students can take tests", ErrForbidden)
	}
	test, err := s.testRepo.FindByID(ctx, testID)
	if err != nil {
		return nil, false, notFound(err, "test", testID)
	}
	enrolled, err := s.enrollmentRepo.IsActive(ctx, caller.UserID, test.BatchID)
	if err != nil {
		return nil, false, fmt.Errorf("error checking enrollment: %w", err)
	}
	if !enrolled {
		return nil, false, ErrNotEnrolled
	}

	existing, err := s.testAttemptRepo.FindByTestAndStudent(ctx, testID, caller.UserID)
	switch {
	case err == nil:
		if err := openForWrites(existing); err != nil {
			return nil, false, err
		}
		existing.Test = *test
		out := toAttemptDTO(*existing, s.scoreConverter, false)
		return &out, false, nil
	case !errors.Is(err, repository.ErrNotFound):
		return nil, false, fmt.Errorf("error loading attempt: %w", err)
	}

	if !test.AcceptsAttempts(s.now()) {
		return nil, false, ErrTestNotOpen
	}

	attempt := model.TestAttempt{
		TestID:    testID,
		StudentID: caller.UserID,
		Status:    model.AttemptStarted,
		StartedAt: s.now(),
	}
	if err := s.testAttemptRepo.Create(ctx, &attempt); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// Lost a race with a concurrent start of the same attempt.
			return s.StartTest(ctx, caller, testID)
		}
		log.Error().Err(err).Uint("testID", testID).Uint("studentID", caller.UserID).Msg("Failed to create test attempt")
		return nil, false, fmt.Errorf("database error creating attempt: %w", err)
	}
	log.Info().Uint("attemptID", attempt.ID).Uint("testID", testID).Uint("studentID", caller.UserID).Msg("Test attempt started")

	attempt.Test = *test
	out := toAttemptDTO(attempt, s.scoreConverter, false)
	return &out, true, nil
}

// openForWrites rejects attempts that are no longer started.
func openForWrites(a *model.TestAttempt) error {
	switch a.Status {
	case model.AttemptSubmitted:
		return ErrAlreadySubmitted
	case model.AttemptAbandoned:
		return ErrAttemptClosed
	}
	return nil
}

func (s *testSubmissionService) ownAttempt(ctx context.Context, caller policy.Principal, attemptID uint, details bool) (*model.TestAttempt, error) {
	var (
		attempt *model.TestAttempt
		err     error
	)
	if details {
		attempt, err = s.testAttemptRepo.FindByIDWithDetails(ctx, attemptID)
	} else {
		attempt, err = s.testAttemptRepo.FindByID(ctx, attemptID)
	}
	if err != nil {
		return nil, notFound(err, "attempt", attemptID)
	}
	if attempt.StudentID != caller.UserID {
		return nil, ErrNotOwner
	}
	return attempt, nil
}

func (s *testSubmissionService) SaveResponse(ctx context.Context, caller policy.Principal, attemptID uint, req dto.SaveResponseDTO) (*dto.ResponseDTO, error) {
	attempt, err := s.ownAttempt(ctx, caller, attemptID, false)
	if err != nil {
		return nil, err
	}
	if err := openForWrites(attempt); err != nil {
		return nil, err
	}

	test, err := s.testRepo.FindByIDWithQuestions(ctx, attempt.TestID)
	if err != nil {
		return nil, notFound(err, "test", attempt.TestID)
	}
	var question *model.Question
	for i := range test.Questions {
		if test.Questions[i].ID == req.QuestionID {
			question = &test.Questions[i]
			break
		}
	}
	if question == nil {
		return nil, fmt.Errorf("%w: question %d is not part of test %d", ErrInvalidInput, req.QuestionID, test.ID)
	}

	response := model.TestResponse{
		AttemptID:         attempt.ID,
		QuestionID:        question.ID,
		SelectedAnswer:    req.SelectedAnswer,
		TimeSpentSeconds:  req.TimeSpentSeconds,
		IsMarkedForReview: req.IsMarkedForReview,
	}
	if err := s.testAttemptRepo.UpsertResponse(ctx, &response); err != nil {
		log.Error().Err(err).Uint("attemptID", attemptID).Uint("questionID", req.QuestionID).Msg("Failed to save response")
		return nil, fmt.Errorf("database error saving response: %w", err)
	}
	response.Question = *question
	out := toResponseDTO(response, false)
	return &out, nil
}

// rankPass is run by the repository inside the submission transaction.
func rankPass(submitted []model.TestAttempt) []model.TestAttempt {
	entries := make([]scoring.Entry, len(submitted))
	for i, a := range submitted {
		entries[i] = scoring.EntryOf(a)
	}
	return scoring.Changed(submitted, scoring.Rank(entries))
}

func (s *testSubmissionService) SubmitAttempt(ctx context.Context, caller policy.Principal, attemptID uint, req dto.SubmitAttemptDTO) (*dto.AttemptDTO, error) {
	attempt, err := s.ownAttempt(ctx, caller, attemptID, true)
	if err != nil {
		return nil, err
	}
	if err := openForWrites(attempt); err != nil {
		return nil, err
	}

	test, err := s.testRepo.FindByIDWithQuestions(ctx, attempt.TestID)
	if err != nil {
		return nil, notFound(err, "test", attempt.TestID)
	}
	questions := make(map[uint]model.Question, len(test.Questions))
	for _, q := range test.Questions {
		questions[q.ID] = q
	}
	result := scoring.Grade(attempt.Responses, questions, len(test.Questions))

	now := s.now()
	elapsed := int(now.Sub(attempt.StartedAt).Seconds())
	timeTaken := req.TimeTakenSeconds
	if timeTaken > elapsed {
		timeTaken = elapsed
	}
	if timeTaken < 0 {
		timeTaken = 0
	}

	attempt.Status = model.AttemptSubmitted
	attempt.Score = result.Score
	attempt.CorrectCount = result.Correct
	attempt.IncorrectCount = result.Incorrect
	attempt.UnattemptedCount = result.Unattempted
	attempt.TimeTakenSeconds = timeTaken
	attempt.SubmittedAt = &now

	if err := s.testAttemptRepo.CommitSubmission(ctx, attempt, result.Responses, rankPass); err != nil {
		if errors.Is(err, repository.ErrStateChanged) {
			return nil, ErrAlreadySubmitted
		}
		log.Error().Err(err).Uint("attemptID", attemptID).Msg("Failed to commit submission")
		return nil, fmt.Errorf("database error submitting attempt: %w", err)
	}
	log.Info().
		Uint("attemptID", attemptID).
		Uint("testID", test.ID).
		Float64("score", result.Score).
		Int("correct", result.Correct).
		Int("incorrect", result.Incorrect).
		Msg("Test attempt submitted")

	s.afterSubmit(ctx, attempt)

	submitted, err := s.testAttemptRepo.FindByIDWithDetails(ctx, attemptID)
	if err != nil {
		log.Error().Err(err).Uint("attemptID", attemptID).Msg("Failed to reload submitted attempt, answering from memory")
		attempt.Test = *test
		attempt.Responses = result.Responses
		out := toAttemptDTO(*attempt, s.scoreConverter, false)
		return &out, nil
	}
	out := toAttemptDTO(*submitted, s.scoreConverter, false)
	return &out, nil
}

// afterSubmit runs the post-commit side effects. Failures are logged only;
// the submission itself is already durable.
func (s *testSubmissionService) afterSubmit(ctx context.Context, attempt *model.TestAttempt) {
	if err := s.leaderboard.Record(ctx, attempt.TestID, attempt.ID, attempt.Score, attempt.TimeTakenSeconds); err != nil {
		log.Warn().Err(err).Uint("attemptID", attempt.ID).Msg("Failed to index attempt in leaderboard")
	}
	if s.progress == nil {
		return
	}
	delta := model.ActivityDelta{TestsTaken: 1, TimeSpentMinutes: attempt.TimeTakenSeconds / 60}
	if err := s.progress.RecordActivity(ctx, attempt.StudentID, delta); err != nil {
		log.Warn().Err(err).Uint("studentID", attempt.StudentID).Msg("Failed to record test activity")
	}
	if s.firstTestAward == "" {
		return
	}
	if _, err := s.progress.AwardByName(ctx, attempt.StudentID, s.firstTestAward); err != nil && !errors.Is(err, ErrNotFound) {
		log.Warn().Err(err).Uint("studentID", attempt.StudentID).Msg("Failed to award first test achievement")
	}
}

func (s *testSubmissionService) AbandonAttempt(ctx context.Context, caller policy.Principal, attemptID uint) (*dto.AttemptDTO, error) {
	attempt, err := s.ownAttempt(ctx, caller, attemptID, false)
	if err != nil {
		return nil, err
	}
	if err := openForWrites(attempt); err != nil {
		return nil, err
	}
	if err := s.testAttemptRepo.TransitionStatus(ctx, attemptID, model.AttemptStarted, model.AttemptAbandoned); err != nil {
		if errors.Is(err, repository.ErrStateChanged) {
			return nil, ErrAttemptClosed
		}
		return nil, fmt.Errorf("database error abandoning attempt: %w", err)
	}
	log.Info().Uint("attemptID", attemptID).Msg("Test attempt abandoned")
	attempt.Status = model.AttemptAbandoned
	out := toAttemptDTO(*attempt, s.scoreConverter, false)
	return &out, nil
}

// canView applies role scoping to a single attempt: admins see all, teachers
// their tests, parents their children and students themselves.
func (s *testSubmissionService) canView(ctx context.Context, caller policy.Principal, attempt *model.TestAttempt) (bool, error) {
	switch {
	case attempt.StudentID == caller.UserID:
		return true, nil
	case caller.Can(policy.ViewAllAttempts):
		return true, nil
	case caller.Can(policy.ViewChildren):
		children, err := s.userRepo.ChildIDs(ctx, caller.UserID)
		if err != nil {
			return false, err
		}
		for _, id := range children {
			if id == attempt.StudentID {
				return true, nil
			}
		}
		return false, nil
	case caller.Can(policy.ManageCatalog):
		return s.testRepo.IsOwnedByTeacher(ctx, attempt.TestID, caller.UserID)
	}
	return false, nil
}

func (s *testSubmissionService) visibleAttempt(ctx context.Context, caller policy.Principal, attemptID uint) (*model.TestAttempt, error) {
	attempt, err := s.testAttemptRepo.FindByIDWithDetails(ctx, attemptID)
	if err != nil {
		log.Error().Err(err).Uint("attemptID", attemptID).Msg("Failed to find test attempt by ID")
		return nil, notFound(err, "attempt", attemptID)
	}
	ok, err := s.canView(ctx, caller, attempt)
	if err != nil {
		return nil, fmt.Errorf("error checking attempt visibility: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: attempt %d", ErrNotFound, attemptID)
	}
	return attempt, nil
}

func (s *testSubmissionService) GetTestAttemptDetails(ctx context.Context, caller policy.Principal, attemptID uint) (*dto.AttemptDTO, error) {
	attempt, err := s.visibleAttempt(ctx, caller, attemptID)
	if err != nil {
		return nil, err
	}
	out := toAttemptDTO(*attempt, s.scoreConverter, caller.Can(policy.ManageCatalog))
	return &out, nil
}

func (s *testSubmissionService) ListAttempts(ctx context.Context, caller policy.Principal, query dto.ListAttemptsQuery) ([]dto.AttemptDTO, error) {
	scope := repository.AttemptScope{TestID: query.TestID}
	switch {
	case caller.Can(policy.ViewAllAttempts):
	case caller.Can(policy.ViewChildren):
		children, err := s.userRepo.ChildIDs(ctx, caller.UserID)
		if err != nil {
			return nil, fmt.Errorf("error fetching children: %w", err)
		}
		scope.RestrictStudents = true
		scope.StudentIDs = children
	case caller.Can(policy.ManageCatalog):
		scope.TeacherID = caller.UserID
	default:
		scope.RestrictStudents = true
		scope.StudentIDs = []uint{caller.UserID}
	}

	attempts, err := s.testAttemptRepo.FindScoped(ctx, scope)
	if err != nil {
		log.Error().Err(err).Uint("userID", caller.UserID).Msg("Failed to list attempts")
		return nil, fmt.Errorf("error fetching attempts: %w", err)
	}
	out := make([]dto.AttemptDTO, 0, len(attempts))
	for _, a := range attempts {
		out = append(out, toAttemptDTO(a, s.scoreConverter, false))
	}
	return out, nil
}

func (s *testSubmissionService) Analysis(ctx context.Context, caller policy.Principal, attemptID uint) (*dto.AttemptAnalysisDTO, error) {
	attempt, err := s.visibleAttempt(ctx, caller, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.Status != model.AttemptSubmitted {
		return nil, fmt.Errorf("%w: attempt %d is not submitted", ErrInvalidState, attemptID)
	}
	total, err := s.testAttemptRepo.CountSubmitted(ctx, attempt.TestID)
	if err != nil {
		return nil, fmt.Errorf("error counting attempts: %w", err)
	}
	return &dto.AttemptAnalysisDTO{
		Attempt:         toAttemptDTO(*attempt, s.scoreConverter, false),
		TotalSubmitted:  int(total),
		TopicBreakdown:  toTopicAnalysisDTOs(scoring.TopicBreakdown(attempt.Responses)),
		AccuracyPercent: scoring.Accuracy(attempt.CorrectCount, attempt.IncorrectCount),
	}, nil
}

// Leaderboard serves the top attempts from the redis index when it holds
// every submitted attempt and from the database otherwise, rebuilding the
// index on the way.
func (s *testSubmissionService) Leaderboard(ctx context.Context, testID uint, limit int) (*dto.LeaderboardDTO, error) {
	if limit <= 0 || limit > maxLeaderboard {
		limit = maxLeaderboard
	}
	if _, err := s.testRepo.FindByID(ctx, testID); err != nil {
		return nil, notFound(err, "test", testID)
	}
	total, err := s.testAttemptRepo.CountSubmitted(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("error counting attempts: %w", err)
	}

	out := &dto.LeaderboardDTO{TestID: testID, Entries: []dto.LeaderboardEntryDTO{}}
	if total == 0 {
		out.Source = "database"
		return out, nil
	}

	if attempts, ok := s.fromIndex(ctx, testID, limit, total); ok {
		out.Source = "cache"
		out.Entries = leaderboardEntries(attempts)
		return out, nil
	}

	attempts, err := s.testAttemptRepo.FindSubmittedByTest(ctx, testID, 0)
	if err != nil {
		log.Error().Err(err).Uint("testID", testID).Msg("Failed to load leaderboard from database")
		return nil, fmt.Errorf("error fetching leaderboard: %w", err)
	}
	for _, a := range attempts {
		if err := s.leaderboard.Record(ctx, testID, a.ID, a.Score, a.TimeTakenSeconds); err != nil {
			log.Debug().Err(err).Uint("testID", testID).Msg("Leaderboard index rebuild stopped")
			break
		}
	}
	if len(attempts) > limit {
		attempts = attempts[:limit]
	}
	out.Source = "database"
	out.Entries = leaderboardEntries(attempts)
	return out, nil
}

func (s *testSubmissionService) fromIndex(ctx context.Context, testID uint, limit int, total int64) ([]model.TestAttempt, bool) {
	size, err := s.leaderboard.Size(ctx, testID)
	if err != nil || size != total {
		return nil, false
	}
	ids, err := s.leaderboard.Top(ctx, testID, limit)
	if err != nil || len(ids) == 0 {
		return nil, false
	}
	found, err := s.testAttemptRepo.FindByIDs(ctx, ids)
	if err != nil || len(found) != len(ids) {
		return nil, false
	}
	byID := make(map[uint]model.TestAttempt, len(found))
	for _, a := range found {
		byID[a.ID] = a
	}
	ordered := make([]model.TestAttempt, 0, len(ids))
	for _, id := range ids {
		ordered = append(ordered, byID[id])
	}
	// The index only orders by score and time; settle full ties like the database does.
	sort.SliceStable(ordered, func(i, j int) bool {
		return scoring.Less(scoring.EntryOf(ordered[i]), scoring.EntryOf(ordered[j]))
	})
	if len(ordered) > limit {
		ordered = ordered[:limit]
	}
	return ordered, true
}

func leaderboardEntries(attempts []model.TestAttempt) []dto.LeaderboardEntryDTO {
	entries := make([]dto.LeaderboardEntryDTO, len(attempts))
	for i, a := range attempts {
		entries[i] = dto.LeaderboardEntryDTO{
			Rank:             i + 1,
			AttemptID:        a.ID,
			StudentID:        a.StudentID,
			StudentName:      a.Student.FullName(),
			Score:            a.Score,
			TimeTakenSeconds: a.TimeTakenSeconds,
		}
	}
	return entries
}
