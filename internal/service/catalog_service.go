package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/lshigami/padhoplus/internal/dto"
	"github.com/lshigami/padhoplus/internal/model"
	"github.com/lshigami/padhoplus/internal/policy"
	"github.com/lshigami/padhoplus/internal/repository"
	"github.com/lshigami/padhoplus/internal/scoring"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
)

// CatalogService manages subjects, topics, batches, the question bank and
// tests, and free-batch enrollment.
type CatalogService interface {
	CreateSubject(ctx context.Context, req dto.SubjectCreateDTO) (*model.Subject, error)
	ListSubjects(ctx context.Context) ([]model.Subject, error)
	CreateTopic(ctx context.Context, subjectID uint, req dto.TopicCreateDTO) (*model.Topic, error)

	CreateBatch(ctx context.Context, req dto.BatchCreateDTO) (*model.Batch, error)
	ListBatches(ctx context.Context, filter repository.BatchFilter) ([]model.Batch, error)
	EnrollFree(ctx context.Context, caller policy.Principal, batchID uint) (*model.Enrollment, error)
	MyEnrollments(ctx context.Context, caller policy.Principal) ([]model.Enrollment, error)

	CreateQuestion(ctx context.Context, caller policy.Principal, req dto.QuestionCreateDTO) (*dto.QuestionDTO, error)
	ListQuestions(ctx context.Context, filter repository.QuestionFilter) ([]dto.QuestionDTO, error)

	CreateTest(ctx context.Context, caller policy.Principal, req dto.TestCreateDTO) (*dto.TestDetailDTO, error)
	AttachQuestions(ctx context.Context, caller policy.Principal, testID uint, req dto.AttachQuestionsDTO) (*dto.TestSummaryDTO, error)
	UpdateTestStatus(ctx context.Context, caller policy.Principal, testID uint, req dto.TestStatusDTO) (*dto.TestSummaryDTO, error)
}

type catalogService struct {
	subjectRepo    repository.SubjectRepository
	batchRepo      repository.BatchRepository
	enrollmentRepo repository.EnrollmentRepository
	questionRepo   repository.QuestionRepository
	testRepo       repository.TestRepository
}

func NewCatalogService(
	subjectRepo repository.SubjectRepository,
	batchRepo repository.BatchRepository,
	enrollmentRepo repository.EnrollmentRepository,
	questionRepo repository.QuestionRepository,
	testRepo repository.TestRepository,
) CatalogService {
	return &catalogService{
		subjectRepo:    subjectRepo,
		batchRepo:      batchRepo,
		enrollmentRepo: enrollmentRepo,
		questionRepo:   questionRepo,
		testRepo:       testRepo,
	}
}

func duplicate(err error, what, key string) error {
	if errors.Is(err, repository.ErrDuplicate) {
		return fmt.Errorf("%w: %s %q", ErrConflict, what, key)
	}
	log.Error().Err(err).Str("key", key).Msgf("Failed to create %s", what)
	return fmt.Errorf("database error creating %s: %w", what, err)
}

func (s *catalogService) CreateSubject(ctx context.Context, req dto.SubjectCreateDTO) (*model.Subject, error) {
	subject := model.Subject{Name: req.Name, Slug: strings.ToLower(req.Slug), Description: req.Description}
	if err := s.subjectRepo.Create(ctx, &subject); err != nil {
		return nil, duplicate(err, "subject", subject.Slug)
	}
	return &subject, nil
}

func (s *catalogService) ListSubjects(ctx context.Context) ([]model.Subject, error) {
	return s.subjectRepo.FindAll(ctx)
}

func (s *catalogService) CreateTopic(ctx context.Context, subjectID uint, req dto.TopicCreateDTO) (*model.Topic, error) {
	if _, err := s.subjectRepo.FindByID(ctx, subjectID); err != nil {
		return nil, notFound(err, "subject", subjectID)
	}
	topic := model.Topic{SubjectID: subjectID, Name: req.Name, Slug: strings.ToLower(req.Slug)}
	if err := s.subjectRepo.CreateTopic(ctx, &topic); err != nil {
		return nil, duplicate(err, "topic", topic.Slug)
	}
	return &topic, nil
}

func (s *catalogService) CreateBatch(ctx context.Context, req dto.BatchCreateDTO) (*model.Batch, error) {
	if req.DiscountedPrice != nil && *req.DiscountedPrice > req.Price {
		return nil, fmt.Errorf("%w: discounted price exceeds price", ErrInvalidInput)
	}
	batch := model.Batch{
		Name:            req.Name,
		Slug:            strings.ToLower(req.Slug),
		Description:     req.Description,
		TargetExam:      req.TargetExam,
		Price:           req.Price,
		DiscountedPrice: req.DiscountedPrice,
		IsFree:          req.IsFree || req.Price == 0,
		FacultyID:       req.FacultyID,
		Status:          req.Status,
		StartDate:       req.StartDate,
	}
	if batch.Status == "" {
		batch.Status = model.BatchStatusUpcoming
	}
	if len(req.Features) > 0 {
		raw, err := json.Marshal(req.Features)
		if err != nil {
			return nil, fmt.Errorf("%w: features: %v", ErrInvalidInput, err)
		}
		batch.Features = datatypes.JSON(raw)
	}
	if err := s.batchRepo.Create(ctx, &batch); err != nil {
		return nil, duplicate(err, "batch", batch.Slug)
	}
	log.Info().Uint("batchID", batch.ID).Str("slug", batch.Slug).Msg("Batch created")
	return &batch, nil
}

func (s *catalogService) ListBatches(ctx context.Context, filter repository.BatchFilter) ([]model.Batch, error) {
	return s.batchRepo.FindAll(ctx, filter)
}

func (s *catalogService) EnrollFree(ctx context.Context, caller policy.Principal, batchID uint) (*model.Enrollment, error) {
	if !caller.Can(policy.TakeTests) {
		return nil, fmt.Errorf("%w: only students can enroll", ErrForbidden)
	}
	batch, err := s.batchRepo.FindByID(ctx, batchID)
	if err != nil {
		return nil, notFound(err, "batch", batchID)
	}
	if batch.EffectivePrice() > 0 {
		return nil, fmt.Errorf("%w: batch %d requires payment", ErrInvalidInput, batchID)
	}
	enrollment := model.Enrollment{StudentID: caller.UserID, BatchID: batchID}
	if err := s.enrollmentRepo.Activate(ctx, &enrollment); err != nil {
		log.Error().Err(err).Uint("batchID", batchID).Uint("studentID", caller.UserID).Msg("Failed to activate free enrollment")
		return nil, fmt.Errorf("database error enrolling: %w", err)
	}
	return &enrollment, nil
}

func (s *catalogService) MyEnrollments(ctx context.Context, caller policy.Principal) ([]model.Enrollment, error) {
	return s.enrollmentRepo.FindActiveByStudent(ctx, caller.UserID)
}

func (s *catalogService) CreateQuestion(ctx context.Context, caller policy.Principal, req dto.QuestionCreateDTO) (*dto.QuestionDTO, error) {
	if _, err := s.subjectRepo.FindByID(ctx, req.SubjectID); err != nil {
		return nil, notFound(err, "subject", req.SubjectID)
	}
	if req.TopicID != nil {
		topic, err := s.subjectRepo.FindTopicByID(ctx, *req.TopicID)
		if err != nil {
			return nil, notFound(err, "topic", *req.TopicID)
		}
		if topic.SubjectID != req.SubjectID {
			return nil, fmt.Errorf("%w: topic %d is not part of subject %d", ErrInvalidInput, topic.ID, req.SubjectID)
		}
	}

	qType := req.Type
	if qType == "" {
		qType = model.QuestionTypeMCQ
	}
	answer := scoring.NormalizeAnswer(req.CorrectAnswer)
	if answer == "" || qType == model.QuestionTypeMCQ && (len(answer) != 1 || !strings.Contains("ABCD", answer)) {
		return nil, fmt.Errorf("%w: mcq answer must be one of A, B, C or D", ErrInvalidInput)
	}

	difficulty := req.Difficulty
	if difficulty == "" {
		difficulty = "medium"
	}
	question := model.Question{
		SubjectID:     req.SubjectID,
		TopicID:       req.TopicID,
		Text:          req.Text,
		Type:          qType,
		ImagePath:     req.ImagePath,
		OptionA:       req.OptionA,
		OptionB:       req.OptionB,
		OptionC:       req.OptionC,
		OptionD:       req.OptionD,
		CorrectAnswer: answer,
		Explanation:   req.Explanation,
		Difficulty:    difficulty,
		Marks:         4,
		NegativeMarks: 1,
		IsActive:      true,
		CreatedByID:   &caller.UserID,
	}
	if req.Marks != nil {
		question.Marks = *req.Marks
	}
	if req.NegativeMarks != nil {
		question.NegativeMarks = *req.NegativeMarks
	}
	if err := s.questionRepo.Create(ctx, &question); err != nil {
		log.Error().Err(err).Msg("Failed to create question in database")
		return nil, fmt.Errorf("database error creating question: %w", err)
	}
	out := toQuestionDTO(question, true)
	return &out, nil
}

func (s *catalogService) ListQuestions(ctx context.Context, filter repository.QuestionFilter) ([]dto.QuestionDTO, error) {
	questions, err := s.questionRepo.FindAll(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("error fetching questions: %w", err)
	}
	return toQuestionDTOs(questions, true), nil
}

func (s *catalogService) loadQuestions(ctx context.Context, ids []uint) ([]model.Question, error) {
	unique := make([]uint, 0, len(ids))
	seen := make(map[uint]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}
	questions, err := s.questionRepo.FindByIDs(ctx, unique)
	if err != nil {
		return nil, fmt.Errorf("error fetching questions: %w", err)
	}
	if len(questions) != len(unique) {
		return nil, fmt.Errorf("%w: %d of %d questions not found", ErrInvalidInput, len(unique)-len(questions), len(unique))
	}
	return questions, nil
}

func (s *catalogService) CreateTest(ctx context.Context, caller policy.Principal, req dto.TestCreateDTO) (*dto.TestDetailDTO, error) {
	batch, err := s.batchRepo.FindByID(ctx, req.BatchID)
	if err != nil {
		return nil, notFound(err, "batch", req.BatchID)
	}
	if req.StartTime != nil && req.EndTime != nil && !req.EndTime.After(*req.StartTime) {
		return nil, fmt.Errorf("%w: end_time must be after start_time", ErrInvalidInput)
	}

	var questions []model.Question
	if len(req.QuestionIDs) > 0 {
		if questions, err = s.loadQuestions(ctx, req.QuestionIDs); err != nil {
			return nil, err
		}
	}

	test := model.Test{
		Title:           req.Title,
		Description:     req.Description,
		TestType:        req.TestType,
		BatchID:         batch.ID,
		SubjectID:       req.SubjectID,
		Questions:       questions,
		DurationMinutes: req.DurationMinutes,
		PassingMarks:    req.PassingMarks,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		Status:          model.TestStatusDraft,
		IsFree:          req.IsFree,
		CreatedByID:     &caller.UserID,
	}
	if test.TestType == "" {
		test.TestType = model.TestTypeMock
	}
	if test.DurationMinutes == 0 {
		test.DurationMinutes = 60
	}
	for _, q := range questions {
		test.TotalMarks += q.Marks
	}

	if err := s.testRepo.Create(ctx, &test); err != nil {
		log.Error().Err(err).Msg("Failed to create test in database")
		return nil, fmt.Errorf("database error creating test: %w", err)
	}
	log.Info().Uint("testID", test.ID).Int("questions", len(questions)).Msg("Test created")

	return &dto.TestDetailDTO{
		TestSummaryDTO: toTestSummaryDTO(test, len(questions)),
		PassingMarks:   test.PassingMarks,
		BatchName:      batch.Name,
		Questions:      toQuestionDTOs(questions, true),
	}, nil
}

func (s *catalogService) ownedTest(ctx context.Context, caller policy.Principal, testID uint) (*model.Test, error) {
	test, err := s.testRepo.FindByID(ctx, testID)
	if err != nil {
		return nil, notFound(err, "test", testID)
	}
	if caller.Is(policy.RoleAdmin) {
		return test, nil
	}
	owned, err := s.testRepo.IsOwnedByTeacher(ctx, testID, caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("error checking test ownership: %w", err)
	}
	if !owned {
		return nil, fmt.Errorf("%w: test %d is managed by another teacher", ErrForbidden, testID)
	}
	return test, nil
}

func (s *catalogService) AttachQuestions(ctx context.Context, caller policy.Principal, testID uint, req dto.AttachQuestionsDTO) (*dto.TestSummaryDTO, error) {
	test, err := s.ownedTest(ctx, caller, testID)
	if err != nil {
		return nil, err
	}
	if test.Status == model.TestStatusLive || test.Status == model.TestStatusCompleted {
		return nil, fmt.Errorf("%w: questions cannot change once a test is %s", ErrInvalidState, test.Status)
	}
	questions, err := s.loadQuestions(ctx, req.QuestionIDs)
	if err != nil {
		return nil, err
	}
	if err := s.testRepo.AttachQuestions(ctx, test, questions); err != nil {
		log.Error().Err(err).Uint("testID", testID).Msg("Failed to attach questions")
		return nil, fmt.Errorf("database error attaching questions: %w", err)
	}
	count, err := s.testRepo.QuestionCount(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("error counting questions: %w", err)
	}
	out := toTestSummaryDTO(*test, count)
	return &out, nil
}

func (s *catalogService) UpdateTestStatus(ctx context.Context, caller policy.Principal, testID uint, req dto.TestStatusDTO) (*dto.TestSummaryDTO, error) {
	status := model.TestStatus(req.Status)
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, req.Status)
	}
	test, err := s.ownedTest(ctx, caller, testID)
	if err != nil {
		return nil, err
	}
	count, err := s.testRepo.QuestionCount(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("error counting questions: %w", err)
	}
	if count == 0 && (status == model.TestStatusLive || status == model.TestStatusScheduled) {
		return nil, fmt.Errorf("%w: test %d has no questions", ErrInvalidState, testID)
	}
	if status == model.TestStatusScheduled && test.StartTime == nil {
		return nil, fmt.Errorf("%w: scheduled tests need a start_time", ErrInvalidState)
	}
	if err := s.testRepo.UpdateStatus(ctx, testID, status); err != nil {
		return nil, notFound(err, "test", testID)
	}
	test.Status = status
	log.Info().Uint("testID", testID).Str("status", string(status)).Msg("Test status changed")
	out := toTestSummaryDTO(*test, count)
	return &out, nil
}
