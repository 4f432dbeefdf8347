package service

import (
	"context"
	"fmt"
	"time"

	"github.com/lshigami/padhoplus/internal/dto"
	"github.com/lshigami/padhoplus/internal/model"
	"github.com/lshigami/padhoplus/internal/policy"
	"github.com/lshigami/padhoplus/internal/repository"
	"github.com/rs/zerolog/log"
)

const defaultPracticeCount = 10

type PracticeService interface {
	Start(ctx context.Context, caller policy.Principal, req dto.PracticeStartDTO) (*dto.PracticeSessionDTO, error)
	Complete(ctx context.Context, caller policy.Principal, sessionID uint, req dto.PracticeCompleteDTO) (*dto.PracticeSessionDTO, error)
	Get(ctx context.Context, caller policy.Principal, sessionID uint) (*dto.PracticeSessionDTO, error)
	List(ctx context.Context, caller policy.Principal) ([]dto.PracticeSessionDTO, error)
}

type practiceService struct {
	practiceRepo repository.PracticeRepository
	questionRepo repository.QuestionRepository
	subjectRepo  repository.SubjectRepository
	progress     ProgressTracker
	now          func() time.Time
}

func NewPracticeService(
	practiceRepo repository.PracticeRepository,
	questionRepo repository.QuestionRepository,
	subjectRepo repository.SubjectRepository,
	progress ProgressTracker,
) PracticeService {
	return &practiceService{
		practiceRepo: practiceRepo,
		questionRepo: questionRepo,
		subjectRepo:  subjectRepo,
		progress:     progress,
		now:          time.Now,
	}
}

func (s *practiceService) Start(ctx context.Context, caller policy.Principal, req dto.PracticeStartDTO) (*dto.PracticeSessionDTO, error) {
	if !caller.Can(policy.TakeTests) {
		return nil, fmt.Errorf("%w: only students can practice", ErrForbidden)
	}
	subject, err := s.subjectRepo.FindByID(ctx, req.SubjectID)
	if err != nil {
		return nil, notFound(err, "subject", req.SubjectID)
	}
	if req.TopicID != nil {
		topic, err := s.subjectRepo.FindTopicByID(ctx, *req.TopicID)
		if err != nil {
			return nil, notFound(err, "topic", *req.TopicID)
		}
		if topic.SubjectID != subject.ID {
			return nil, fmt.Errorf("%w: topic %d is not part of subject %d", ErrInvalidInput, topic.ID, subject.ID)
		}
	}

	count := req.Count
	if count <= 0 {
		count = defaultPracticeCount
	}
	mode := req.Mode
	if mode == "" {
		mode = model.PracticeModeTopicWise
		if req.TopicID == nil {
			mode = model.PracticeModeSubjectWise
		}
	}

	questions, err := s.questionRepo.FindRandom(ctx, repository.QuestionFilter{
		SubjectID:  subject.ID,
		TopicID:    req.TopicID,
		Difficulty: req.Difficulty,
	}, count)
	if err != nil {
		log.Error().Err(err).Uint("subjectID", subject.ID).Msg("Failed to pick practice questions")
		return nil, fmt.Errorf("error fetching questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("%w: no questions available for this selection", ErrInvalidInput)
	}

	session := model.PracticeSession{
		StudentID:      caller.UserID,
		SubjectID:      subject.ID,
		TopicID:        req.TopicID,
		Mode:           mode,
		Questions:      questions,
		TotalQuestions: len(questions),
		StartedAt:      s.now(),
	}
	if err := s.practiceRepo.Create(ctx, &session); err != nil {
		log.Error().Err(err).Uint("studentID", caller.UserID).Msg("Failed to create practice session")
		return nil, fmt.Errorf("database error creating practice session: %w", err)
	}
	session.Subject = *subject
	out := toPracticeSessionDTO(session, true)
	return &out, nil
}

func (s *practiceService) own(ctx context.Context, caller policy.Principal, sessionID uint) (*model.PracticeSession, error) {
	session, err := s.practiceRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, notFound(err, "practice session", sessionID)
	}
	if session.StudentID != caller.UserID {
		return nil, fmt.Errorf("%w: practice session %d", ErrNotFound, sessionID)
	}
	return session, nil
}

func (s *practiceService) Complete(ctx context.Context, caller policy.Principal, sessionID uint, req dto.PracticeCompleteDTO) (*dto.PracticeSessionDTO, error) {
	session, err := s.own(ctx, caller, sessionID)
	if err != nil {
		return nil, err
	}
	if session.IsCompleted {
		return nil, fmt.Errorf("%w: practice session %d already completed", ErrInvalidState, sessionID)
	}
	if req.CorrectCount < 0 || req.IncorrectCount < 0 || req.TimeTakenSeconds < 0 {
		return nil, fmt.Errorf("%w: counts must not be negative", ErrInvalidInput)
	}
	if req.CorrectCount+req.IncorrectCount > session.TotalQuestions {
		return nil, fmt.Errorf("%w: %d answers reported for %d questions", ErrInvalidInput, req.CorrectCount+req.IncorrectCount, session.TotalQuestions)
	}

	now := s.now()
	session.CorrectCount = req.CorrectCount
	session.IncorrectCount = req.IncorrectCount
	session.TimeTakenSeconds = req.TimeTakenSeconds
	session.IsCompleted = true
	session.CompletedAt = &now
	if err := s.practiceRepo.Update(ctx, session); err != nil {
		log.Error().Err(err).Uint("sessionID", sessionID).Msg("Failed to complete practice session")
		return nil, fmt.Errorf("database error completing practice session: %w", err)
	}

	if s.progress != nil {
		delta := model.ActivityDelta{
			QuestionsPracticed: req.CorrectCount + req.IncorrectCount,
			TimeSpentMinutes:   req.TimeTakenSeconds / 60,
		}
		if err := s.progress.RecordActivity(ctx, caller.UserID, delta); err != nil {
			log.Warn().Err(err).Uint("sessionID", sessionID).Msg("Failed to record practice activity")
		}
	}
	out := toPracticeSessionDTO(*session, false)
	return &out, nil
}

func (s *practiceService) Get(ctx context.Context, caller policy.Principal, sessionID uint) (*dto.PracticeSessionDTO, error) {
	session, err := s.own(ctx, caller, sessionID)
	if err != nil {
		return nil, err
	}
	out := toPracticeSessionDTO(*session, true)
	return &out, nil
}

func (s *practiceService) List(ctx context.Context, caller policy.Principal) ([]dto.PracticeSessionDTO, error) {
	sessions, err := s.practiceRepo.FindByStudent(ctx, caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("error fetching practice sessions: %w", err)
	}
	out := make([]dto.PracticeSessionDTO, len(sessions))
	for i, session := range sessions {
		out[i] = toPracticeSessionDTO(session, false)
	}
	return out, nil
}
