package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lshigami/padhoplus/internal/dto"
	"github.com/lshigami/padhoplus/internal/model"
	"github.com/lshigami/padhoplus/internal/policy"
	"github.com/lshigami/padhoplus/internal/repository"
	"github.com/rs/zerolog/log"
)

type DoubtService interface {
	Create(ctx context.Context, caller policy.Principal, req dto.DoubtCreateDTO) (*dto.DoubtDTO, error)
	List(ctx context.Context, caller policy.Principal, query dto.DoubtListQuery) ([]dto.DoubtDTO, error)
	// Get returns the doubt with its responses and counts the view.
	Get(ctx context.Context, caller policy.Principal, doubtID uint) (*dto.DoubtDTO, error)
	Assign(ctx context.Context, caller policy.Principal, doubtID uint, req dto.DoubtAssignDTO) (*dto.DoubtDTO, error)
	Respond(ctx context.Context, caller policy.Principal, doubtID uint, req dto.DoubtRespondDTO) (*dto.DoubtResponseDTO, error)
	AcceptResponse(ctx context.Context, caller policy.Principal, responseID uint) (*dto.DoubtResponseDTO, error)
	Resolve(ctx context.Context, caller policy.Principal, doubtID uint) (*dto.DoubtDTO, error)
	ToggleDoubtUpvote(ctx context.Context, caller policy.Principal, doubtID uint) (*dto.UpvoteResultDTO, error)
	ToggleResponseUpvote(ctx context.Context, caller policy.Principal, responseID uint) (*dto.UpvoteResultDTO, error)
	DraftAIAnswer(ctx context.Context, caller policy.Principal, doubtID uint) (*dto.DoubtResponseDTO, error)
}

type doubtService struct {
	doubtRepo    repository.DoubtRepository
	subjectRepo  repository.SubjectRepository
	questionRepo repository.QuestionRepository
	userRepo     repository.UserRepository
	assistant    DoubtAssistant
	progress     ProgressTracker
	now          func() time.Time
}

func NewDoubtService(
	doubtRepo repository.DoubtRepository,
	subjectRepo repository.SubjectRepository,
	questionRepo repository.QuestionRepository,
	userRepo repository.UserRepository,
	assistant DoubtAssistant,
	progress ProgressTracker,
) DoubtService {
	return &doubtService{
		doubtRepo:    doubtRepo,
		subjectRepo:  subjectRepo,
		questionRepo: questionRepo,
		userRepo:     userRepo,
		assistant:    assistant,
		progress:     progress,
		now:          time.Now,
	}
}

func (s *doubtService) Create(ctx context.Context, caller policy.Principal, req dto.DoubtCreateDTO) (*dto.DoubtDTO, error) {
	if !caller.Can(policy.TakeTests) {
		return nil, fmt.Errorf("%w: only students can ask doubts", ErrForbidden)
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
	if req.QuestionID != nil {
		if _, err := s.questionRepo.FindByID(ctx, *req.QuestionID); err != nil {
			return nil, notFound(err, "question", *req.QuestionID)
		}
	}

	doubt := model.Doubt{
		StudentID:   caller.UserID,
		SubjectID:   subject.ID,
		TopicID:     req.TopicID,
		QuestionID:  req.QuestionID,
		Title:       req.Title,
		Description: req.Description,
		ImagePath:   req.ImagePath,
		Status:      model.DoubtPending,
		Priority:    req.Priority,
		IsPublic:    true,
	}
	if doubt.Priority == "" {
		doubt.Priority = "medium"
	}
	if req.IsPublic != nil {
		doubt.IsPublic = *req.IsPublic
	}
	if err := s.doubtRepo.Create(ctx, &doubt); err != nil {
		log.Error().Err(err).Uint("studentID", caller.UserID).Msg("Failed to create doubt")
		return nil, fmt.Errorf("database error creating doubt: %w", err)
	}
	log.Info().Uint("doubtID", doubt.ID).Uint("studentID", caller.UserID).Msg("Doubt created")

	if s.progress != nil {
		if err := s.progress.RecordActivity(ctx, caller.UserID, model.ActivityDelta{DoubtsAsked: 1}); err != nil {
			log.Warn().Err(err).Uint("doubtID", doubt.ID).Msg("Failed to record doubt activity")
		}
	}
	doubt.Subject = *subject
	out := toDoubtDTO(doubt)
	return &out, nil
}

func (s *doubtService) List(ctx context.Context, caller policy.Principal, query dto.DoubtListQuery) ([]dto.DoubtDTO, error) {
	filter := repository.DoubtFilter{
		SubjectSlug: query.Subject,
		Status:      model.DoubtStatus(query.Status),
		Search:      query.Search,
	}
	if query.Mine {
		filter.StudentID = caller.UserID
	}
	if !caller.Can(policy.ModerateDoubts) {
		filter.VisibleTo = caller.UserID
	}
	doubts, err := s.doubtRepo.FindAll(ctx, filter)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list doubts")
		return nil, fmt.Errorf("error fetching doubts: %w", err)
	}
	out := make([]dto.DoubtDTO, len(doubts))
	for i, d := range doubts {
		out[i] = toDoubtDTO(d)
	}
	return out, nil
}

func canSeeDoubt(caller policy.Principal, d *model.Doubt) bool {
	return d.IsPublic || d.StudentID == caller.UserID || caller.Can(policy.ModerateDoubts)
}

func (s *doubtService) visible(ctx context.Context, caller policy.Principal, doubtID uint) (*model.Doubt, error) {
	doubt, err := s.doubtRepo.FindByID(ctx, doubtID)
	if err != nil {
		return nil, notFound(err, "doubt", doubtID)
	}
	if !canSeeDoubt(caller, doubt) {
		return nil, fmt.Errorf("%w: doubt %d", ErrNotFound, doubtID)
	}
	return doubt, nil
}

func (s *doubtService) Get(ctx context.Context, caller policy.Principal, doubtID uint) (*dto.DoubtDTO, error) {
	doubt, err := s.visible(ctx, caller, doubtID)
	if err != nil {
		return nil, err
	}
	if err := s.doubtRepo.IncrementViews(ctx, doubtID); err != nil {
		log.Warn().Err(err).Uint("doubtID", doubtID).Msg("Failed to count doubt view")
	} else {
		doubt.ViewsCount++
	}
	out := toDoubtDTO(*doubt)
	return &out, nil
}

func (s *doubtService) Assign(ctx context.Context, caller policy.Principal, doubtID uint, req dto.DoubtAssignDTO) (*dto.DoubtDTO, error) {
	if !caller.Can(policy.ModerateDoubts) {
		return nil, fmt.Errorf("%w: only teachers and admins can assign doubts", ErrForbidden)
	}
	doubt, err := s.visible(ctx, caller, doubtID)
	if err != nil {
		return nil, err
	}
	teacher, err := s.userRepo.FindByID(ctx, req.AssigneeID)
	if err != nil || teacher.Role != policy.RoleTeacher {
		return nil, fmt.Errorf("%w: teacher %d", ErrNotFound, req.AssigneeID)
	}
	if doubt.Status == model.DoubtClosed {
		return nil, fmt.Errorf("%w: doubt %d is closed", ErrInvalidState, doubtID)
	}

	doubt.AssignedToID = &teacher.ID
	doubt.Status = model.DoubtInProgress
	if err := s.doubtRepo.Update(ctx, doubt); err != nil {
		log.Error().Err(err).Uint("doubtID", doubtID).Msg("Failed to assign doubt")
		return nil, fmt.Errorf("database error assigning doubt: %w", err)
	}
	log.Info().Uint("doubtID", doubtID).Uint("teacherID", teacher.ID).Msg("Doubt assigned")
	out := toDoubtDTO(*doubt)
	return &out, nil
}

func (s *doubtService) Respond(ctx context.Context, caller policy.Principal, doubtID uint, req dto.DoubtRespondDTO) (*dto.DoubtResponseDTO, error) {
	doubt, err := s.visible(ctx, caller, doubtID)
	if err != nil {
		return nil, err
	}
	if doubt.Status == model.DoubtClosed {
		return nil, fmt.Errorf("%w: doubt %d is closed", ErrInvalidState, doubtID)
	}
	response := model.DoubtResponse{
		DoubtID:     doubt.ID,
		ResponderID: caller.UserID,
		Content:     req.Content,
		ImagePath:   req.ImagePath,
	}
	if err := s.doubtRepo.CreateResponse(ctx, &response); err != nil {
		log.Error().Err(err).Uint("doubtID", doubtID).Msg("Failed to create doubt response")
		return nil, fmt.Errorf("database error creating response: %w", err)
	}
	out := toDoubtResponseDTO(response)
	return &out, nil
}

func (s *doubtService) AcceptResponse(ctx context.Context, caller policy.Principal, responseID uint) (*dto.DoubtResponseDTO, error) {
	response, err := s.doubtRepo.FindResponseByID(ctx, responseID)
	if err != nil {
		return nil, notFound(err, "response", responseID)
	}
	doubt, err := s.visible(ctx, caller, response.DoubtID)
	if err != nil {
		return nil, err
	}
	if doubt.StudentID != caller.UserID && !caller.Is(policy.RoleAdmin) {
		return nil, fmt.Errorf("%w: only the student who asked can accept an answer", ErrForbidden)
	}
	accepted, err := s.doubtRepo.AcceptResponse(ctx, responseID)
	if err != nil {
		log.Error().Err(err).Uint("responseID", responseID).Msg("Failed to accept response")
		return nil, fmt.Errorf("database error accepting response: %w", err)
	}
	accepted.Responder = response.Responder
	out := toDoubtResponseDTO(*accepted)
	return &out, nil
}

func (s *doubtService) Resolve(ctx context.Context, caller policy.Principal, doubtID uint) (*dto.DoubtDTO, error) {
	doubt, err := s.visible(ctx, caller, doubtID)
	if err != nil {
		return nil, err
	}
	if doubt.StudentID != caller.UserID && !caller.Can(policy.ModerateDoubts) {
		return nil, fmt.Errorf("%w: only the student who asked or a teacher can resolve this doubt", ErrForbidden)
	}
	now := s.now()
	doubt.IsResolved = true
	doubt.Status = model.DoubtClosed
	doubt.ResolvedAt = &now
	if err := s.doubtRepo.Update(ctx, doubt); err != nil {
		log.Error().Err(err).Uint("doubtID", doubtID).Msg("Failed to resolve doubt")
		return nil, fmt.Errorf("database error resolving doubt: %w", err)
	}
	out := toDoubtDTO(*doubt)
	return &out, nil
}

func (s *doubtService) toggle(ctx context.Context, caller policy.Principal, target repository.UpvoteTarget) (*dto.UpvoteResultDTO, error) {
	upvoted, count, err := s.doubtRepo.ToggleUpvote(ctx, caller.UserID, target)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: upvote target", ErrNotFound)
		}
		log.Error().Err(err).Uint("userID", caller.UserID).Msg("Failed to toggle upvote")
		return nil, fmt.Errorf("database error toggling upvote: %w", err)
	}
	return &dto.UpvoteResultDTO{Upvoted: upvoted, Upvotes: count}, nil
}

func (s *doubtService) ToggleDoubtUpvote(ctx context.Context, caller policy.Principal, doubtID uint) (*dto.UpvoteResultDTO, error) {
	if _, err := s.visible(ctx, caller, doubtID); err != nil {
		return nil, err
	}
	return s.toggle(ctx, caller, repository.UpvoteTarget{DoubtID: doubtID})
}

func (s *doubtService) ToggleResponseUpvote(ctx context.Context, caller policy.Principal, responseID uint) (*dto.UpvoteResultDTO, error) {
	response, err := s.doubtRepo.FindResponseByID(ctx, responseID)
	if err != nil {
		return nil, notFound(err, "response", responseID)
	}
	if _, err := s.visible(ctx, caller, response.DoubtID); err != nil {
		return nil, err
	}
	return s.toggle(ctx, caller, repository.UpvoteTarget{ResponseID: responseID})
}

func (s *doubtService) DraftAIAnswer(ctx context.Context, caller policy.Principal, doubtID uint) (*dto.DoubtResponseDTO, error) {
	if !caller.Can(policy.ModerateDoubts) {
		return nil, fmt.Errorf("%w: only teachers and admins can request AI drafts", ErrForbidden)
	}
	doubt, err := s.visible(ctx, caller, doubtID)
	if err != nil {
		return nil, err
	}
	if doubt.Status == model.DoubtClosed {
		return nil, fmt.Errorf("%w: doubt %d is closed", ErrInvalidState, doubtID)
	}

	var question *model.Question
	if doubt.QuestionID != nil {
		if q, err := s.questionRepo.FindByID(ctx, *doubt.QuestionID); err == nil {
			question = q
		}
	}
	content, err := s.assistant.DraftAnswer(ctx, doubt, question)
	if err != nil {
		return nil, err
	}

	response := model.DoubtResponse{
		DoubtID:       doubt.ID,
		ResponderID:   caller.UserID,
		Content:       content,
		IsAIGenerated: true,
	}
	if err := s.doubtRepo.CreateResponse(ctx, &response); err != nil {
		log.Error().Err(err).Uint("doubtID", doubtID).Msg("Failed to store AI draft")
		return nil, fmt.Errorf("database error storing draft: %w", err)
	}
	log.Info().Uint("doubtID", doubtID).Uint("responseID", response.ID).Msg("AI draft answer stored")
	out := toDoubtResponseDTO(response)
	return &out, nil
}
