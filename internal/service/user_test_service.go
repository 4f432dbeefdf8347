package service

import (
	"context"
	"fmt"

	"github.com/lshigami/padhoplus/internal/dto"
	"github.com/lshigami/padhoplus/internal/model"
	"github.com/lshigami/padhoplus/internal/policy"
	"github.com/lshigami/padhoplus/internal/repository"
	"github.com/rs/zerolog/log"
)

// UserTestService lists and shows tests scoped to what the caller may see.
type UserTestService interface {
	ListTests(ctx context.Context, caller policy.Principal, query dto.ListTestsQuery) ([]dto.TestSummaryDTO, error)
	GetTestDetails(ctx context.Context, caller policy.Principal, testID uint) (*dto.TestDetailDTO, error)
}

type userTestService struct {
	testRepo       repository.TestRepository
	enrollmentRepo repository.EnrollmentRepository
	userRepo       repository.UserRepository
}

func NewUserTestService(testRepo repository.TestRepository, enrollmentRepo repository.EnrollmentRepository, userRepo repository.UserRepository) UserTestService {
	return &userTestService{testRepo: testRepo, enrollmentRepo: enrollmentRepo, userRepo: userRepo}
}

// enrolledBatchIDs returns the batches a student, or a parent's children,
// are actively enrolled in.
func enrolledBatchIDs(ctx context.Context, caller policy.Principal, enrollmentRepo repository.EnrollmentRepository, userRepo repository.UserRepository) ([]uint, error) {
	students := []uint{caller.UserID}
	if caller.Can(policy.ViewChildren) {
		children, err := userRepo.ChildIDs(ctx, caller.UserID)
		if err != nil {
			return nil, err
		}
		students = children
	}
	seen := make(map[uint]bool)
	var ids []uint
	for _, studentID := range students {
		batchIDs, err := enrollmentRepo.ActiveBatchIDs(ctx, studentID)
		if err != nil {
			return nil, err
		}
		for _, id := range batchIDs {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}

func (s *userTestService) scope(ctx context.Context, caller policy.Principal) (repository.TestFilter, error) {
	var filter repository.TestFilter
	switch {
	case caller.Is(policy.RoleAdmin):
	case caller.Can(policy.ManageCatalog):
		filter.TeacherID = caller.UserID
	default:
		ids, err := enrolledBatchIDs(ctx, caller, s.enrollmentRepo, s.userRepo)
		if err != nil {
			return filter, err
		}
		filter.RestrictBatches = true
		filter.BatchIDs = ids
		filter.ExcludeDraft = true
	}
	return filter, nil
}

func (s *userTestService) ListTests(ctx context.Context, caller policy.Principal, query dto.ListTestsQuery) ([]dto.TestSummaryDTO, error) {
	filter, err := s.scope(ctx, caller)
	if err != nil {
		log.Error().Err(err).Uint("userID", caller.UserID).Msg("Failed to resolve test scope")
		return nil, fmt.Errorf("error resolving visible batches: %w", err)
	}
	filter.BatchSlug = query.Batch
	filter.Status = model.TestStatus(query.Status)
	filter.TestType = query.TestType

	summaries, err := s.testRepo.FindAllWithQuestionCount(ctx, filter)
	if err != nil {
		log.Error().Err(err).Msg("Failed to get tests with question count from repository")
		return nil, fmt.Errorf("error fetching tests: %w", err)
	}

	dtos := make([]dto.TestSummaryDTO, 0, len(summaries))
	for _, ts := range summaries {
		dtos = append(dtos, toTestSummaryDTO(ts.Test, ts.QuestionCount))
	}
	return dtos, nil
}

func (s *userTestService) canView(ctx context.Context, caller policy.Principal, test *model.Test) (bool, error) {
	switch {
	case caller.Is(policy.RoleAdmin):
		return true, nil
	case caller.Can(policy.ManageCatalog):
		return s.testRepo.IsOwnedByTeacher(ctx, test.ID, caller.UserID)
	}
	if test.Status == model.TestStatusDraft {
		return false, nil
	}
	ids, err := enrolledBatchIDs(ctx, caller, s.enrollmentRepo, s.userRepo)
	if err != nil {
		return false, err
	}
	for _, id := range ids {
		if id == test.BatchID {
			return true, nil
		}
	}
	return false, nil
}

func (s *userTestService) GetTestDetails(ctx context.Context, caller policy.Principal, testID uint) (*dto.TestDetailDTO, error) {
	test, err := s.testRepo.FindByIDWithQuestions(ctx, testID)
	if err != nil {
		log.Error().Err(err).Uint("testID", testID).Msg("Failed to get test details from repository")
		return nil, notFound(err, "test", testID)
	}
	ok, err := s.canView(ctx, caller, test)
	if err != nil {
		return nil, fmt.Errorf("error checking test visibility: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: test %d", ErrNotFound, testID)
	}

	resp := dto.TestDetailDTO{
		TestSummaryDTO: toTestSummaryDTO(*test, len(test.Questions)),
		PassingMarks:   test.PassingMarks,
		BatchName:      test.Batch.Name,
		Questions:      toQuestionDTOs(test.Questions, caller.Can(policy.ManageCatalog)),
	}
	if test.Subject != nil {
		resp.SubjectName = test.Subject.Name
	}
	return &resp, nil
}
