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
	"github.com/lshigami/padhoplus/internal/scoring"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const recentTestsLimit = 10

// ProgressTracker records study activity and awards achievements on behalf
// of the other services.
type ProgressTracker interface {
	RecordActivity(ctx context.Context, userID uint, delta model.ActivityDelta) error
	AwardByName(ctx context.Context, userID uint, name string) (*dto.AwardResultDTO, error)
}

type AnalyticsService interface {
	ProgressTracker
	ListAchievements(ctx context.Context) ([]dto.AchievementDTO, error)
	MyAchievements(ctx context.Context, caller policy.Principal) ([]dto.UserAchievementDTO, error)
	Award(ctx context.Context, caller policy.Principal, req dto.AwardRequestDTO) (*dto.AwardResultDTO, error)
	Streak(ctx context.Context, caller policy.Principal) (*dto.StreakDTO, error)
	Activity(ctx context.Context, caller policy.Principal, days int) ([]model.DailyActivity, error)
	// Performance summarises studentID's submitted tests. Zero means the caller.
	Performance(ctx context.Context, caller policy.Principal, studentID uint) (*dto.PerformanceDTO, error)
	StudentDashboard(ctx context.Context, caller policy.Principal) (*dto.StudentDashboardDTO, error)
	TeacherDashboard(ctx context.Context, caller policy.Principal) (*dto.TeacherDashboardDTO, error)
	AdminDashboard(ctx context.Context, caller policy.Principal) (*dto.AdminDashboardDTO, error)
}

type analyticsService struct {
	analyticsRepo  repository.AnalyticsRepository
	attemptRepo    repository.TestAttemptRepository
	enrollmentRepo repository.EnrollmentRepository
	userRepo       repository.UserRepository
	batchRepo      repository.BatchRepository
	testRepo       repository.TestRepository
	doubtRepo      repository.DoubtRepository
	scoreConverter ScoreConverterService
	now            func() time.Time
}

func NewAnalyticsService(
	analyticsRepo repository.AnalyticsRepository,
	attemptRepo repository.TestAttemptRepository,
	enrollmentRepo repository.EnrollmentRepository,
	userRepo repository.UserRepository,
	batchRepo repository.BatchRepository,
	testRepo repository.TestRepository,
	doubtRepo repository.DoubtRepository,
	scoreConverter ScoreConverterService,
) AnalyticsService {
	return &analyticsService{
		analyticsRepo:  analyticsRepo,
		attemptRepo:    attemptRepo,
		enrollmentRepo: enrollmentRepo,
		userRepo:       userRepo,
		batchRepo:      batchRepo,
		testRepo:       testRepo,
		doubtRepo:      doubtRepo,
		scoreConverter: scoreConverter,
		now:            time.Now,
	}
}

func (s *analyticsService) RecordActivity(ctx context.Context, userID uint, delta model.ActivityDelta) error {
	streak, err := s.analyticsRepo.RecordActivity(ctx, userID, s.now(), delta)
	if err != nil {
		log.Error().Err(err).Uint("userID", userID).Msg("Failed to record daily activity")
		return fmt.Errorf("recording activity: %w", err)
	}
	log.Debug().Uint("userID", userID).Int("streak", streak.CurrentStreak).Msg("Activity recorded")
	return nil
}

func (s *analyticsService) AwardByName(ctx context.Context, userID uint, name string) (*dto.AwardResultDTO, error) {
	achievement, err := s.analyticsRepo.FindAchievementByName(ctx, name)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: achievement %q", ErrNotFound, name)
		}
		return nil, fmt.Errorf("loading achievement %q: %w", name, err)
	}
	earned, awarded, err := s.analyticsRepo.AwardAchievement(ctx, userID, *achievement)
	if err != nil {
		log.Error().Err(err).Uint("userID", userID).Str("achievement", name).Msg("Failed to award achievement")
		return nil, fmt.Errorf("awarding achievement: %w", err)
	}
	if awarded {
		log.Info().Uint("userID", userID).Str("achievement", name).Int("points", achievement.Points).Msg("Achievement awarded")
	}
	return &dto.AwardResultDTO{Awarded: awarded, Achievement: toUserAchievementDTO(*earned)}, nil
}

func (s *analyticsService) Award(ctx context.Context, caller policy.Principal, req dto.AwardRequestDTO) (*dto.AwardResultDTO, error) {
	if !caller.Can(policy.ViewAdminDashboard) {
		return nil, fmt.Errorf("%w: only admins can award achievements", ErrForbidden)
	}
	if _, err := s.userRepo.FindByID(ctx, req.UserID); err != nil {
		return nil, notFound(err, "user", req.UserID)
	}
	return s.AwardByName(ctx, req.UserID, req.AchievementName)
}

func (s *analyticsService) ListAchievements(ctx context.Context) ([]dto.AchievementDTO, error) {
	achievements, err := s.analyticsRepo.ListAchievements(ctx)
	if err != nil {
		return nil, fmt.Errorf("error fetching achievements: %w", err)
	}
	out := make([]dto.AchievementDTO, len(achievements))
	for i, a := range achievements {
		out[i] = toAchievementDTO(a)
	}
	return out, nil
}

func (s *analyticsService) MyAchievements(ctx context.Context, caller policy.Principal) ([]dto.UserAchievementDTO, error) {
	earned, err := s.analyticsRepo.FindUserAchievements(ctx, caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("error fetching achievements: %w", err)
	}
	out := make([]dto.UserAchievementDTO, len(earned))
	for i, ua := range earned {
		out[i] = toUserAchievementDTO(ua)
	}
	return out, nil
}

func (s *analyticsService) Streak(ctx context.Context, caller policy.Principal) (*dto.StreakDTO, error) {
	streak, err := s.analyticsRepo.FindStreak(ctx, caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("error fetching streak: %w", err)
	}
	out := toStreakDTO(*streak)
	return &out, nil
}

func (s *analyticsService) Activity(ctx context.Context, caller policy.Principal, days int) ([]model.DailyActivity, error) {
	if days <= 0 || days > 90 {
		days = 30
	}
	to := s.now()
	from := model.Day(to).AddDate(0, 0, -(days - 1))
	return s.analyticsRepo.FindDailyActivity(ctx, caller.UserID, from, to)
}

func (s *analyticsService) resolveStudent(ctx context.Context, caller policy.Principal, studentID uint) (uint, error) {
	if studentID == 0 || studentID == caller.UserID {
		return caller.UserID, nil
	}
	switch {
	case caller.Can(policy.ViewAllAttempts):
		return studentID, nil
	case caller.Can(policy.ViewChildren):
		children, err := s.userRepo.ChildIDs(ctx, caller.UserID)
		if err != nil {
			return 0, fmt.Errorf("error fetching children: %w", err)
		}
		for _, id := range children {
			if id == studentID {
				return studentID, nil
			}
		}
	}
	return 0, fmt.Errorf("%w: cannot view student %d", ErrForbidden, studentID)
}

func (s *analyticsService) Performance(ctx context.Context, caller policy.Principal, studentID uint) (*dto.PerformanceDTO, error) {
	studentID, err := s.resolveStudent(ctx, caller, studentID)
	if err != nil {
		return nil, err
	}
	attempts, err := s.attemptRepo.FindSubmittedByStudent(ctx, studentID)
	if err != nil {
		log.Error().Err(err).Uint("studentID", studentID).Msg("Failed to load submitted attempts")
		return nil, fmt.Errorf("error fetching attempts: %w", err)
	}

	out := dto.PerformanceDTO{TotalTests: len(attempts), RecentTests: []dto.AttemptDTO{}}
	if len(attempts) == 0 {
		return &out, nil
	}

	var scoreSum, pctSum float64
	var ranked int
	for _, a := range attempts {
		scoreSum += a.Score
		if a.Percentile != nil {
			pctSum += *a.Percentile
			ranked++
		}
		if a.Rank != nil && (out.BestRank == nil || *a.Rank < *out.BestRank) {
			best := *a.Rank
			out.BestRank = &best
		}
	}
	out.AverageScore = scoring.RoundTo(scoreSum/float64(len(attempts)), 2)
	if ranked > 0 {
		out.AveragePercentile = scoring.RoundTo(pctSum/float64(ranked), 2)
	}

	recent := attempts
	if len(recent) > recentTestsLimit {
		recent = recent[:recentTestsLimit]
	}
	for _, a := range recent {
		out.RecentTests = append(out.RecentTests, toAttemptDTO(a, s.scoreConverter, false))
	}
	return &out, nil
}

func (s *analyticsService) StudentDashboard(ctx context.Context, caller policy.Principal) (*dto.StudentDashboardDTO, error) {
	g, gctx := errgroup.WithContext(ctx)

	var (
		enrollments []model.Enrollment
		attempts    []model.TestAttempt
		streak      *model.Streak
		earned      []model.UserAchievement
	)
	g.Go(func() (err error) {
		enrollments, err = s.enrollmentRepo.FindActiveByStudent(gctx, caller.UserID)
		return err
	})
	g.Go(func() (err error) {
		attempts, err = s.attemptRepo.FindSubmittedByStudent(gctx, caller.UserID)
		return err
	})
	g.Go(func() (err error) {
		streak, err = s.analyticsRepo.FindStreak(gctx, caller.UserID)
		return err
	})
	g.Go(func() (err error) {
		earned, err = s.analyticsRepo.FindUserAchievements(gctx, caller.UserID)
		return err
	})
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Uint("userID", caller.UserID).Msg("Failed to build student dashboard")
		return nil, fmt.Errorf("error building dashboard: %w", err)
	}

	out := dto.StudentDashboardDTO{
		EnrolledBatches: len(enrollments),
		TestsTaken:      len(attempts),
		Streak:          toStreakDTO(*streak),
		RecentTests:     []dto.AttemptDTO{},
		Achievements:    make([]dto.UserAchievementDTO, 0, len(earned)),
	}
	for i, a := range attempts {
		if i == 3 {
			break
		}
		out.RecentTests = append(out.RecentTests, toAttemptDTO(a, s.scoreConverter, false))
	}
	for _, ua := range earned {
		out.Achievements = append(out.Achievements, toUserAchievementDTO(ua))
	}
	return &out, nil
}

func (s *analyticsService) TeacherDashboard(ctx context.Context, caller policy.Principal) (*dto.TeacherDashboardDTO, error) {
	if !caller.Can(policy.ViewTeacherDashboard) {
		return nil, fmt.Errorf("%w: teacher dashboard", ErrForbidden)
	}
	g, gctx := errgroup.WithContext(ctx)

	var (
		tests    []repository.TestSummary
		attempts []model.TestAttempt
		pending  int64
	)
	g.Go(func() (err error) {
		tests, err = s.testRepo.FindAllWithQuestionCount(gctx, repository.TestFilter{TeacherID: caller.UserID})
		return err
	})
	g.Go(func() (err error) {
		attempts, err = s.attemptRepo.FindScoped(gctx, repository.AttemptScope{TeacherID: caller.UserID})
		return err
	})
	g.Go(func() (err error) {
		pending, err = s.doubtRepo.CountByStatus(gctx, model.DoubtPending, model.DoubtInProgress)
		return err
	})
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Uint("userID", caller.UserID).Msg("Failed to build teacher dashboard")
		return nil, fmt.Errorf("error building dashboard: %w", err)
	}

	out := dto.TeacherDashboardDTO{ManagedTests: len(tests), PendingDoubts: pending}
	for _, t := range tests {
		if t.Status == model.TestStatusLive {
			out.LiveTests++
		}
	}
	for _, a := range attempts {
		if a.Status == model.AttemptSubmitted {
			out.SubmittedAttempts++
		}
	}
	return &out, nil
}

func (s *analyticsService) AdminDashboard(ctx context.Context, caller policy.Principal) (*dto.AdminDashboardDTO, error) {
	if !caller.Can(policy.ViewAdminDashboard) {
		return nil, fmt.Errorf("%w: admin dashboard", ErrForbidden)
	}
	var out dto.AdminDashboardDTO
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		out.TotalStudents, err = s.userRepo.CountByRole(gctx, policy.RoleStudent)
		return err
	})
	g.Go(func() (err error) {
		out.TotalTeachers, err = s.userRepo.CountByRole(gctx, policy.RoleTeacher)
		return err
	})
	g.Go(func() (err error) {
		out.ActiveBatches, err = s.batchRepo.CountByStatus(gctx, model.BatchStatusActive)
		return err
	})
	g.Go(func() (err error) {
		out.ActiveEnrollments, err = s.enrollmentRepo.CountActive(gctx)
		return err
	})
	g.Go(func() (err error) {
		out.LiveTests, err = s.testRepo.CountByStatus(gctx, model.TestStatusLive)
		return err
	})
	g.Go(func() (err error) {
		out.OpenDoubts, err = s.doubtRepo.CountByStatus(gctx, model.DoubtPending, model.DoubtInProgress, model.DoubtAnswered)
		return err
	})
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Failed to build admin dashboard")
		return nil, fmt.Errorf("error building dashboard: %w", err)
	}
	return &out, nil
}
