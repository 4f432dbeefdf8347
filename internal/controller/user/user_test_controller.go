package user

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lshigami/padhoplus/internal/controller"
	"github.com/lshigami/padhoplus/internal/dto"
	"github.com/lshigami/padhoplus/internal/service"
	"github.com/rs/zerolog/log"
)

type UserTestController struct {
	userTestService       service.UserTestService
	testSubmissionService service.TestSubmissionService
}

func NewUserTestController(uts service.UserTestService, tss service.TestSubmissionService) *UserTestController {
	return &UserTestController{
		userTestService:       uts,
		testSubmissionService: tss,
	}
}

// GetAllTests godoc
// @Summary (User) List visible tests
// @Description Students and parents see non-draft tests of enrolled batches, teachers see their own tests, admins see all.
// @Tags User - Tests & Attempts
// @Produce json
// @Security BearerAuth
// @Param batch query string false "Batch slug"
// @Param status query string false "draft, scheduled, live or completed"
// @Param test_type query string false "mock, chapter, full_length or practice"
// @Success 200 {array} dto.TestSummaryDTO
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /tests [get]
func (c *UserTestController) GetAllTests(ctx *gin.Context) {
	var query dto.ListTestsQuery
	if !controller.BindQuery(ctx, &query) {
		return
	}
	tests, err := c.userTestService.ListTests(ctx.Request.Context(), controller.Caller(ctx), query)
	if err != nil {
		controller.RespondError(ctx, err, "Failed to retrieve tests")
		return
	}
	ctx.JSON(http.StatusOK, tests)
}

// GetTestDetails godoc
// @Summary (User) Get a test with its questions
// @Description Answer keys are only included for staff.
// @Tags User - Tests & Attempts
// @Produce json
// @Security BearerAuth
// @Param test_id path int true "Test ID"
// @Success 200 {object} dto.TestDetailDTO
// @Failure 400 {object} dto.ErrorResponse "Invalid Test ID format"
// @Failure 404 {object} dto.ErrorResponse "Test not found"
// @Router /tests/{test_id} [get]
func (c *UserTestController) GetTestDetails(ctx *gin.Context) {
	testID, ok := controller.ParseID(ctx, "test_id")
	if !ok {
		return
	}
	details, err := c.userTestService.GetTestDetails(ctx.Request.Context(), controller.Caller(ctx), testID)
	if err != nil {
		controller.RespondError(ctx, err, "Failed to retrieve test")
		return
	}
	ctx.JSON(http.StatusOK, details)
}

// StartTest godoc
// @Summary (Student) Start a test
// @Description Creates the caller's attempt, or returns the existing one.
// @Tags User - Tests & Attempts
// @Produce json
// @Security BearerAuth
// @Param test_id path int true "Test ID"
// @Success 200 {object} dto.AttemptDTO "Existing attempt"
// @Success 201 {object} dto.AttemptDTO "New attempt"
// @Failure 400 {object} dto.ErrorResponse "Test is not accepting attempts"
// @Failure 403 {object} dto.ErrorResponse "Not enrolled"
// @Failure 404 {object} dto.ErrorResponse "Test not found"
// @Router /tests/{test_id}/start [post]
func (c *UserTestController) StartTest(ctx *gin.Context) {
	testID, ok := controller.ParseID(ctx, "test_id")
	if !ok {
		return
	}
	attempt, created, err := c.testSubmissionService.StartTest(ctx.Request.Context(), controller.Caller(ctx), testID)
	if err != nil {
		controller.RespondError(ctx, err, "Failed to start test")
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	ctx.JSON(status, attempt)
}

// SaveResponse godoc
// @Summary (Student) Save an answer
// @Description Records or overwrites the answer to one question of an open attempt.
// @Tags User - Tests & Attempts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param attempt_id path int true "Attempt ID"
// @Param response body dto.SaveResponseDTO true "Answer"
// @Success 200 {object} dto.ResponseDTO
// @Failure 400 {object} dto.ErrorResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /attempts/{attempt_id}/responses [post]
func (c *UserTestController) SaveResponse(ctx *gin.Context) {
	attemptID, ok := controller.ParseID(ctx, "attempt_id")
	if !ok {
		return
	}
	var req dto.SaveResponseDTO
	if !controller.BindJSON(ctx, &req) {
		return
	}
	resp, err := c.testSubmissionService.SaveResponse(ctx.Request.Context(), controller.Caller(ctx), attemptID, req)
	if err != nil {
		controller.RespondError(ctx, err, "Failed to save response")
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// SubmitTestAttempt godoc
// @Summary (Student) Submit an attempt
// @Description Grades every question, then ranks all submitted attempts of the test.
// @Tags User - Tests & Attempts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param attempt_id path int true "Attempt ID"
// @Param submission body dto.SubmitAttemptDTO true "Time taken"
// @Success 200 {object} dto.AttemptDTO
// @Failure 400 {object} dto.ErrorResponse "Already submitted or owned by another student"
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /attempts/{attempt_id}/submit [post]
func (c *UserTestController) SubmitTestAttempt(ctx *gin.Context) {
	attemptID, ok := controller.ParseID(ctx, "attempt_id")
	if !ok {
		return
	}
	var req dto.SubmitAttemptDTO
	if !controller.BindJSON(ctx, &req) {
		return
	}
	attempt, err := c.testSubmissionService.SubmitAttempt(ctx.Request.Context(), controller.Caller(ctx), attemptID, req)
	if err != nil {
		controller.RespondError(ctx, err, "Failed to submit test attempt")
		return
	}
	log.Info().Uint("attemptID", attemptID).Float64("score", attempt.Score).Msg("Attempt submitted")
	ctx.JSON(http.StatusOK, attempt)
}

// AbandonAttempt godoc
// @Summary (Student) Abandon an attempt
// @Tags User - Tests & Attempts
// @Produce json
// @Security BearerAuth
// @Param attempt_id path int true "Attempt ID"
// @Success 200 {object} dto.AttemptDTO
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /attempts/{attempt_id}/abandon [post]
func (c *UserTestController) AbandonAttempt(ctx *gin.Context) {
	attemptID, ok := controller.ParseID(ctx, "attempt_id")
	if !ok {
		return
	}
	attempt, err := c.testSubmissionService.AbandonAttempt(ctx.Request.Context(), controller.Caller(ctx), attemptID)
	if err != nil {
		controller.RespondError(ctx, err, "Failed to abandon attempt")
		return
	}
	ctx.JSON(http.StatusOK, attempt)
}

// GetUserTestAttempts godoc
// @Summary (User) List attempts
// @Description Students see their own attempts, parents their children's, teachers those on their tests, admins all.
// @Tags User - Tests & Attempts
// @Produce json
// @Security BearerAuth
// @Param test_id query int false "Filter by test"
// @Success 200 {array} dto.AttemptDTO
// @Failure 500 {object} dto.ErrorResponse
// @Router /attempts [get]
func (c *UserTestController) GetUserTestAttempts(ctx *gin.Context) {
	var query dto.ListAttemptsQuery
	if !controller.BindQuery(ctx, &query) {
		return
	}
	attempts, err := c.testSubmissionService.ListAttempts(ctx.Request.Context(), controller.Caller(ctx), query)
	if err != nil {
		controller.RespondError(ctx, err, "Failed to retrieve attempts")
		return
	}
	ctx.JSON(http.StatusOK, attempts)
}

// GetSpecificTestAttemptDetails godoc
// @Summary (User) Get an attempt with its responses
// @Description Answer keys are revealed once the attempt is submitted.
// @Tags User - Tests & Attempts
// @Produce json
// @Security BearerAuth
// @Param attempt_id path int true "Attempt ID"
// @Success 200 {object} dto.AttemptDTO
// @Failure 404 {object} dto.ErrorResponse
// @Router /attempts/{attempt_id} [get]
func (c *UserTestController) GetSpecificTestAttemptDetails(ctx *gin.Context) {
	attemptID, ok := controller.ParseID(ctx, "attempt_id")
	if !ok {
		return
	}
	attempt, err := c.testSubmissionService.GetTestAttemptDetails(ctx.Request.Context(), controller.Caller(ctx), attemptID)
	if err != nil {
		controller.RespondError(ctx, err, "Failed to retrieve attempt")
		return
	}
	ctx.JSON(http.StatusOK, attempt)
}

// GetAttemptAnalysis godoc
// @Summary (User) Topic-wise analysis of a submitted attempt
// @Tags User - Tests & Attempts
// @Produce json
// @Security BearerAuth
// @Param attempt_id path int true "Attempt ID"
// @Success 200 {object} dto.AttemptAnalysisDTO
// @Failure 400 {object} dto.ErrorResponse "Attempt not submitted"
// @Failure 404 {object} dto.ErrorResponse
// @Router /attempts/{attempt_id}/analysis [get]
func (c *UserTestController) GetAttemptAnalysis(ctx *gin.Context) {
	attemptID, ok := controller.ParseID(ctx, "attempt_id")
	if !ok {
		return
	}
	analysis, err := c.testSubmissionService.Analysis(ctx.Request.Context(), controller.Caller(ctx), attemptID)
	if err != nil {
		controller.RespondError(ctx, err, "Failed to analyse attempt")
		return
	}
	ctx.JSON(http.StatusOK, analysis)
}

// GetLeaderboard godoc
// @Summary (User) Leaderboard of a test
// @Tags User - Tests & Attempts
// @Produce json
// @Security BearerAuth
// @Param test_id path int true "Test ID"
// @Param limit query int false "Entries to return (max 50)"
// @Success 200 {object} dto.LeaderboardDTO
// @Failure 404 {object} dto.ErrorResponse
// @Router /tests/{test_id}/leaderboard [get]
func (c *UserTestController) GetLeaderboard(ctx *gin.Context) {
	testID, ok := controller.ParseID(ctx, "test_id")
	if !ok {
		return
	}
	var query dto.LeaderboardQuery
	if !controller.BindQuery(ctx, &query) {
		return
	}
	if _, err := c.userTestService.GetTestDetails(ctx.Request.Context(), controller.Caller(ctx), testID); err != nil {
		controller.RespondError(ctx, err, "Failed to retrieve leaderboard")
		return
	}
	board, err := c.testSubmissionService.Leaderboard(ctx.Request.Context(), testID, query.Limit)
	if err != nil {
		controller.RespondError(ctx, err, "Failed to retrieve leaderboard")
		return
	}
	ctx.JSON(http.StatusOK, board)
}
