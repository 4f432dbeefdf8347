package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lshigami/padhoplus/internal/controller"
	"github.com/lshigami/padhoplus/internal/dto"
	"github.com/lshigami/padhoplus/internal/repository"
	"github.com/lshigami/padhoplus/internal/service"
	"github.com/rs/zerolog/log"
)

// AdminTestController manages the question bank and tests. Routes are
// gated by the ManageCatalog capability.
type AdminTestController struct {
	catalogService service.CatalogService
}

func NewAdminTestController(catalogService service.CatalogService) *AdminTestController {
	return &AdminTestController{catalogService: catalogService}
}

// CreateQuestion godoc
// @Summary (Staff) Add a question to the bank
// @Tags Admin - Tests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param question body dto.QuestionCreateDTO true "Question"
// @Success 201 {object} dto.QuestionDTO
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse "Subject or topic not found"
// @Router /admin/questions [post]
func (c *AdminTestController) CreateQuestion(ctx *gin.Context) {
	var req dto.QuestionCreateDTO
	if !controller.BindJSON(ctx, &req) {
		return
	}
	question, err := c.catalogService.CreateQuestion(ctx.Request.Context(), controller.Caller(ctx), req)
	if err != nil {
		controller.RespondError(ctx, err, "Failed to create question")
		return
	}
	ctx.JSON(http.StatusCreated, question)
}

// ListQuestions godoc
// @Summary (Staff) Browse the question bank
// @Tags Admin - Tests
// @Produce json
// @Security BearerAuth
// @Param subject_id query int false "Subject"
// @Param topic_id query int false "Topic"
// @Param difficulty query string false "easy, medium or hard"
// @Success 200 {array} dto.QuestionDTO
// @Router /admin/questions [get]
func (c *AdminTestController) ListQuestions(ctx *gin.Context) {
	var query dto.QuestionListQuery
	if !controller.BindQuery(ctx, &query) {
		return
	}
	filter := repository.QuestionFilter{SubjectID: query.SubjectID, TopicID: query.TopicID, Difficulty: query.Difficulty}
	questions, err := c.catalogService.ListQuestions(ctx.Request.Context(), filter)
	if err != nil {
		controller.RespondError(ctx, err, "Failed to retrieve questions")
		return
	}
	ctx.JSON(http.StatusOK, questions)
}

// CreateTest godoc
// @Summary (Staff) Create a test
// @Description The test starts as a draft. Existing questions may be linked right away.
// @Tags Admin - Tests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param test_data body dto.TestCreateDTO true "Test"
// @Success 201 {object} dto.TestDetailDTO
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse "Batch not found"
// @Router /admin/tests [post]
func (c *AdminTestController) CreateTest(ctx *gin.Context) {
	var req dto.TestCreateDTO
	if !controller.BindJSON(ctx, &req) {
		return
	}
	test, err := c.catalogService.CreateTest(ctx.Request.Context(), controller.Caller(ctx), req)
	if err != nil {
		log.Warn().Err(err).Str("title", req.Title).Msg("Admin CreateTest: Service error")
		controller.RespondError(ctx, err, "Failed to create test")
		return
	}
	ctx.JSON(http.StatusCreated, test)
}

// AttachQuestions godoc
// @Summary (Staff) Link questions to a test
// @Description Not allowed once the test is live or completed.
// @Tags Admin - Tests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param test_id path int true "Test ID"
// @Param questions body dto.AttachQuestionsDTO true "Question IDs"
// @Success 200 {object} dto.TestSummaryDTO
// @Failure 400 {object} dto.ErrorResponse
// @Failure 403 {object} dto.ErrorResponse "Test managed by another teacher"
// @Router /admin/tests/{test_id}/questions [post]
func (c *AdminTestController) AttachQuestions(ctx *gin.Context) {
	testID, ok := controller.ParseID(ctx, "test_id")
	if !ok {
		return
	}
	var req dto.AttachQuestionsDTO
	if !controller.BindJSON(ctx, &req) {
		return
	}
	summary, err := c.catalogService.AttachQuestions(ctx.Request.Context(), controller.Caller(ctx), testID, req)
	if err != nil {
		controller.RespondError(ctx, err, "Failed to attach questions")
		return
	}
	ctx.JSON(http.StatusOK, summary)
}

// UpdateTestStatus godoc
// @Summary (Staff) Change a test's status
// @Description Scheduling or publishing needs at least one question. Scheduling also needs a start time.
// @Tags Admin - Tests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param test_id path int true "Test ID"
// @Param status body dto.TestStatusDTO true "New status"
// @Success 200 {object} dto.TestSummaryDTO
// @Failure 400 {object} dto.ErrorResponse
// @Failure 403 {object} dto.ErrorResponse
// @Router /admin/tests/{test_id}/status [patch]
func (c *AdminTestController) UpdateTestStatus(ctx *gin.Context) {
	testID, ok := controller.ParseID(ctx, "test_id")
	if !ok {
		return
	}
	var req dto.TestStatusDTO
	if !controller.BindJSON(ctx, &req) {
		return
	}
	summary, err := c.catalogService.UpdateTestStatus(ctx.Request.Context(), controller.Caller(ctx), testID, req)
	if err != nil {
		controller.RespondError(ctx, err, "Failed to update test status")
		return
	}
	ctx.JSON(http.StatusOK, summary)
}
