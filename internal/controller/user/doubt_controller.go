package user

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lshigami/padhoplus/internal/controller"
	"github.com/lshigami/padhoplus/internal/dto"
	"github.com/lshigami/padhoplus/internal/service"
)

type DoubtController struct {
	doubtService service.DoubtService
}

func NewDoubtController(doubtService service.DoubtService) *DoubtController {
	return &DoubtController{doubtService: doubtService}
}

// CreateDoubt godoc
// @Summary (Student) Ask a doubt
// @Tags User - Doubts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param doubt body dto.DoubtCreateDTO true "Doubt"
// @Success 201 {object} dto.DoubtDTO
// @Failure 400 {object} dto.ErrorResponse
// @Failure 403 {object} dto.ErrorResponse
// @Router /doubts [post]
func (c *DoubtController) CreateDoubt(ctx *gin.Context) {
	var req dto.DoubtCreateDTO
	if !controller.BindJSON(ctx, &req) {
		return
	}
	doubt, err := c.doubtService.Create(ctx.Request.Context(), controller.Caller(ctx), req)
	if err != nil {
		controller.RespondError(ctx, err, "Failed to create doubt")
		return
	}
	ctx.JSON(http.StatusCreated, doubt)
}

// ListDoubts godoc
// @Summary (User) List doubts
// @Description Public doubts plus the caller's own. Moderators see all.
// @Tags User - Doubts
// @Produce json
// @Security BearerAuth
// @Param subject query string false "Subject slug"
// @Param status query string false "pending, in_progress, answered or closed"
// @Param search query string false "Search title and description"
// @Param mine query bool false "Only the caller's doubts"
// @Success 200 {array} dto.DoubtDTO
// @Router /doubts [get]
func (c *DoubtController) ListDoubts(ctx *gin.Context) {
	var query dto.DoubtListQuery
	if !controller.BindQuery(ctx, &query) {
		return
	}
	doubts, err := c.doubtService.List(ctx.Request.Context(), controller.Caller(ctx), query)
	if err != nil {
		controller.RespondError(ctx, err, "Failed to retrieve doubts")
		return
	}
	ctx.JSON(http.StatusOK, doubts)
}

// GetDoubt godoc
// @Summary (User) Get a doubt with its responses
// @Tags User - Doubts
// @Produce json
// @Security BearerAuth
// @Param doubt_id path int true "Doubt ID"
// @Success 200 {object} dto.DoubtDTO
// @Failure 404 {object} dto.ErrorResponse
// @Router /doubts/{doubt_id} [get]
func (c *DoubtController) GetDoubt(ctx *gin.Context) {
	doubtID, ok := controller.ParseID(ctx, "doubt_id")
	if !ok {
		return
	}
	doubt, err := c.doubtService.Get(ctx.Request.Context(), controller.Caller(ctx), doubtID)
	if err != nil {
		controller.RespondError(ctx, err, "Failed to retrieve doubt")
		return
	}
	ctx.JSON(http.StatusOK, doubt)
}

// AssignDoubt godoc
// @Summary (Staff) Assign a doubt to a teacher
// @Tags User - Doubts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param doubt_id path int true "Doubt ID"
// @Param assignment body dto.DoubtAssignDTO true "Teacher"
// @Success 200 {object} dto.DoubtDTO
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /doubts/{doubt_id}/assign [post]
func (c *DoubtController) AssignDoubt(ctx *gin.Context) {
	doubtID, ok := controller.ParseID(ctx, "doubt_id")
	if !ok {
		return
	}
	var req dto.DoubtAssignDTO
	if !controller.BindJSON(ctx, &req) {
		return
	}
	doubt, err := c.doubtService.Assign(ctx.Request.Context(), controller.Caller(ctx), doubtID, req)
	if err != nil {
		controller.RespondError(ctx, err, "Failed to assign doubt")
		return
	}
	ctx.JSON(http.StatusOK, doubt)
}

// RespondToDoubt godoc
// @Summary (User) Answer a doubt
// @Tags User - Doubts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param doubt_id path int true "Doubt ID"
// @Param response body dto.DoubtRespondDTO true "Answer"
// @Success 201 {object} dto.DoubtResponseDTO
// @Failure 400 {object} dto.ErrorResponse "Doubt is closed"
// @Failure 404 {object} dto.ErrorResponse
// @Router /doubts/{doubt_id}/responses [post]
func (c *DoubtController) RespondToDoubt(ctx *gin.Context) {
	doubtID, ok := controller.ParseID(ctx, "doubt_id")
	if !ok {
		return
	}
	var req dto.DoubtRespondDTO
	if !controller.BindJSON(ctx, &req) {
		return
	}
	resp, err := c.doubtService.Respond(ctx.Request.Context(), controller.Caller(ctx), doubtID, req)
	if err != nil {
		controller.RespondError(ctx, err, "Failed to respond to doubt")
		return
	}
	ctx.JSON(http.StatusCreated, resp)
}

// DraftAIAnswer godoc
// @Summary (Staff) Draft an answer with the AI assistant
// @Tags User - Doubts
// @Produce json
// @Security BearerAuth
// @Param doubt_id path int true "Doubt ID"
// @Success 201 {object} dto.DoubtResponseDTO
// @Failure 403 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse "Assistant not configured"
// @Router /doubts/{doubt_id}/ai-draft [post]
func (c *DoubtController) DraftAIAnswer(ctx *gin.Context) {
	doubtID, ok := controller.ParseID(ctx, "doubt_id")
	if !ok {
		return
	}
	resp, err := c.doubtService.DraftAIAnswer(ctx.Request.Context(), controller.Caller(ctx), doubtID)
	if err != nil {
		controller.RespondError(ctx, err, "Failed to draft answer")
		return
	}
	ctx.JSON(http.StatusCreated, resp)
}

// ResolveDoubt godoc
// @Summary (User) Close a doubt
// @Tags User - Doubts
// @Produce json
// @Security BearerAuth
// @Param doubt_id path int true "Doubt ID"
// @Success 200 {object} dto.DoubtDTO
// @Failure 403 {object} dto.ErrorResponse
// @Router /doubts/{doubt_id}/resolve [post]
func (c *DoubtController) ResolveDoubt(ctx *gin.Context) {
	doubtID, ok := controller.ParseID(ctx, "doubt_id")
	if !ok {
		return
	}
	doubt, err := c.doubtService.Resolve(ctx.Request.Context(), controller.Caller(ctx), doubtID)
	if err != nil {
		controller.RespondError(ctx, err, "Failed to resolve doubt")
		return
	}
	ctx.JSON(http.StatusOK, doubt)
}

// UpvoteDoubt godoc
// @Summary (User) Toggle an upvote on a doubt
// @Tags User - Doubts
// @Produce json
// @Security BearerAuth
// @Param doubt_id path int true "Doubt ID"
// @Success 200 {object} dto.UpvoteResultDTO
// @Failure 404 {object} dto.ErrorResponse
// @Router /doubts/{doubt_id}/upvote [post]
func (c *DoubtController) UpvoteDoubt(ctx *gin.Context) {
	doubtID, ok := controller.ParseID(ctx, "doubt_id")
	if !ok {
		return
	}
	res, err := c.doubtService.ToggleDoubtUpvote(ctx.Request.Context(), controller.Caller(ctx), doubtID)
	if err != nil {
		controller.RespondError(ctx, err, "Failed to upvote doubt")
		return
	}
	ctx.JSON(http.StatusOK, res)
}

// AcceptResponse godoc
// @Summary (Student) Accept an answer
// @Description Marks the response accepted and closes the doubt.
// @Tags User - Doubts
// @Produce json
// @Security BearerAuth
// @Param response_id path int true "Response ID"
// @Success 200 {object} dto.DoubtResponseDTO
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /doubt-responses/{response_id}/accept [post]
func (c *DoubtController) AcceptResponse(ctx *gin.Context) {
	responseID, ok := controller.ParseID(ctx, "response_id")
	if !ok {
		return
	}
	resp, err := c.doubtService.AcceptResponse(ctx.Request.Context(), controller.Caller(ctx), responseID)
	if err != nil {
		controller.RespondError(ctx, err, "Failed to accept response")
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// UpvoteResponse godoc
// @Summary (User) Toggle an upvote on an answer
// @Tags User - Doubts
// @Produce json
// @Security BearerAuth
// @Param response_id path int true "Response ID"
// @Success 200 {object} dto.UpvoteResultDTO
// @Failure 404 {object} dto.ErrorResponse
// @Router /doubt-responses/{response_id}/upvote [post]
func (c *DoubtController) UpvoteResponse(ctx *gin.Context) {
	responseID, ok := controller.ParseID(ctx, "response_id")
	if !ok {
		return
	}
	res, err := c.doubtService.ToggleResponseUpvote(ctx.Request.Context(), controller.Caller(ctx), responseID)
	if err != nil {
		controller.RespondError(ctx, err, "Failed to upvote response")
		return
	}
	ctx.JSON(http.StatusOK, res)
}
