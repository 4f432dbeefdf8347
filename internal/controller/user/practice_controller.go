package user

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lshigami/padhoplus/internal/controller"
	"github.com/lshigami/padhoplus/internal/dto"
	"github.com/lshigami/padhoplus/internal/service"
)

type PracticeController struct {
	practiceService service.PracticeService
}

func NewPracticeController(practiceService service.PracticeService) *PracticeController {
	return &PracticeController{practiceService: practiceService}
}

// StartPractice godoc
// @Summary (Student) Start a practice session
// @Description Picks random active questions from the subject, or from the topic when one is given.
// @Tags User - Practice
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param session body dto.PracticeStartDTO true "Subject, optional topic and question count"
// @Success 201 {object} dto.PracticeSessionDTO
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse "Subject or topic not found"
// @Router /practice [post]
func (c *PracticeController) StartPractice(ctx *gin.Context) {
	var req dto.PracticeStartDTO
	if !controller.BindJSON(ctx, &req) {
		return
	}
	session, err := c.practiceService.Start(ctx.Request.Context(), controller.Caller(ctx), req)
	if err != nil {
		controller.RespondError(ctx, err, "Failed to start practice")
		return
	}
	ctx.JSON(http.StatusCreated, session)
}

// CompletePractice godoc
// @Summary (Student) Complete a practice session
// @Tags User - Practice
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param session_id path int true "Session ID"
// @Param result body dto.PracticeCompleteDTO true "Counts observed by the client"
// @Success 200 {object} dto.PracticeSessionDTO
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /practice/{session_id}/complete [post]
func (c *PracticeController) CompletePractice(ctx *gin.Context) {
	sessionID, ok := controller.ParseID(ctx, "session_id")
	if !ok {
		return
	}
	var req dto.PracticeCompleteDTO
	if !controller.BindJSON(ctx, &req) {
		return
	}
	session, err := c.practiceService.Complete(ctx.Request.Context(), controller.Caller(ctx), sessionID, req)
	if err != nil {
		controller.RespondError(ctx, err, "Failed to complete practice")
		return
	}
	ctx.JSON(http.StatusOK, session)
}

// GetPractice godoc
// @Summary (Student) Get a practice session with its questions
// @Tags User - Practice
// @Produce json
// @Security BearerAuth
// @Param session_id path int true "Session ID"
// @Success 200 {object} dto.PracticeSessionDTO
// @Failure 404 {object} dto.ErrorResponse
// @Router /practice/{session_id} [get]
func (c *PracticeController) GetPractice(ctx *gin.Context) {
	sessionID, ok := controller.ParseID(ctx, "session_id")
	if !ok {
		return
	}
	session, err := c.practiceService.Get(ctx.Request.Context(), controller.Caller(ctx), sessionID)
	if err != nil {
		controller.RespondError(ctx, err, "Failed to retrieve practice session")
		return
	}
	ctx.JSON(http.StatusOK, session)
}

// ListPractice godoc
// @Summary (Student) List own practice sessions
// @Tags User - Practice
// @Produce json
// @Security BearerAuth
// @Success 200 {array} dto.PracticeSessionDTO
// @Router /practice [get]
func (c *PracticeController) ListPractice(ctx *gin.Context) {
	sessions, err := c.practiceService.List(ctx.Request.Context(), controller.Caller(ctx))
	if err != nil {
		controller.RespondError(ctx, err, "Failed to retrieve practice sessions")
		return
	}
	ctx.JSON(http.StatusOK, sessions)
}
