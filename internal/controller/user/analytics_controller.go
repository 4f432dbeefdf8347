package user

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/lshigami/padhoplus/internal/controller"
	"github.com/lshigami/padhoplus/internal/dto"
	"github.com/lshigami/padhoplus/internal/service"
)

type AnalyticsController struct {
	analyticsService service.AnalyticsService
}

func NewAnalyticsController(analyticsService service.AnalyticsService) *AnalyticsController {
	return &AnalyticsController{analyticsService: analyticsService}
}

// Dashboard godoc
// @Summary (Student) Dashboard summary
// @Tags User - Analytics
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.StudentDashboardDTO
// @Router /analytics/dashboard [get]
func (c *AnalyticsController) Dashboard(ctx *gin.Context) {
	out, err := c.analyticsService.StudentDashboard(ctx.Request.Context(), controller.Caller(ctx))
	if err != nil {
		controller.RespondError(ctx, err, "Failed to build dashboard")
		return
	}
	ctx.JSON(http.StatusOK, out)
}

// Performance godoc
// @Summary (User) Test performance summary
// @Description Parents may pass a child's id, admins any student's id.
// @Tags User - Analytics
// @Produce json
// @Security BearerAuth
// @Param student_id query int false "Student ID, defaults to the caller"
// @Success 200 {object} dto.PerformanceDTO
// @Failure 403 {object} dto.ErrorResponse
// @Router /analytics/performance [get]
func (c *AnalyticsController) Performance(ctx *gin.Context) {
	var studentID uint
	if raw := ctx.Query("student_id"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid student_id format"})
			return
		}
		studentID = uint(v)
	}
	out, err := c.analyticsService.Performance(ctx.Request.Context(), controller.Caller(ctx), studentID)
	if err != nil {
		controller.RespondError(ctx, err, "Failed to load performance")
		return
	}
	ctx.JSON(http.StatusOK, out)
}

// Streak godoc
// @Summary (User) Study streak and points
// @Tags User - Analytics
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.StreakDTO
// @Router /analytics/streak [get]
func (c *AnalyticsController) Streak(ctx *gin.Context) {
	out, err := c.analyticsService.Streak(ctx.Request.Context(), controller.Caller(ctx))
	if err != nil {
		controller.RespondError(ctx, err, "Failed to load streak")
		return
	}
	ctx.JSON(http.StatusOK, out)
}

// Activity godoc
// @Summary (User) Daily activity
// @Tags User - Analytics
// @Produce json
// @Security BearerAuth
// @Param days query int false "Window in days (default 30, max 90)"
// @Success 200 {array} model.DailyActivity
// @Router /analytics/activity [get]
func (c *AnalyticsController) Activity(ctx *gin.Context) {
	days, _ := strconv.Atoi(ctx.DefaultQuery("days", "30"))
	out, err := c.analyticsService.Activity(ctx.Request.Context(), controller.Caller(ctx), days)
	if err != nil {
		controller.RespondError(ctx, err, "Failed to load activity")
		return
	}
	ctx.JSON(http.StatusOK, out)
}

// Achievements godoc
// @Summary List all achievements
// @Tags User - Analytics
// @Produce json
// @Security BearerAuth
// @Success 200 {array} dto.AchievementDTO
// @Router /achievements [get]
func (c *AnalyticsController) Achievements(ctx *gin.Context) {
	out, err := c.analyticsService.ListAchievements(ctx.Request.Context())
	if err != nil {
		controller.RespondError(ctx, err, "Failed to load achievements")
		return
	}
	ctx.JSON(http.StatusOK, out)
}

// MyAchievements godoc
// @Summary (User) Achievements earned by the caller
// @Tags User - Analytics
// @Produce json
// @Security BearerAuth
// @Success 200 {array} dto.UserAchievementDTO
// @Router /achievements/mine [get]
func (c *AnalyticsController) MyAchievements(ctx *gin.Context) {
	out, err := c.analyticsService.MyAchievements(ctx.Request.Context(), controller.Caller(ctx))
	if err != nil {
		controller.RespondError(ctx, err, "Failed to load achievements")
		return
	}
	ctx.JSON(http.StatusOK, out)
}
