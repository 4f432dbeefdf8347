package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lshigami/padhoplus/internal/controller"
	"github.com/lshigami/padhoplus/internal/dto"
	"github.com/lshigami/padhoplus/internal/service"
)

// AdminController serves the staff dashboards and the admin-only actions.
type AdminController struct {
	analyticsService service.AnalyticsService
	paymentService   service.PaymentService
}

func NewAdminController(analyticsService service.AnalyticsService, paymentService service.PaymentService) *AdminController {
	return &AdminController{analyticsService: analyticsService, paymentService: paymentService}
}

// TeacherDashboard godoc
// @Summary (Staff) Teacher dashboard
// @Tags Admin - Dashboards
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.TeacherDashboardDTO
// @Failure 403 {object} dto.ErrorResponse
// @Router /admin/dashboard/teacher [get]
func (c *AdminController) TeacherDashboard(ctx *gin.Context) {
	out, err := c.analyticsService.TeacherDashboard(ctx.Request.Context(), controller.Caller(ctx))
	if err != nil {
		controller.RespondError(ctx, err, "Failed to build dashboard")
		return
	}
	ctx.JSON(http.StatusOK, out)
}

// AdminDashboard godoc
// @Summary (Admin) Platform dashboard
// @Tags Admin - Dashboards
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.AdminDashboardDTO
// @Failure 403 {object} dto.ErrorResponse
// @Router /admin/dashboard [get]
func (c *AdminController) AdminDashboard(ctx *gin.Context) {
	out, err := c.analyticsService.AdminDashboard(ctx.Request.Context(), controller.Caller(ctx))
	if err != nil {
		controller.RespondError(ctx, err, "Failed to build dashboard")
		return
	}
	ctx.JSON(http.StatusOK, out)
}

// AwardAchievement godoc
// @Summary (Admin) Award an achievement
// @Description Idempotent. Points are credited only the first time.
// @Tags Admin - Dashboards
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param award body dto.AwardRequestDTO true "User and achievement"
// @Success 200 {object} dto.AwardResultDTO
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /admin/achievements/award [post]
func (c *AdminController) AwardAchievement(ctx *gin.Context) {
	var req dto.AwardRequestDTO
	if !controller.BindJSON(ctx, &req) {
		return
	}
	out, err := c.analyticsService.Award(ctx.Request.Context(), controller.Caller(ctx), req)
	if err != nil {
		controller.RespondError(ctx, err, "Failed to award achievement")
		return
	}
	ctx.JSON(http.StatusOK, out)
}

// RefundPayment godoc
// @Summary (Admin) Mark a completed payment refunded
// @Tags Admin - Dashboards
// @Produce json
// @Security BearerAuth
// @Param transaction_id path string true "Transaction ID"
// @Success 200 {object} dto.PaymentDTO
// @Failure 400 {object} dto.ErrorResponse "Payment is not completed"
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /admin/payments/{transaction_id}/refund [post]
func (c *AdminController) RefundPayment(ctx *gin.Context) {
	out, err := c.paymentService.MarkRefunded(ctx.Request.Context(), controller.Caller(ctx), ctx.Param("transaction_id"))
	if err != nil {
		controller.RespondError(ctx, err, "Failed to refund payment")
		return
	}
	ctx.JSON(http.StatusOK, out)
}
