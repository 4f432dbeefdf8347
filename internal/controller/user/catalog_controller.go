package user

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lshigami/padhoplus/internal/controller"
	"github.com/lshigami/padhoplus/internal/dto"
	"github.com/lshigami/padhoplus/internal/repository"
	"github.com/lshigami/padhoplus/internal/service"
)

type CatalogController struct {
	catalogService service.CatalogService
}

func NewCatalogController(catalogService service.CatalogService) *CatalogController {
	return &CatalogController{catalogService: catalogService}
}

// ListSubjects godoc
// @Summary List subjects with their topics
// @Tags User - Catalog
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.Subject
// @Router /subjects [get]
func (c *CatalogController) ListSubjects(ctx *gin.Context) {
	subjects, err := c.catalogService.ListSubjects(ctx.Request.Context())
	if err != nil {
		controller.RespondError(ctx, err, "Failed to retrieve subjects")
		return
	}
	ctx.JSON(http.StatusOK, subjects)
}

// ListBatches godoc
// @Summary List batches
// @Tags User - Catalog
// @Produce json
// @Security BearerAuth
// @Param target_exam query string false "Target exam"
// @Param is_free query bool false "Only free or only paid batches"
// @Param status query string false "upcoming, active or completed"
// @Success 200 {array} model.Batch
// @Router /batches [get]
func (c *CatalogController) ListBatches(ctx *gin.Context) {
	var query dto.BatchListQuery
	if !controller.BindQuery(ctx, &query) {
		return
	}
	filter := repository.BatchFilter{TargetExam: query.TargetExam, IsFree: query.IsFree, Status: query.Status}
	batches, err := c.catalogService.ListBatches(ctx.Request.Context(), filter)
	if err != nil {
		controller.RespondError(ctx, err, "Failed to retrieve batches")
		return
	}
	ctx.JSON(http.StatusOK, batches)
}

// EnrollFree godoc
// @Summary (Student) Enroll in a free batch
// @Tags User - Catalog
// @Produce json
// @Security BearerAuth
// @Param batch_id path int true "Batch ID"
// @Success 200 {object} model.Enrollment
// @Failure 400 {object} dto.ErrorResponse "Batch requires payment"
// @Failure 404 {object} dto.ErrorResponse
// @Router /batches/{batch_id}/enroll [post]
func (c *CatalogController) EnrollFree(ctx *gin.Context) {
	batchID, ok := controller.ParseID(ctx, "batch_id")
	if !ok {
		return
	}
	enrollment, err := c.catalogService.EnrollFree(ctx.Request.Context(), controller.Caller(ctx), batchID)
	if err != nil {
		controller.RespondError(ctx, err, "Failed to enroll")
		return
	}
	ctx.JSON(http.StatusOK, enrollment)
}

// MyEnrollments godoc
// @Summary (Student) Active enrollments
// @Tags User - Catalog
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.Enrollment
// @Router /enrollments [get]
func (c *CatalogController) MyEnrollments(ctx *gin.Context) {
	enrollments, err := c.catalogService.MyEnrollments(ctx.Request.Context(), controller.Caller(ctx))
	if err != nil {
		controller.RespondError(ctx, err, "Failed to retrieve enrollments")
		return
	}
	ctx.JSON(http.StatusOK, enrollments)
}
