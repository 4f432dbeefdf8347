package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/lshigami/padhoplus/internal/controller"
	"github.com/lshigami/padhoplus/internal/dto"
	"github.com/lshigami/padhoplus/internal/service"
)

type AdminCatalogController struct {
	catalogService service.CatalogService
}

func NewAdminCatalogController(catalogService service.CatalogService) *AdminCatalogController {
	return &AdminCatalogController{catalogService: catalogService}
}

// CreateSubject godoc
// @Summary (Staff) Create a subject
// @Tags Admin - Catalog
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param subject body dto.SubjectCreateDTO true "Subject"
// @Success 201 {object} model.Subject
// @Failure 409 {object} dto.ErrorResponse "Slug taken"
// @Router /admin/subjects [post]
func (c *AdminCatalogController) CreateSubject(ctx *gin.Context) {
	var req dto.SubjectCreateDTO
	if !controller.BindJSON(ctx, &req) {
		return
	}
	subject, err := c.catalogService.CreateSubject(ctx.Request.Context(), req)
	if err != nil {
		controller.RespondError(ctx, err, "Failed to create subject")
		return
	}
	ctx.JSON(http.StatusCreated, subject)
}

// CreateTopic godoc
// @Summary (Staff) Add a topic to a subject
// @Tags Admin - Catalog
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param subject_id path int true "Subject ID"
// @Param topic body dto.TopicCreateDTO true "Topic"
// @Success 201 {object} model.Topic
// @Failure 404 {object} dto.ErrorResponse
// @Router /admin/subjects/{subject_id}/topics [post]
func (c *AdminCatalogController) CreateTopic(ctx *gin.Context) {
	subjectID, ok := controller.ParseID(ctx, "subject_id")
	if !ok {
		return
	}
	var req dto.TopicCreateDTO
	if !controller.BindJSON(ctx, &req) {
		return
	}
	topic, err := c.catalogService.CreateTopic(ctx.Request.Context(), subjectID, req)
	if err != nil {
		controller.RespondError(ctx, err, "Failed to create topic")
		return
	}
	ctx.JSON(http.StatusCreated, topic)
}

// CreateBatch godoc
// @Summary (Staff) Create a batch
// @Tags Admin - Catalog
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param batch body dto.BatchCreateDTO true "Batch"
// @Success 201 {object} model.Batch
// @Failure 400 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse "Slug taken"
// @Router /admin/batches [post]
func (c *AdminCatalogController) CreateBatch(ctx *gin.Context) {
	var req dto.BatchCreateDTO
	if !controller.BindJSON(ctx, &req) {
		return
	}
	batch, err := c.catalogService.CreateBatch(ctx.Request.Context(), req)
	if err != nil {
		controller.RespondError(ctx, err, "Failed to create batch")
		return
	}
	ctx.JSON(http.StatusCreated, batch)
}
