package controller

import (
	"strconv"

	"examhub_backend/internal/service"
	"examhub_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type DefinitionController struct {
	Service *service.DefinitionService
}

func NewDefinitionController(svc *service.DefinitionService) *DefinitionController {
	return &DefinitionController{Service: svc}
}

// @Summary Create an assessment definition
// @Tags definitions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body service.DefinitionRequest true "definition fields"
// @Success 201 {object} util.Response
// @Router /api/teacher/definitions [post]
func (c *DefinitionController) Create(ctx *gin.Context) {
	var req service.DefinitionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	d, err := c.Service.CreateDefinition(user.UserID, req)
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Created(ctx, d)
}

// @Summary Update an assessment definition
// @Tags definitions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "definition id"
// @Param body body service.DefinitionRequest true "fields to change"
// @Success 200 {object} util.Response
// @Router /api/teacher/definitions/{id} [put]
func (c *DefinitionController) Update(ctx *gin.Context) {
	var req service.DefinitionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	d, err := c.Service.UpdateDefinition(ctx.Param("id"), req)
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Success(ctx, d)
}

// @Summary Get a definition with its question tree
// @Tags definitions
// @Produce json
// @Security BearerAuth
// @Param id path string true "definition id"
// @Success 200 {object} util.Response
// @Router /api/teacher/definitions/{id} [get]
func (c *DefinitionController) Get(ctx *gin.Context) {
	d, err := c.Service.GetDefinition(ctx.Param("id"))
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Success(ctx, d)
}

// @Summary List definitions
// @Tags definitions
// @Produce json
// @Security BearerAuth
// @Param page query int false "page number"
// @Param limit query int false "page size"
// @Param published query bool false "published only"
// @Success 200 {object} util.Response
// @Router /api/teacher/definitions [get]
func (c *DefinitionController) List(ctx *gin.Context) {
	page, limit := pagination(ctx)
	publishedOnly := ctx.Query("published") == "true"

	ds, total, err := c.Service.ListDefinitions(page, limit, publishedOnly)
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: ds, Total: total, Page: page, Limit: limit})
}

// @Summary Add a question to a draft definition
// @Tags definitions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "definition id"
// @Param body body service.QuestionRequest true "question fields"
// @Success 201 {object} util.Response
// @Router /api/teacher/definitions/{id}/questions [post]
func (c *DefinitionController) AddQuestion(ctx *gin.Context) {
	var req service.QuestionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	q, err := c.Service.AddQuestion(ctx.Param("id"), req)
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Created(ctx, q)
}

// @Summary Replace a question on a draft definition
// @Tags definitions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param questionId path string true "question id"
// @Param body body service.QuestionRequest true "question fields"
// @Success 200 {object} util.Response
// @Router /api/teacher/questions/{questionId} [put]
func (c *DefinitionController) UpdateQuestion(ctx *gin.Context) {
	var req service.QuestionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	q, err := c.Service.UpdateQuestion(ctx.Param("questionId"), req)
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Success(ctx, q)
}

// @Summary Delete a question from a draft definition
// @Tags definitions
// @Produce json
// @Security BearerAuth
// @Param questionId path string true "question id"
// @Success 200 {object} util.Response
// @Router /api/teacher/questions/{questionId} [delete]
func (c *DefinitionController) DeleteQuestion(ctx *gin.Context) {
	if err := c.Service.DeleteQuestion(ctx.Param("questionId")); err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// @Summary Validate a definition without publishing
// @Tags definitions
// @Produce json
// @Security BearerAuth
// @Param id path string true "definition id"
// @Success 200 {object} util.Response
// @Router /api/teacher/definitions/{id}/validate [post]
func (c *DefinitionController) Validate(ctx *gin.Context) {
	if err := c.Service.Validate(ctx.Param("id")); err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"valid": true})
}

// @Summary Publish a definition, freezing its question set
// @Tags definitions
// @Produce json
// @Security BearerAuth
// @Param id path string true "definition id"
// @Success 200 {object} util.Response
// @Router /api/teacher/definitions/{id}/publish [post]
func (c *DefinitionController) Publish(ctx *gin.Context) {
	d, err := c.Service.Publish(ctx.Param("id"))
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Success(ctx, d)
}

// @Summary Student view: browse published assessments
// @Tags assessments
// @Produce json
// @Security BearerAuth
// @Param page query int false "page number"
// @Param limit query int false "page size"
// @Success 200 {object} util.Response
// @Router /api/assessments [get]
func (c *DefinitionController) ListPublished(ctx *gin.Context) {
	page, limit := pagination(ctx)

	views, total, err := c.Service.ListPublishedForStudent(page, limit)
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: views, Total: total, Page: page, Limit: limit})
}

func pagination(ctx *gin.Context) (int, int) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}
