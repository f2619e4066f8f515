package controller

import (
	"encoding/json"

	"examhub_backend/internal/service"
	"examhub_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AttemptController struct {
	Service *service.AttemptService
}

func NewAttemptController(svc *service.AttemptService) *AttemptController {
	return &AttemptController{Service: svc}
}

type answerRequest struct {
	QuestionID string          `json:"questionId" binding:"required"`
	Payload    json.RawMessage `json:"payload" binding:"required"`
}

type reviewRequest struct {
	Points   *int   `json:"points" binding:"required"`
	Feedback string `json:"feedback"`
}

// @Summary Start a new attempt against a published assessment
// @Tags attempts
// @Produce json
// @Security BearerAuth
// @Param id path string true "definition id"
// @Success 201 {object} util.Response
// @Router /api/assessments/{id}/attempts [post]
func (c *AttemptController) Start(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	res, err := c.Service.StartAttempt(ctx.Param("id"), user.UserID)
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Created(ctx, res)
}

// @Summary Record or replace an answer on an open attempt
// @Tags attempts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "attempt id"
// @Param body body answerRequest true "question id and answer payload"
// @Success 200 {object} util.Response
// @Router /api/attempts/{id}/answers [put]
func (c *AttemptController) RecordAnswer(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req answerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.Service.RecordAnswer(ctx.Param("id"), user.UserID, req.QuestionID, req.Payload); err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// @Summary Submit an open attempt for grading
// @Tags attempts
// @Produce json
// @Security BearerAuth
// @Param id path string true "attempt id"
// @Success 200 {object} util.Response
// @Router /api/attempts/{id}/submit [post]
func (c *AttemptController) Submit(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	res, err := c.Service.FinalizeAttempt(ctx.Param("id"), user.UserID)
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Success(ctx, res)
}

// @Summary Get an attempt: questions, own answers, result once closed
// @Tags attempts
// @Produce json
// @Security BearerAuth
// @Param id path string true "attempt id"
// @Success 200 {object} util.Response
// @Router /api/attempts/{id} [get]
func (c *AttemptController) Get(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	view, err := c.Service.GetAttempt(ctx.Param("id"), user.UserID)
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Success(ctx, view)
}

// @Summary List the caller's own attempts
// @Tags attempts
// @Produce json
// @Security BearerAuth
// @Param definitionId query string false "filter by assessment"
// @Success 200 {object} util.Response
// @Router /api/attempts [get]
func (c *AttemptController) MyAttempts(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	attempts, err := c.Service.MyAttempts(user.UserID, ctx.Query("definitionId"))
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Success(ctx, attempts)
}

// @Summary Teacher view: list attempts for a definition
// @Tags review
// @Produce json
// @Security BearerAuth
// @Param id path string true "definition id"
// @Param page query int false "page number"
// @Param limit query int false "page size"
// @Param status query string false "filter by attempt status"
// @Success 200 {object} util.Response
// @Router /api/teacher/definitions/{id}/attempts [get]
func (c *AttemptController) ListForDefinition(ctx *gin.Context) {
	page, limit := pagination(ctx)

	attempts, total, err := c.Service.ListAttempts(ctx.Param("id"), page, limit, ctx.Query("status"))
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: attempts, Total: total, Page: page, Limit: limit})
}

// @Summary Teacher view: one attempt with answer material for review
// @Tags review
// @Produce json
// @Security BearerAuth
// @Param id path string true "attempt id"
// @Success 200 {object} util.Response
// @Router /api/teacher/attempts/{id} [get]
func (c *AttemptController) GetForReview(ctx *gin.Context) {
	detail, err := c.Service.GetAttemptForReview(ctx.Param("id"))
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Success(ctx, detail)
}

// @Summary Resolve a manually graded answer and re-aggregate the attempt
// @Tags review
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "attempt id"
// @Param questionId path string true "question id"
// @Param body body reviewRequest true "awarded points and feedback"
// @Success 200 {object} util.Response
// @Router /api/teacher/attempts/{id}/answers/{questionId}/review [post]
func (c *AttemptController) Review(ctx *gin.Context) {
	var req reviewRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	res, err := c.Service.ReviewAnswer(ctx.Param("id"), ctx.Param("questionId"), *req.Points, req.Feedback)
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Success(ctx, res)
}
