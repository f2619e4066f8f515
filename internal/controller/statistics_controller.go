package controller

import (
	"examhub_backend/internal/service"
	"examhub_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type StatisticsController struct {
	Service *service.StatisticsService
}

func NewStatisticsController(svc *service.StatisticsService) *StatisticsController {
	return &StatisticsController{Service: svc}
}

// @Summary Attempt and per-question rollups for one assessment
// @Tags statistics
// @Produce json
// @Security BearerAuth
// @Param id path string true "definition id"
// @Success 200 {object} util.Response
// @Router /api/teacher/definitions/{id}/statistics [get]
func (c *StatisticsController) DefinitionStatistics(ctx *gin.Context) {
	stats, err := c.Service.DefinitionStatistics(ctx.Param("id"))
	if err != nil {
		util.ServiceError(ctx, err)
		return
	}
	util.Success(ctx, stats)
}
