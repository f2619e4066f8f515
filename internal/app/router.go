package app

import (
	"examhub_backend/internal/config"
	"examhub_backend/internal/middleware"
	"examhub_backend/internal/model"
	"examhub_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/metrics", monitoring.PrometheusHandler())

	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
	}

	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		a.registerStudentRoutes(authGroup, c)
		a.registerTeacherRoutes(authGroup, c)
	}
}

func (a *App) registerStudentRoutes(rg *gin.RouterGroup, c *controllers) {
	rg.GET("/assessments", c.definition.ListPublished)
	rg.POST("/assessments/:id/attempts", c.attempt.Start)

	rg.GET("/attempts", c.attempt.MyAttempts)
	rg.GET("/attempts/:id", c.attempt.Get)
	rg.PUT("/attempts/:id/answers", c.attempt.RecordAnswer)
	rg.POST("/attempts/:id/submit", c.attempt.Submit)
}

func (a *App) registerTeacherRoutes(rg *gin.RouterGroup, c *controllers) {
	teacher := rg.Group("/teacher")
	teacher.Use(middleware.RoleMiddleware(model.Teacher))
	{
		teacher.POST("/definitions", c.definition.Create)
		teacher.GET("/definitions", c.definition.List)
		teacher.GET("/definitions/:id", c.definition.Get)
		teacher.PUT("/definitions/:id", c.definition.Update)
		teacher.POST("/definitions/:id/questions", c.definition.AddQuestion)
		teacher.POST("/definitions/:id/validate", c.definition.Validate)
		teacher.POST("/definitions/:id/publish", c.definition.Publish)
		teacher.GET("/definitions/:id/attempts", c.attempt.ListForDefinition)
		teacher.GET("/definitions/:id/statistics", c.statistics.DefinitionStatistics)

		teacher.PUT("/questions/:questionId", c.definition.UpdateQuestion)
		teacher.DELETE("/questions/:questionId", c.definition.DeleteQuestion)

		teacher.GET("/attempts/:id", c.attempt.GetForReview)
		teacher.POST("/attempts/:id/answers/:questionId/review", c.attempt.Review)
	}
}
