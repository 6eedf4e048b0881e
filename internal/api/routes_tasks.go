package api

import (
	"github.com/gin-gonic/gin"

	"github.com/florentd35/teachly/internal/handlers"
)

func registerTaskRoutes(api *gin.RouterGroup, handler *handlers.TaskHandler) {
	tasks := api.Group("/tasks")
	{
		tasks.POST("", handler.Create)
		tasks.GET("", handler.List)
		tasks.GET("/:id", handler.Get)
		tasks.PATCH("/:id", handler.Update)
		tasks.DELETE("/:id", handler.Delete)
		tasks.POST("/:id/complete", handler.Complete)
		tasks.POST("/:id/validate", handler.Validate)
	}
}
