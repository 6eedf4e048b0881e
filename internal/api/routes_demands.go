package api

import (
	"github.com/gin-gonic/gin"

	"github.com/florentd35/teachly/internal/handlers"
)

func registerDemandRoutes(api *gin.RouterGroup, handler *handlers.DemandHandler) {
	demands := api.Group("/demands")
	{
		demands.POST("", handler.Send)
		demands.GET("", handler.List)
		demands.GET("/:id", handler.Get)
		demands.POST("/:id/accept", handler.Accept)
		demands.POST("/:id/cancel", handler.Cancel)
	}
}
