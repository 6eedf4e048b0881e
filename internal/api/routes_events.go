package api

import (
	"github.com/gin-gonic/gin"

	"github.com/florentd35/teachly/internal/handlers"
)

func registerEventRoutes(api *gin.RouterGroup, handler *handlers.EventHandler) {
	events := api.Group("/events")
	{
		events.POST("", handler.Create)
		events.GET("", handler.List)
		events.GET("/:id", handler.Get)
		events.PATCH("/:id", handler.Update)
		events.DELETE("/:id", handler.Delete)
		events.POST("/:id/invite", handler.Invite)
		events.POST("/:id/respond", handler.Respond)
	}
}
