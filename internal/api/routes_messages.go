package api

import (
	"github.com/gin-gonic/gin"

	"github.com/florentd35/teachly/internal/handlers"
)

func registerMessageRoutes(api *gin.RouterGroup, handler *handlers.MessageHandler) {
	messages := api.Group("/messages")
	{
		messages.POST("", handler.Send)
		messages.GET("/latest", handler.Latest)
		messages.GET("/unread-count", handler.UnreadCount)
		messages.GET("/with/:id", handler.Conversation)
		messages.POST("/with/:id/read", handler.MarkRead)
	}
}
