package api

import (
	"github.com/gin-gonic/gin"

	"github.com/florentd35/teachly/internal/handlers"
)

func registerContactRoutes(api *gin.RouterGroup, handler *handlers.ContactHandler) {
	contacts := api.Group("/contacts")
	{
		contacts.GET("", handler.List)
		contacts.DELETE("/:id", handler.Remove)

		contacts.POST("/invitations", handler.Invite)
		contacts.GET("/invitations", handler.Invitations)
		contacts.POST("/invitations/:id/accept", handler.Accept)
		contacts.POST("/invitations/:id/decline", handler.Decline)
	}
}
