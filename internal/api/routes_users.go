package api

import (
	"github.com/gin-gonic/gin"

	"github.com/florentd35/teachly/internal/handlers"
	"github.com/florentd35/teachly/internal/middleware"
	"github.com/florentd35/teachly/internal/models"
)

func registerUserRoutes(api *gin.RouterGroup, handler *handlers.UserHandler) {
	users := api.Group("/users")
	{
		users.GET("", handler.List)
		users.GET("/me", handler.Me)
		users.PATCH("/me", handler.UpdateMe)
		users.POST("/me/password", handler.ChangePassword)
		users.GET("/me/supervised", middleware.RequireRole(models.RoleTeacher, models.RoleAdmin), handler.Supervised)
		users.GET("/:id", handler.Get)
		users.DELETE("/:id", handler.Delete)
	}
}
