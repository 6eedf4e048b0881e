package api

import (
	"time"

	"github.com/gin-gonic/gin"

	iauth "github.com/florentd35/teachly/internal/auth"
	"github.com/florentd35/teachly/internal/handlers"
	"github.com/florentd35/teachly/internal/middleware"
)

func registerAuthRoutes(api *gin.RouterGroup, handler *handlers.AuthHandler, jwt *iauth.JWTService) {
	// Credential endpoints get a much tighter window than the global limiter.
	throttle := middleware.RateLimit(10, time.Minute)

	auth := api.Group("/auth")
	{
		auth.POST("/signup", throttle, handler.Signup)
		auth.POST("/login", throttle, handler.Login)
		auth.POST("/confirm", handler.Confirm)
		auth.POST("/forgot-password", throttle, handler.ForgotPassword)
		auth.POST("/reset-password", handler.ResetPassword)
	}
}
