package api

import (
	"github.com/gin-gonic/gin"

	"github.com/florentd35/teachly/internal/handlers"
)

func registerRealtimeRoutes(r *gin.Engine, handler *handlers.RealtimeHandler) {
	// Websocket upgrades authenticate inside the handler because browsers
	// cannot attach Authorization headers to the upgrade request.
	r.GET("/ws", handler.Stream)
}
