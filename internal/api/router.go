package api

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/florentd35/teachly/internal/app"
	iauth "github.com/florentd35/teachly/internal/auth"
	"github.com/florentd35/teachly/internal/handlers"
	"github.com/florentd35/teachly/internal/middleware"
	"github.com/florentd35/teachly/internal/realtime"
	"github.com/florentd35/teachly/internal/services"
)

// Dependencies bundles everything the router needs. Services are constructed
// once in the server entrypoint and shared between routes.
type Dependencies struct {
	Config *app.Config
	DB     *gorm.DB
	JWT    *iauth.JWTService
	Hub    *realtime.Hub

	Users         *services.UserService
	Contacts      *services.ContactService
	Demands       *services.DemandService
	Messages      *services.MessageService
	Events        *services.EventService
	Tasks         *services.TaskService
	Notifications *services.NotificationService
}

func (d Dependencies) validate() error {
	if d.Config == nil {
		return fmt.Errorf("config must be provided")
	}
	if d.DB == nil {
		return fmt.Errorf("database handle must be provided")
	}
	if d.JWT == nil {
		return fmt.Errorf("jwt service must be provided")
	}
	if d.Users == nil || d.Contacts == nil || d.Demands == nil ||
		d.Messages == nil || d.Events == nil || d.Tasks == nil || d.Notifications == nil {
		return fmt.Errorf("all services must be provided")
	}
	return nil
}

// NewRouter builds the Gin engine, wires middleware and registers all routes.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}

	r := gin.New()

	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS())
	// Basic rate limiting: 300 requests/minute per IP+path
	r.Use(middleware.RateLimit(300, time.Minute))

	r.NoRoute(middleware.NotFoundHandler)

	r.GET("/health", handlers.Health())

	if deps.Config.Monitoring.Prometheus.Enabled {
		endpoint := deps.Config.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	api := r.Group("/api/v1")

	registerAuthRoutes(api, handlers.NewAuthHandler(deps.Users, deps.JWT), deps.JWT)

	authenticated := api.Group("")
	authenticated.Use(middleware.Auth(deps.JWT))

	registerUserRoutes(authenticated, handlers.NewUserHandler(deps.Users, deps.Demands))
	registerContactRoutes(authenticated, handlers.NewContactHandler(deps.Contacts))
	registerDemandRoutes(authenticated, handlers.NewDemandHandler(deps.Demands))
	registerMessageRoutes(authenticated, handlers.NewMessageHandler(deps.Messages))
	registerEventRoutes(authenticated, handlers.NewEventHandler(deps.Events))
	registerTaskRoutes(authenticated, handlers.NewTaskHandler(deps.Tasks))
	registerNotificationRoutes(authenticated, handlers.NewNotificationHandler(deps.Notifications))

	registerRealtimeRoutes(r, handlers.NewRealtimeHandler(deps.Hub, deps.JWT))

	return r, nil
}
