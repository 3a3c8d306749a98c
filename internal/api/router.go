package api

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/charlesng35/partyfinder/internal/app"
	"github.com/charlesng35/partyfinder/internal/handlers"
	"github.com/charlesng35/partyfinder/internal/middleware"
	"github.com/charlesng35/partyfinder/internal/monitoring"
	"github.com/charlesng35/partyfinder/internal/realtime"
	"github.com/charlesng35/partyfinder/internal/services"
)

// Dependencies are the collaborators the HTTP API is built from. Hub, Health
// and RateStore are optional.
type Dependencies struct {
	Config        *app.Config
	Tokens        middleware.TokenValidator
	Parties       *services.PartyService
	Notifications *services.NotificationService
	Hub           *realtime.Hub
	Health        *monitoring.HealthManager
	RateStore     middleware.RateStore
}

// NewRouter builds the Gin engine, wires middleware and registers every route.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	switch {
	case deps.Config == nil:
		return nil, errors.New("router: config must be provided")
	case deps.Tokens == nil:
		return nil, errors.New("router: token validator must be provided")
	case deps.Parties == nil:
		return nil, errors.New("router: party service must be provided")
	case deps.Notifications == nil:
		return nil, errors.New("router: notification service must be provided")
	}
	cfg := deps.Config

	r := gin.New()
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.NoRoute(middleware.NotFoundHandler)

	registerHealthRoutes(r, cfg, deps.Health)
	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := strings.TrimSpace(cfg.Monitoring.Prometheus.Endpoint)
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	api := r.Group("/api")
	api.Use(middleware.Auth(deps.Tokens))

	if deps.Hub != nil {
		api.GET("/realtime", handlers.NewRealtimeHandler(deps.Hub).Stream)
	}

	partyHandler := handlers.NewPartyHandler(deps.Parties)
	applicationHandler := handlers.NewApplicationHandler(deps.Parties)
	submitLimit := middleware.UserRateLimit(deps.RateStore, "submit", cfg.Party.SubmitRateLimit, cfg.Party.SubmitRateWindow)

	parties := api.Group("/parties")
	{
		parties.POST("", partyHandler.Create)
		parties.GET("", partyHandler.List)
		parties.GET("/my", partyHandler.My)
		parties.GET("/:id", partyHandler.Get)
		parties.PATCH("/:id", partyHandler.Update)
		parties.DELETE("/:id", partyHandler.Delete)
		parties.POST("/:id/close", partyHandler.Close)
		parties.GET("/:id/applications", partyHandler.Applications)

		slots := parties.Group("/:id/slots/:slotID")
		slots.POST("/applications", submitLimit, applicationHandler.Submit)
		slots.POST("/applications/:applicationID/approve", applicationHandler.Approve)
		slots.POST("/applications/:applicationID/reject", applicationHandler.Reject)
		slots.POST("/revoke", applicationHandler.Revoke)
	}

	applications := api.Group("/applications")
	{
		applications.GET("/me", applicationHandler.Mine)
		applications.POST("/:id/withdraw", applicationHandler.Withdraw)
	}

	notificationHandler := handlers.NewNotificationHandler(deps.Notifications)
	notifications := api.Group("/notifications")
	{
		notifications.GET("", notificationHandler.List)
		notifications.POST("/read-all", notificationHandler.MarkAllRead)
		notifications.POST("/:id/read", notificationHandler.MarkRead)
	}

	return r, nil
}

func registerHealthRoutes(r *gin.Engine, cfg *app.Config, manager *monitoring.HealthManager) {
	health := handlers.NewHealthHandler(manager)
	r.GET("/health", health.Live)
	if cfg.Monitoring.Health.Enabled {
		r.GET("/health/live", health.Live)
		r.GET("/health/ready", health.Ready)
	}
}
