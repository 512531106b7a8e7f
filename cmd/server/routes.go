package main

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/config"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/http/api"
	adminapi "github.com/Nixie-Tech-LLC/medusa-scheduler/internal/http/api/admin/control/endpoints"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/http/api/tv"
	playerapi "github.com/Nixie-Tech-LLC/medusa-scheduler/internal/http/api/tv/endpoints"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/http/middleware"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/schedule"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/telemetry"
)

// RegisterRoutes sets up all application routes
func RegisterRoutes(r *gin.Engine, cfg *config.Config, svc *schedule.Service, hub *tv.Hub, logger zerolog.Logger) error {
	r.Use(middleware.RequestLogger(logger))
	// CORS
	r.Use(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool { return true },
		AllowMethods: []string{
			"GET",
			"POST",
			"PUT",
			"PATCH",
			"DELETE",
			"OPTIONS",
			"HEAD",
		},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Authorization",
			"Accept",
			"If-Match",
			"If-None-Match",
			"X-If-None-Match",
		},
		ExposeHeaders: []string{
			"Content-Length",
			"ETag",
		},
		AllowCredentials: false,
	}))

	if _, err := api.MountGroup(r, api.GroupConfig{
		Prefix:    "/api/v2/schedule",
		Auth:      true,
		SecretKey: cfg.JWTSecret,
	},
		adminapi.ScheduleModule(svc),
	); err != nil {
		return err
	}

	if _, err := api.MountGroup(r, api.GroupConfig{
		Prefix: "/api/tv",
	},
		playerapi.PlayerModule(svc, hub),
	); err != nil {
		return err
	}

	r.GET("/metrics", gin.WrapH(telemetry.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "players": hub.Clients()})
	})
	return nil
}
