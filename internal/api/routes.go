package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes sets up the API routes. A nil gatherer leaves /metrics unregistered.
func SetupRoutes(handler *Handler, gatherer prometheus.Gatherer, logger *slog.Logger) *gin.Engine {
	router := gin.New()

	// Middleware
	router.Use(Recovery())
	router.Use(CORS())
	router.Use(Logger(logger))

	// Health check
	router.GET("/health", handler.HealthCheck)

	if gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	// API v1
	v1 := router.Group("/api/v1")
	{
		v1.GET("/status", handler.GetStatus)
		v1.GET("/activity", handler.GetActivity)
		v1.GET("/export", handler.GetExport)

		trend := v1.Group("/trend")
		{
			trend.GET("", handler.GetTrend)
			trend.GET("/hourly", handler.GetHourlyTrend)
		}
	}

	return router
}
