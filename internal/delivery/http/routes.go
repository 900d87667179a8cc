package http

import (
	"github.com/gin-gonic/gin"
	"github.com/shelfmatch/backend/config"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(RecoveryMiddleware())
	router.Use(LoggerMiddleware())
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	// Health check endpoint
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		detections := v1.Group("/detections")
		{
			detections.POST("/:id/match", handler.MatchDetection)
			detections.GET("/:id/funnel", handler.DetectionFunnel)
		}

		// Batch matching over a scope (images or projects), streamed as SSE
		v1.POST("/scopes/:scope/:id/match", handler.MatchScope)
	}

	return router
}
