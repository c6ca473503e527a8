package api

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/KevinWangQQ/youtube-influencer-search/pkg/monitoring"
)

// NewRouter registers the API routes. metrics may be nil, in which case
// /metrics is not served.
func NewRouter(handler *Handler, metrics *monitoring.MetricsCollector, logger *logrus.Logger) *gin.Engine {
	router := gin.New()

	router.Use(RequestIDMiddleware())
	router.Use(LoggingMiddleware(logger))
	router.Use(RecoveryMiddleware(logger))
	router.Use(CORSMiddleware())
	if metrics != nil {
		router.Use(metrics.MetricsMiddleware())
		router.GET("/metrics", metrics.Handler())
	}

	router.GET("/health", handler.Health)

	api := router.Group("/api")
	{
		api.POST("/search", handler.CreateSearch)
		api.GET("/status/:task_id", handler.AdvanceStatus)
		api.GET("/tasks/:task_id", handler.GetTask)
		api.GET("/results/:task_id", handler.Results)
		api.GET("/download/:task_id", handler.Download)
		api.GET("/history", handler.History)
		api.POST("/keywords", handler.PreviewKeywords)
		api.POST("/validate-key", handler.ValidateKey)
	}

	return router
}
