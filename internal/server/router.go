package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/omniquery/omniquery-backend/internal/http/handlers"
	"github.com/omniquery/omniquery-backend/internal/http/middleware"
	"github.com/omniquery/omniquery-backend/internal/http/response"
	"github.com/omniquery/omniquery-backend/internal/observability"
	"github.com/omniquery/omniquery-backend/internal/platform/logger"
)

type RouterConfig struct {
	MediaHandler   *handlers.MediaHandler
	QueryHandler   *handlers.QueryHandler
	RecordsHandler *handlers.RecordsHandler
	SystemHandler  *handlers.SystemHandler
	Metrics        *observability.Metrics
	Log            *logger.Logger
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()

	router.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		response.RespondError(c, http.StatusInternalServerError, "internal_error",
			fmt.Errorf("internal error: %v", recovered))
	}))
	router.Use(middleware.CORS())
	router.Use(middleware.RequestLogger(cfg.Log))

	// Media pipelines
	router.POST("/process-image", cfg.MediaHandler.ProcessImage)
	router.POST("/process-document", cfg.MediaHandler.ProcessDocument)
	router.POST("/process-audio", cfg.MediaHandler.ProcessAudio)
	router.POST("/process-video", cfg.MediaHandler.ProcessVideo)

	// Text queries
	router.POST("/query", cfg.QueryHandler.Query)

	// System
	router.GET("/health", cfg.SystemHandler.Health)
	router.GET("/capabilities", cfg.SystemHandler.Capabilities)
	router.GET("/mcp/status", cfg.SystemHandler.MCPStatus)
	router.POST("/mcp/restart", cfg.SystemHandler.MCPRestart)

	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := router.Group("/api")
	{
		api.POST("/query", cfg.QueryHandler.SubmitAsync)
		api.GET("/query/:id/status", cfg.QueryHandler.AsyncStatus)
		api.GET("/query/:id", cfg.QueryHandler.AsyncResult)
		api.DELETE("/query/:id", cfg.QueryHandler.DeleteAsync)
		api.POST("/classify", cfg.QueryHandler.Classify)
		api.POST("/upload", cfg.QueryHandler.Upload)
		api.GET("/stats", cfg.QueryHandler.Stats)
		api.GET("/records", cfg.RecordsHandler.Records)
		api.GET("/usage", cfg.RecordsHandler.Usage)
	}

	return router
}
