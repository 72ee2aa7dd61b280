package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/omniquery/omniquery-backend/internal/db"
	"github.com/omniquery/omniquery-backend/internal/http/handlers"
	"github.com/omniquery/omniquery-backend/internal/observability"
	"github.com/omniquery/omniquery-backend/internal/platform/logger"
	"github.com/omniquery/omniquery-backend/internal/server"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Router   *gin.Engine
	Cfg      Config
	Repos    Repos
	Services Services
	Metrics  *observability.Metrics

	httpServer *http.Server
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	cfg := LoadConfig(log)

	metrics := observability.New()
	observability.Set(metrics)

	dbService, err := db.NewService(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init database: %w", err)
	}
	if err := dbService.AutoMigrateAll(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("automigrate: %w", err)
	}
	theDB := dbService.DB()

	reposet := wireRepos(theDB, log)
	serviceset, err := wireServices(log, cfg, reposet)
	if err != nil {
		log.Sync()
		return nil, err
	}

	mediaHandler := handlers.NewMediaHandler(
		serviceset.ImageAgent,
		serviceset.DocumentAgent,
		serviceset.AudioAgent,
		serviceset.VideoAgent,
		log,
	)
	queryHandler := handlers.NewQueryHandler(serviceset.Crew, serviceset.QueryStore, serviceset.QueryRunner, mediaHandler, log)
	recordsHandler := handlers.NewRecordsHandler(
		reposet.Images, reposet.Documents, reposet.Videos, reposet.Audios, reposet.Tracking, log)
	systemHandler := handlers.NewSystemHandler(serviceset.Crew, serviceset.MCP, log)

	router := server.NewRouter(server.RouterConfig{
		MediaHandler:   mediaHandler,
		QueryHandler:   queryHandler,
		RecordsHandler: recordsHandler,
		SystemHandler:  systemHandler,
		Metrics:        metrics,
		Log:            log,
	})

	return &App{
		Log:      log,
		DB:       theDB,
		Router:   router,
		Cfg:      cfg,
		Repos:    reposet,
		Services: serviceset,
		Metrics:  metrics,
	}, nil
}

// Start brings up the MCP sidecars, the query janitor and the HTTP server.
// It blocks until the server stops.
func (a *App) Start(ctx context.Context) error {
	if err := a.Services.MCP.StartAll(ctx); err != nil {
		return fmt.Errorf("start mcp servers: %w", err)
	}
	if err := a.Services.QueryJanitor.Start(); err != nil {
		return fmt.Errorf("start query janitor: %w", err)
	}

	addr := a.Cfg.Host + ":" + a.Cfg.Port
	a.httpServer = &http.Server{
		Addr:              addr,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	a.Log.Info("HTTP server listening", "addr", addr)
	if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the HTTP server, the janitor and the MCP sidecars.
func (a *App) Shutdown(ctx context.Context) {
	if a.httpServer != nil {
		if err := a.httpServer.Shutdown(ctx); err != nil {
			a.Log.Warn("HTTP server shutdown", "error", err)
		}
	}
	a.Services.QueryJanitor.Stop()
	a.Services.MCP.StopAll()
	a.Log.Sync()
}
