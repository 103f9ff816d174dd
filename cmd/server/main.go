// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/offloadops/offload/internal/api"
	"github.com/offloadops/offload/internal/api/handlers"
	"github.com/offloadops/offload/internal/app"
	"github.com/offloadops/offload/internal/config"
	"github.com/offloadops/offload/pkg/logger"
)

func main() {
	cfg := config.Load()

	logger.SetLevel(cfg.Server.Mode)
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()
	application, err := app.Build(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}

	router := api.NewRouter(buildHandlers(application), cfg.Server.AllowedOrigins)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Log.Info().Str("port", cfg.Server.Port).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error().Err(err).Msg("Server forced to shutdown")
	}
	application.Close(shutdownCtx)

	logger.Log.Info().Msg("Server exiting")
}

func buildHandlers(a *app.App) *api.Handlers {
	processors := make(map[string]handlers.Processor, len(a.Engines))
	for name, eng := range a.Engines {
		processors[name] = eng
	}
	return &api.Handlers{
		Offload: handlers.NewOffloadHandler(processors),
		Ops:     handlers.NewOpsHandler(a.Stats, a.Reconciliation, a.Retrier, a.Failures, a.Migration),
	}
}
