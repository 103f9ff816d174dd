// internal/api/api.go
package api

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/offloadops/offload/internal/api/handlers"
	"github.com/offloadops/offload/internal/api/middleware"
)

// Handlers bundles the wired handler set; nil members disable their routes.
type Handlers struct {
	Offload *handlers.OffloadHandler
	Ops     *handlers.OpsHandler
}

func NewRouter(h *Handlers, allowedOrigins []string) *gin.Engine {
	router := gin.New()

	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())

	defaultOrigins := []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	corsConfig := cors.Config{
		AllowOrigins:     defaultOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) > 0 {
		normalizedOrigins, allowAll := normalizeAllowedOrigins(allowedOrigins)
		if allowAll {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowOriginFunc = func(origin string) bool { return true }
		} else if len(normalizedOrigins) > 0 {
			corsConfig.AllowOrigins = normalizedOrigins
		}
	}
	router.Use(cors.New(corsConfig))

	apiGroup := router.Group("/api/v1")

	if h != nil {
		if h.Offload != nil {
			workflowGroup := apiGroup.Group("/offload/:workflow")
			{
				workflowGroup.POST("/start", h.Offload.Start)
				workflowGroup.POST("/batch", h.Offload.ProcessBatch)
				workflowGroup.POST("/pause", h.Offload.Pause)
				workflowGroup.POST("/resume", h.Offload.Resume)
				workflowGroup.POST("/stop", h.Offload.Stop)
				workflowGroup.GET("/status", h.Offload.Status)
			}
		}

		if h.Ops != nil {
			apiGroup.GET("/stats", h.Ops.GetStats)
			apiGroup.GET("/reconcile/report", h.Ops.GetReconcileReport)

			retryGroup := apiGroup.Group("/retry")
			{
				retryGroup.POST("/run", h.Ops.RunRetries)
				retryGroup.GET("/queue", h.Ops.GetRetryQueue)
			}

			apiGroup.PUT("/assets/:id/cache-control", h.Ops.UpdateCacheControl)
		}
	}

	return router
}

func normalizeAllowedOrigins(origins []string) ([]string, bool) {
	var (
		parsed   []string
		allowAll bool
	)
	for _, origin := range origins {
		parts := strings.Split(origin, ",")
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			if trimmed == "*" {
				allowAll = true
				continue
			}
			parsed = append(parsed, trimmed)
		}
	}
	return parsed, allowAll
}
