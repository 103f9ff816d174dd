package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/offloadops/offload/internal/domain"
	"github.com/offloadops/offload/internal/retrier"
	"github.com/offloadops/offload/internal/stats"
)

// StatsProvider assembles the operational snapshot.
type StatsProvider interface {
	Snapshot(ctx context.Context, recentLimit int) (*stats.Snapshot, error)
}

// Reporter produces the read-only discrepancy report.
type Reporter interface {
	Report(ctx context.Context) (*domain.DiscrepancyReport, error)
}

// RetryRunner drains the failure queue and exposes its contents.
type RetryRunner interface {
	RetryAll(ctx context.Context) (*retrier.RunSummary, error)
}

// FailureReader lists queued failures without mutating the queue.
type FailureReader interface {
	List(ctx context.Context) ([]domain.FailedOperation, error)
	Count(ctx context.Context) (int, error)
}

// MetadataUpdater rewrites remote cache headers for one asset.
type MetadataUpdater interface {
	UpdateCacheControl(ctx context.Context, id int64, cacheControl string) error
}

// OpsHandler carries the non-workflow operations: stats, the discrepancy
// report, the retry queue and per-asset metadata updates.
type OpsHandler struct {
	stats    StatsProvider
	reporter Reporter
	retrier  RetryRunner
	failures FailureReader
	metadata MetadataUpdater
}

func NewOpsHandler(stats StatsProvider, reporter Reporter, retrier RetryRunner, failures FailureReader, metadata MetadataUpdater) *OpsHandler {
	return &OpsHandler{
		stats:    stats,
		reporter: reporter,
		retrier:  retrier,
		failures: failures,
		metadata: metadata,
	}
}

func (h *OpsHandler) GetStats(c *gin.Context) {
	snapshot, err := h.stats.Snapshot(c.Request.Context(), parseLimit(c, 20))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

func (h *OpsHandler) GetReconcileReport(c *gin.Context) {
	report, err := h.reporter.Report(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *OpsHandler) RunRetries(c *gin.Context) {
	summary, err := h.retrier.RetryAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *OpsHandler) GetRetryQueue(c *gin.Context) {
	entries, err := h.failures.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(entries), "entries": entries})
}

type cacheControlRequest struct {
	CacheControl string `json:"cache_control" binding:"required"`
}

func (h *OpsHandler) UpdateCacheControl(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid asset id"})
		return
	}

	var req cacheControlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cache_control is required"})
		return
	}

	if err := h.metadata.UpdateCacheControl(c.Request.Context(), id, req.CacheControl); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
