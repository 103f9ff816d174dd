package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/offloadops/offload/internal/domain"
	"github.com/offloadops/offload/internal/engine"
)

// Processor is the engine surface the handler drives.
type Processor interface {
	Start(ctx context.Context, opts domain.RunOptions) (*domain.ProcessorState, error)
	ProcessBatch(ctx context.Context) (domain.BatchResult, error)
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Stop(ctx context.Context) error
	State(ctx context.Context) *domain.ProcessorState
}

// OffloadHandler exposes start/batch/pause/resume/stop/status for each
// registered workflow.
type OffloadHandler struct {
	processors map[string]Processor
}

func NewOffloadHandler(processors map[string]Processor) *OffloadHandler {
	return &OffloadHandler{processors: processors}
}

type startRequest struct {
	BatchSize   int    `json:"batch_size"`
	RemoveLocal bool   `json:"remove_local"`
	Mode        string `json:"mode"`
}

func (h *OffloadHandler) processor(c *gin.Context) (Processor, bool) {
	name := c.Param("workflow")
	p, ok := h.processors[name]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown workflow: " + name})
		return nil, false
	}
	return p, true
}

func (h *OffloadHandler) Start(c *gin.Context) {
	p, ok := h.processor(c)
	if !ok {
		return
	}

	// The body is optional; defaults apply when it is absent.
	var req startRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}

	opts := domain.RunOptions{
		BatchSize:   req.BatchSize,
		RemoveLocal: req.RemoveLocal,
		Mode:        domain.ReconcileMode(req.Mode),
	}

	state, err := p.Start(c.Request.Context(), opts)
	if err != nil {
		if errors.Is(err, engine.ErrAlreadyRunning) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "state": state})
}

func (h *OffloadHandler) ProcessBatch(c *gin.Context) {
	p, ok := h.processor(c)
	if !ok {
		return
	}

	result, err := p.ProcessBatch(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *OffloadHandler) Pause(c *gin.Context) {
	h.transition(c, func(p Processor, ctx context.Context) error { return p.Pause(ctx) })
}

func (h *OffloadHandler) Resume(c *gin.Context) {
	h.transition(c, func(p Processor, ctx context.Context) error { return p.Resume(ctx) })
}

func (h *OffloadHandler) Stop(c *gin.Context) {
	h.transition(c, func(p Processor, ctx context.Context) error { return p.Stop(ctx) })
}

func (h *OffloadHandler) transition(c *gin.Context, fn func(Processor, context.Context) error) {
	p, ok := h.processor(c)
	if !ok {
		return
	}
	if err := fn(p, c.Request.Context()); err != nil {
		if errors.Is(err, engine.ErrNotRunning) || errors.Is(err, engine.ErrNotPaused) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *OffloadHandler) Status(c *gin.Context) {
	p, ok := h.processor(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, p.State(c.Request.Context()))
}

// parseLimit reads an optional positive "limit" query parameter.
func parseLimit(c *gin.Context, fallback int) int {
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
