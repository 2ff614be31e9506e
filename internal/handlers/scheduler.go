package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handlers) requireScheduler(c *gin.Context) bool {
	if h.scheduler == nil {
		respondError(c, http.StatusServiceUnavailable, "scheduler_disabled", "Scheduler is not configured")
		return false
	}
	return true
}

// StartScheduler starts the auto-sort scheduler
func (h *Handlers) StartScheduler(c *gin.Context) {
	if !h.requireScheduler(c) {
		return
	}
	if err := h.scheduler.Start(); err != nil {
		respondError(c, http.StatusConflict, "scheduler_error", err.Error())
		return
	}
	c.Status(http.StatusOK)
}

// StopScheduler stops the auto-sort scheduler
func (h *Handlers) StopScheduler(c *gin.Context) {
	if !h.requireScheduler(c) {
		return
	}
	if err := h.scheduler.Stop(); err != nil {
		respondError(c, http.StatusInternalServerError, "scheduler_error", err.Error())
		return
	}
	c.Status(http.StatusOK)
}

// RunOnce triggers one auto-sort cycle and returns its result
func (h *Handlers) RunOnce(c *gin.Context) {
	if !h.requireScheduler(c) {
		return
	}
	result, err := h.scheduler.RunOnce(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, "scheduler_error", err.Error())
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetSchedulerStatus returns scheduler status
func (h *Handlers) GetSchedulerStatus(c *gin.Context) {
	if !h.requireScheduler(c) {
		return
	}
	c.JSON(http.StatusOK, h.scheduler.Status())
}
