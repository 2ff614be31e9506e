package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"mail-autosort-go/internal/models"
)

// HealthCheck handles health check requests
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := models.HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Database:  "ok",
		Metrics:   make(map[string]string),
	}

	if err := h.store.Ping(c.Request.Context()); err != nil {
		response.Status = "error"
		response.Database = "error"
		logrus.Errorf("Database health check failed: %v", err)
	}

	if h.scheduler != nil && h.scheduler.IsRunning() {
		response.Metrics["scheduler"] = "running"
		st := h.scheduler.Status()
		response.Metrics["next_run"] = st.NextRun.Format(time.RFC3339)
		response.Metrics["last_run"] = st.LastRun.Format(time.RFC3339)
	} else {
		response.Metrics["scheduler"] = "stopped"
	}
	response.Metrics["history_entries"] = strconv.Itoa(len(h.history.List()))

	statusCode := http.StatusOK
	if response.Status == "error" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, response)
}
