package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"mail-autosort-go/internal/models"
)

// GetHistory returns the move history, newest first
func (h *Handlers) GetHistory(c *gin.Context) {
	entries := h.history.List()
	total := len(entries)

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 0 {
			respondError(c, http.StatusBadRequest, "validation_error", "Invalid limit")
			return
		}
		if limit < len(entries) {
			entries = entries[:limit]
		}
	}

	c.JSON(http.StatusOK, models.HistoryResponse{Entries: entries, Total: total, Unsaved: h.history.Unsaved()})
}

// ClearHistory removes all history entries
func (h *Handlers) ClearHistory(c *gin.Context) {
	if err := h.history.Clear(c.Request.Context()); err != nil {
		logrus.Errorf("Failed to clear history: %v", err)
		respondError(c, http.StatusInternalServerError, "database_error", "Failed to clear history")
		return
	}
	c.Status(http.StatusNoContent)
}
