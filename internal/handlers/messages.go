package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"mail-autosort-go/internal/classifier"
	"mail-autosort-go/internal/engine"
	"mail-autosort-go/internal/models"
)

// ApplyLabel applies one label to the given messages
func (h *Handlers) ApplyLabel(c *gin.Context) {
	var req models.ApplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "validation_error", "Invalid request body")
		return
	}

	mode := req.Mode
	if mode == "" {
		snap, err := h.settings.Load(c.Request.Context())
		if err != nil {
			logrus.Errorf("Failed to load settings: %v", err)
			respondError(c, http.StatusInternalServerError, "database_error", "Failed to load settings")
			return
		}
		mode = snap.Mode
	}

	summary, err := h.engine.ApplyLabel(c.Request.Context(), req.Messages, req.Label, mode)
	if errors.Is(err, engine.ErrUnknownMode) {
		respondError(c, http.StatusBadRequest, "validation_error", err.Error())
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	c.JSON(http.StatusOK, summary)
}

// Analyze classifies and applies labels to the given messages
func (h *Handlers) Analyze(c *gin.Context) {
	var req models.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "validation_error", "Invalid request body")
		return
	}
	if len(req.Messages) == 0 {
		respondError(c, http.StatusBadRequest, "validation_error", "No messages selected for analysis")
		return
	}

	snap, err := h.settings.Load(c.Request.Context())
	if err != nil {
		logrus.Errorf("Failed to load settings: %v", err)
		respondError(c, http.StatusInternalServerError, "database_error", "Failed to load settings")
		return
	}

	resp, err := h.triage.Analyze(c.Request.Context(), req.Messages, snap)
	if errors.Is(err, classifier.ErrNotConfigured) {
		respondClassifierError(c, err)
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	c.JSON(http.StatusOK, resp)
}
