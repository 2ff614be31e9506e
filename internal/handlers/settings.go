package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"mail-autosort-go/internal/models"
	"mail-autosort-go/internal/settings"
)

// GetSettings returns the effective settings without the API key
func (h *Handlers) GetSettings(c *gin.Context) {
	view, err := h.settings.View(c.Request.Context())
	if err != nil {
		logrus.Errorf("Failed to load settings: %v", err)
		respondError(c, http.StatusInternalServerError, "database_error", "Failed to load settings")
		return
	}
	c.JSON(http.StatusOK, view)
}

// UpdateSettings merges the request into the stored settings
func (h *Handlers) UpdateSettings(c *gin.Context) {
	var req models.Settings
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "validation_error", "Invalid request body")
		return
	}

	view, err := h.settings.Update(c.Request.Context(), req)
	if err != nil {
		logrus.Errorf("Failed to save settings: %v", err)
		respondError(c, http.StatusInternalServerError, "database_error", "Error saving settings")
		return
	}
	c.JSON(http.StatusOK, view)
}

// ImportLabels replaces the label list with newline-separated labels
func (h *Handlers) ImportLabels(c *gin.Context) {
	var req models.ImportLabelsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "validation_error", "Please enter categories/folders to import")
		return
	}

	labels, err := h.settings.ImportLabels(c.Request.Context(), req.Text)
	if errors.Is(err, settings.ErrNoLabels) {
		respondError(c, http.StatusBadRequest, "validation_error", "Please enter categories/folders to import")
		return
	}
	if err != nil {
		logrus.Errorf("Failed to import labels: %v", err)
		respondError(c, http.StatusInternalServerError, "database_error", "Error saving settings")
		return
	}

	c.JSON(http.StatusOK, models.ImportLabelsResponse{
		Labels:  labels,
		Message: fmt.Sprintf("Imported %d categories/folders", len(labels)),
	})
}

// TestConnection sends one minimal request with the given or stored key
func (h *Handlers) TestConnection(c *gin.Context) {
	var req models.TestConnectionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "validation_error", "Invalid request body")
			return
		}
	}

	key := strings.TrimSpace(req.APIKey)
	if key == "" {
		snap, err := h.settings.Load(c.Request.Context())
		if err != nil {
			respondError(c, http.StatusInternalServerError, "database_error", "Failed to load settings")
			return
		}
		key = snap.Classification.APIKey
	}

	if err := h.classifier.TestConnection(c.Request.Context(), key); err != nil {
		respondClassifierError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "API connection successful!"})
}
