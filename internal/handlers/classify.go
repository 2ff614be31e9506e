package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"mail-autosort-go/internal/classifier"
	"mail-autosort-go/internal/mailstore"
	"mail-autosort-go/internal/models"
)

// Classify returns the label for raw email text
func (h *Handlers) Classify(c *gin.Context) {
	var req models.ClassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "validation_error", "Invalid request body")
		return
	}

	snap, err := h.settings.Load(c.Request.Context())
	if err != nil {
		logrus.Errorf("Failed to load settings: %v", err)
		respondError(c, http.StatusInternalServerError, "database_error", "Failed to load settings")
		return
	}

	label, ok, err := h.classifier.Classify(c.Request.Context(), req.Text, snap.Classification)
	if err != nil {
		respondClassifierError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.ClassifyResponse{Label: label, Matched: ok})
}

func respondClassifierError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, classifier.ErrNotConfigured):
		respondError(c, http.StatusBadRequest, "not_configured", err.Error())
	case classifier.IsQuotaExceeded(err):
		respondError(c, http.StatusTooManyRequests, "quota_exceeded", err.Error())
	default:
		respondError(c, http.StatusBadGateway, "classification_error", err.Error())
	}
}

// Resolve reports which folder a label resolves to in an account
func (h *Handlers) Resolve(c *gin.Context) {
	var req models.ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "validation_error", "Invalid request body")
		return
	}

	account, ok := h.fetchAccount(c, req.AccountID)
	if !ok {
		return
	}

	folder := h.resolver.Resolve(req.Label, account.Folders)
	if folder == nil {
		respondError(c, http.StatusNotFound, "not_found", "folder not found")
		return
	}
	c.JSON(http.StatusOK, models.ResolveResponse{Label: req.Label, Folder: folder})
}

// GetFolders returns an account's folder tree
func (h *Handlers) GetFolders(c *gin.Context) {
	account, ok := h.fetchAccount(c, c.Param("id"))
	if !ok {
		return
	}
	c.JSON(http.StatusOK, account)
}

func (h *Handlers) fetchAccount(c *gin.Context, id string) (models.Account, bool) {
	account, err := h.accounts.FetchAccount(c.Request.Context(), id)
	if errors.Is(err, mailstore.ErrUnknownAccount) {
		respondError(c, http.StatusNotFound, "not_found", "Account not found")
		return account, false
	}
	if err != nil {
		logrus.WithField("account", id).Errorf("Failed to fetch account: %v", err)
		respondError(c, http.StatusBadGateway, "mail_store_error", err.Error())
		return account, false
	}
	return account, true
}
