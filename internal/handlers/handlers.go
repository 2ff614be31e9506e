package handlers

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mail-autosort-go/internal/models"
	"mail-autosort-go/internal/resolver"
	"mail-autosort-go/internal/scheduler"
	"mail-autosort-go/internal/settings"
)

// Pinger checks durable storage
type Pinger interface {
	Ping(ctx context.Context) error
}

// Classifier is the classification service used by the API
type Classifier interface {
	Classify(ctx context.Context, emailText string, cfg models.ClassificationConfig) (string, bool, error)
	TestConnection(ctx context.Context, apiKey string) error
}

// BatchApplier applies a label to messages
type BatchApplier interface {
	ApplyLabel(ctx context.Context, messages []models.Message, label string, mode models.Mode) (*models.BatchSummary, error)
}

// Analyzer runs analyze-and-apply
type Analyzer interface {
	Analyze(ctx context.Context, messages []models.Message, snap settings.Snapshot) (*models.AnalyzeResponse, error)
}

// AccountFetcher loads an account's folder tree
type AccountFetcher interface {
	FetchAccount(ctx context.Context, accountID string) (models.Account, error)
}

// HistoryService reads and clears the move history
type HistoryService interface {
	List() []models.OutcomeRecord
	Unsaved() bool
	Clear(ctx context.Context) error
}

// SettingsService loads and updates user settings
type SettingsService interface {
	Load(ctx context.Context) (settings.Snapshot, error)
	View(ctx context.Context) (models.SettingsResponse, error)
	Update(ctx context.Context, upd models.Settings) (models.SettingsResponse, error)
	ImportLabels(ctx context.Context, text string) ([]string, error)
}

// SchedulerService controls the auto-sort scheduler
type SchedulerService interface {
	Start() error
	Stop() error
	IsRunning() bool
	RunOnce(ctx context.Context) (*scheduler.CycleResult, error)
	Status() scheduler.Status
}

// Deps are the collaborators of the HTTP handlers. Scheduler may be nil.
type Deps struct {
	Store      Pinger
	Classifier Classifier
	Engine     BatchApplier
	Triage     Analyzer
	Accounts   AccountFetcher
	Resolver   *resolver.Resolver
	History    HistoryService
	Settings   SettingsService
	Scheduler  SchedulerService
	Gatherer   prometheus.Gatherer
}

// Handlers contains all HTTP handlers
type Handlers struct {
	store      Pinger
	classifier Classifier
	engine     BatchApplier
	triage     Analyzer
	accounts   AccountFetcher
	resolver   *resolver.Resolver
	history    HistoryService
	settings   SettingsService
	scheduler  SchedulerService
	gatherer   prometheus.Gatherer
}

// NewHandlers creates new HTTP handlers
func NewHandlers(d Deps) *Handlers {
	if d.Gatherer == nil {
		d.Gatherer = prometheus.DefaultGatherer
	}
	return &Handlers{
		store:      d.Store,
		classifier: d.Classifier,
		engine:     d.Engine,
		triage:     d.Triage,
		accounts:   d.Accounts,
		resolver:   d.Resolver,
		history:    d.History,
		settings:   d.Settings,
		scheduler:  d.Scheduler,
		gatherer:   d.Gatherer,
	}
}

// SetupRoutes sets up all HTTP routes
func (h *Handlers) SetupRoutes(router *gin.Engine) {
	router.GET("/healthz", h.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))

	api := router.Group("/api/v1")
	{
		api.POST("/classify", h.Classify)
		api.POST("/resolve", h.Resolve)
		api.GET("/accounts/:id/folders", h.GetFolders)

		api.POST("/messages/apply", h.ApplyLabel)
		api.POST("/messages/analyze", h.Analyze)

		api.GET("/history", h.GetHistory)
		api.DELETE("/history", h.ClearHistory)

		api.GET("/settings", h.GetSettings)
		api.PUT("/settings", h.UpdateSettings)
		api.POST("/settings/labels/import", h.ImportLabels)
		api.POST("/settings/test", h.TestConnection)

		api.POST("/scheduler/start", h.StartScheduler)
		api.POST("/scheduler/stop", h.StopScheduler)
		api.POST("/scheduler/run-once", h.RunOnce)
		api.GET("/scheduler/status", h.GetSchedulerStatus)
	}
}

func respondError(c *gin.Context, code int, kind, message string) {
	c.JSON(code, models.ErrorResponse{Error: kind, Message: message, Code: code})
}
