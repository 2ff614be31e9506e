package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"mail-autosort-go/internal/classifier"
	"mail-autosort-go/internal/config"
	"mail-autosort-go/internal/engine"
	"mail-autosort-go/internal/handlers"
	"mail-autosort-go/internal/history"
	"mail-autosort-go/internal/mailstore"
	"mail-autosort-go/internal/metrics"
	"mail-autosort-go/internal/models"
	"mail-autosort-go/internal/progress"
	"mail-autosort-go/internal/repository"
	"mail-autosort-go/internal/resolver"
	"mail-autosort-go/internal/scheduler"
	"mail-autosort-go/internal/server"
	"mail-autosort-go/internal/settings"
)

// Components are the wired services of one process
type Components struct {
	Config     *config.Config
	Store      repository.Store
	Metrics    *metrics.Metrics
	History    *history.History
	Settings   *settings.Loader
	Classifier *classifier.Classifier
	Mail       *mailstore.Router
	Resolver   *resolver.Resolver
	Engine     *engine.Engine
	Triage     *engine.Triage
	Scheduler  *scheduler.Scheduler
}

// loadConfig reads and validates configuration and sets up logging
func loadConfig() (*config.Config, error) {
	logrus.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	return cfg, nil
}

// Build opens storage and mail accounts and wires every service
func Build(ctx context.Context, cfg *config.Config, reg prometheus.Registerer) (*Components, error) {
	store, err := repository.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	c := &Components{Config: cfg, Store: store}
	c.Metrics = metrics.NewMetrics(reg)

	c.History, err = history.New(ctx, history.NewRecordPersister(store),
		history.WithCapacity(cfg.Sorting.HistoryCapacity),
		history.WithSizeObserver(func(size int) { c.Metrics.HistorySize.Set(float64(size)) }),
	)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	var secrets settings.SecretSource
	if cfg.Classifier.UseKeyring {
		ring, err := settings.OpenKeyring(cfg.Classifier.KeyringDir)
		if err != nil {
			logrus.Warnf("Keyring unavailable, API key stays in the settings record: %v", err)
		} else {
			secrets = ring
		}
	}
	c.Settings = settings.NewLoader(store, cfg, secrets)

	sink := progress.LogSink{Logger: logrus.StandardLogger()}
	c.Classifier = classifier.New(classifier.Options{
		Endpoint:        cfg.Classifier.Endpoint,
		Model:           cfg.Classifier.Model,
		Temperature:     cfg.Classifier.Temperature,
		TopK:            cfg.Classifier.TopK,
		TopP:            cfg.Classifier.TopP,
		MaxOutputTokens: cfg.Classifier.MaxOutputTokens,
	}, sink, c.Metrics)

	c.Mail, err = mailstore.NewFromConfig(ctx, cfg.Accounts)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to open mail accounts: %w", err)
	}
	logrus.WithField("accounts", len(c.Mail.Accounts())).Info("Mail accounts registered")

	c.Resolver = resolver.New(cfg.Sorting.Categories)

	policy := engine.DefaultPolicy()
	policy.RecordHistory[models.ModeTag] = cfg.Sorting.RecordTagHistory
	c.Engine = engine.New(c.Mail, c.Resolver, c.History, sink, c.Metrics, engine.WithPolicy(policy))
	c.Triage = engine.NewTriage(c.Engine, c.Mail, c.Classifier, sink)

	c.Scheduler = scheduler.NewScheduler(&cfg.Scheduler, c.Mail.Accounts(), c.Mail, c.Triage, c.Settings, c.Metrics)
	return c, nil
}

// Handlers returns the HTTP handlers for these components
func (c *Components) Handlers(gatherer prometheus.Gatherer) *handlers.Handlers {
	return handlers.NewHandlers(handlers.Deps{
		Store:      c.Store,
		Classifier: c.Classifier,
		Engine:     c.Engine,
		Triage:     c.Triage,
		Accounts:   c.Mail,
		Resolver:   c.Resolver,
		History:    c.History,
		Settings:   c.Settings,
		Scheduler:  c.Scheduler,
		Gatherer:   gatherer,
	})
}

// Close releases mail connections and storage
func (c *Components) Close() error {
	return errors.Join(c.Mail.Close(), c.Store.Close())
}

// Serve runs the HTTP server and, when enabled, the scheduler until SIGINT or SIGTERM
func Serve(ctx context.Context, cfg *config.Config) error {
	logrus.Info("Starting Mail AutoSort Service")

	c, err := Build(ctx, cfg, prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			logrus.Errorf("Failed to close components: %v", err)
		}
	}()

	router := server.SetupRouter(c.Handlers(prometheus.DefaultGatherer))
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	if cfg.Scheduler.Enabled {
		if err := c.Scheduler.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	errCh := make(chan error, 1)
	go func() {
		logrus.Infof("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		stopScheduler(c.Scheduler)
		return fmt.Errorf("HTTP server error: %w", err)
	}

	logrus.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stopScheduler(c.Scheduler)
	c.Scheduler.Wait()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("HTTP server shutdown error: %v", err)
	}

	logrus.Info("Server stopped gracefully")
	return nil
}

func stopScheduler(s interface{ Stop() error }) {
	if err := s.Stop(); err != nil {
		logrus.Errorf("Failed to stop scheduler: %v", err)
	}
}
