// Package scheduler periodically analyzes new messages in a folder of every
// configured account and applies the classified label.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"mail-autosort-go/internal/config"
	"mail-autosort-go/internal/mailstore"
	"mail-autosort-go/internal/metrics"
	"mail-autosort-go/internal/models"
	"mail-autosort-go/internal/settings"
)

// initialLookback bounds the first listing of an account
const initialLookback = 24 * time.Hour

// maxSeen bounds the per-account set of already handled message ids
const maxSeen = 10000

// Analyzer runs analyze-and-apply over a list of messages
type Analyzer interface {
	Analyze(ctx context.Context, messages []models.Message, snap settings.Snapshot) (*models.AnalyzeResponse, error)
}

// SettingsLoader provides the effective settings for one cycle
type SettingsLoader interface {
	Load(ctx context.Context) (settings.Snapshot, error)
}

// CycleResult summarizes one auto-sort cycle
type CycleResult struct {
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Accounts  int           `json:"accounts"`
	Listed    int           `json:"listed"`
	Applied   int           `json:"applied"`
	Skipped   int           `json:"skipped"`
	Errors    []string      `json:"errors,omitempty"`
}

// Status describes the scheduler state
type Status struct {
	Running    bool         `json:"running"`
	Interval   int          `json:"interval_minutes"`
	Folder     string       `json:"folder"`
	NextRun    time.Time    `json:"next_run"`
	LastRun    time.Time    `json:"last_run"`
	LastResult *CycleResult `json:"last_result,omitempty"`
}

// Scheduler manages the periodic auto-sort
type Scheduler struct {
	cron     *cron.Cron
	entryID  cron.EntryID
	config   *config.SchedulerConfig
	reader   mailstore.Reader
	analyzer Analyzer
	settings SettingsLoader
	accounts []string
	metrics  *metrics.Metrics

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	isRunning bool
	mu        sync.RWMutex

	// one cycle at a time, scheduled or manual
	runMu sync.Mutex
	since map[string]time.Time
	seen  map[string]map[string]struct{}

	stateMu    sync.RWMutex
	lastRun    time.Time
	lastResult *CycleResult
}

// NewScheduler creates a new scheduler for the given accounts
func NewScheduler(cfg *config.SchedulerConfig, accounts []string, reader mailstore.Reader, analyzer Analyzer, loader SettingsLoader, m *metrics.Metrics) *Scheduler {
	if m == nil {
		m = metrics.NewNop()
	}
	if len(cfg.AccountIDs) > 0 {
		accounts = cfg.AccountIDs
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		config:   cfg,
		reader:   reader,
		analyzer: analyzer,
		settings: loader,
		accounts: accounts,
		metrics:  m,
		ctx:      ctx,
		cancel:   cancel,
		since:    make(map[string]time.Time),
		seen:     make(map[string]map[string]struct{}),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}
	if s.config.IntervalMinutes <= 0 {
		return fmt.Errorf("invalid scheduler interval: %d", s.config.IntervalMinutes)
	}

	if s.ctx.Err() != nil {
		s.ctx, s.cancel = context.WithCancel(context.Background())
	}

	schedule := fmt.Sprintf("@every %dm", s.config.IntervalMinutes)
	entryID, err := s.cron.AddFunc(schedule, s.processCycle)
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.entryID = entryID
	s.cron.Start()
	s.isRunning = true

	logrus.Infof("Scheduler started with interval: %d minutes", s.config.IntervalMinutes)
	return nil
}

// Stop stops the scheduler and waits for a running cycle
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}

	s.cancel()
	s.cron.Remove(s.entryID)
	ctx := s.cron.Stop()

	select {
	case <-ctx.Done():
		logrus.Info("Scheduler stopped gracefully")
	case <-time.After(30 * time.Second):
		logrus.Warn("Scheduler stop timeout, forcing shutdown")
	}

	s.isRunning = false
	return nil
}

// IsRunning returns whether the scheduler is running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

func (s *Scheduler) processCycle() {
	s.mu.RLock()
	if !s.isRunning {
		s.mu.RUnlock()
		logrus.Info("Scheduler not running, skipping auto-sort cycle")
		return
	}
	ctx := s.ctx
	s.mu.RUnlock()

	if _, err := s.RunOnce(ctx); err != nil {
		logrus.Errorf("Auto-sort cycle failed: %v", err)
	}
}

// RunOnce runs one auto-sort cycle immediately
func (s *Scheduler) RunOnce(ctx context.Context) (*CycleResult, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	s.wg.Add(1)
	defer s.wg.Done()

	start := time.Now()
	result := &CycleResult{StartedAt: start, Accounts: len(s.accounts)}
	s.metrics.SchedulerRuns.Inc()
	logrus.Info("Starting auto-sort cycle")

	snap, err := s.settings.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	for _, accountID := range s.accounts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := s.processAccount(ctx, accountID, snap, result); err != nil {
			logrus.WithField("account", accountID).Errorf("Failed to process account: %v", err)
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", accountID, err))
		}
	}

	result.Duration = time.Since(start)
	s.stateMu.Lock()
	s.lastRun = start
	s.lastResult = result
	s.stateMu.Unlock()

	logrus.WithFields(logrus.Fields{
		"listed":  result.Listed,
		"applied": result.Applied,
		"skipped": result.Skipped,
	}).Infof("Auto-sort cycle completed in %v", result.Duration)
	return result, nil
}

func (s *Scheduler) processAccount(ctx context.Context, accountID string, snap settings.Snapshot, result *CycleResult) error {
	cycleStart := time.Now()
	since, ok := s.since[accountID]
	if !ok {
		since = cycleStart.Add(-initialLookback)
	}

	messages, err := s.reader.ListMessages(ctx, accountID, s.config.Folder, since)
	if err != nil {
		return fmt.Errorf("failed to list messages: %w", err)
	}

	seen := s.seen[accountID]
	if seen == nil || len(seen) > maxSeen {
		seen = make(map[string]struct{})
		s.seen[accountID] = seen
	}

	fresh := make([]models.Message, 0, len(messages))
	for _, m := range messages {
		if _, done := seen[m.ID]; done {
			continue
		}
		fresh = append(fresh, m)
	}
	result.Listed += len(fresh)
	logrus.WithField("account", accountID).Infof("Found %d new message(s)", len(fresh))

	if len(fresh) > 0 {
		resp, err := s.analyzer.Analyze(ctx, fresh, snap)
		if err != nil {
			return err
		}
		result.Applied += resp.Applied
		result.Skipped += resp.Skipped
		for _, m := range fresh {
			seen[m.ID] = struct{}{}
		}
	}

	s.since[accountID] = cycleStart
	return nil
}

// Status returns the current scheduler state
func (s *Scheduler) Status() Status {
	s.mu.RLock()
	running := s.isRunning
	s.mu.RUnlock()

	st := Status{
		Running:  running,
		Interval: s.config.IntervalMinutes,
		Folder:   s.config.Folder,
		NextRun:  s.GetNextRun(),
	}
	s.stateMu.RLock()
	st.LastRun = s.lastRun
	st.LastResult = s.lastResult
	s.stateMu.RUnlock()
	return st
}

// GetNextRun returns the time of the next scheduled run
func (s *Scheduler) GetNextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.isRunning {
		return time.Time{}
	}
	return s.cron.Entry(s.entryID).Next
}

// GetLastRun returns the start time of the last completed cycle
func (s *Scheduler) GetLastRun() time.Time {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.lastRun
}

// Wait waits for in-flight cycles to finish
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
