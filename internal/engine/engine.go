// Package engine applies a label to a batch of messages, either by moving
// them into the resolved folder or by tagging them, and records the outcome
// of every message.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"mail-autosort-go/internal/mailstore"
	"mail-autosort-go/internal/metrics"
	"mail-autosort-go/internal/models"
	"mail-autosort-go/internal/progress"
	"mail-autosort-go/internal/resolver"
)

// FolderNotFound is the destination text of a resolution miss
const FolderNotFound = "folder not found"

const progressTitle = "AutoSort Processing"

// ErrUnknownMode is returned before any message is touched
var ErrUnknownMode = errors.New("unknown mode")

// HistoryRecorder receives one record per finished message
type HistoryRecorder interface {
	Record(ctx context.Context, rec models.OutcomeRecord) error
}

// Policy says which modes write to the history
type Policy struct {
	RecordHistory map[models.Mode]bool
}

// DefaultPolicy records moves but not tags
func DefaultPolicy() Policy {
	return Policy{RecordHistory: map[models.Mode]bool{
		models.ModeMove: true,
		models.ModeTag:  false,
	}}
}

// Records reports whether mode writes history entries
func (p Policy) Records(mode models.Mode) bool {
	return p.RecordHistory[mode]
}

// Engine runs batches sequentially, in input order
type Engine struct {
	store    mailstore.Store
	resolver *resolver.Resolver
	history  HistoryRecorder
	sink     progress.Sink
	metrics  *metrics.Metrics
	policy   Policy
	now      func() time.Time
}

// Option customizes an Engine
type Option func(*Engine)

// WithPolicy overrides DefaultPolicy
func WithPolicy(p Policy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithClock overrides time.Now for outcome timestamps
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an engine. history, sink and m may be nil.
func New(store mailstore.Store, res *resolver.Resolver, history HistoryRecorder, sink progress.Sink, m *metrics.Metrics, opts ...Option) *Engine {
	if sink == nil {
		sink = progress.Discard
	}
	if m == nil {
		m = metrics.NewNop()
	}
	e := &Engine{
		store:    store,
		resolver: res,
		history:  history,
		sink:     sink,
		metrics:  m,
		policy:   DefaultPolicy(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ApplyLabel processes messages one at a time. A failing message produces
// an Error outcome and never stops the batch.
func (e *Engine) ApplyLabel(ctx context.Context, messages []models.Message, label string, mode models.Mode) (*models.BatchSummary, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}

	summary := &models.BatchSummary{
		BatchID:  uuid.NewString(),
		Label:    label,
		Mode:     mode,
		Outcomes: make([]models.OutcomeRecord, 0, len(messages)),
	}
	log := logrus.WithFields(logrus.Fields{"batch_id": summary.BatchID, "label": label, "mode": mode})
	start := time.Now()
	total := len(messages)

	log.Infof("Starting batch of %d message(s)", total)
	e.emit(ctx, progress.StageBatchStart, progress.LevelInfo,
		fmt.Sprintf("Starting to process %d message(s)...", total))

	for i, msg := range messages {
		var outcome models.OutcomeRecord
		switch mode {
		case models.ModeMove:
			outcome = e.move(ctx, msg, label, i+1, total)
		case models.ModeTag:
			outcome = e.tag(ctx, msg, label, i+1, total)
		}

		if outcome.Status == models.StatusSuccess {
			summary.SuccessCount++
		} else {
			summary.ErrorCount++
		}
		summary.Outcomes = append(summary.Outcomes, outcome)
		e.metrics.MessagesProcessed.WithLabelValues(string(mode), string(outcome.Status)).Inc()

		if e.history != nil && e.policy.Records(mode) {
			if err := e.history.Record(ctx, outcome); err != nil {
				log.WithField("message_id", msg.ID).Warnf("Failed to record history: %v", err)
			}
		}
	}

	e.metrics.BatchDuration.Observe(time.Since(start).Seconds())

	if summary.ErrorCount == 0 {
		e.sink.Emit(ctx, progress.Event{
			Stage: progress.StageBatchComplete,
			Level: progress.LevelSuccess,
			Title: "AutoSort Success",
			Text:  fmt.Sprintf("Successfully %s %d message(s) with %s", mode.Verb(), summary.SuccessCount, label),
		})
	} else {
		e.sink.Emit(ctx, progress.Event{
			Stage: progress.StageBatchComplete,
			Level: progress.LevelWarning,
			Title: "AutoSort Completed with Errors",
			Text: fmt.Sprintf("Processed %d message(s): %d successful, %d failed",
				total, summary.SuccessCount, summary.ErrorCount),
		})
	}

	log.WithFields(logrus.Fields{
		"success": summary.SuccessCount,
		"errors":  summary.ErrorCount,
		"result":  summary.Result(),
	}).Info("Batch completed")
	return summary, nil
}

func (e *Engine) move(ctx context.Context, msg models.Message, label string, n, total int) models.OutcomeRecord {
	log := logrus.WithFields(logrus.Fields{"message_id": msg.ID, "account": msg.Folder.AccountID})

	e.emit(ctx, progress.StageResolving, progress.LevelInfo,
		fmt.Sprintf("Finding destination folder for message %d/%d...", n, total))

	// fetched per message so the tree reflects the current mailbox state
	account, err := e.store.FetchAccount(ctx, msg.Folder.AccountID)
	if err != nil {
		log.Errorf("Failed to fetch account: %v", err)
		e.emit(ctx, progress.StageMessageFailed, progress.LevelError,
			fmt.Sprintf("Error loading folders: %v", err))
		return e.outcome(msg, models.StatusError, err.Error())
	}

	folder := e.resolver.Resolve(label, account.Folders)
	if folder == nil {
		log.Warnf("Folder %q not found in account %s", label, account.Name)
		e.emit(ctx, progress.StageMessageFailed, progress.LevelError,
			fmt.Sprintf("Folder %q not found. Please create it first.", label))
		return e.outcome(msg, models.StatusError, FolderNotFound)
	}

	e.emit(ctx, progress.StageMoving, progress.LevelInfo,
		fmt.Sprintf("Moving message %d/%d to %s...", n, total, folder.Name))

	if err := e.store.MoveMessage(ctx, msg, folder.ID); err != nil {
		log.Errorf("Error moving message: %v", err)
		e.emit(ctx, progress.StageMessageFailed, progress.LevelError,
			fmt.Sprintf("Error moving message: %v", err))
		return e.outcome(msg, models.StatusError, err.Error())
	}

	log.WithField("folder", folder.ID).Infof("Moved message to folder %s", folder.Name)
	return e.outcome(msg, models.StatusSuccess, folder.Name)
}

func (e *Engine) tag(ctx context.Context, msg models.Message, label string, n, total int) models.OutcomeRecord {
	log := logrus.WithFields(logrus.Fields{"message_id": msg.ID, "account": msg.Folder.AccountID})

	e.emit(ctx, progress.StageTagging, progress.LevelInfo,
		fmt.Sprintf("Applying tag to message %d/%d...", n, total))

	current := msg.Tags
	if current == nil {
		tags, err := e.store.GetMessageTags(ctx, msg)
		if err != nil {
			log.Errorf("Error reading tags: %v", err)
			e.emit(ctx, progress.StageMessageFailed, progress.LevelError,
				fmt.Sprintf("Error applying tag: %v", err))
			return e.outcome(msg, models.StatusError, err.Error())
		}
		current = tags
	}

	for _, t := range current {
		if t == label {
			log.Debugf("Message already has tag %s", label)
			return e.outcome(msg, models.StatusSuccess, label)
		}
	}

	next := make([]string, 0, len(current)+1)
	next = append(next, current...)
	next = append(next, label)

	if err := e.store.SetMessageTags(ctx, msg, next); err != nil {
		log.Errorf("Error applying tag: %v", err)
		e.emit(ctx, progress.StageMessageFailed, progress.LevelError,
			fmt.Sprintf("Error applying tag: %v", err))
		return e.outcome(msg, models.StatusError, err.Error())
	}

	log.Infof("Added tag %s", label)
	return e.outcome(msg, models.StatusSuccess, label)
}

func (e *Engine) outcome(msg models.Message, status models.Status, destination string) models.OutcomeRecord {
	return models.OutcomeRecord{
		Subject:     msg.Subject,
		Status:      status,
		Destination: destination,
		Timestamp:   e.now(),
	}
}

func (e *Engine) emit(ctx context.Context, stage progress.Stage, level progress.Level, text string) {
	e.sink.Emit(ctx, progress.Event{Stage: stage, Level: level, Title: progressTitle, Text: text})
}
