package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"mail-autosort-go/internal/classifier"
	"mail-autosort-go/internal/mailstore"
	"mail-autosort-go/internal/models"
	"mail-autosort-go/internal/progress"
	"mail-autosort-go/internal/settings"
)

// Classifier picks a label for message text
type Classifier interface {
	Classify(ctx context.Context, emailText string, cfg models.ClassificationConfig) (string, bool, error)
}

// Triage classifies each message and applies the resulting label
type Triage struct {
	engine     *Engine
	reader     mailstore.Reader
	classifier Classifier
	sink       progress.Sink
}

// NewTriage creates the analyze-and-apply flow
func NewTriage(e *Engine, reader mailstore.Reader, c Classifier, sink progress.Sink) *Triage {
	if sink == nil {
		sink = progress.Discard
	}
	return &Triage{engine: e, reader: reader, classifier: c, sink: sink}
}

// Analyze handles messages in order. Messages without text or without an
// accepted label are skipped. A configuration error stops the run since it
// would fail for every remaining message.
func (t *Triage) Analyze(ctx context.Context, messages []models.Message, snap settings.Snapshot) (*models.AnalyzeResponse, error) {
	resp := &models.AnalyzeResponse{Items: make([]models.AnalyzeItem, 0, len(messages))}

	for _, msg := range messages {
		item := models.AnalyzeItem{MessageID: msg.ID, Subject: msg.Subject}
		log := logrus.WithFields(logrus.Fields{"message_id": msg.ID, "account": msg.Folder.AccountID})

		text, err := t.reader.FetchText(ctx, msg)
		if err != nil {
			log.Errorf("Could not get message content: %v", err)
			item.Reason = fmt.Sprintf("could not get message content: %v", err)
			t.skip(ctx, resp, item)
			continue
		}
		if strings.TrimSpace(text) == "" {
			log.Warn("No readable content found in message")
			item.Reason = "could not extract email content"
			t.skip(ctx, resp, item)
			continue
		}

		label, ok, err := t.classifier.Classify(ctx, text, snap.Classification)
		if errors.Is(err, classifier.ErrNotConfigured) {
			return resp, err
		}
		if err != nil {
			item.Reason = err.Error()
			t.skip(ctx, resp, item)
			continue
		}
		if !ok {
			item.Reason = "could not generate label from analysis"
			t.skip(ctx, resp, item)
			continue
		}

		item.Label = label
		summary, err := t.engine.ApplyLabel(ctx, []models.Message{msg}, label, snap.Mode)
		if err != nil {
			return resp, fmt.Errorf("failed to apply label: %w", err)
		}
		item.Summary = summary
		item.Applied = summary.ErrorCount == 0
		if item.Applied {
			resp.Applied++
			t.sink.Emit(ctx, progress.Event{
				Stage: progress.StageComplete,
				Level: progress.LevelSuccess,
				Title: "AutoSort",
				Text:  fmt.Sprintf("Successfully applied label: %s", label),
			})
		} else {
			item.Reason = summary.Outcomes[0].Destination
			resp.Skipped++
		}
		resp.Items = append(resp.Items, item)
	}

	logrus.WithFields(logrus.Fields{"applied": resp.Applied, "skipped": resp.Skipped}).Info("Analysis run completed")
	return resp, nil
}

func (t *Triage) skip(ctx context.Context, resp *models.AnalyzeResponse, item models.AnalyzeItem) {
	resp.Skipped++
	resp.Items = append(resp.Items, item)
	t.sink.Emit(ctx, progress.Event{
		Stage: progress.StageMessageFailed,
		Level: progress.LevelError,
		Title: "AutoSort Error",
		Text:  item.Reason,
	})
}
