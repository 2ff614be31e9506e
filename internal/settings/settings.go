// Package settings builds the per-invocation classification settings and
// sort mode from persisted user settings layered over static configuration.
package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"mail-autosort-go/internal/config"
	"mail-autosort-go/internal/models"
	"mail-autosort-go/internal/repository"
)

// ErrNoLabels is returned when an import contains no usable labels
var ErrNoLabels = errors.New("no labels to import")

// Snapshot is the effective configuration for one invocation
type Snapshot struct {
	Classification models.ClassificationConfig
	Mode           models.Mode
}

// Loader reads and updates user settings. Persisted values win over the
// static configuration; the API key may also come from a SecretSource.
type Loader struct {
	store   repository.Store
	static  config.ClassifierConfig
	mode    models.Mode
	secrets SecretSource

	mu sync.Mutex
}

// NewLoader creates a loader. store and secrets may be nil.
func NewLoader(store repository.Store, cfg *config.Config, secrets SecretSource) *Loader {
	mode := models.Mode(cfg.Sorting.Mode)
	if !mode.Valid() {
		mode = models.ModeTag
	}
	return &Loader{store: store, static: cfg.Classifier, mode: mode, secrets: secrets}
}

func (l *Loader) persisted(ctx context.Context) (models.Settings, error) {
	var s models.Settings
	if l.store == nil {
		return s, nil
	}
	if _, err := l.store.Get(ctx, repository.SettingsRecord, &s); err != nil {
		return s, fmt.Errorf("failed to load settings: %w", err)
	}
	return s, nil
}

// Load returns the effective settings
func (l *Loader) Load(ctx context.Context) (Snapshot, error) {
	s, err := l.persisted(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	apiKey := s.APIKey
	if apiKey == "" && l.secrets != nil {
		key, err := l.secrets.APIKey()
		if err != nil {
			logrus.Warnf("Failed to read API key from keyring: %v", err)
		}
		apiKey = key
	}
	if apiKey == "" {
		apiKey = l.static.APIKey
	}

	labels := s.Labels
	if len(labels) == 0 {
		labels = l.static.Labels
	}

	enabled := l.static.Enabled
	if s.EnableAI != nil {
		enabled = *s.EnableAI
	}

	mode := l.mode
	if s.BulkMove != nil {
		mode = models.ModeTag
		if *s.BulkMove {
			mode = models.ModeMove
		}
	}

	return Snapshot{
		Classification: models.ClassificationConfig{
			APIKey:          apiKey,
			CandidateLabels: append([]string(nil), labels...),
			Enabled:         enabled,
		},
		Mode: mode,
	}, nil
}

// View returns the settings as shown to API clients
func (l *Loader) View(ctx context.Context) (models.SettingsResponse, error) {
	snap, err := l.Load(ctx)
	if err != nil {
		return models.SettingsResponse{}, err
	}
	labels := snap.Classification.CandidateLabels
	if labels == nil {
		labels = []string{}
	}
	return models.SettingsResponse{
		HasAPIKey: strings.TrimSpace(snap.Classification.APIKey) != "",
		Labels:    labels,
		EnableAI:  snap.Classification.Enabled,
		Mode:      snap.Mode,
	}, nil
}

// Update merges upd into the persisted settings. Empty or nil fields keep
// their current value. Labels are trimmed and blanks dropped.
func (l *Loader) Update(ctx context.Context, upd models.Settings) (models.SettingsResponse, error) {
	if l.store == nil {
		return models.SettingsResponse{}, errors.New("settings store is not configured")
	}

	l.mu.Lock()
	cur, err := l.persisted(ctx)
	if err != nil {
		l.mu.Unlock()
		return models.SettingsResponse{}, err
	}

	if key := strings.TrimSpace(upd.APIKey); key != "" {
		if l.secrets != nil {
			if err := l.secrets.SetAPIKey(key); err != nil {
				l.mu.Unlock()
				return models.SettingsResponse{}, fmt.Errorf("failed to store API key: %w", err)
			}
			cur.APIKey = ""
		} else {
			cur.APIKey = key
		}
	}
	if upd.Labels != nil {
		cur.Labels = cleanLabels(upd.Labels)
	}
	if upd.EnableAI != nil {
		cur.EnableAI = upd.EnableAI
	}
	if upd.BulkMove != nil {
		cur.BulkMove = upd.BulkMove
	}

	if err := l.store.Put(ctx, repository.SettingsRecord, cur); err != nil {
		l.mu.Unlock()
		return models.SettingsResponse{}, fmt.Errorf("failed to save settings: %w", err)
	}
	l.mu.Unlock()

	logrus.WithField("labels", len(cur.Labels)).Info("Settings saved")
	return l.View(ctx)
}

// ImportLabels replaces the label list with one label per line of text
func (l *Loader) ImportLabels(ctx context.Context, text string) ([]string, error) {
	labels := ParseLabels(text)
	if len(labels) == 0 {
		return nil, ErrNoLabels
	}
	if _, err := l.Update(ctx, models.Settings{Labels: labels}); err != nil {
		return nil, err
	}
	return labels, nil
}

// ParseLabels splits text on newlines, trims each line and drops blanks
func ParseLabels(text string) []string {
	return cleanLabels(strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n"))
}

func cleanLabels(in []string) []string {
	out := make([]string, 0, len(in))
	for _, l := range in {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}
