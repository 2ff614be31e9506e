// Package history keeps the bounded, most-recent-first audit log of batch
// outcomes and mirrors it to durable storage.
package history

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"mail-autosort-go/internal/models"
)

// DefaultCapacity is the number of entries retained
const DefaultCapacity = 100

// Persister loads and saves the whole history sequence
type Persister interface {
	Load(ctx context.Context) ([]models.OutcomeRecord, error)
	Save(ctx context.Context, entries []models.OutcomeRecord) error
}

// History is a capacity-bounded list of outcome records, newest first.
// It is safe for concurrent use.
type History struct {
	mu        sync.RWMutex
	entries   []models.OutcomeRecord
	capacity  int
	persister Persister
	onChange  func(size int)
	unsaved   bool
}

// Option customizes a History
type Option func(*History)

// WithCapacity overrides DefaultCapacity
func WithCapacity(n int) Option {
	return func(h *History) {
		if n > 0 {
			h.capacity = n
		}
	}
}

// WithSizeObserver registers fn to be called with the length after every change
func WithSizeObserver(fn func(size int)) Option {
	return func(h *History) { h.onChange = fn }
}

// New loads the persisted history. Entries beyond capacity are discarded.
func New(ctx context.Context, p Persister, opts ...Option) (*History, error) {
	h := &History{capacity: DefaultCapacity, persister: p}
	for _, opt := range opts {
		opt(h)
	}

	if p != nil {
		entries, err := p.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load history: %w", err)
		}
		if len(entries) > h.capacity {
			entries = entries[:h.capacity]
		}
		h.entries = entries
	}

	h.notify(len(h.entries))
	logrus.WithField("entries", len(h.entries)).Debug("History loaded")
	return h, nil
}

// Record prepends rec, evicts the oldest entries above capacity and persists
// the result. The entry stays in memory when the save fails; the next
// successful save writes it together with later entries.
func (h *History) Record(ctx context.Context, rec models.OutcomeRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := len(h.entries) + 1
	if n > h.capacity {
		n = h.capacity
	}
	next := make([]models.OutcomeRecord, 0, n)
	next = append(next, rec)
	next = append(next, h.entries[:n-1]...)
	h.entries = next
	h.notify(len(next))

	if err := h.save(ctx, next); err != nil {
		h.unsaved = true
		return err
	}
	if h.unsaved {
		logrus.WithField("entries", len(next)).Info("History persisted after earlier failure")
		h.unsaved = false
	}
	return nil
}

// Unsaved reports whether the in-memory entries differ from the last
// successful save.
func (h *History) Unsaved() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.unsaved
}

// List returns a copy of all entries, newest first
func (h *History) List() []models.OutcomeRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]models.OutcomeRecord, len(h.entries))
	copy(out, h.entries)
	return out
}

// Len returns the current number of entries
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

// Capacity returns the maximum number of entries retained
func (h *History) Capacity() int {
	return h.capacity
}

// Clear removes every entry
func (h *History) Clear(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.save(ctx, []models.OutcomeRecord{}); err != nil {
		return err
	}
	h.entries = nil
	h.unsaved = false
	h.notify(0)
	logrus.Info("History cleared")
	return nil
}

func (h *History) save(ctx context.Context, entries []models.OutcomeRecord) error {
	if h.persister == nil {
		return nil
	}
	if err := h.persister.Save(ctx, entries); err != nil {
		return fmt.Errorf("failed to persist history: %w", err)
	}
	return nil
}

func (h *History) notify(size int) {
	if h.onChange != nil {
		h.onChange(size)
	}
}
