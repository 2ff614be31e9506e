package history

import (
	"context"

	"mail-autosort-go/internal/models"
	"mail-autosort-go/internal/repository"
)

// RecordPersister stores the history as one JSON array under a named record
type RecordPersister struct {
	Store repository.Store
	Name  string
}

// NewRecordPersister persists under repository.HistoryRecord
func NewRecordPersister(store repository.Store) *RecordPersister {
	return &RecordPersister{Store: store, Name: repository.HistoryRecord}
}

// Load returns the stored sequence, or nil when nothing was saved yet
func (p *RecordPersister) Load(ctx context.Context) ([]models.OutcomeRecord, error) {
	var entries []models.OutcomeRecord
	if _, err := p.Store.Get(ctx, p.Name, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Save replaces the stored sequence
func (p *RecordPersister) Save(ctx context.Context, entries []models.OutcomeRecord) error {
	return p.Store.Put(ctx, p.Name, entries)
}
