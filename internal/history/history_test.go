package history

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mail-autosort-go/internal/models"
	"mail-autosort-go/internal/repository"
)

type memPersister struct {
	mu      sync.Mutex
	entries []models.OutcomeRecord
	saves   int
	failing bool
}

func (m *memPersister) Load(context.Context) ([]models.OutcomeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.OutcomeRecord(nil), m.entries...), nil
}

func (m *memPersister) Save(_ context.Context, entries []models.OutcomeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return errors.New("disk full")
	}
	m.saves++
	m.entries = append([]models.OutcomeRecord(nil), entries...)
	return nil
}

func record(i int) models.OutcomeRecord {
	return models.OutcomeRecord{
		Subject:     fmt.Sprintf("message %d", i),
		Status:      models.StatusSuccess,
		Destination: "Inbox/Facturen",
		Timestamp:   time.Date(2024, 1, 1, 0, 0, i, 0, time.UTC),
	}
}

func TestRecordPrependsNewest(t *testing.T) {
	h, err := New(context.Background(), &memPersister{})
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		require.NoError(t, h.Record(context.Background(), record(i)))
	}

	entries := h.List()
	require.Len(t, entries, 3)
	assert.Equal(t, "message 3", entries[0].Subject)
	assert.Equal(t, "message 1", entries[2].Subject)
}

func TestRecordEvictsBeyondCapacity(t *testing.T) {
	p := &memPersister{}
	h, err := New(context.Background(), p)
	require.NoError(t, err)

	for i := 1; i <= 150; i++ {
		require.NoError(t, h.Record(context.Background(), record(i)))
	}

	entries := h.List()
	require.Len(t, entries, DefaultCapacity)
	assert.Equal(t, "message 150", entries[0].Subject)
	assert.Equal(t, "message 51", entries[len(entries)-1].Subject)
	assert.Len(t, p.entries, DefaultCapacity)
	assert.Equal(t, 150, p.saves)
}

func TestCustomCapacityAndObserver(t *testing.T) {
	var sizes []int
	h, err := New(context.Background(), nil,
		WithCapacity(2),
		WithSizeObserver(func(n int) { sizes = append(sizes, n) }))
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		require.NoError(t, h.Record(context.Background(), record(i)))
	}

	assert.Equal(t, 2, h.Len())
	assert.Equal(t, 2, h.Capacity())
	assert.Equal(t, []int{0, 1, 2, 2}, sizes)
}

func TestLoadTruncatesOversizedHistory(t *testing.T) {
	p := &memPersister{}
	for i := 0; i < 5; i++ {
		p.entries = append(p.entries, record(i))
	}

	h, err := New(context.Background(), p, WithCapacity(3))
	require.NoError(t, err)
	assert.Equal(t, 3, h.Len())
	assert.Equal(t, "message 0", h.List()[0].Subject)
}

func TestFailedSaveKeepsEntryAndRetriesOnNextRecord(t *testing.T) {
	p := &memPersister{}
	h, err := New(context.Background(), p)
	require.NoError(t, err)
	require.NoError(t, h.Record(context.Background(), record(1)))

	p.failing = true
	err = h.Record(context.Background(), record(2))
	assert.ErrorContains(t, err, "failed to persist history")
	assert.True(t, h.Unsaved())

	entries := h.List()
	require.Len(t, entries, 2)
	assert.Equal(t, "message 2", entries[0].Subject)
	require.Len(t, p.entries, 1)

	p.failing = false
	require.NoError(t, h.Record(context.Background(), record(3)))
	assert.False(t, h.Unsaved())

	require.Len(t, p.entries, 3)
	assert.Equal(t, "message 3", p.entries[0].Subject)
	assert.Equal(t, "message 2", p.entries[1].Subject)
	assert.Equal(t, "message 1", p.entries[2].Subject)
}

func TestFailedClearKeepsEntries(t *testing.T) {
	p := &memPersister{}
	h, err := New(context.Background(), p)
	require.NoError(t, err)
	require.NoError(t, h.Record(context.Background(), record(1)))

	p.failing = true
	assert.Error(t, h.Clear(context.Background()))
	assert.Equal(t, 1, h.Len())
}

func TestListReturnsCopy(t *testing.T) {
	h, err := New(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, h.Record(context.Background(), record(1)))

	entries := h.List()
	entries[0].Subject = "mutated"
	assert.Equal(t, "message 1", h.List()[0].Subject)
}

func TestClear(t *testing.T) {
	p := &memPersister{}
	h, err := New(context.Background(), p)
	require.NoError(t, err)
	require.NoError(t, h.Record(context.Background(), record(1)))

	require.NoError(t, h.Clear(context.Background()))
	assert.Empty(t, h.List())
	assert.Empty(t, p.entries)
}

func TestConcurrentRecord(t *testing.T) {
	h, err := New(context.Background(), &memPersister{}, WithCapacity(10))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, h.Record(context.Background(), record(i)))
			_ = h.List()
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 10, h.Len())
}

func TestHistorySurvivesRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.db")

	store, err := repository.NewSQLiteStore(path)
	require.NoError(t, err)
	h, err := New(ctx, NewRecordPersister(store))
	require.NoError(t, err)
	require.NoError(t, h.Record(ctx, record(1)))
	require.NoError(t, h.Record(ctx, record(2)))
	require.NoError(t, store.Close())

	store, err = repository.NewSQLiteStore(path)
	require.NoError(t, err)
	defer store.Close()
	h, err = New(ctx, NewRecordPersister(store))
	require.NoError(t, err)

	entries := h.List()
	require.Len(t, entries, 2)
	assert.Equal(t, "message 2", entries[0].Subject)
	assert.True(t, entries[0].Timestamp.Equal(record(2).Timestamp))
}
