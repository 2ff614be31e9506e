package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mail-autosort-go/internal/classifier"
	"mail-autosort-go/internal/models"
	"mail-autosort-go/internal/settings"
)

type fakeReader struct {
	texts map[string]string
	err   error
}

func (r *fakeReader) ListMessages(context.Context, string, string, time.Time) ([]models.Message, error) {
	return nil, nil
}

func (r *fakeReader) FetchText(_ context.Context, m models.Message) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	return r.texts[m.ID], nil
}

type fakeClassifier struct {
	labels map[string]string
	err    error
	calls  int
}

func (c *fakeClassifier) Classify(_ context.Context, text string, _ models.ClassificationConfig) (string, bool, error) {
	c.calls++
	if c.err != nil {
		return "", false, c.err
	}
	l, ok := c.labels[text]
	return l, ok, nil
}

func TestAnalyzeAppliesAndSkips(t *testing.T) {
	store := newFakeStore()
	hist := &memHistory{}
	e := newTestEngine(store, hist, nil, nil)
	reader := &fakeReader{texts: map[string]string{
		"1": "invoice",
		"2": "",
		"3": "gibberish",
		"4": "trip",
	}}
	cls := &fakeClassifier{labels: map[string]string{"invoice": "Financiën/Bills", "trip": "Missing"}}
	tr := NewTriage(e, reader, cls, nil)

	snap := settings.Snapshot{Mode: models.ModeMove}
	resp, err := tr.Analyze(context.Background(),
		[]models.Message{msg("1", "a"), msg("2", "b"), msg("3", "c"), msg("4", "d")}, snap)
	require.NoError(t, err)

	require.Len(t, resp.Items, 4)
	assert.Equal(t, 1, resp.Applied)
	assert.Equal(t, 3, resp.Skipped)

	assert.True(t, resp.Items[0].Applied)
	assert.Equal(t, "Financiën/Bills", resp.Items[0].Label)
	assert.Equal(t, "could not extract email content", resp.Items[1].Reason)
	assert.Equal(t, "could not generate label from analysis", resp.Items[2].Reason)
	assert.False(t, resp.Items[3].Applied)
	assert.Equal(t, FolderNotFound, resp.Items[3].Reason)

	assert.Equal(t, 3, cls.calls)
	assert.Equal(t, []string{"1->fin/bills"}, store.moves)
	assert.Len(t, hist.records, 2)
}

func TestAnalyzeStopsOnConfigurationError(t *testing.T) {
	e := newTestEngine(newFakeStore(), nil, nil, nil)
	reader := &fakeReader{texts: map[string]string{"1": "x", "2": "y"}}
	cls := &fakeClassifier{err: &classifier.ConfigurationError{Reason: "api key is missing"}}

	resp, err := NewTriage(e, reader, cls, nil).Analyze(context.Background(),
		[]models.Message{msg("1", "a"), msg("2", "b")}, settings.Snapshot{Mode: models.ModeTag})
	assert.ErrorIs(t, err, classifier.ErrNotConfigured)
	assert.Empty(t, resp.Items)
	assert.Equal(t, 1, cls.calls)
}

func TestAnalyzeServiceErrorSkipsMessage(t *testing.T) {
	e := newTestEngine(newFakeStore(), nil, nil, nil)
	reader := &fakeReader{texts: map[string]string{"1": "x"}}
	cls := &fakeClassifier{err: &classifier.ServiceError{Kind: classifier.KindQuotaExceeded}}

	resp, err := NewTriage(e, reader, cls, nil).Analyze(context.Background(),
		[]models.Message{msg("1", "a")}, settings.Snapshot{Mode: models.ModeTag})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Skipped)
	assert.Contains(t, resp.Items[0].Reason, "quota")
}

func TestAnalyzeFetchTextFailure(t *testing.T) {
	e := newTestEngine(newFakeStore(), nil, nil, nil)
	reader := &fakeReader{err: errors.New("timeout")}
	cls := &fakeClassifier{}

	resp, err := NewTriage(e, reader, cls, nil).Analyze(context.Background(),
		[]models.Message{msg("1", "a")}, settings.Snapshot{Mode: models.ModeTag})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Skipped)
	assert.Zero(t, cls.calls)
}
