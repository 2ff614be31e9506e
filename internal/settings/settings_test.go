package settings

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mail-autosort-go/internal/config"
	"mail-autosort-go/internal/models"
	"mail-autosort-go/internal/repository"
)

func boolPtr(b bool) *bool { return &b }

func testConfig() *config.Config {
	return &config.Config{
		Classifier: config.ClassifierConfig{
			APIKey:  "static-key",
			Enabled: true,
			Labels:  []string{"Static"},
		},
		Sorting: config.SortingConfig{Mode: "tag"},
	}
}

func newStore(t *testing.T) repository.Store {
	t.Helper()
	s, err := repository.NewSQLiteStore(filepath.Join(t.TempDir(), "settings.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLoadFallsBackToStaticConfig(t *testing.T) {
	l := NewLoader(newStore(t), testConfig(), nil)

	snap, err := l.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "static-key", snap.Classification.APIKey)
	assert.Equal(t, []string{"Static"}, snap.Classification.CandidateLabels)
	assert.True(t, snap.Classification.Enabled)
	assert.Equal(t, models.ModeTag, snap.Mode)
}

func TestPersistedSettingsOverrideStatic(t *testing.T) {
	l := NewLoader(newStore(t), testConfig(), nil)
	ctx := context.Background()

	view, err := l.Update(ctx, models.Settings{
		APIKey:   "user-key",
		Labels:   []string{" A ", "", "B"},
		EnableAI: boolPtr(false),
		BulkMove: boolPtr(true),
	})
	require.NoError(t, err)
	assert.True(t, view.HasAPIKey)
	assert.Equal(t, []string{"A", "B"}, view.Labels)
	assert.False(t, view.EnableAI)
	assert.Equal(t, models.ModeMove, view.Mode)

	snap, err := l.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "user-key", snap.Classification.APIKey)
	assert.False(t, snap.Classification.Enabled)

	// partial update keeps the other fields
	_, err = l.Update(ctx, models.Settings{EnableAI: boolPtr(true)})
	require.NoError(t, err)
	snap, err = l.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "user-key", snap.Classification.APIKey)
	assert.Equal(t, []string{"A", "B"}, snap.Classification.CandidateLabels)
	assert.True(t, snap.Classification.Enabled)
	assert.Equal(t, models.ModeMove, snap.Mode)
}

func TestLoadReturnsFreshCopy(t *testing.T) {
	l := NewLoader(nil, testConfig(), nil)
	snap, err := l.Load(context.Background())
	require.NoError(t, err)
	snap.Classification.CandidateLabels[0] = "mutated"

	again, err := l.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Static", again.Classification.CandidateLabels[0])
}

func TestKeyringHoldsAPIKey(t *testing.T) {
	ring := keyring.NewArrayKeyring(nil)
	secrets := NewKeyringSource(ring)
	store := newStore(t)
	cfg := testConfig()
	cfg.Classifier.APIKey = ""
	l := NewLoader(store, cfg, secrets)
	ctx := context.Background()

	_, err := l.Update(ctx, models.Settings{APIKey: "ring-key"})
	require.NoError(t, err)

	var raw models.Settings
	found, err := store.Get(ctx, repository.SettingsRecord, &raw)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Empty(t, raw.APIKey)

	snap, err := l.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ring-key", snap.Classification.APIKey)
}

func TestKeyringMissingKey(t *testing.T) {
	key, err := NewKeyringSource(keyring.NewArrayKeyring(nil)).APIKey()
	require.NoError(t, err)
	assert.Empty(t, key)
}

func TestParseLabels(t *testing.T) {
	got := ParseLabels("Financiën\r\n  Werk en Carrière  \n\n   \nReizen\n")
	assert.Equal(t, []string{"Financiën", "Werk en Carrière", "Reizen"}, got)
	assert.Empty(t, ParseLabels(" \n\n"))
}

func TestImportLabelsReplacesList(t *testing.T) {
	l := NewLoader(newStore(t), testConfig(), nil)
	ctx := context.Background()

	_, err := l.ImportLabels(ctx, "\n\n")
	assert.ErrorIs(t, err, ErrNoLabels)

	labels, err := l.ImportLabels(ctx, "X\nY")
	require.NoError(t, err)
	assert.Equal(t, []string{"X", "Y"}, labels)

	snap, err := l.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"X", "Y"}, snap.Classification.CandidateLabels)
}

func TestUpdateWithoutStore(t *testing.T) {
	l := NewLoader(nil, testConfig(), nil)
	_, err := l.Update(context.Background(), models.Settings{APIKey: "x"})
	assert.Error(t, err)
}
