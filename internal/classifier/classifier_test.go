package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mail-autosort-go/internal/metrics"
	"mail-autosort-go/internal/models"
	"mail-autosort-go/internal/progress"
)

var validConfig = models.ClassificationConfig{
	APIKey:          "key-123",
	CandidateLabels: []string{"A", "B"},
	Enabled:         true,
}

func replyWith(text string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []any{
				map[string]any{"content": map[string]any{"parts": []any{map[string]any{"text": text}}}},
			},
		})
	}
}

func newTestClassifier(t *testing.T, h http.Handler) (*Classifier, *progress.Recorder, *metrics.Metrics) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	rec := &progress.Recorder{}
	m := metrics.NewNop()
	c := New(Options{
		Endpoint:        srv.URL + "/v1/models",
		Model:           "gemini-test",
		Temperature:     0.2,
		TopK:            1,
		TopP:            1,
		MaxOutputTokens: 10,
	}, rec, m)
	return c, rec, m
}

func TestClassifyTrimsAndAcceptsCandidate(t *testing.T) {
	var captured generateRequest
	var path, apiKey string
	c, rec, m := newTestClassifier(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		apiKey = r.Header.Get("x-goog-api-key")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &captured)
		replyWith(" A \n")(w, r)
	}))

	label, ok, err := c.Classify(context.Background(), "Your invoice is attached", validConfig)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "A", label)

	assert.Equal(t, "/v1/models/gemini-test:generateContent", path)
	assert.Equal(t, "key-123", apiKey)
	require.NotNil(t, captured.GenerationConfig)
	assert.Equal(t, 0.2, captured.GenerationConfig.Temperature)
	assert.Equal(t, 1, captured.GenerationConfig.TopK)
	assert.Equal(t, 1.0, captured.GenerationConfig.TopP)
	assert.Equal(t, 10, captured.GenerationConfig.MaxOutputTokens)
	require.Len(t, captured.Contents, 1)
	assert.Contains(t, captured.Contents[0].Parts[0].Text, "A, B")
	assert.Contains(t, captured.Contents[0].Parts[0].Text, "Your invoice is attached")

	assert.Equal(t, []progress.Stage{
		progress.StageStart,
		progress.StageRequestSent,
		progress.StageAwaiting,
		progress.StageProcessingResponse,
		progress.StageComplete,
	}, rec.Stages())
	last, _ := rec.Last()
	assert.Equal(t, progress.LevelSuccess, last.Level)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ClassificationLabels.WithLabelValues("accepted")))
}

func TestClassifyRejectsNonMember(t *testing.T) {
	for _, reply := range []string{"C", "null", "a", ""} {
		t.Run(reply, func(t *testing.T) {
			c, rec, _ := newTestClassifier(t, replyWith(reply))

			label, ok, err := c.Classify(context.Background(), "text", validConfig)
			require.NoError(t, err)
			assert.False(t, ok)
			assert.Empty(t, label)

			assert.Len(t, rec.Stages(), 5)
			last, _ := rec.Last()
			assert.Equal(t, progress.StageComplete, last.Stage)
			assert.Equal(t, progress.LevelWarning, last.Level)
		})
	}
}

func TestClassifyConfigurationErrorsMakeNoRequest(t *testing.T) {
	tests := []struct {
		name string
		cfg  models.ClassificationConfig
	}{
		{"disabled", models.ClassificationConfig{APIKey: "k", CandidateLabels: []string{"A"}}},
		{"missing key", models.ClassificationConfig{CandidateLabels: []string{"A"}, Enabled: true}},
		{"blank key", models.ClassificationConfig{APIKey: "  ", CandidateLabels: []string{"A"}, Enabled: true}},
		{"no labels", models.ClassificationConfig{APIKey: "k", Enabled: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			c, rec, _ := newTestClassifier(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
			}))

			_, ok, err := c.Classify(context.Background(), "text", tt.cfg)
			assert.False(t, ok)
			assert.ErrorIs(t, err, ErrNotConfigured)

			var cfgErr *ConfigurationError
			assert.True(t, errors.As(err, &cfgErr))
			assert.Zero(t, atomic.LoadInt32(&calls))
			assert.Equal(t, []progress.Stage{progress.StageStart, progress.StageComplete}, rec.Stages())
		})
	}
}

func TestClassifyQuotaExceeded(t *testing.T) {
	c, rec, m := newTestClassifier(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("not json at all"))
	}))

	_, ok, err := c.Classify(context.Background(), "text", validConfig)
	assert.False(t, ok)
	require.Error(t, err)
	assert.True(t, IsQuotaExceeded(err))

	var se *ServiceError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusTooManyRequests, se.StatusCode)

	last, _ := rec.Last()
	assert.Equal(t, progress.LevelError, last.Level)
	assert.Contains(t, last.Text, "quota")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ClassificationFailures.WithLabelValues(string(KindQuotaExceeded))))
}

func TestClassifyQuotaFromMessage(t *testing.T) {
	c, _, _ := newTestClassifier(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"Resource has been exhausted (e.g. check quota)."}}`))
	}))

	_, _, err := c.Classify(context.Background(), "text", validConfig)
	assert.True(t, IsQuotaExceeded(err))
}

func TestClassifyHTTPError(t *testing.T) {
	c, rec, _ := newTestClassifier(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"API key not valid"}}`))
	}))

	_, ok, err := c.Classify(context.Background(), "text", validConfig)
	assert.False(t, ok)
	assert.False(t, IsQuotaExceeded(err))

	var se *ServiceError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, KindHTTP, se.Kind)
	assert.Equal(t, "API key not valid", se.Message)
	assert.EqualError(t, err, "API error (400): API key not valid")

	assert.Equal(t, []progress.Stage{
		progress.StageStart,
		progress.StageRequestSent,
		progress.StageAwaiting,
		progress.StageComplete,
	}, rec.Stages())
}

func TestClassifyTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(Options{Endpoint: url}, nil, nil)
	_, _, err := c.Classify(context.Background(), "text", validConfig)

	var se *ServiceError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, KindTransport, se.Kind)
}

func TestClassifyMalformedResponse(t *testing.T) {
	c, _, _ := newTestClassifier(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))

	_, ok, err := c.Classify(context.Background(), "text", validConfig)
	assert.False(t, ok)

	var se *ServiceError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, KindMalformed, se.Kind)
}

func TestTestConnection(t *testing.T) {
	c, _, _ := newTestClassifier(t, replyWith("hello"))
	assert.NoError(t, c.TestConnection(context.Background(), "key"))
	assert.ErrorIs(t, c.TestConnection(context.Background(), ""), ErrNotConfigured)
}
