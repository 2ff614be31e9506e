// Package classifier derives a routing label for a message by asking a
// generative-text endpoint to pick one of the configured candidate labels.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"mail-autosort-go/internal/metrics"
	"mail-autosort-go/internal/models"
	"mail-autosort-go/internal/progress"
)

const (
	defaultEndpoint = "https://generativelanguage.googleapis.com/v1/models"
	defaultModel    = "gemini-1.0-pro"
	progressTitle   = "AutoSort AI Analysis"
)

// Options configures the endpoint and generation parameters
type Options struct {
	Endpoint        string
	Model           string
	Temperature     float64
	TopK            int
	TopP            float64
	MaxOutputTokens int
	HTTPClient      *http.Client
}

// Classifier talks to the generateContent API
type Classifier struct {
	opts    Options
	client  *http.Client
	sink    progress.Sink
	metrics *metrics.Metrics
}

// New creates a new classifier. A nil sink discards progress events.
func New(opts Options, sink progress.Sink, m *metrics.Metrics) *Classifier {
	if opts.Endpoint == "" {
		opts.Endpoint = defaultEndpoint
	}
	if opts.Model == "" {
		opts.Model = defaultModel
	}
	if opts.MaxOutputTokens <= 0 {
		opts.MaxOutputTokens = 10
	}
	client := opts.HTTPClient
	if client == nil {
		// no timeout: a stalled call stalls the caller
		client = &http.Client{}
	}
	if sink == nil {
		sink = progress.Discard
	}
	if m == nil {
		m = metrics.NewNop()
	}
	return &Classifier{opts: opts, client: client, sink: sink, metrics: m}
}

func (c *Classifier) url() string {
	return fmt.Sprintf("%s/%s:generateContent", strings.TrimRight(c.opts.Endpoint, "/"), c.opts.Model)
}

// Classify asks the endpoint for a label for emailText. It returns the label
// and true only when the trimmed reply is one of cfg.CandidateLabels; any
// other reply, including "null", yields false without an error.
func (c *Classifier) Classify(ctx context.Context, emailText string, cfg models.ClassificationConfig) (string, bool, error) {
	c.emit(ctx, progress.StageStart, progress.LevelInfo, "Starting email analysis...")

	if err := validate(cfg); err != nil {
		logrus.Errorf("Classification rejected: %v", err)
		c.metrics.ClassificationFailures.WithLabelValues("configuration").Inc()
		c.emit(ctx, progress.StageComplete, progress.LevelError,
			"AI analysis is not properly configured. Please check your settings.")
		return "", false, err
	}

	c.emit(ctx, progress.StageRequestSent, progress.LevelInfo, "Sending request to Gemini AI...")

	body := generateRequest{
		Contents: []content{{Parts: []part{{Text: BuildPrompt(cfg.CandidateLabels, emailText)}}}},
		GenerationConfig: &generationConfig{
			Temperature:     c.opts.Temperature,
			TopK:            c.opts.TopK,
			TopP:            c.opts.TopP,
			MaxOutputTokens: c.opts.MaxOutputTokens,
		},
	}

	c.emit(ctx, progress.StageAwaiting, progress.LevelInfo, "Analyzing email content with Gemini AI...")
	c.metrics.ClassificationRequests.Inc()

	resp, err := c.call(ctx, cfg.APIKey, body)
	if err != nil {
		c.fail(ctx, err)
		return "", false, err
	}

	c.emit(ctx, progress.StageProcessingResponse, progress.LevelInfo, "Processing AI response...")

	text, ok := resp.firstText()
	if !ok {
		err := &ServiceError{Kind: KindMalformed, Message: "response contained no candidate text"}
		c.fail(ctx, err)
		return "", false, err
	}

	label := strings.TrimSpace(text)
	logrus.WithField("label", label).Debug("Generated label")

	if !cfg.HasLabel(label) {
		c.metrics.ClassificationLabels.WithLabelValues("rejected").Inc()
		c.emit(ctx, progress.StageComplete, progress.LevelWarning,
			"AI analysis complete but no matching label found.")
		return "", false, nil
	}

	c.metrics.ClassificationLabels.WithLabelValues("accepted").Inc()
	c.emit(ctx, progress.StageComplete, progress.LevelSuccess,
		fmt.Sprintf("AI analysis complete. Selected label: %s", label))
	return label, true, nil
}

// TestConnection sends a minimal request to verify the API key works
func (c *Classifier) TestConnection(ctx context.Context, apiKey string) error {
	if strings.TrimSpace(apiKey) == "" {
		return &ConfigurationError{Reason: "api key is empty"}
	}
	body := generateRequest{Contents: []content{{Parts: []part{{Text: "Test connection"}}}}}
	_, err := c.call(ctx, apiKey, body)
	return err
}

func validate(cfg models.ClassificationConfig) error {
	switch {
	case !cfg.Enabled:
		return &ConfigurationError{Reason: "classification is disabled"}
	case strings.TrimSpace(cfg.APIKey) == "":
		return &ConfigurationError{Reason: "api key is missing"}
	case len(cfg.CandidateLabels) == 0:
		return &ConfigurationError{Reason: "no candidate labels configured"}
	}
	return nil
}

// call performs one generateContent request
func (c *Classifier) call(ctx context.Context, apiKey string, body generateRequest) (*generateResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		se := &ServiceError{Kind: KindTransport, Message: "failed to call classification API", Err: err}
		if mentionsQuota(err.Error()) {
			se.Kind = KindQuotaExceeded
		}
		return nil, se
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ServiceError{Kind: KindTransport, Message: "failed to read response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		message := "Unknown error"
		var apiErr apiErrorResponse
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			message = apiErr.Error.Message
		}
		se := &ServiceError{Kind: KindHTTP, StatusCode: resp.StatusCode, Message: message}
		if resp.StatusCode == http.StatusTooManyRequests || mentionsQuota(message) {
			se.Kind = KindQuotaExceeded
		}
		return nil, se
	}

	var result generateResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, &ServiceError{Kind: KindMalformed, Message: "failed to decode response", Err: err}
	}
	return &result, nil
}

func mentionsQuota(message string) bool {
	m := strings.ToLower(message)
	return strings.Contains(m, "quota") || strings.Contains(m, "rate limit")
}

func (c *Classifier) fail(ctx context.Context, err error) {
	kind := string(KindTransport)
	var se *ServiceError
	if errors.As(err, &se) {
		kind = string(se.Kind)
	}
	c.metrics.ClassificationFailures.WithLabelValues(kind).Inc()
	logrus.WithField("kind", kind).Errorf("Classification request failed: %v", err)
	c.emit(ctx, progress.StageComplete, progress.LevelError, fmt.Sprintf("API Error: %v", err))
}

func (c *Classifier) emit(ctx context.Context, stage progress.Stage, level progress.Level, text string) {
	c.sink.Emit(ctx, progress.Event{Stage: stage, Level: level, Title: progressTitle, Text: text})
}
