package models

import "time"

// ClassifyRequest represents the request structure for classifying raw text
type ClassifyRequest struct {
	Text string `json:"text" binding:"required"`
}

// ClassifyResponse carries the accepted label; Label is empty when none matched
type ClassifyResponse struct {
	Label   string `json:"label"`
	Matched bool   `json:"matched"`
}

// ApplyRequest represents the request structure for applying a label to messages
type ApplyRequest struct {
	Label    string    `json:"label" binding:"required"`
	Mode     Mode      `json:"mode"`
	Messages []Message `json:"messages" binding:"required"`
}

// AnalyzeRequest represents the request structure for analyze-and-apply
type AnalyzeRequest struct {
	Messages []Message `json:"messages" binding:"required"`
}

// ResolveRequest asks which folder a label resolves to
type ResolveRequest struct {
	AccountID string `json:"account_id" binding:"required"`
	Label     string `json:"label" binding:"required"`
}

// ResolveResponse carries the resolved folder, if any
type ResolveResponse struct {
	Label  string  `json:"label"`
	Folder *Folder `json:"folder"`
}

// ImportLabelsRequest carries newline-separated labels
type ImportLabelsRequest struct {
	Text string `json:"text" binding:"required"`
}

// SettingsResponse is the settings view returned by the API. The API key is never echoed.
type SettingsResponse struct {
	HasAPIKey bool     `json:"has_api_key"`
	Labels    []string `json:"labels"`
	EnableAI  bool     `json:"enable_ai"`
	Mode      Mode     `json:"mode"`
}

// HistoryResponse represents the response structure for the move history
type HistoryResponse struct {
	Entries []OutcomeRecord `json:"entries"`
	Total   int             `json:"total"`
	// Unsaved is set while entries are held in memory after a failed save
	Unsaved bool `json:"unsaved,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Database  string            `json:"database"`
	Metrics   map[string]string `json:"metrics,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// AnalyzeItem reports what analyze-and-apply did with one message
type AnalyzeItem struct {
	MessageID string        `json:"message_id"`
	Subject   string        `json:"subject"`
	Label     string        `json:"label,omitempty"`
	Applied   bool          `json:"applied"`
	Reason    string        `json:"reason,omitempty"`
	Summary   *BatchSummary `json:"summary,omitempty"`
}

// AnalyzeResponse represents the response structure for analyze-and-apply
type AnalyzeResponse struct {
	Items   []AnalyzeItem `json:"items"`
	Applied int           `json:"applied"`
	Skipped int           `json:"skipped"`
}

// TestConnectionRequest optionally carries a key to test before saving it
type TestConnectionRequest struct {
	APIKey string `json:"api_key"`
}

// ImportLabelsResponse reports the imported label list
type ImportLabelsResponse struct {
	Labels  []string `json:"labels"`
	Message string   `json:"message"`
}
