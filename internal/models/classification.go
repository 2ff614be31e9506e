package models

// ClassificationConfig is built once per invocation by the settings loader
type ClassificationConfig struct {
	APIKey          string   `json:"-"`
	CandidateLabels []string `json:"candidate_labels"`
	Enabled         bool     `json:"enabled"`
}

// HasLabel reports exact membership of label in the candidate set
func (c ClassificationConfig) HasLabel(label string) bool {
	for _, l := range c.CandidateLabels {
		if l == label {
			return true
		}
	}
	return false
}

// Settings are the user-editable options persisted in the record store
type Settings struct {
	APIKey   string   `json:"api_key"`
	Labels   []string `json:"labels"`
	EnableAI *bool    `json:"enable_ai,omitempty"`
	BulkMove *bool    `json:"bulk_move,omitempty"`
}
