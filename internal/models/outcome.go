package models

import "time"

// Status is the terminal state of one message in a batch
type Status string

const (
	StatusSuccess Status = "Success"
	StatusError   Status = "Error"
)

// Mode selects the action a batch applies to each message
type Mode string

const (
	ModeMove Mode = "move"
	ModeTag  Mode = "tag"
)

// Valid reports whether m is a known mode
func (m Mode) Valid() bool {
	return m == ModeMove || m == ModeTag
}

// Verb returns the past-tense action used in user-facing summaries
func (m Mode) Verb() string {
	if m == ModeMove {
		return "moved"
	}
	return "tagged"
}

// OutcomeRecord is the audit entry for one processed message. It is never
// modified after creation.
type OutcomeRecord struct {
	Subject     string    `json:"subject"`
	Status      Status    `json:"status"`
	Destination string    `json:"destination"`
	Timestamp   time.Time `json:"timestamp"`
}

// BatchResult classifies a finished batch for the user-facing summary
type BatchResult string

const (
	BatchSucceeded BatchResult = "success"
	BatchPartial   BatchResult = "partial"
	BatchFailed    BatchResult = "failed"
)

// BatchSummary is returned by one ApplyLabel invocation
type BatchSummary struct {
	BatchID      string          `json:"batch_id"`
	Label        string          `json:"label"`
	Mode         Mode            `json:"mode"`
	SuccessCount int             `json:"success_count"`
	ErrorCount   int             `json:"error_count"`
	Outcomes     []OutcomeRecord `json:"outcomes"`
}

// Result reports full success, partial success or total failure
func (s *BatchSummary) Result() BatchResult {
	switch {
	case s.ErrorCount == 0:
		return BatchSucceeded
	case s.SuccessCount == 0:
		return BatchFailed
	default:
		return BatchPartial
	}
}
