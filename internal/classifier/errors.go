package classifier

import (
	"errors"
	"fmt"
)

// ErrNotConfigured is matched by every ConfigurationError
var ErrNotConfigured = errors.New("classification is not configured")

// ConfigurationError is returned before any request is made when the
// classification settings are disabled or incomplete.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrNotConfigured, e.Reason)
}

// Is reports ErrNotConfigured as a match
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrNotConfigured
}

// ErrorKind distinguishes classification service failures
type ErrorKind string

const (
	KindTransport     ErrorKind = "transport"
	KindHTTP          ErrorKind = "http"
	KindMalformed     ErrorKind = "malformed_response"
	KindQuotaExceeded ErrorKind = "quota_exceeded"
)

// ServiceError is a failure talking to the classification endpoint
type ServiceError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	Err        error
}

func (e *ServiceError) Error() string {
	switch {
	case e.Kind == KindQuotaExceeded:
		return "API quota exceeded. Please wait a while before trying again, or upgrade to a paid API key."
	case e.StatusCode != 0:
		return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	default:
		return e.Message
	}
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// IsQuotaExceeded reports whether err is a quota or rate-limit failure
func IsQuotaExceeded(err error) bool {
	var se *ServiceError
	return errors.As(err, &se) && se.Kind == KindQuotaExceeded
}
