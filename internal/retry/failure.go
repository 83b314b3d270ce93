package retry

import (
	"context"
	"errors"
	"net"
)

// Failure is the normalized result handed to callers after exhaustion or a
// terminal error. It never panics a turn; the caller logs and moves on.
type Failure struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// Failure codes.
const (
	CodeTimeout     = "timeout"
	CodeNetwork     = "network"
	CodeRateLimited = "rate_limited"
	CodeServerFault = "server_fault"
	CodeClientFault = "client_fault"
	CodeCancelled   = "cancelled"
)

// Describe maps an error into a Failure for logging and business handling.
func Describe(err error) Failure {
	if err == nil {
		return Failure{}
	}

	switch {
	case errors.Is(err, context.Canceled):
		return Failure{Code: CodeCancelled, Description: err.Error()}
	case errors.Is(err, context.DeadlineExceeded):
		return Failure{Code: CodeTimeout, Description: err.Error()}
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.Status == 429:
			return Failure{Code: CodeRateLimited, Description: err.Error()}
		case httpErr.Status == 408:
			return Failure{Code: CodeTimeout, Description: err.Error()}
		case httpErr.Status >= 500:
			return Failure{Code: CodeServerFault, Description: err.Error()}
		default:
			return Failure{Code: CodeClientFault, Description: err.Error()}
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Failure{Code: CodeTimeout, Description: err.Error()}
	}

	return Failure{Code: CodeNetwork, Description: err.Error()}
}
