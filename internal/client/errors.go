package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// ErrorKind classifies a failed remote call into a fixed taxonomy that
// drives both user-facing copy and retry eligibility.
type ErrorKind int

const (
	// ErrUnknown passes through an unclassified error message.
	ErrUnknown ErrorKind = iota
	// ErrNetworkUnavailable means the request never reached a server
	// (refused connection, DNS failure). Distinct from rate limiting.
	ErrNetworkUnavailable
	// ErrRateLimited is a 429; the server asked us to slow down.
	ErrRateLimited
	// ErrServerError is a 5xx.
	ErrServerError
	// ErrBadRequest is a 4xx the caller cannot fix by retrying.
	ErrBadRequest
	// ErrPartialFailure marks a matrix where some pairs failed below the
	// abort threshold. Not user-fatal.
	ErrPartialFailure
	// ErrTotalFailure marks a metric kind whose failure ratio crossed the
	// threshold, or a single-series fetch where every file failed.
	ErrTotalFailure
)

// String returns the kind name.
func (k ErrorKind) String() string {
	switch k {
	case ErrNetworkUnavailable:
		return "network_unavailable"
	case ErrRateLimited:
		return "rate_limited"
	case ErrServerError:
		return "server_error"
	case ErrBadRequest:
		return "bad_request"
	case ErrPartialFailure:
		return "partial_failure"
	case ErrTotalFailure:
		return "total_failure"
	default:
		return "unknown"
	}
}

// ErrorRecord is the single error shape produced by the classifier. Call
// sites switch on Kind instead of probing response objects.
type ErrorRecord struct {
	Kind       ErrorKind
	Message    string
	RetryAfter int // seconds the server asked us to wait; 0 when unknown
}

// Error implements the error interface.
func (e *ErrorRecord) Error() string {
	return e.Message
}

// Retryable reports whether a user-initiated retry can plausibly succeed.
func (e *ErrorRecord) Retryable() bool {
	switch e.Kind {
	case ErrRateLimited, ErrNetworkUnavailable, ErrServerError, ErrPartialFailure, ErrTotalFailure:
		return true
	default:
		return false
	}
}

// AsRecord extracts an ErrorRecord from an error chain.
func AsRecord(err error) (*ErrorRecord, bool) {
	var rec *ErrorRecord
	if errors.As(err, &rec) {
		return rec, true
	}
	return nil, false
}

// quotaHint is appended to every rate-limit message.
const quotaHint = " Anonymous sessions share a limited request quota; spacing out requests avoids this."

// Classify maps a non-2xx response to an ErrorRecord. Pure: no I/O.
func Classify(status int, header http.Header, body []byte) *ErrorRecord {
	switch {
	case status == http.StatusTooManyRequests:
		rec := &ErrorRecord{Kind: ErrRateLimited}
		if secs, err := strconv.Atoi(strings.TrimSpace(header.Get("Retry-After"))); err == nil && secs > 0 {
			rec.RetryAfter = secs
			rec.Message = fmt.Sprintf("Rate limit reached, retry in %d seconds.%s", secs, quotaHint)
		} else {
			rec.Message = "Rate limit reached, please wait a moment and retry." + quotaHint
		}
		return rec

	case status >= 500:
		return &ErrorRecord{
			Kind:    ErrServerError,
			Message: "The statistics service hit an internal error, please try again.",
		}

	default:
		return &ErrorRecord{
			Kind:    ErrBadRequest,
			Message: fmt.Sprintf("The service rejected the request: %s", bodyDetail(body)),
		}
	}
}

// ClassifyErr maps a transport-level failure (the request never produced a
// response) to an ErrorRecord. Context cancellation passes through as
// Unknown so superseded fetch cycles are not reported as outages.
func ClassifyErr(err error) *ErrorRecord {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &ErrorRecord{Kind: ErrUnknown, Message: err.Error()}
	}
	return &ErrorRecord{
		Kind:    ErrNetworkUnavailable,
		Message: "Cannot reach the statistics service. Check that it is running and your connection is up.",
	}
}

// bodyDetail extracts the most useful detail from an error response body:
// a JSON error/message field, the raw text, or a fallback.
func bodyDetail(body []byte) string {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return "no details provided"
	}

	var shaped struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &shaped); err == nil {
		if shaped.Error != "" {
			return shaped.Error
		}
		if shaped.Message != "" {
			return shaped.Message
		}
	}
	return text
}
