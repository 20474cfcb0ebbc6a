package util

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5"

	"mailtriage/pkg/circuitbreaker"
)

// ClassifyError maps err to a short kind label for logs and metrics.
// It returns "" for a nil error.
func ClassifyError(err error) string {
	if err == nil {
		return ""
	}

	if errors.Is(err, circuitbreaker.ErrCircuitBreakerOpen) {
		return "circuit_open"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "context_canceled"
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return "json_decode_error"
	}

	if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
		return "not_found"
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return "network_timeout"
		}
		return "network_error"
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return "network_timeout"
		}
		return "network_error"
	}

	errStr := strings.ToLower(err.Error())
	switch {
	case strings.Contains(errStr, "not found"):
		return "not_found"
	case strings.Contains(errStr, "unavailable"):
		return "unavailable"
	case strings.Contains(errStr, "duplicate key") || strings.Contains(errStr, "unique constraint"):
		return "duplicate_key"
	case strings.Contains(errStr, "authentication") || strings.Contains(errStr, "login"):
		return "auth_error"
	case strings.Contains(errStr, "connection"):
		return "connection_error"
	}

	return "unknown_error"
}

// IsRetryable reports whether an error of this kind may succeed on a later
// attempt.
func IsRetryable(err error) bool {
	switch ClassifyError(err) {
	case "timeout", "network_timeout", "network_error", "connection_error", "circuit_open", "unavailable":
		return true
	default:
		return false
	}
}
