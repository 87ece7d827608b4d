// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package apperr

import "net/http"

// # Ingestion-backbone error kinds
//
// These extend the client-facing taxonomy above with the internal kinds
// the scraper, rate limiter, circuit breaker, and worker retry policy
// classify on. They are never sent to end users directly; the queue
// layer inspects [AppError.Code] via [Retryable] to decide whether a job
// should be retried, and the worker pool logs the rest to the
// dead-letter set on exhaustion.

// CircuitOpen creates an error reporting that a source's circuit breaker
// is currently open; the adapter must fail immediately without outbound I/O.
func CircuitOpen(source string) *AppError {
	return &AppError{
		Code:       "CIRCUIT_OPEN",
		Message:    "circuit open for source " + source,
		HTTPStatus: http.StatusServiceUnavailable,
	}
}

// Timeout creates an error reporting that an outbound call or DB
// transaction exceeded its deadline.
func Timeout(cause error) *AppError {
	return &AppError{
		Code:       "TIMEOUT",
		Message:    "operation timed out",
		HTTPStatus: http.StatusGatewayTimeout,
		Cause:      cause,
	}
}

// UpstreamBlocked creates an error for a 403/WAF-style rejection from an
// external source.
func UpstreamBlocked(cause error) *AppError {
	return &AppError{
		Code:       "UPSTREAM_BLOCKED",
		Message:    "upstream source blocked the request",
		HTTPStatus: http.StatusBadGateway,
		Cause:      cause,
	}
}

// UpstreamSchemaChanged creates a non-retryable error reporting that an
// adapter's selectors no longer match the upstream page structure.
func UpstreamSchemaChanged(cause error) *AppError {
	return &AppError{
		Code:       "UPSTREAM_SCHEMA_CHANGED",
		Message:    "upstream source structure changed",
		HTTPStatus: http.StatusBadGateway,
		Cause:      cause,
	}
}

// TransientDB creates a retryable error for connection-level Postgres
// failures (pool exhaustion, lost connection, reconnect in progress).
func TransientDB(cause error) *AppError {
	return &AppError{
		Code:       "TRANSIENT_DB",
		Message:    "database temporarily unavailable",
		HTTPStatus: http.StatusServiceUnavailable,
		Cause:      cause,
	}
}

// PermanentDB creates a non-retryable error for auth/schema-level
// Postgres failures that no amount of retrying will fix.
func PermanentDB(cause error) *AppError {
	return &AppError{
		Code:       "PERMANENT_DB",
		Message:    "database configuration error",
		HTTPStatus: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// retryableCodes are the [AppError.Code] values the worker/queue retry
// policy treats as transient: exponential backoff + jitter, up
// to the caller's attempt cap, before falling through to the dead-letter
// set. Every other kind is logged and dropped on first failure.
var retryableCodes = map[string]bool{
	"RATE_LIMITED":  true,
	"TIMEOUT":       true,
	"TRANSIENT_DB":  true,
	"UPSTREAM_BLOCKED": true,
}

// Retryable reports whether err's kind should be retried by the queue.
// Errors that aren't an [*AppError] are
// treated as non-retryable; unclassified failures are a bug to surface,
// not to silently retry.
func Retryable(err error) bool {
	ae := As(err)
	if ae == nil {
		return false
	}
	return retryableCodes[ae.Code]
}
