// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package scraper

import (
	"errors"
	"net"
	"net/url"

	"github.com/taibuivan/yomira/internal/platform/apperr"
)

// Kind classifies a scrape failure for the circuit breaker and the
// worker retry policy. Only [KindProxyBlocked],
// [KindTimeout], and [KindNetwork] trip the breaker; a rate limit is the
// caller's own backpressure, not the adapter misbehaving, so it does not.
type Kind int

const (
	KindRateLimit Kind = iota
	KindProxyBlocked
	KindSelectorNotFound
	KindTimeout
	KindNetwork
	KindInvalidInput
)

// TripsBreaker reports whether a failure of this kind counts toward the
// circuit breaker's consecutive-failure threshold.
func (k Kind) TripsBreaker() bool {
	switch k {
	case KindProxyBlocked, KindTimeout, KindNetwork:
		return true
	default:
		return false
	}
}

// Retryable reports whether the worker queue should retry a job that
// failed with this kind.
func (k Kind) Retryable() bool {
	switch k {
	case KindRateLimit, KindProxyBlocked, KindTimeout, KindNetwork:
		return true
	default:
		return false
	}
}

// ScrapeError wraps an adapter failure with its [Kind] so callers can
// branch without string-matching messages.
type ScrapeError struct {
	Kind   Kind
	Source string
	Cause  error
}

func (e *ScrapeError) Error() string {
	return "scraper: " + e.Source + ": " + e.Cause.Error()
}

func (e *ScrapeError) Unwrap() error { return e.Cause }

func newScrapeError(source string, kind Kind, cause error) *ScrapeError {
	return &ScrapeError{Kind: kind, Source: source, Cause: cause}
}

// AppErr converts a [ScrapeError] into the shared [apperr.AppError]
// taxonomy so it can flow through dberr/apperr-aware logging and
// dead-letter reporting the same way a database failure would.
func (e *ScrapeError) AppErr() *apperr.AppError {
	switch e.Kind {
	case KindRateLimit:
		return apperr.RateLimited(1)
	case KindProxyBlocked:
		return apperr.UpstreamBlocked(e.Cause)
	case KindSelectorNotFound:
		return apperr.UpstreamSchemaChanged(e.Cause)
	case KindTimeout:
		return apperr.Timeout(e.Cause)
	case KindInvalidInput:
		return apperr.ValidationError(e.Cause.Error())
	default:
		return apperr.Internal(e.Cause)
	}
}

// classifyTransportErr maps a raw net/http failure into a [Kind] for
// adapters that share one HTTP-calling code path.
func classifyTransportErr(err error) Kind {
	if err == nil {
		return KindNetwork
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindNetwork
}
