package scraper

import (
	"context"
	"errors"
	"fmt"
)

// RejectReason classifies why a single record was dropped by the
// pipeline. Reasons are reported in run metrics.
type RejectReason string

const (
	ReasonUnparseablePrice RejectReason = "unparseable_price"
	ReasonPriceOutOfRange  RejectReason = "price_out_of_range"
	ReasonInvalidURL       RejectReason = "invalid_url"
	ReasonTitleTooShort    RejectReason = "title_too_short"
	ReasonUnknownStore     RejectReason = "unknown_store"
)

// FetchError is a page load failure (network error, timeout, non-200).
// Retriable.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError means a fetched page did not have the expected shape
// (selectors missing, captcha interstitial, empty listing). Retriable.
type ParseError struct {
	URL string
	Msg string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %s", e.URL, e.Msg)
}

// CleaningError means a raw record's price field had no extractable
// numeric value. The record is dropped before validation.
type CleaningError struct {
	Field string
	Value string
}

func (e *CleaningError) Error() string {
	return fmt.Sprintf("cannot clean field %q from %q", e.Field, e.Value)
}

// ValidationError carries the first failing validation rule.
type ValidationError struct {
	Reason RejectReason
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return string(e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Detail)
}

// IsRetriable reports whether a job runner error should be retried
// with backoff. Fetch and parse failures are transient; cancellation
// is not.
func IsRetriable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return true
	}
	var pe *ParseError
	if errors.As(err, &pe) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
