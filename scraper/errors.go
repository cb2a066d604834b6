package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/aluiziolira/leadscout/extract"
	"github.com/aluiziolira/leadscout/pipeline"
)

// ErrListingUnusable indicates a listing yielded no company name.
type ErrListingUnusable struct {
	Listing int
	Err     error
}

func (e ErrListingUnusable) Error() string {
	return fmt.Errorf("listing %d unusable: %w", e.Listing, e.Err).Error()
}

func (e ErrListingUnusable) Unwrap() error {
	return e.Err
}

// ErrRenderTimeout indicates a listing's detail view did not appear in time.
type ErrRenderTimeout struct {
	Listing int
	Err     error
}

func (e ErrRenderTimeout) Error() string {
	return fmt.Errorf("listing %d render timeout: %w", e.Listing, e.Err).Error()
}

func (e ErrRenderTimeout) Unwrap() error {
	return e.Err
}

// ErrBatchTimeout indicates the result feed never appeared; the batch is empty.
type ErrBatchTimeout struct {
	Err error
}

func (e ErrBatchTimeout) Error() string {
	return fmt.Errorf("batch timeout: %w", e.Err).Error()
}

func (e ErrBatchTimeout) Unwrap() error {
	return e.Err
}

// ErrTimeout indicates a timeout while fetching a page.
type ErrTimeout struct {
	Err error
}

func (e ErrTimeout) Error() string {
	return fmt.Errorf("timeout: %w", e.Err).Error()
}

func (e ErrTimeout) Unwrap() error {
	return e.Err
}

// ErrConnection indicates a network connectivity failure.
type ErrConnection struct {
	Err error
}

func (e ErrConnection) Error() string {
	return fmt.Errorf("connection: %w", e.Err).Error()
}

func (e ErrConnection) Unwrap() error {
	return e.Err
}

// ErrForbidden indicates a forbidden response (HTTP 403).
type ErrForbidden struct {
	Err error
}

func (e ErrForbidden) Error() string {
	return fmt.Errorf("forbidden: %w", e.Err).Error()
}

func (e ErrForbidden) Unwrap() error {
	return e.Err
}

// ErrNotFound indicates a missing page (HTTP 404).
type ErrNotFound struct {
	Err error
}

func (e ErrNotFound) Error() string {
	return fmt.Errorf("not_found: %w", e.Err).Error()
}

func (e ErrNotFound) Unwrap() error {
	return e.Err
}

// ErrRateLimited indicates the map service throttled us.
type ErrRateLimited struct {
	Err error
}

func (e ErrRateLimited) Error() string {
	return fmt.Errorf("rate_limited: %w", e.Err).Error()
}

func (e ErrRateLimited) Unwrap() error {
	return e.Err
}

// ClassifyError wraps a fetch failure in the matching typed error. Navigators
// backed by plain HTTP use it so their failures share the batch's error labels.
func ClassifyError(err error, statusCode int) error {
	if err == nil && statusCode == 0 {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout{Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrConnection{Err: err}
	}

	if statusCode != 0 {
		wrapped := err
		if wrapped == nil {
			wrapped = fmt.Errorf("http status %d", statusCode)
		}
		switch statusCode {
		case http.StatusForbidden:
			return ErrForbidden{Err: wrapped}
		case http.StatusNotFound:
			return ErrNotFound{Err: wrapped}
		case http.StatusTooManyRequests:
			return ErrRateLimited{Err: wrapped}
		}
	}

	if err == nil {
		return fmt.Errorf("http status %d", statusCode)
	}
	return err
}

func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	var unusable ErrListingUnusable
	if errors.As(err, &unusable) || errors.Is(err, extract.ErrNoName) {
		return "listing_unusable"
	}
	var render ErrRenderTimeout
	if errors.As(err, &render) {
		return "render_timeout"
	}
	var batch ErrBatchTimeout
	if errors.As(err, &batch) {
		return "batch_timeout"
	}
	var sink pipeline.ErrSink
	if errors.As(err, &sink) {
		return "sink"
	}
	if errors.Is(err, pipeline.ErrDuplicateLead) {
		return "duplicate"
	}
	if errors.Is(err, pipeline.ErrInvalidLead) {
		return "invalid_record"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "batch_deadline"
	}
	var timeout ErrTimeout
	if errors.As(err, &timeout) {
		return "timeout"
	}
	var conn ErrConnection
	if errors.As(err, &conn) {
		return "connection"
	}
	var forbidden ErrForbidden
	if errors.As(err, &forbidden) {
		return "forbidden"
	}
	var notFound ErrNotFound
	if errors.As(err, &notFound) {
		return "not_found"
	}
	var rateLimited ErrRateLimited
	if errors.As(err, &rateLimited) {
		return "rate_limited"
	}
	return "other"
}
