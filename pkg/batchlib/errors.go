package batchlib

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrBatchNotFound is returned when operating on a batch id that was never
	// registered or has already been stopped.
	ErrBatchNotFound = errors.New("batch not found")
	// ErrBatchExists is returned when registering a batch id that is still live.
	ErrBatchExists = errors.New("batch already exists")
	// ErrBatchNotPaused is returned when resuming a batch that is running.
	ErrBatchNotPaused = errors.New("batch is not paused")
	// ErrEmptyBatch is returned when dispatching a batch without items.
	ErrEmptyBatch = errors.New("batch has no items")
	// ErrInvalidTransition is returned when a manager operation is not valid
	// in the current lifecycle state.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrManagerClosed is returned by every operation after Close.
	ErrManagerClosed = errors.New("manager closed")

	ErrMissingItemID         = errors.New("item has no id")
	ErrDuplicateItemID       = errors.New("item id already in use")
	ErrEmptyURL              = errors.New("source URL cannot be empty")
	ErrInvalidURL            = errors.New("invalid source URL")
	ErrFileNameNotResolved   = errors.New("cannot determine file name from URL")
	ErrUnsupportedScheme     = errors.New("unsupported download scheme")
	ErrInsufficientDiskSpace = errors.New("insufficient disk space")
	ErrContentRangeMismatch  = errors.New("server returned an unexpected content range")
)

// HTTPStatusError reports a non-success response from a remote server.
type HTTPStatusError struct {
	Code   int
	Status string
}

func (e *HTTPStatusError) Error() string {
	if e.Status == "" {
		return fmt.Sprintf("unexpected status code %d", e.Code)
	}
	return fmt.Sprintf("unexpected status: %s", e.Status)
}

func newStatusError(resp *http.Response) *HTTPStatusError {
	return &HTTPStatusError{Code: resp.StatusCode, Status: resp.Status}
}
