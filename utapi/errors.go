package utapi

import (
	"errors"
	"fmt"
)

// ErrCancelled is returned by every operation that gave up because its context was cancelled.
var ErrCancelled = errors.New("operation cancelled")

// APIError is a non-2xx answer of the UploadThing API. Body holds the
// pretty-printed JSON error payload (or the raw body if it was not JSON).
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// BatchTicketError aborts a whole batch: no file was transferred.
type BatchTicketError struct {
	// Payload is the JSON document sent to the ticket endpoint.
	Payload string
	Err     error
}

func (e *BatchTicketError) Error() string {
	return fmt.Sprintf("request upload tickets: %v", e.Err)
}

func (e *BatchTicketError) Unwrap() error {
	return e.Err
}

// TransferError is a non-2xx answer of a file's upload destination.
type TransferError struct {
	StatusCode int
	Body       string
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer failed with HTTP %d: %s", e.StatusCode, e.Body)
}

// ValidationError is raised before anything is sent.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// PollTransportError is a single failed poll attempt. It is logged and
// counted against the retry budget, never returned to the caller.
type PollTransportError struct {
	Key string
	Err error
}

func (e *PollTransportError) Error() string {
	return fmt.Sprintf("poll upload %s: %v", e.Key, e.Err)
}

func (e *PollTransportError) Unwrap() error {
	return e.Err
}
