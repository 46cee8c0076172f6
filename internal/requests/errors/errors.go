package errors

import "errors"

var (
	ErrNotFound = errors.New("booking request not found")

	ErrInvalidID = errors.New("invalid booking request ID format")

	// ErrTokenNotFound covers every token lookup failure: unknown token,
	// expired token, or a request no longer in the status the link was
	// issued for. Callers must not distinguish between these cases.
	ErrTokenNotFound = errors.New("no actionable request for token")

	// ErrStatusChanged means a conditional status transition matched
	// nothing because the request moved on since it was read.
	ErrStatusChanged = errors.New("booking request status changed concurrently")
)
