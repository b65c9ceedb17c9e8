package errors

import "errors"

// Validation errors. Surfaced to tool callers as per-item failures.
var (
	ErrInvalidIdentifier = errors.New("invalid identifier")
	ErrMissingField      = errors.New("missing required field")
	ErrConflictingFields = errors.New("conflicting fields")
	ErrNoOp              = errors.New("nothing to do")
)

// Upstream errors.
var (
	ErrTaskNotFound = errors.New("task not found")
	ErrAPIRequest   = errors.New("API request failed")
	ErrAPIResponse  = errors.New("unexpected API response")
)
