package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Errors shared across the dashboard.
var (
	ErrSessionNotFound = errors.New("dashboard session not found")
	ErrSessionLimit    = errors.New("dashboard session limit reached")
	ErrStateNotInView  = errors.New("state is not part of the current view")
)

// RemoteFetchError reports a failed request to the statistics backend.
// Status is zero when no HTTP response was received.
type RemoteFetchError struct {
	Endpoint string
	Status   int
	Err      error
}

func (e *RemoteFetchError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("remote fetch %s failed: %v", e.Endpoint, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("remote fetch %s failed with status %d: %v", e.Endpoint, e.Status, e.Err)
	}
	return fmt.Sprintf("remote fetch %s failed with status %d", e.Endpoint, e.Status)
}

func (e *RemoteFetchError) Unwrap() error {
	return e.Err
}

// NotFound reports whether the backend answered 404.
func (e *RemoteFetchError) NotFound() bool {
	return e.Status == 404
}

// CacheDeserializationError reports a cached payload that could not be decoded.
// Callers recover from it by treating the entry as a miss.
type CacheDeserializationError struct {
	Key string
	Err error
}

func (e *CacheDeserializationError) Error() string {
	return fmt.Sprintf("cache entry %q is corrupt: %v", e.Key, e.Err)
}

func (e *CacheDeserializationError) Unwrap() error {
	return e.Err
}

// ValidationError lists the problems found per field before any submission.
type ValidationError struct {
	Problems map[string][]string `json:"problems"`
}

// NewValidationError builds a ValidationError with a single problem.
func NewValidationError(field, problem string) *ValidationError {
	return &ValidationError{Problems: map[string][]string{field: {problem}}}
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Problems))
	for field := range e.Problems {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+strings.Join(e.Problems[field], ", "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
