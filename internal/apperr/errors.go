// Package apperr defines the error taxonomy shared across Ansuz components.
package apperr

import (
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("not found")

// ParseError marks a malformed individual file. Non-fatal: callers log it
// and retain the previous good state for that note.
type ParseError struct {
	Path  string
	Cause error
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("parse: %v", e.Cause)
	}
	return fmt.Sprintf("parse %s: %v", e.Path, e.Cause)
}

func (e *ParseError) Unwrap() error { return e.Cause }

// QueryError marks an invalid filter expression, naming the offending clause.
type QueryError struct {
	Clause string
	Reason string
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query: invalid clause %q: %s", e.Clause, e.Reason)
}

// CacheError wraps a persistent-store failure. The service degrades to
// always-full-parse instead of crashing when the cache is unavailable.
type CacheError struct {
	Op    string
	Cause error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("cache: %s: %v", e.Op, e.Cause)
}

func (e *CacheError) Unwrap() error { return e.Cause }
