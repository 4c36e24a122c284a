package clickhouse

import (
	"errors"
	"fmt"
)

// Define standard error types for the clickhouse package
var (
	// ErrNoResults is returned when a query matches no rows
	ErrNoResults = errors.New("no results found")

	// ErrNoNodes is returned when a client is built without endpoints
	ErrNoNodes = errors.New("no nodes configured")

	// ErrInvalidScan is returned when row scanning fails
	ErrInvalidScan = errors.New("invalid row scan")

	// ErrSendInterrupted is returned when the row consumer went away
	// before the node stream was drained
	ErrSendInterrupted = errors.New("row consumer interrupted")
)

// ErrorWithOperation wraps an error with operation context
func ErrorWithOperation(err error, operation string) error {
	if err == nil {
		return fmt.Errorf("%s: <nil>", operation)
	}
	return fmt.Errorf("%s: %w", operation, err)
}

// QueryError wraps a node failure with the node's identity so a fan-out
// error always names the endpoint it came from
func QueryError(err error, node string, operation string) error {
	if node != "" {
		return fmt.Errorf("%s: node %s: %w", operation, node, err)
	}
	return ErrorWithOperation(err, operation)
}

// ConnectionError wraps connection errors with the node's identity
func ConnectionError(err error, node string) error {
	return fmt.Errorf("failed to connect to clickhouse node %s: %w", node, err)
}

// ValidationError returns a structured validation error; these are always
// raised before any network activity
func ValidationError(what string, reason string) error {
	return fmt.Errorf("validation error for %s: %s", what, reason)
}

// IsNoResults checks if the error is a "no results" error
func IsNoResults(err error) bool {
	return errors.Is(err, ErrNoResults)
}
