package engine

import (
	"context"
	"errors"
	"fmt"
)

// ErrorCode categorizes execution failures.
type ErrorCode string

const (
	// CodeSchemaViolation: unknown table, field or operator, or a malformed filter.
	CodeSchemaViolation ErrorCode = "SCHEMA_VIOLATION"

	// CodeSubqueryFailed: a nested plan failed; Details carry its diagnostics.
	CodeSubqueryFailed ErrorCode = "SUBQUERY_FAILED"

	// CodeExecutionFailed: the backing store rejected or errored on the query.
	CodeExecutionFailed ErrorCode = "EXECUTION_FAILED"

	// CodeTimeout: the store round-trip exceeded the configured budget.
	CodeTimeout ErrorCode = "TIMEOUT"

	// CodeAggregationError: a reduction had no field or no numeric values.
	CodeAggregationError ErrorCode = "AGGREGATION_ERROR"
)

// QueryError is a fatal execution error.
type QueryError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Field names the offending plan field, when there is one.
	Field string

	// Details contains additional context (nested intent, nested code, depth).
	Details map[string]string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *QueryError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field=%s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *QueryError) Unwrap() error {
	return e.Err
}

// CodeOf returns the code of the first QueryError in err's chain, or "" if
// there is none.
func CodeOf(err error) ErrorCode {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Code
	}
	return ""
}

// IsSchemaViolation reports whether err is a schema violation.
// Uses errors.As to handle wrapped errors.
func IsSchemaViolation(err error) bool { return CodeOf(err) == CodeSchemaViolation }

// IsSubqueryFailed reports whether err is a subquery failure.
func IsSubqueryFailed(err error) bool { return CodeOf(err) == CodeSubqueryFailed }

// IsExecutionFailed reports whether err is a store failure.
func IsExecutionFailed(err error) bool { return CodeOf(err) == CodeExecutionFailed }

// IsTimeout reports whether err is a timeout.
func IsTimeout(err error) bool { return CodeOf(err) == CodeTimeout }

// IsAggregationError reports whether err is an aggregation failure.
func IsAggregationError(err error) bool { return CodeOf(err) == CodeAggregationError }

// NewSchemaViolation creates a QueryError for a rejected plan.
func NewSchemaViolation(field, message string) *QueryError {
	return &QueryError{Code: CodeSchemaViolation, Field: field, Message: message}
}

// NewAggregationError creates a QueryError for a failed aggregation.
func NewAggregationError(message string, err error) *QueryError {
	return &QueryError{Code: CodeAggregationError, Message: message, Err: err}
}

// NewSubqueryFailed wraps the failure of a nested plan for the filter on field.
func NewSubqueryFailed(field, intent string, nested error) *QueryError {
	details := map[string]string{"intent": intent}
	msg := fmt.Sprintf("subquery for %s failed", field)
	if nested != nil {
		details["nested_error"] = nested.Error()
		if code := CodeOf(nested); code != "" {
			details["nested_code"] = string(code)
		}
		msg = fmt.Sprintf("%s: %s", msg, nested.Error())
	}
	return &QueryError{Code: CodeSubqueryFailed, Field: field, Message: msg, Details: details, Err: nested}
}

// NewDepthExceeded creates a SubqueryFailed error for nesting beyond max.
func NewDepthExceeded(field string, depth, max int) *QueryError {
	return &QueryError{
		Code:    CodeSubqueryFailed,
		Field:   field,
		Message: fmt.Sprintf("subquery nesting exceeds max depth (%d > %d)", depth, max),
		Details: map[string]string{
			"depth":     fmt.Sprintf("%d", depth),
			"max_depth": fmt.Sprintf("%d", max),
		},
	}
}

// storeError classifies a backend failure: deadline expiry is a Timeout,
// anything else (cancellation included) is ExecutionFailed.
func storeError(table string, err error) *QueryError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &QueryError{Code: CodeTimeout, Message: fmt.Sprintf("query on %s timed out", table), Err: err}
	}
	return &QueryError{Code: CodeExecutionFailed, Message: fmt.Sprintf("query on %s failed: %v", table, err), Err: err}
}

// contextError converts a done context into a QueryError.
func contextError(err error) *QueryError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &QueryError{Code: CodeTimeout, Message: "execution deadline exceeded", Err: err}
	}
	return &QueryError{Code: CodeExecutionFailed, Message: "execution cancelled", Err: err}
}
