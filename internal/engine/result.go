package engine

import (
	"encoding/json"
	"errors"

	"github.com/roach88/planq/internal/store"
)

// QueryResult is the outcome of one execution.
//
// A successful result carries either Data (raw rows) or, when the plan
// declares an aggregation, Aggregated. A failed result carries Error and
// Code and nothing else; there are no partial results.
type QueryResult struct {
	Success     bool
	ExecutionID string

	// Columns lists the primary projection followed by joined table names.
	Columns []string
	Data    []store.Row

	// IsAggregate marks Aggregated as set, even when the value is nil.
	IsAggregate bool
	Aggregated  any

	// RowCount is the number of rows the store returned.
	RowCount int

	Error    string
	Code     ErrorCode
	Field    string
	Warnings []string

	// Err is the underlying error of a failed result.
	Err error
}

type wireResult struct {
	Success     bool         `json:"success"`
	ExecutionID string       `json:"executionId,omitempty"`
	Data        *[]store.Row `json:"data,omitempty"`
	Aggregated  *any         `json:"aggregated,omitempty"`
	RowCount    *int         `json:"rowCount,omitempty"`
	Error       string       `json:"error,omitempty"`
	Code        ErrorCode    `json:"code,omitempty"`
	Field       string       `json:"field,omitempty"`
	Warnings    []string     `json:"warnings,omitempty"`
}

// MarshalJSON encodes the caller-facing shape: {success, data, rowCount},
// {success, aggregated, rowCount} or {success:false, error, code}.
func (r QueryResult) MarshalJSON() ([]byte, error) {
	w := wireResult{
		Success:     r.Success,
		ExecutionID: r.ExecutionID,
		Error:       r.Error,
		Code:        r.Code,
		Field:       r.Field,
		Warnings:    r.Warnings,
	}
	if r.Success {
		count := r.RowCount
		w.RowCount = &count
		if r.IsAggregate {
			agg := r.Aggregated
			w.Aggregated = &agg
		} else {
			data := r.Data
			if data == nil {
				data = []store.Row{}
			}
			w.Data = &data
		}
	}
	return json.Marshal(w)
}

func failedResult(id string, err error, warnings []string) *QueryResult {
	res := &QueryResult{
		Success:     false,
		ExecutionID: id,
		Error:       err.Error(),
		Code:        CodeOf(err),
		Warnings:    warnings,
		Err:         err,
	}
	var qe *QueryError
	if errors.As(err, &qe) {
		res.Error = qe.Message
		res.Field = qe.Field
	}
	if res.Code == "" {
		res.Code = CodeExecutionFailed
	}
	return res
}
