package chart

import "errors"

var (
	// ErrTooFewCategories signals insufficient data: the chart should be
	// skipped, not reported as a failure.
	ErrTooFewCategories = errors.New("too few categories")
	ErrNonPositiveTotal = errors.New("sum of values is non-positive")
	ErrColumnNotFound   = errors.New("column not found")
	ErrEmptyTable       = errors.New("empty table")
)
