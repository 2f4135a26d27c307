package tools

import "errors"

var (
	// ErrMissingArgument is reported when a required argument is absent or empty.
	ErrMissingArgument = errors.New("missing required argument")

	// ErrNotAllowed is reported when a fetch URL falls outside the allow list.
	ErrNotAllowed = errors.New("url not allowed")

	// ErrReadOnly is reported when a structured query is not a single SELECT.
	ErrReadOnly = errors.New("only a single SELECT statement is allowed")
)
