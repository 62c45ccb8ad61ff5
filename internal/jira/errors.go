package jira

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingTotal is returned when a search response has no usable total
	ErrMissingTotal = errors.New("response has no total")
	// ErrShortPage is returned when a page comes back empty before all records are read
	ErrShortPage = errors.New("page returned no records")
	// ErrDuplicateKey is returned when the same ticket appears twice across pages
	ErrDuplicateKey = errors.New("duplicate ticket key")
	// ErrCountMismatch is returned when the assembled result disagrees with the reported total
	ErrCountMismatch = errors.New("record count does not match total")
)

// StatusError carries a non-2xx response from the query service
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// Retryable reports whether the request may succeed if repeated
func (e *StatusError) Retryable() bool {
	return e.Code == 429 || e.Code >= 500
}

// RetrievalError is fatal for a report run; nothing partial is returned with it
type RetrievalError struct {
	Op  string
	Err error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieval failed (%s): %v", e.Op, e.Err)
}

func (e *RetrievalError) Unwrap() error {
	return e.Err
}

func retrievalErr(op string, err error) error {
	var re *RetrievalError
	if errors.As(err, &re) {
		return err
	}
	return &RetrievalError{Op: op, Err: err}
}
