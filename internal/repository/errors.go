package repository

import (
	"errors"
	"fmt"
)

var (
	// ErrRecordNotFound is returned when no record carries the requested serial number.
	ErrRecordNotFound = errors.New("record not found")
	// ErrNameRequired mirrors the NOT NULL constraint on extracted_info.name.
	ErrNameRequired = errors.New("name is required")
)

// PersistenceError wraps any datastore failure.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
