package store

import "errors"

var (
	ErrRecordNotFound = errors.New("record not found")
	ErrDuplicateKey   = errors.New("already exists")

	// ErrDefaultParameterSet is returned when deleting the parameter set every
	// user falls back to.
	ErrDefaultParameterSet = errors.New("the default parameter set cannot be deleted")
)
