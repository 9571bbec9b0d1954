package storage

import "errors"

var (
	// ErrNotFound is returned when a session does not exist or belongs to
	// another owner.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when an ID is already taken.
	ErrConflict = errors.New("already exists")
)
