package app

import "errors"

var (
	// ErrLabelExists is returned when creating a window whose label is taken.
	ErrLabelExists = errors.New("window label already exists")

	// ErrWindowNotFound is returned when addressing an unregistered label.
	ErrWindowNotFound = errors.New("window not found")

	// ErrEmptyLabel is returned when creating a window without a label.
	ErrEmptyLabel = errors.New("window label must not be empty")
)
