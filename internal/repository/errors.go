package repository

import "errors"

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrUsernameExists is returned when a create would violate the global
	// case-insensitive username uniqueness rule.
	ErrUsernameExists = errors.New("username already exists")

	// ErrBootstrapExists is returned by the conditional bootstrap-marker
	// insert when a marker is already present.
	ErrBootstrapExists = errors.New("bootstrap marker already exists")

	// ErrVersionConflict is returned by compare-and-swap updates when the
	// record changed since it was read. Callers reload and re-decide.
	ErrVersionConflict = errors.New("record version conflict")
)
