package sentinel

import "errors"

// Sentinel dependency errors. Stores and other dependencies return these
// (optionally wrapped) so services can translate them into domain errors
// exactly once at the boundary.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
)
