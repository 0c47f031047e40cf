package domain

import "errors"

var (
	// ErrNotReady is returned when a renderer mutation is attempted before the map has loaded.
	ErrNotReady = errors.New("map not ready")
	// ErrDestroyed is returned for any command issued after teardown.
	ErrDestroyed = errors.New("map destroyed")
	// ErrInitFailed wraps renderer construction failures.
	ErrInitFailed = errors.New("map initialization failed")

	ErrNoRoute             = errors.New("no route returned")
	ErrStaleRoute          = errors.New("route response superseded")
	ErrStaleSelection      = errors.New("city selection superseded")
	ErrLocationUnavailable = errors.New("location unavailable")
	ErrInvalidCoordinates  = errors.New("invalid coordinates")
	ErrNotFound            = errors.New("not found")
	ErrDuplicateStop       = errors.New("stop already in experience")
	// ErrInvalidArgument marks caller mistakes, as opposed to upstream failures.
	ErrInvalidArgument = errors.New("invalid argument")
)
