package model

import "errors"

var (
	// ErrRegistryClosed is returned when an attach is attempted after the
	// registry has shut down.
	ErrRegistryClosed = errors.New("registry closed")

	// ErrUnknownTrigger is returned when a webhook envelope carries a
	// trigger outside the known set.
	ErrUnknownTrigger = errors.New("unknown trigger")
)
