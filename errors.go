package goPortal

import "errors"

var (
	// ErrInvalidConfig wraps configuration validation failures.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrBuilderUsed is returned by a second Build on the same [Builder].
	ErrBuilderUsed = errors.New("builder already used")
	// ErrClosed is returned by operations on a closed [Client].
	ErrClosed = errors.New("client closed")
)
