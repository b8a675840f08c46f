// Package apperr holds sentinel errors shared by notegraph packages.
package apperr

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrWorkerTerminated = errors.New("worker terminated")
	ErrNotReady         = errors.New("index not ready")
)
