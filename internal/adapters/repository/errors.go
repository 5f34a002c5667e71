package repository

import "errors"

// Sentinel kinds for run store errors.
var (
	ErrNotFound          = errors.New("run not found")
	ErrAlreadyExists     = errors.New("run already exists")
	ErrStoreClosed       = errors.New("run store closed")
	ErrUnsupportedDriver = errors.New("unsupported database driver")
)
