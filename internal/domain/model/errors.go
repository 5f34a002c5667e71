package model

import "errors"

// Sentinel kinds for model validation.
var (
	ErrInvalidRun = errors.New("invalid run")
)
