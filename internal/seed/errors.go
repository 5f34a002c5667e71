package seed

import "errors"

// Sentinel kinds for the seed package.
var (
	ErrInvalidConfig = errors.New("invalid seed config")
	ErrRejected      = errors.New("run rejected by service")
)
