package impact

import "errors"

// Sentinel kinds for impact analysis.
var (
	ErrUnknownVariable = errors.New("unknown regression variable")
)
