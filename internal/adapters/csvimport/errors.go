package csvimport

import "errors"

// Sentinel kinds for import errors.
var (
	ErrInvalidCSV = errors.New("invalid run csv")
)
