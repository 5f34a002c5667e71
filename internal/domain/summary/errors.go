package summary

import "errors"

// Sentinel kinds for summary errors.
var (
	ErrTooFewCharacters = errors.New("too few characters to compare")
)
