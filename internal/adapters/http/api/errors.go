package api

import (
	"errors"
	"fmt"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest = errors.New("bad request")

	errNegativeK       = errors.New("k must not be negative")
	errNoCharacterList = errors.New("character_ids must not be empty")
	errEmptyMessage    = errors.New("message needs a query or reload")
)

// WrapKind tags err with kind and the operation that produced it.
func WrapKind(op string, kind, err error) error {
	return fmt.Errorf("%s: %w: %w", op, kind, err)
}
