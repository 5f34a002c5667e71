package config

import "errors"

var (
	// ErrInvalidConfig marks a config whose values fail Validate, such as a
	// non-positive neighbor_k or an unknown db_driver.
	ErrInvalidConfig = errors.New("invalid trial stats config")
	// ErrLoadConfig marks a config file or environment layer that could not
	// be read or parsed, or a watcher that could not start.
	ErrLoadConfig = errors.New("load trial stats config")
)
