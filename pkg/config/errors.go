package config

import "errors"

var (
	// ErrNilPointer is returned when Load is called with a nil target.
	ErrNilPointer = errors.New("config target cannot be nil")

	// ErrParsingConfig is returned when environment parsing fails.
	ErrParsingConfig = errors.New("failed to parse config from environment")

	// ErrLoadingEnvFile is returned when an explicitly requested .env file cannot be loaded.
	ErrLoadingEnvFile = errors.New("failed to load env file")
)
