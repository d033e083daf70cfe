package autopilot

import "errors"

var (
	// ErrConfigNotFound is returned when a brand has no autopilot configuration.
	ErrConfigNotFound = errors.New("autopilot config not found for brand")

	// ErrSourceRequired is returned when constructing a cached source without an upstream.
	ErrSourceRequired = errors.New("upstream source is required")
)
