package confluence

import "errors"

var (
	// ErrInvalidConfig is returned when engine parameters violate their contract.
	ErrInvalidConfig = errors.New("confluence: invalid config")
	// ErrEmptySeries means an instrument has no bars and cannot be evaluated.
	ErrEmptySeries = errors.New("confluence: empty series")
	// ErrUnorderedSeries means bar timestamps are not strictly increasing.
	ErrUnorderedSeries = errors.New("confluence: series not strictly increasing")
	// ErrUnknownPair is returned for a pair ID missing from the config.
	ErrUnknownPair = errors.New("confluence: unknown pair")
)
