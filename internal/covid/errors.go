package covid

import "errors"

var (
	// ErrSourceUnavailable is returned when the remote source cannot be reached or returns bad data.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrPopulationJoin is returned when a country has no population entry.
	ErrPopulationJoin = errors.New("population join failed")
	// ErrUnsupportedCountry is returned for codes outside the supported set.
	ErrUnsupportedCountry = errors.New("unsupported country")
	ErrUnknownMetric      = errors.New("unknown metric")
	ErrUnsupportedAxis    = errors.New("unsupported x axis")
	ErrInvalidRange       = errors.New("invalid day range")
)
