package covid

import (
	"context"
)

// Source abstracts the remote per-country data feed (e.g. covidapi.info).
type Source interface {
	Name() string
	Fetch(ctx context.Context, code string) ([]Record, error)
}

// Table is the read-only aggregate the trace builder queries.
// Implementations must never mutate the rows they hand out.
type Table interface {
	Series(code string) ([]Row, error)
	Range(code string, days DayRange) ([]Row, error)
	Population(code string) (float64, error)
	DayBounds() (DayRange, bool)
}
