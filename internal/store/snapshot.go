package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/i474232898/covid-dashboard/internal/covid"
)

var (
	// ErrNotFound is returned when no series exists for a country code.
	ErrNotFound = errors.New("no series for country")
)

// countrySeries holds the date-ordered rows of one country.
type countrySeries struct {
	rows       []covid.Row
	population float64
}

// Snapshot is the immutable aggregate table built once at startup.
// It is safe for concurrent use without locking because nothing mutates it
// after NewSnapshot returns.
type Snapshot struct {
	id      string
	builtAt time.Time
	codes   []string
	data    map[string]*countrySeries
	bounds  covid.DayRange
	hasRows bool
}

// NewSnapshot copies the per-country tables into a new snapshot.
func NewSnapshot(tables []covid.CountryTable) (*Snapshot, error) {
	s := &Snapshot{
		id:      uuid.NewString(),
		builtAt: time.Now().UTC(),
		data:    make(map[string]*countrySeries, len(tables)),
	}
	for _, t := range tables {
		if _, dup := s.data[t.Code]; dup {
			return nil, fmt.Errorf("duplicate country table %s", t.Code)
		}
		rows := cloneRows(t.Rows)
		s.data[t.Code] = &countrySeries{rows: rows, population: t.Population}
		s.codes = append(s.codes, t.Code)

		if len(rows) == 0 {
			continue
		}
		first, last := rows[0].DayNumber, rows[len(rows)-1].DayNumber
		if !s.hasRows {
			s.bounds = covid.DayRange{Min: first, Max: last}
			s.hasRows = true
			continue
		}
		s.bounds.Min = min(s.bounds.Min, first)
		s.bounds.Max = max(s.bounds.Max, last)
	}
	return s, nil
}

// ID identifies this build of the aggregate table.
func (s *Snapshot) ID() string {
	return s.id
}

// BuiltAt is the time the snapshot was assembled.
func (s *Snapshot) BuiltAt() time.Time {
	return s.builtAt
}

// Codes returns the country codes in build order.
func (s *Snapshot) Codes() []string {
	return append([]string(nil), s.codes...)
}

// Len returns the total number of rows across all countries.
func (s *Snapshot) Len() int {
	n := 0
	for _, cs := range s.data {
		n += len(cs.rows)
	}
	return n
}

// Series returns a copy of every row for a country.
func (s *Snapshot) Series(code string) ([]covid.Row, error) {
	cs, err := s.lookup(code)
	if err != nil {
		return nil, err
	}
	return cloneRows(cs.rows), nil
}

// Range returns the rows of a country whose day_number lies in days (inclusive).
func (s *Snapshot) Range(code string, days covid.DayRange) ([]covid.Row, error) {
	cs, err := s.lookup(code)
	if err != nil {
		return nil, err
	}

	var result []covid.Row
	for _, r := range cs.rows {
		if days.Contains(r.DayNumber) {
			result = append(result, r.Clone())
		}
	}
	return result, nil
}

// Population returns the joined population of a country in hundred-thousands.
func (s *Snapshot) Population(code string) (float64, error) {
	cs, err := s.lookup(code)
	if err != nil {
		return 0, err
	}
	return cs.population, nil
}

// DayBounds returns the smallest and largest day_number across all countries.
func (s *Snapshot) DayBounds() (covid.DayRange, bool) {
	return s.bounds, s.hasRows
}

func (s *Snapshot) lookup(code string) (*countrySeries, error) {
	cs, ok := s.data[code]
	if !ok {
		return nil, fmt.Errorf("%w %s: %w", ErrNotFound, code, covid.ErrUnsupportedCountry)
	}
	return cs, nil
}

func cloneRows(rows []covid.Row) []covid.Row {
	out := make([]covid.Row, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	return out
}
