package covid

import (
	"encoding/json"
	"time"
)

// DateLayout is the date format used by the remote source and in API responses.
const DateLayout = "2006-01-02"

// Record is one raw day of cumulative counts for a country, as returned by the source.
type Record struct {
	Date      time.Time `json:"date"`
	Confirmed int64     `json:"confirmed"`
	Deaths    int64     `json:"deaths"`
	Recovered int64     `json:"recovered"`
}

// Row is one derived row of the Country Metric Table.
// Delta columns are nil where no value is defined (first row, rolling warm-up).
type Row struct {
	CountryCode string    `json:"country_code"`
	Date        time.Time `json:"date"`
	DayNumber   int       `json:"day_number"`

	Cases     int64 `json:"cases"`
	Deaths    int64 `json:"deaths"`
	Recovered int64 `json:"recovered"`

	NewCases     *float64 `json:"new_cases"`
	NewDeaths    *float64 `json:"new_deaths"`
	NewRecovered *float64 `json:"new_recovered"`

	PopulationHundredThousands float64 `json:"population_hundred_thousands"`
}

// MarshalJSON renders the date as YYYY-MM-DD.
func (r Row) MarshalJSON() ([]byte, error) {
	type alias Row
	return json.Marshal(struct {
		alias
		Date string `json:"date"`
	}{
		alias: alias(r),
		Date:  r.Date.Format(DateLayout),
	})
}

// Clone returns a copy of r that shares no pointers with it.
func (r Row) Clone() Row {
	r.NewCases = clonePtr(r.NewCases)
	r.NewDeaths = clonePtr(r.NewDeaths)
	r.NewRecovered = clonePtr(r.NewRecovered)
	return r
}

// CountryTable is the metric table of a single country together with its population.
type CountryTable struct {
	Code       string
	Population float64
	Rows       []Row
}

// DayRange is an inclusive day_number interval.
type DayRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Contains reports whether day lies within the range, bounds included.
func (r DayRange) Contains(day int) bool {
	return day >= r.Min && day <= r.Max
}

// Point is a single (x, y) sample of a trace. Value is nil when undefined.
type Point struct {
	Date      time.Time
	DayNumber int
	Value     *float64
}

// Trace is one chart series, one per country.
type Trace struct {
	Name   string
	Axis   XAxis
	Mode   string
	Points []Point
}

// MarshalJSON emits the {x, y, name, mode} shape expected by chart components.
func (t Trace) MarshalJSON() ([]byte, error) {
	x := make([]any, 0, len(t.Points))
	y := make([]*float64, 0, len(t.Points))
	for _, p := range t.Points {
		if t.Axis == AxisDayNumber {
			x = append(x, p.DayNumber)
		} else {
			x = append(x, p.Date.Format(DateLayout))
		}
		y = append(y, p.Value)
	}
	return json.Marshal(struct {
		X    []any      `json:"x"`
		Y    []*float64 `json:"y"`
		Name string     `json:"name"`
		Mode string     `json:"mode"`
	}{X: x, Y: y, Name: t.Name, Mode: t.Mode})
}

// Values returns the y values of the trace in order.
func (t Trace) Values() []*float64 {
	out := make([]*float64, len(t.Points))
	for i, p := range t.Points {
		out[i] = p.Value
	}
	return out
}

// TraceSet is the result of a trace selection.
type TraceSet struct {
	Traces []Trace `json:"traces"`
	// Unsupported lists requested codes that are not in the supported set.
	Unsupported []string `json:"unsupported,omitempty"`
}

// Axis describes an x axis in a figure layout.
type Axis struct {
	Title string `json:"title"`
}

// Layout is the figure layout consumed by the chart component.
type Layout struct {
	Title string `json:"title"`
	XAxis Axis   `json:"xaxis"`
}

// Figure is a complete chart body: traces plus layout.
type Figure struct {
	Data        []Trace  `json:"data"`
	Layout      Layout   `json:"layout"`
	Unsupported []string `json:"unsupported,omitempty"`
}

func floatPtr(v float64) *float64 {
	return &v
}

func clonePtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	return floatPtr(*v)
}
