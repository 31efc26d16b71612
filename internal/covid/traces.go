package covid

import (
	"errors"
	"fmt"
	"math"
)

// TraceMode is the plotting mode attached to every trace.
const TraceMode = "lines+markers"

// TraceQuery describes one selection of series from the aggregate table.
type TraceQuery struct {
	Codes     []string
	Metric    Metric
	Axis      XAxis
	PerCapita bool
	// Days, when set, keeps only rows whose day_number lies in the inclusive range.
	Days *DayRange
}

// SelectTraces builds one trace per requested country, in request order.
//
// Codes outside countries are skipped and reported in TraceSet.Unsupported
// rather than failing the whole request. A code requested more than once
// yields a single trace at its first position, so the same series is never
// drawn twice on one chart; Unsupported lists each code once as well.
// The table is only read.
func SelectTraces(table Table, countries *CountrySet, q TraceQuery) (TraceSet, error) {
	if _, err := ParseMetric(string(q.Metric)); err != nil {
		return TraceSet{}, err
	}
	if _, err := ParseAxis(string(q.Axis)); err != nil {
		return TraceSet{}, err
	}
	if q.Days != nil && q.Days.Min > q.Days.Max {
		return TraceSet{}, fmt.Errorf("%w: min %d > max %d", ErrInvalidRange, q.Days.Min, q.Days.Max)
	}

	set := TraceSet{Traces: make([]Trace, 0, len(q.Codes))}
	seen := make(map[string]bool, len(q.Codes))
	for _, code := range q.Codes {
		if seen[code] {
			continue
		}
		seen[code] = true

		if !countries.Contains(code) {
			set.Unsupported = append(set.Unsupported, code)
			continue
		}

		trace, err := buildTrace(table, code, q)
		if errors.Is(err, ErrUnsupportedCountry) {
			set.Unsupported = append(set.Unsupported, code)
			continue
		}
		if err != nil {
			return TraceSet{}, err
		}
		set.Traces = append(set.Traces, trace)
	}
	return set, nil
}

func buildTrace(table Table, code string, q TraceQuery) (Trace, error) {
	var (
		rows []Row
		err  error
	)
	if q.Days != nil {
		rows, err = table.Range(code, *q.Days)
	} else {
		rows, err = table.Series(code)
	}
	if err != nil {
		return Trace{}, err
	}

	var pop float64
	if q.PerCapita {
		if pop, err = table.Population(code); err != nil {
			return Trace{}, err
		}
	}

	points := make([]Point, 0, len(rows))
	for _, r := range rows {
		v := q.Metric.Value(r)
		if q.PerCapita && v != nil {
			v = floatPtr(PerCapita(*v, pop))
		}
		points = append(points, Point{Date: r.Date, DayNumber: r.DayNumber, Value: v})
	}
	return Trace{Name: code, Axis: q.Axis, Mode: TraceMode, Points: points}, nil
}

// PerCapita divides v by a population expressed in hundred-thousands and
// rounds to two decimals, half to even.
func PerCapita(v, populationHundredThousands float64) float64 {
	return math.RoundToEven(v/populationHundredThousands*100) / 100
}
