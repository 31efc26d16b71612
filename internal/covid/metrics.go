package covid

import "fmt"

// Metric names a column of the Country Metric Table that can be plotted.
type Metric string

const (
	MetricCases        Metric = "cases"
	MetricDeaths       Metric = "deaths"
	MetricRecovered    Metric = "recovered"
	MetricNewCases     Metric = "new_cases"
	MetricNewDeaths    Metric = "new_deaths"
	MetricNewRecovered Metric = "new_recovered"
)

// Metrics lists every plottable metric in dropdown order.
var Metrics = []Metric{
	MetricCases,
	MetricDeaths,
	MetricRecovered,
	MetricNewCases,
	MetricNewDeaths,
	MetricNewRecovered,
}

var metricLabels = map[Metric]string{
	MetricCases:        "Cases",
	MetricDeaths:       "Deaths",
	MetricRecovered:    "Recovered",
	MetricNewCases:     "New cases",
	MetricNewDeaths:    "New deaths",
	MetricNewRecovered: "New recovered",
}

// ParseMetric validates a metric name.
func ParseMetric(s string) (Metric, error) {
	m := Metric(s)
	if _, ok := metricLabels[m]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownMetric, s)
	}
	return m, nil
}

// Label returns the human readable metric name.
func (m Metric) Label() string {
	if l, ok := metricLabels[m]; ok {
		return l
	}
	return string(m)
}

// IsDelta reports whether the metric is a derived daily delta.
func (m Metric) IsDelta() bool {
	switch m {
	case MetricNewCases, MetricNewDeaths, MetricNewRecovered:
		return true
	}
	return false
}

// Value extracts the metric from a row. Undefined values yield nil.
func (m Metric) Value(r Row) *float64 {
	switch m {
	case MetricCases:
		return floatPtr(float64(r.Cases))
	case MetricDeaths:
		return floatPtr(float64(r.Deaths))
	case MetricRecovered:
		return floatPtr(float64(r.Recovered))
	case MetricNewCases:
		return r.NewCases
	case MetricNewDeaths:
		return r.NewDeaths
	case MetricNewRecovered:
		return r.NewRecovered
	}
	return nil
}

// XAxis selects the field used for the horizontal axis of a trace.
type XAxis string

const (
	AxisDate      XAxis = "date"
	AxisDayNumber XAxis = "day_number"
)

var axisLabels = map[XAxis]string{
	AxisDate:      "Date",
	AxisDayNumber: "Days since first case",
}

// ParseAxis validates an axis name.
func ParseAxis(s string) (XAxis, error) {
	a := XAxis(s)
	if _, ok := axisLabels[a]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedAxis, s)
	}
	return a, nil
}

// Label returns the axis title shown on charts.
func (a XAxis) Label() string {
	if l, ok := axisLabels[a]; ok {
		return l
	}
	return string(a)
}
