package covid

import "fmt"

// RollingWindow is the number of samples in the trailing moving average.
const RollingWindow = 5

// VariantConfig selects which derived columns are computed and which axes are exposed.
type VariantConfig struct {
	Name string `json:"name"`

	// RollingAverage smooths the delta columns with a trailing mean over RollingWindow samples.
	RollingAverage bool `json:"rolling_average"`

	// ClampBeforeSmoothing clamps negative new_recovered values before the rolling mean.
	// When false the smoothed value is clamped instead.
	ClampBeforeSmoothing bool `json:"negative_clamp_before_smoothing"`

	XAxisModes []XAxis `json:"x_axis_modes"`

	// DayRangeFilter exposes the day_number range slider.
	DayRangeFilter bool `json:"day_range_filter"`
}

// Built-in variants.
var (
	VariantDaily = VariantConfig{
		Name:                 "daily",
		RollingAverage:       false,
		ClampBeforeSmoothing: true,
		XAxisModes:           []XAxis{AxisDate},
	}
	VariantSmoothed = VariantConfig{
		Name:                 "smoothed",
		RollingAverage:       true,
		ClampBeforeSmoothing: true,
		XAxisModes:           []XAxis{AxisDate, AxisDayNumber},
	}
	VariantDayRange = VariantConfig{
		Name:                 "day_range",
		RollingAverage:       true,
		ClampBeforeSmoothing: false,
		XAxisModes:           []XAxis{AxisDayNumber},
		DayRangeFilter:       true,
	}
)

// LookupVariant returns a copy of the named built-in variant.
func LookupVariant(name string) (VariantConfig, error) {
	var v VariantConfig
	switch name {
	case VariantDaily.Name:
		v = VariantDaily
	case VariantSmoothed.Name:
		v = VariantSmoothed
	case VariantDayRange.Name:
		v = VariantDayRange
	default:
		return VariantConfig{}, fmt.Errorf("unknown dashboard variant %q", name)
	}
	v.XAxisModes = append([]XAxis(nil), v.XAxisModes...)
	return v, nil
}

// AllowsAxis reports whether the variant exposes the given axis.
// A variant without axis modes allows every axis.
func (v VariantConfig) AllowsAxis(a XAxis) bool {
	if len(v.XAxisModes) == 0 {
		return true
	}
	for _, m := range v.XAxisModes {
		if m == a {
			return true
		}
	}
	return false
}

// DefaultAxis is the first axis mode of the variant.
func (v VariantConfig) DefaultAxis() XAxis {
	if len(v.XAxisModes) == 0 {
		return AxisDate
	}
	return v.XAxisModes[0]
}

// MetricLabel returns the dropdown label for m under this variant.
func (v VariantConfig) MetricLabel(m Metric) string {
	if v.RollingAverage && m.IsDelta() {
		return fmt.Sprintf("%s (%d-day average)", m.Label(), RollingWindow)
	}
	return m.Label()
}
