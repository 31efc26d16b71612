package render

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/covid-dashboard/internal/covid"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func value(v float64) *float64 { return &v }

func figure(axis covid.XAxis) covid.Figure {
	start := time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC)
	mk := func(name string, vals ...*float64) covid.Trace {
		tr := covid.Trace{Name: name, Axis: axis, Mode: covid.TraceMode}
		for i, v := range vals {
			tr.Points = append(tr.Points, covid.Point{Date: start.AddDate(0, 0, i), DayNumber: i + 1, Value: v})
		}
		return tr
	}
	return covid.Figure{
		Data: []covid.Trace{
			mk("MEX", nil, value(2), value(3), value(7)),
			mk("ARG", value(1), value(4), value(5), value(6)),
		},
		Layout: covid.Layout{Title: "Cases totals", XAxis: covid.Axis{Title: axis.Label()}},
	}
}

func TestPNGRendersDateAndDayAxes(t *testing.T) {
	for _, axis := range []covid.XAxis{covid.AxisDate, covid.AxisDayNumber} {
		var buf bytes.Buffer
		require.NoError(t, PNG(&buf, figure(axis), 640, 320), axis)
		assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic), axis)
	}
}

func TestPNGNothingToPlot(t *testing.T) {
	fig := covid.Figure{Data: []covid.Trace{{Name: "MEX", Axis: covid.AxisDate, Points: []covid.Point{{Value: nil}}}}}
	err := PNG(&bytes.Buffer{}, fig, 0, 0)
	assert.ErrorIs(t, err, ErrNothingToPlot)

	err = PNG(&bytes.Buffer{}, covid.Figure{}, 0, 0)
	assert.ErrorIs(t, err, ErrNothingToPlot)
}

func TestPNGSingleDay(t *testing.T) {
	day := time.Date(2020, 3, 5, 0, 0, 0, 0, time.UTC)
	for _, axis := range []covid.XAxis{covid.AxisDate, covid.AxisDayNumber} {
		fig := covid.Figure{
			Data: []covid.Trace{
				{Name: "MEX", Axis: axis, Points: []covid.Point{{Date: day, DayNumber: 5, Value: value(15)}}},
				{Name: "ARG", Axis: axis, Points: []covid.Point{{Date: day, DayNumber: 5, Value: value(20)}}},
			},
			Layout: covid.Layout{Title: "Cases totals", XAxis: covid.Axis{Title: axis.Label()}},
		}
		var buf bytes.Buffer
		require.NoError(t, PNG(&buf, fig, 640, 320), axis)
		assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic), axis)
	}
}

func TestPNGSinglePointAndFlatValues(t *testing.T) {
	start := time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC)
	for _, vals := range [][]*float64{
		{value(20)},
		{value(0)},
		{value(7), value(7), value(7)},
	} {
		tr := covid.Trace{Name: "ARG", Axis: covid.AxisDayNumber}
		for i, v := range vals {
			tr.Points = append(tr.Points, covid.Point{Date: start.AddDate(0, 0, i), DayNumber: i + 1, Value: v})
		}
		var buf bytes.Buffer
		require.NoError(t, PNG(&buf, covid.Figure{Data: []covid.Trace{tr}}, 0, 0))
		assert.True(t, bytes.HasPrefix(buf.Bytes(), pngMagic))
	}
}
