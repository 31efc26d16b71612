package render

import (
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/i474232898/covid-dashboard/internal/covid"
)

const (
	DefaultWidth  = 1024
	DefaultHeight = 480
)

// ErrNothingToPlot is returned when no trace has a defined value.
var ErrNothingToPlot = errors.New("nothing to plot")

var palette = []drawing.Color{
	chart.ColorBlue,
	chart.ColorGreen,
	chart.ColorRed,
	chart.ColorOrange,
	chart.ColorCyan,
	chart.ColorYellow,
	chart.ColorBlack,
	chart.ColorAlternateGray,
}

func lineStyle(col drawing.Color) chart.Style {
	return chart.Style{
		StrokeColor: col,
		StrokeWidth: 2,
		DotColor:    col,
		DotWidth:    2,
	}
}

// PNG renders a figure as a line chart. Undefined values are left out.
func PNG(w io.Writer, fig covid.Figure, width, height int) error {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}

	var series []chart.Series
	xr, yr := newBounds(), newBounds()
	for i, tr := range fig.Data {
		st := lineStyle(palette[i%len(palette)])

		if tr.Axis == covid.AxisDayNumber {
			var xs, ys []float64
			for _, p := range tr.Points {
				if p.Value == nil {
					continue
				}
				xs = append(xs, float64(p.DayNumber))
				ys = append(ys, *p.Value)
				xr.add(float64(p.DayNumber))
				yr.add(*p.Value)
			}
			if len(xs) == 0 {
				continue
			}
			series = append(series, chart.ContinuousSeries{Name: tr.Name, XValues: xs, YValues: ys, Style: st})
			continue
		}

		var times []time.Time
		var ys []float64
		for _, p := range tr.Points {
			if p.Value == nil {
				continue
			}
			times = append(times, p.Date)
			ys = append(ys, *p.Value)
			xr.add(chart.TimeToFloat64(p.Date))
			yr.add(*p.Value)
		}
		if len(times) == 0 {
			continue
		}
		series = append(series, chart.TimeSeries{Name: tr.Name, XValues: times, YValues: ys, Style: st})
	}
	if len(series) == 0 {
		return ErrNothingToPlot
	}

	xAxis := chart.XAxis{Name: fig.Layout.XAxis.Title}
	xPad := 1.0
	if fig.Data[0].Axis == covid.AxisDate {
		xAxis.ValueFormatter = chart.TimeDateValueFormatter
		xPad = float64(24 * time.Hour)
	}
	// go-chart refuses a zero-width x range, which a single-day selection produces.
	if xr.flat() {
		xAxis.Range = xr.padded(xPad)
	}

	yAxis := chart.YAxis{ValueFormatter: chart.FloatValueFormatter}
	if yr.flat() {
		yAxis.Range = yr.padded(math.Max(1, math.Abs(yr.min)*0.1))
	}

	ch := chart.Chart{
		Title:      fig.Layout.Title,
		Width:      width,
		Height:     height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 12, Bottom: 16}},
		XAxis:      xAxis,
		YAxis:      yAxis,
		Series:     series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}

	if err := ch.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render chart: %w", err)
	}
	return nil
}

type bounds struct {
	min, max float64
}

func newBounds() *bounds {
	return &bounds{min: math.Inf(1), max: math.Inf(-1)}
}

func (b *bounds) add(v float64) {
	b.min = math.Min(b.min, v)
	b.max = math.Max(b.max, v)
}

func (b *bounds) flat() bool {
	return b.min == b.max
}

func (b *bounds) padded(pad float64) *chart.ContinuousRange {
	return &chart.ContinuousRange{Min: b.min - pad, Max: b.max + pad}
}
