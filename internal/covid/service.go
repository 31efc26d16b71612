package covid

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alitto/pond/v2"
	"go.uber.org/zap"
)

// BuildAggregate fetches every country of the set and derives its metric table.
// Countries are fetched concurrently with at most workers requests in flight.
// Any failure aborts the whole build: there is no partial dataset.
func BuildAggregate(
	ctx context.Context,
	logger *zap.Logger,
	source Source,
	pops Populations,
	countries *CountrySet,
	variant VariantConfig,
	workers int,
) ([]CountryTable, error) {
	codes := countries.Codes()
	if err := pops.Check(codes); err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = 1
	}

	start := time.Now()
	tables := make([]CountryTable, len(codes))

	pool := pond.NewPool(workers)
	defer pool.StopAndWait()
	group := pool.NewGroupContext(ctx)
	groupCtx := group.Context()

	for i, code := range codes {
		i, code := i, code
		group.SubmitErr(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			records, err := source.Fetch(groupCtx, code)
			if err != nil {
				return fmt.Errorf("fetch %s from %s: %w", code, source.Name(), err)
			}
			table, err := BuildCountryTable(code, records, pops, variant)
			if err != nil {
				return fmt.Errorf("build table for %s: %w", code, err)
			}
			logger.Debug("country table built",
				zap.String("country", code),
				zap.Int("records", len(records)),
				zap.Int("rows", len(table.Rows)))
			tables[i] = table
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		if errors.Is(err, pond.ErrGroupStopped) && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}

	logger.Info("aggregate table built",
		zap.String("variant", variant.Name),
		zap.Int("countries", len(tables)),
		zap.Duration("elapsed", time.Since(start)))
	return tables, nil
}

// FigureKind selects between the raw and per-100k plots.
type FigureKind string

const (
	FigureTotals    FigureKind = "totals"
	FigurePerCapita FigureKind = "per_capita"
)

// ParseFigureKind validates a figure kind.
func ParseFigureKind(s string) (FigureKind, error) {
	switch k := FigureKind(s); k {
	case FigureTotals, FigurePerCapita:
		return k, nil
	}
	return "", fmt.Errorf("unknown figure kind %q", s)
}

// Option is a dropdown entry.
type Option struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Selection is the initial state of the dashboard controls.
type Selection struct {
	Countries []string `json:"countries"`
	Metric    Metric   `json:"metric"`
	Axis      XAxis    `json:"axis"`
}

// Options describes the controls a dashboard built on this service should expose.
type Options struct {
	Variant   VariantConfig `json:"variant"`
	Countries []Option      `json:"countries"`
	Metrics   []Option      `json:"metrics"`
	Axes      []Option      `json:"axes"`
	Defaults  Selection     `json:"defaults"`
	DayBounds *DayRange     `json:"day_bounds,omitempty"`
}

// Service answers dashboard queries against an immutable aggregate table.
type Service struct {
	table     Table
	countries *CountrySet
	variant   VariantConfig
}

// NewService creates a new Service.
func NewService(table Table, countries *CountrySet, variant VariantConfig) *Service {
	return &Service{
		table:     table,
		countries: countries,
		variant:   variant,
	}
}

// Variant returns the variant the service was built with.
func (s *Service) Variant() VariantConfig {
	return s.variant
}

// Countries returns the supported countries.
func (s *Service) Countries() *CountrySet {
	return s.countries
}

// Series returns the full metric table of one supported country.
func (s *Service) Series(code string) ([]Row, error) {
	if !s.countries.Contains(code) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCountry, code)
	}
	return s.table.Series(code)
}

// Traces runs a trace selection after checking it against the variant.
func (s *Service) Traces(q TraceQuery) (TraceSet, error) {
	if !s.variant.AllowsAxis(q.Axis) {
		return TraceSet{}, fmt.Errorf("%w: %q is not enabled for variant %s", ErrUnsupportedAxis, q.Axis, s.variant.Name)
	}
	return SelectTraces(s.table, s.countries, q)
}

// Figure builds a complete chart body for kind. The per-capita flag of q is
// overridden by kind.
func (s *Service) Figure(kind FigureKind, q TraceQuery) (Figure, error) {
	q.PerCapita = kind == FigurePerCapita
	set, err := s.Traces(q)
	if err != nil {
		return Figure{}, err
	}

	label := s.variant.MetricLabel(q.Metric)
	title := label + " totals"
	if q.PerCapita {
		title = label + " per 100k inhabitants"
	}
	return Figure{
		Data: set.Traces,
		Layout: Layout{
			Title: title,
			XAxis: Axis{Title: q.Axis.Label()},
		},
		Unsupported: set.Unsupported,
	}, nil
}

// Options returns the dropdown contents and defaults.
func (s *Service) Options() Options {
	opts := Options{Variant: s.variant}
	for _, c := range s.countries.List() {
		opts.Countries = append(opts.Countries, Option{Label: c.Label, Value: c.Code})
	}
	for _, m := range Metrics {
		opts.Metrics = append(opts.Metrics, Option{Label: s.variant.MetricLabel(m), Value: string(m)})
	}
	for _, a := range []XAxis{AxisDate, AxisDayNumber} {
		if s.variant.AllowsAxis(a) {
			opts.Axes = append(opts.Axes, Option{Label: a.Label(), Value: string(a)})
		}
	}

	var defaults []string
	for _, code := range []string{"MEX", "ARG", "CHL"} {
		if s.countries.Contains(code) {
			defaults = append(defaults, code)
		}
	}
	if len(defaults) == 0 && len(opts.Countries) > 0 {
		defaults = []string{opts.Countries[0].Value}
	}
	opts.Defaults = Selection{Countries: defaults, Metric: MetricCases, Axis: s.variant.DefaultAxis()}

	if s.variant.DayRangeFilter {
		if bounds, ok := s.table.DayBounds(); ok {
			opts.DayBounds = &bounds
		}
	}
	return opts
}
