package httpapi

import (
	"bytes"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/covid-dashboard/internal/common"
	"github.com/i474232898/covid-dashboard/internal/covid"
	"github.com/i474232898/covid-dashboard/internal/render"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *covid.Service) {
	v1 := app.Group("/api/v1")

	v1.Get("/options", func(c *fiber.Ctx) error {
		return c.JSON(service.Options())
	})

	v1.Get("/countries/:code", func(c *fiber.Ctx) error {
		code := strings.ToUpper(c.Params("code"))
		rows, err := service.Series(code)
		if err != nil {
			return toFiberError(err)
		}
		return c.JSON(fiber.Map{
			"country": code,
			"rows":    rows,
		})
	})

	v1.Get("/traces", func(c *fiber.Ctx) error {
		q, err := parseTraceQuery(c, service.Variant())
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		set, err := service.Traces(q)
		if err != nil {
			return toFiberError(err)
		}
		return c.JSON(set)
	})

	v1.Get("/figures/:kind", func(c *fiber.Ctx) error {
		fig, err := figureFromRequest(c, service, c.Params("kind"))
		if err != nil {
			return err
		}
		return c.JSON(fig)
	})

	v1.Get("/charts/:kind.png", func(c *fiber.Ctx) error {
		fig, err := figureFromRequest(c, service, c.Params("kind"))
		if err != nil {
			return err
		}

		var size chartSize
		if err := c.QueryParser(&size); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(size); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		var buf bytes.Buffer
		if err := render.PNG(&buf, fig, size.Width, size.Height); err != nil {
			if errors.Is(err, render.ErrNothingToPlot) {
				return fiber.NewError(fiber.StatusNotFound, "no data to plot for the requested selection")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to render chart")
		}
		c.Set(fiber.HeaderContentType, "image/png")
		return c.Send(buf.Bytes())
	})
}

func figureFromRequest(c *fiber.Ctx, service *covid.Service, rawKind string) (covid.Figure, error) {
	kind, err := covid.ParseFigureKind(rawKind)
	if err != nil {
		return covid.Figure{}, fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	q, err := parseTraceQuery(c, service.Variant())
	if err != nil {
		return covid.Figure{}, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	fig, err := service.Figure(kind, q)
	if err != nil {
		return covid.Figure{}, toFiberError(err)
	}
	return fig, nil
}

// toFiberError maps domain errors onto HTTP status codes.
func toFiberError(err error) error {
	switch {
	case errors.Is(err, covid.ErrUnsupportedCountry):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, covid.ErrUnknownMetric),
		errors.Is(err, covid.ErrUnsupportedAxis),
		errors.Is(err, covid.ErrInvalidRange):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return fiber.NewError(fiber.StatusInternalServerError, "failed to query metric table")
}

// traceParams holds the query parameters shared by the trace, figure and chart endpoints.
type traceParams struct {
	Countries string `query:"countries" validate:"required"`
	Metric    string `query:"metric" validate:"required,oneof=cases deaths recovered new_cases new_deaths new_recovered"`
	Axis      string `query:"axis" validate:"omitempty,oneof=date day_number"`
	PerCapita bool   `query:"per_capita"`
	DayMin    *int   `query:"day_min" validate:"omitempty,min=1"`
	DayMax    *int   `query:"day_max" validate:"omitempty,min=1"`
}

type chartSize struct {
	Width  int `query:"width" validate:"omitempty,min=200,max=4096"`
	Height int `query:"height" validate:"omitempty,min=150,max=4096"`
}

func parseTraceQuery(c *fiber.Ctx, variant covid.VariantConfig) (covid.TraceQuery, error) {
	var p traceParams
	if err := c.QueryParser(&p); err != nil {
		return covid.TraceQuery{}, err
	}
	if err := validate.Struct(p); err != nil {
		return covid.TraceQuery{}, err
	}

	codes := common.SplitCodes(p.Countries)
	if len(codes) == 0 {
		return covid.TraceQuery{}, errors.New("countries must list at least one country code")
	}

	axis := variant.DefaultAxis()
	if p.Axis != "" {
		axis = covid.XAxis(p.Axis)
	}

	q := covid.TraceQuery{
		Codes:     codes,
		Metric:    covid.Metric(p.Metric),
		Axis:      axis,
		PerCapita: p.PerCapita,
	}

	if p.DayMin != nil || p.DayMax != nil {
		if !variant.DayRangeFilter {
			return covid.TraceQuery{}, errors.New("day range filtering is not enabled for this dashboard variant")
		}
		if p.DayMin == nil || p.DayMax == nil {
			return covid.TraceQuery{}, errors.New("day_min and day_max must be given together")
		}
		if *p.DayMin > *p.DayMax {
			return covid.TraceQuery{}, errors.New("day_min must not exceed day_max")
		}
		q.Days = &covid.DayRange{Min: *p.DayMin, Max: *p.DayMax}
	}

	return q, nil
}
