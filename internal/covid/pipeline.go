package covid

import (
	"fmt"
	"sort"
)

// BuildCountryTable turns the raw series of one country into its metric table.
//
// The order of the steps matters and mirrors the dashboard's behaviour:
// leading zero-case rows are dropped, days are numbered on the cleaned series,
// deltas are computed, new_recovered is clamped at zero (before or after
// smoothing depending on the variant), deltas are optionally smoothed and the
// population is joined last.
func BuildCountryTable(code string, records []Record, pops Populations, variant VariantConfig) (CountryTable, error) {
	pop, err := pops.Lookup(code)
	if err != nil {
		return CountryTable{}, err
	}

	cleaned := make([]Record, 0, len(records))
	for _, r := range records {
		if r.Confirmed > 0 {
			cleaned = append(cleaned, r)
		}
	}
	sort.SliceStable(cleaned, func(i, j int) bool {
		return cleaned[i].Date.Before(cleaned[j].Date)
	})
	for i := 1; i < len(cleaned); i++ {
		if !cleaned[i].Date.After(cleaned[i-1].Date) {
			return CountryTable{}, fmt.Errorf("%w: duplicate date %s for %s",
				ErrSourceUnavailable, cleaned[i].Date.Format(DateLayout), code)
		}
	}

	cases := make([]float64, len(cleaned))
	deaths := make([]float64, len(cleaned))
	recovered := make([]float64, len(cleaned))
	for i, r := range cleaned {
		cases[i] = float64(r.Confirmed)
		deaths[i] = float64(r.Deaths)
		recovered[i] = float64(r.Recovered)
	}

	newCases := diff(cases)
	newDeaths := diff(deaths)
	newRecovered := diff(recovered)

	if variant.ClampBeforeSmoothing || !variant.RollingAverage {
		clampNegative(newRecovered)
	}
	if variant.RollingAverage {
		newCases = rollingMean(newCases, RollingWindow)
		newDeaths = rollingMean(newDeaths, RollingWindow)
		newRecovered = rollingMean(newRecovered, RollingWindow)
		if !variant.ClampBeforeSmoothing {
			clampNegative(newRecovered)
		}
	}

	rows := make([]Row, len(cleaned))
	for i, r := range cleaned {
		rows[i] = Row{
			CountryCode:                code,
			Date:                       r.Date,
			DayNumber:                  i + 1,
			Cases:                      r.Confirmed,
			Deaths:                     r.Deaths,
			Recovered:                  r.Recovered,
			NewCases:                   newCases[i],
			NewDeaths:                  newDeaths[i],
			NewRecovered:               newRecovered[i],
			PopulationHundredThousands: pop,
		}
	}

	return CountryTable{Code: code, Population: pop, Rows: rows}, nil
}

// diff returns the first difference of values; the first element is undefined.
func diff(values []float64) []*float64 {
	out := make([]*float64, len(values))
	for i := 1; i < len(values); i++ {
		out[i] = floatPtr(values[i] - values[i-1])
	}
	return out
}

// rollingMean is a trailing simple moving average. A window containing an
// undefined value, or not yet full, yields an undefined result.
func rollingMean(values []*float64, window int) []*float64 {
	out := make([]*float64, len(values))
	for i := window - 1; i < len(values); i++ {
		var sum float64
		complete := true
		for _, v := range values[i-window+1 : i+1] {
			if v == nil {
				complete = false
				break
			}
			sum += *v
		}
		if complete {
			out[i] = floatPtr(sum / float64(window))
		}
	}
	return out
}

func clampNegative(values []*float64) {
	for i, v := range values {
		if v != nil && *v < 0 {
			values[i] = floatPtr(0)
		}
	}
}
