package covid

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapTable is a minimal Table backed by per-country tables.
type mapTable map[string]CountryTable

func (m mapTable) Series(code string) ([]Row, error) {
	t, ok := m[code]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCountry, code)
	}
	out := make([]Row, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r.Clone()
	}
	return out, nil
}

func (m mapTable) Range(code string, days DayRange) ([]Row, error) {
	rows, err := m.Series(code)
	if err != nil {
		return nil, err
	}
	var out []Row
	for _, r := range rows {
		if days.Contains(r.DayNumber) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m mapTable) Population(code string) (float64, error) {
	t, ok := m[code]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedCountry, code)
	}
	return t.Population, nil
}

func (m mapTable) DayBounds() (DayRange, bool) {
	var b DayRange
	found := false
	for _, t := range m {
		if len(t.Rows) == 0 {
			continue
		}
		last := t.Rows[len(t.Rows)-1].DayNumber
		if !found {
			b = DayRange{Min: 1, Max: last}
			found = true
		}
		b.Max = max(b.Max, last)
	}
	return b, found
}

func testFixture(t *testing.T) (mapTable, *CountrySet) {
	t.Helper()

	countries, err := NewCountrySet([]Country{
		{Label: "Mexico", Code: "MEX"},
		{Label: "Argentina", Code: "ARG"},
		{Label: "Chile", Code: "CHL"},
	})
	require.NoError(t, err)

	table := mapTable{}
	for code, cases := range map[string][]int64{
		"MEX": {0, 0, 1, 3, 6},
		"ARG": {2, 5, 9, 14, 20, 27, 35},
		"CHL": {1, 1, 2},
	} {
		ct, err := BuildCountryTable(code, series(cases, nil, nil), testPops, VariantDaily)
		require.NoError(t, err)
		table[code] = ct
	}
	return table, countries
}

func TestSelectTracesOrderFollowsRequest(t *testing.T) {
	table, countries := testFixture(t)

	set, err := SelectTraces(table, countries, TraceQuery{
		Codes:  []string{"CHL", "MEX", "ARG", "MEX"},
		Metric: MetricCases,
		Axis:   AxisDate,
	})
	require.NoError(t, err)
	require.Len(t, set.Traces, 3)
	assert.Equal(t, "CHL", set.Traces[0].Name)
	assert.Equal(t, "MEX", set.Traces[1].Name)
	assert.Equal(t, "ARG", set.Traces[2].Name)
	assert.Empty(t, set.Unsupported)
}

func TestSelectTracesUnsupportedCountry(t *testing.T) {
	table, countries := testFixture(t)

	set, err := SelectTraces(table, countries, TraceQuery{
		Codes:  []string{"MEX", "ZZZ", "ARG"},
		Metric: MetricNewCases,
		Axis:   AxisDayNumber,
	})
	require.NoError(t, err)
	require.Len(t, set.Traces, 2)
	assert.Equal(t, "MEX", set.Traces[0].Name)
	assert.Equal(t, "ARG", set.Traces[1].Name)
	assert.Equal(t, []string{"ZZZ"}, set.Unsupported)

	set, err = SelectTraces(table, countries, TraceQuery{Codes: []string{"ZZZ"}, Metric: MetricCases, Axis: AxisDate})
	require.NoError(t, err)
	assert.Empty(t, set.Traces)
}

func TestSelectTracesRepeatedCodesYieldOneTrace(t *testing.T) {
	table, countries := testFixture(t)

	set, err := SelectTraces(table, countries, TraceQuery{
		Codes:  []string{"ARG", "ZZZ", "MEX", "ARG", "ZZZ", "MEX"},
		Metric: MetricCases,
		Axis:   AxisDayNumber,
	})
	require.NoError(t, err)
	require.Len(t, set.Traces, 2)
	assert.Equal(t, "ARG", set.Traces[0].Name)
	assert.Equal(t, "MEX", set.Traces[1].Name)
	assert.Equal(t, []string{"ZZZ"}, set.Unsupported)
}

func TestSelectTracesPerCapita(t *testing.T) {
	table, countries := testFixture(t)
	before, err := table.Series("ARG")
	require.NoError(t, err)

	q := TraceQuery{Codes: []string{"MEX", "ARG"}, Metric: MetricNewCases, Axis: AxisDate}
	raw, err := SelectTraces(table, countries, q)
	require.NoError(t, err)

	q.PerCapita = true
	scaled, err := SelectTraces(table, countries, q)
	require.NoError(t, err)

	require.Len(t, scaled.Traces, len(raw.Traces))
	for i, tr := range scaled.Traces {
		pop := testPops[tr.Name]
		rawValues := raw.Traces[i].Values()
		for j, v := range tr.Values() {
			if rawValues[j] == nil {
				assert.Nil(t, v)
				continue
			}
			require.NotNil(t, v)
			assert.Equal(t, PerCapita(*rawValues[j], pop), *v)
		}
	}

	// ARG population is 4: a new_cases of 3 becomes 0.75.
	assert.Equal(t, 0.75, *scaled.Traces[1].Values()[1])

	after, err := table.Series("ARG")
	require.NoError(t, err)
	assert.Equal(t, before, after)

	// Repeating the raw query after the scaled one gives identical results.
	q.PerCapita = false
	again, err := SelectTraces(table, countries, q)
	require.NoError(t, err)
	assert.Equal(t, raw, again)
}

func TestSelectTracesDayRange(t *testing.T) {
	table, countries := testFixture(t)

	full, err := SelectTraces(table, countries, TraceQuery{
		Codes:  []string{"ARG"},
		Metric: MetricCases,
		Axis:   AxisDayNumber,
		Days:   &DayRange{Min: 1, Max: 7},
	})
	require.NoError(t, err)
	assert.Len(t, full.Traces[0].Points, 7)

	one, err := SelectTraces(table, countries, TraceQuery{
		Codes:  []string{"ARG", "MEX"},
		Metric: MetricCases,
		Axis:   AxisDayNumber,
		Days:   &DayRange{Min: 5, Max: 5},
	})
	require.NoError(t, err)
	require.Len(t, one.Traces, 2)
	require.Len(t, one.Traces[0].Points, 1)
	assert.Equal(t, 5, one.Traces[0].Points[0].DayNumber)
	assert.Equal(t, 20.0, *one.Traces[0].Points[0].Value)
	// MEX only has three days.
	assert.Empty(t, one.Traces[1].Points)
}

func TestSelectTracesValidation(t *testing.T) {
	table, countries := testFixture(t)

	_, err := SelectTraces(table, countries, TraceQuery{Codes: []string{"MEX"}, Metric: "active", Axis: AxisDate})
	assert.ErrorIs(t, err, ErrUnknownMetric)

	_, err = SelectTraces(table, countries, TraceQuery{Codes: []string{"MEX"}, Metric: MetricCases, Axis: "week"})
	assert.ErrorIs(t, err, ErrUnsupportedAxis)

	_, err = SelectTraces(table, countries, TraceQuery{
		Codes: []string{"MEX"}, Metric: MetricCases, Axis: AxisDate, Days: &DayRange{Min: 9, Max: 2},
	})
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestTraceJSON(t *testing.T) {
	table, countries := testFixture(t)

	set, err := SelectTraces(table, countries, TraceQuery{Codes: []string{"MEX"}, Metric: MetricNewCases, Axis: AxisDate})
	require.NoError(t, err)
	raw, err := json.Marshal(set.Traces[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":["2020-03-03","2020-03-04","2020-03-05"],"y":[null,2,3],"name":"MEX","mode":"lines+markers"}`, string(raw))

	set, err = SelectTraces(table, countries, TraceQuery{Codes: []string{"MEX"}, Metric: MetricCases, Axis: AxisDayNumber})
	require.NoError(t, err)
	raw, err = json.Marshal(set.Traces[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":[1,2,3],"y":[1,3,6],"name":"MEX","mode":"lines+markers"}`, string(raw))
}

func TestPerCapitaRounding(t *testing.T) {
	assert.Equal(t, 0.33, PerCapita(1, 3))
	assert.Equal(t, 0.67, PerCapita(2, 3))
	assert.Equal(t, 12.5, PerCapita(25, 2))
}
