package covid

import (
	_ "embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

const (
	populationCodeColumn  = "alfa3"
	populationValueColumn = "pob_cienmiles"
)

//go:embed data/population.csv
var defaultPopulationCSV string

// Populations maps a country code to its population in hundred-thousands.
type Populations map[string]float64

// Lookup returns the population of code or an ErrPopulationJoin error.
func (p Populations) Lookup(code string) (float64, error) {
	v, ok := p[code]
	if !ok {
		return 0, fmt.Errorf("%w: no population entry for %s", ErrPopulationJoin, code)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%w: non-positive population %v for %s", ErrPopulationJoin, v, code)
	}
	return v, nil
}

// Check verifies that every code has a usable population entry.
func (p Populations) Check(codes []string) error {
	var errs []error
	for _, code := range codes {
		if _, err := p.Lookup(code); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// DefaultPopulations parses the population table bundled with the binary.
func DefaultPopulations() (Populations, error) {
	return ParsePopulations(strings.NewReader(defaultPopulationCSV))
}

// LoadPopulations reads a population CSV from path, or the bundled table when path is empty.
func LoadPopulations(path string) (Populations, error) {
	if path == "" {
		return DefaultPopulations()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open population file: %w", err)
	}
	defer f.Close()
	return ParsePopulations(f)
}

// ParsePopulations reads a CSV with at least the alfa3 and pob_cienmiles columns.
func ParsePopulations(r io.Reader) (Populations, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read population header: %w", err)
	}
	codeIdx, valueIdx := -1, -1
	for i, col := range header {
		switch strings.TrimSpace(strings.TrimPrefix(col, "\ufeff")) {
		case populationCodeColumn:
			codeIdx = i
		case populationValueColumn:
			valueIdx = i
		}
	}
	if codeIdx < 0 || valueIdx < 0 {
		return nil, fmt.Errorf("population file must have %q and %q columns", populationCodeColumn, populationValueColumn)
	}

	pops := make(Populations)
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read population line %d: %w", line, err)
		}
		code := strings.ToUpper(strings.TrimSpace(rec[codeIdx]))
		if code == "" {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[valueIdx]), 64)
		if err != nil {
			return nil, fmt.Errorf("population line %d: invalid %s %q: %w", line, populationValueColumn, rec[valueIdx], err)
		}
		pops[code] = v
	}
	return pops, nil
}
