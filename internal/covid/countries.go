package covid

import (
	"fmt"
	"strings"
)

// Country is a supported (label, code) pair.
type Country struct {
	Label string `json:"label"`
	Code  string `json:"code"`
}

// DefaultCountries is the fixed set of countries the dashboard knows about.
var DefaultCountries = []Country{
	{Label: "Argentina", Code: "ARG"},
	{Label: "Brazil", Code: "BRA"},
	{Label: "Chile", Code: "CHL"},
	{Label: "Canada", Code: "CAN"},
	{Label: "Colombia", Code: "COL"},
	{Label: "Ecuador", Code: "ECU"},
	{Label: "Spain", Code: "ESP"},
	{Label: "United States", Code: "USA"},
	{Label: "Italy", Code: "ITA"},
	{Label: "Japan", Code: "JPN"},
	{Label: "Mexico", Code: "MEX"},
	{Label: "United Kingdom", Code: "GBR"},
}

// CountrySet is an ordered, immutable set of supported countries.
type CountrySet struct {
	list  []Country
	index map[string]int
}

// NewCountrySet builds a set; duplicate or empty codes are rejected.
func NewCountrySet(countries []Country) (*CountrySet, error) {
	s := &CountrySet{
		list:  make([]Country, 0, len(countries)),
		index: make(map[string]int, len(countries)),
	}
	for _, c := range countries {
		code := strings.ToUpper(strings.TrimSpace(c.Code))
		if code == "" {
			return nil, fmt.Errorf("country %q has an empty code", c.Label)
		}
		if _, dup := s.index[code]; dup {
			return nil, fmt.Errorf("duplicate country code %s", code)
		}
		s.index[code] = len(s.list)
		s.list = append(s.list, Country{Label: c.Label, Code: code})
	}
	return s, nil
}

// Subset restricts the set to the given codes, keeping the set's own order.
func (s *CountrySet) Subset(codes []string) (*CountrySet, error) {
	if len(codes) == 0 {
		return s, nil
	}
	want := make(map[string]bool, len(codes))
	for _, code := range codes {
		code = strings.ToUpper(strings.TrimSpace(code))
		if !s.Contains(code) {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedCountry, code)
		}
		want[code] = true
	}
	var picked []Country
	for _, c := range s.list {
		if want[c.Code] {
			picked = append(picked, c)
		}
	}
	return NewCountrySet(picked)
}

// Contains reports whether code is supported.
func (s *CountrySet) Contains(code string) bool {
	_, ok := s.index[code]
	return ok
}

// Lookup returns the country for code.
func (s *CountrySet) Lookup(code string) (Country, bool) {
	i, ok := s.index[code]
	if !ok {
		return Country{}, false
	}
	return s.list[i], true
}

// List returns a copy of the countries in order.
func (s *CountrySet) List() []Country {
	out := make([]Country, len(s.list))
	copy(out, s.list)
	return out
}

// Codes returns the codes in order.
func (s *CountrySet) Codes() []string {
	out := make([]string, len(s.list))
	for i, c := range s.list {
		out[i] = c.Code
	}
	return out
}
