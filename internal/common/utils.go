package common

import "strings"

// SplitCodes parses a comma separated list of country codes, upper-cased,
// with blanks dropped. Order and duplicates are preserved.
func SplitCodes(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToUpper(part))
		}
	}
	return out
}
