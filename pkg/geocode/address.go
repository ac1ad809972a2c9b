package geocode

import (
	"regexp"
	"strings"
)

// Defaults applied by ParseAddress when a permit address omits its city or
// state.
const (
	DefaultCity  = "Seattle"
	DefaultState = "WA"
)

var (
	stateZipPattern = regexp.MustCompile(`(?i)^([a-z]{2})(?:\s+(\d{5}(?:-\d{4})?))?$`)
	trailingZip     = regexp.MustCompile(`\s+(\d{5}(?:-\d{4})?)$`)
)

// ParseAddress splits a free-text permit address into geocoder input.
// It understands "street", "street, city", "street, city, ST", and
// "street, city, ST 98101"; missing city and state take the defaults.
func ParseAddress(line, defaultCity, defaultState string) AddressInput {
	parts := strings.Split(line, ",")
	for i := range parts {
		parts[i] = strings.Join(strings.Fields(parts[i]), " ")
	}
	nonEmpty := parts[:0]
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	if len(nonEmpty) == 0 {
		return AddressInput{}
	}

	addr := AddressInput{Street: nonEmpty[0]}
	rest := nonEmpty[1:]

	if n := len(rest); n > 0 {
		if m := stateZipPattern.FindStringSubmatch(rest[n-1]); m != nil {
			addr.State = strings.ToUpper(m[1])
			addr.ZipCode = m[2]
			rest = rest[:n-1]
		} else if m := trailingZip.FindStringSubmatch(rest[n-1]); m != nil {
			addr.ZipCode = m[1]
			rest[n-1] = strings.TrimSpace(strings.TrimSuffix(rest[n-1], m[0]))
		}
	}
	if len(rest) > 0 {
		addr.City = rest[0]
	}
	if len(nonEmpty) == 1 {
		if m := trailingZip.FindStringSubmatch(addr.Street); m != nil {
			addr.ZipCode = m[1]
			addr.Street = strings.TrimSuffix(addr.Street, m[0])
		}
	}

	if addr.City == "" {
		addr.City = defaultCity
	}
	if addr.State == "" {
		addr.State = defaultState
	}
	return addr
}

// formatOneLine joins the non-empty address parts for one-line APIs.
func formatOneLine(addr AddressInput) string {
	var parts []string
	for _, p := range []string{addr.Street, addr.City, addr.State, addr.ZipCode} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}
