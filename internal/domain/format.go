package domain

import (
	"strconv"
	"strings"
	"time"
)

// dateLayout renders a medium date with a short time, e.g. "Oct 19, 2026 at 4:20 PM".
const dateLayout = "Jan 2, 2006 at 3:04 PM"

// Formatter renders coordinates, addresses, and dates for display.
// Build one with NewFormatter and pass it to whoever needs it.
type Formatter struct {
	loc *time.Location
}

// NewFormatter creates a Formatter that renders dates in loc. A nil loc uses UTC.
func NewFormatter(loc *time.Location) Formatter {
	if loc == nil {
		loc = time.UTC
	}
	return Formatter{loc: loc}
}

// Degrees renders a latitude or longitude with eight decimals.
func (f Formatter) Degrees(v float64) string {
	return strconv.FormatFloat(v, 'f', 8, 64)
}

// Address renders an address on a single line:
// "<number> <street>, <city>, <state> <postal code>, <country>".
// Absent fields are skipped along with their separator.
func (f Formatter) Address(a Address) string {
	var b strings.Builder
	add := func(s, sep string) {
		if s != "" {
			b.WriteString(s)
			b.WriteString(sep)
		}
	}
	add(a.SubThoroughfare, " ")
	add(a.Thoroughfare, ", ")
	add(a.Locality, ", ")
	add(a.AdministrativeArea, " ")
	add(a.PostalCode, ", ")
	add(a.Country, "")
	return strings.TrimRight(b.String(), ", ")
}

// Date renders t in the formatter's location.
func (f Formatter) Date(t time.Time) string {
	loc := f.loc
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(dateLayout)
}
