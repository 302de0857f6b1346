/*
month.go - Year-month token handling

PURPOSE:
  The engine works on calendar months, not full dates. Month is a small
  value type for a (year, month) pair with parsing for the "YYYY-MM"
  tokens used by snapshot delivery dates (sop_ym) and the API.

INDEXING:
  Index() maps a month to year*12 + month, so delivery-date slippage is
  a plain integer subtraction. This is the only arithmetic the delay
  rule needs.

SEE ALSO:
  - engine.go: Uses Index() for slippage and positional sequencing
  - errors.go: MalformedDateTokenError returned by ParseMonth
*/
package scoring

import (
	"fmt"
	"sort"
	"time"
)

// Month is a calendar month without a day component.
type Month struct {
	Year  int
	Month time.Month
}

// NewMonth creates a Month from its parts.
func NewMonth(year int, month time.Month) Month {
	return MonthOf(time.Date(year, month, 1, 0, 0, 0, 0, time.UTC))
}

// MonthOf truncates a time to its calendar month.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

// ParseMonth parses a "YYYY-MM" token. A token that does not parse is a
// data-integrity problem, reported as MalformedDateTokenError so callers
// can refuse to score rather than silently skip the record.
func ParseMonth(token string) (Month, error) {
	t, err := time.Parse("2006-01", token)
	if err != nil {
		return Month{}, &MalformedDateTokenError{Token: token}
	}
	return MonthOf(t), nil
}

// Index returns the absolute month number (year*12 + month). The
// difference of two indexes is the distance in calendar months.
func (m Month) Index() int { return m.Year*12 + int(m.Month) }

// Date returns the first day of the month in UTC.
func (m Month) Date() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

// AddMonths returns the month n calendar months later (or earlier for
// negative n).
func (m Month) AddMonths(n int) Month {
	return MonthOf(m.Date().AddDate(0, n, 0))
}

// Comparison
func (m Month) Before(other Month) bool { return m.Index() < other.Index() }
func (m Month) After(other Month) bool  { return m.Index() > other.Index() }
func (m Month) Equal(other Month) bool  { return m.Index() == other.Index() }
func (m Month) IsZero() bool            { return m.Year == 0 && m.Month == 0 }

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// SortMonths sorts months ascending in place. The engine treats the
// sorted distinct-month list positionally, so ordering matters.
func SortMonths(months []Month) {
	sort.Slice(months, func(i, j int) bool { return months[i].Index() < months[j].Index() })
}
