package domain

import (
	"fmt"
	"time"
)

// DayLayout is the canonical text form of a Day.
const DayLayout = "2006-01-02"

// Day is a calendar date stored as days since 1970-01-01 UTC. It is
// comparable and orders naturally, so it can key maps and sort directly.
type Day int32

// DayOf returns the calendar date of t in t's own location.
func DayOf(t time.Time) Day {
	y, m, d := t.Date()
	return Day(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400)
}

// NewDay builds a Day from its calendar parts.
func NewDay(year int, month time.Month, day int) Day {
	return DayOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// ParseDay parses s with each layout in order and returns the first match.
func ParseDay(s string, layouts []string) (Day, bool) {
	for _, layout := range layouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return DayOf(t), true
		}
	}
	return 0, false
}

// Time returns midnight UTC of d.
func (d Day) Time() time.Time {
	return time.Unix(int64(d)*86400, 0).UTC()
}

func (d Day) String() string {
	return d.Time().Format(DayLayout)
}

// MarshalText encodes d as YYYY-MM-DD.
func (d Day) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText decodes a YYYY-MM-DD date.
func (d *Day) UnmarshalText(b []byte) error {
	t, err := time.Parse(DayLayout, string(b))
	if err != nil {
		return fmt.Errorf("parse day %q: %w", b, err)
	}
	*d = DayOf(t)
	return nil
}
