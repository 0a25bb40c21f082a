package models

import (
	"fmt"
	"time"
)

// DrawDateLayout is the wire format for draw dates.
const DrawDateLayout = "02-01-2006"

// ParseDrawDate parses a DD-MM-YYYY draw date.
func ParseDrawDate(s string) (time.Time, error) {
	t, err := time.Parse(DrawDateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid draw date %q: %w", s, err)
	}
	return t, nil
}

// YearMonthOf extracts the year and month from a DD-MM-YYYY draw date.
// A malformed date yields zero values.
func YearMonthOf(date string) (year, month int) {
	t, err := ParseDrawDate(date)
	if err != nil {
		return 0, 0
	}
	return t.Year(), int(t.Month())
}

// ChannelKey is the fabric key for one draw's live state:
// {station}:{date}:{tinh}.
func ChannelKey(station, date, tinh string) string {
	return fmt.Sprintf("%s:%s:%s", station, date, tinh)
}

// MetaKey is the companion hash key holding display metadata for a channel.
func MetaKey(station, date, tinh string) string {
	return ChannelKey(station, date, tinh) + ":meta"
}
