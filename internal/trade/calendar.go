package trade

import (
	"time"
)

// Calendar places the expiration cut-off: the market close on the
// expiration date in the exchange's time zone.
type Calendar struct {
	Location *time.Location
	Close    time.Duration // offset from midnight
}

// DefaultCalendar is the US equity options calendar: 16:00 America/New_York.
func DefaultCalendar() Calendar {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.FixedZone("EST", -5*60*60)
	}
	return Calendar{Location: loc, Close: 16 * time.Hour}
}

// ExpiresAt returns the close on date's calendar day.
func (c Calendar) ExpiresAt(date time.Time) time.Time {
	loc := c.Location
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := date.Date()
	hour := int(c.Close / time.Hour)
	minute := int(c.Close % time.Hour / time.Minute)
	return time.Date(y, m, d, hour, minute, 0, 0, loc)
}
