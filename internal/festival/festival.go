// Package festival suggests session dates for festivals
package festival

import (
	"time"

	"github.com/pkg/errors"
)

// DateLayout is the format dates are exchanged in
const DateLayout = "2006-01-02"

// maxBackward is the largest distance in days a suggestion moves back in time. Festivals further away from the last
// eligible weekday are moved forward to the next one.
const maxBackward = 3

// CalendarDate reduces the given time to its calendar date as seen in its own location. The result is midnight UTC
// so that later arithmetic is not affected by time zones or daylight saving changes.
func CalendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD date into a calendar date
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "ParseDate: '%s' is no valid date", s)
	}
	return t, nil
}

// NearestWeekday returns the occurrence of the eligible weekday a festival on the given date is celebrated at. If
// the festival is at most three days after the eligible weekday, the session is held on the preceding eligible day
// (or on the festival date itself). Otherwise it is held on the following one.
func NearestWeekday(festival time.Time, eligible time.Weekday) time.Time {
	date := CalendarDate(festival)
	offset := (int(date.Weekday()) - int(eligible) + 7) % 7
	if offset <= maxBackward {
		return date.AddDate(0, 0, -offset)
	}
	return date.AddDate(0, 0, 7-offset)
}
