package festival

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(t *testing.T, s string) time.Time {
	d, err := ParseDate(s)
	require.NoError(t, err)
	return d
}

func TestNearestWeekday(t *testing.T) {
	// 2024-03-10 is a Sunday
	tests := []struct {
		festival string
		expected string
	}{
		{"2024-03-10", "2024-03-10"}, // on the eligible day
		{"2024-03-11", "2024-03-10"},
		{"2024-03-12", "2024-03-10"},
		{"2024-03-13", "2024-03-10"}, // 3 days after: backward
		{"2024-03-14", "2024-03-17"}, // 4 days after: forward
		{"2024-03-15", "2024-03-17"},
		{"2024-03-16", "2024-03-17"},
		{"2024-12-31", "2024-12-29"}, // Tuesday, across the year boundary
		{"2025-01-02", "2025-01-05"}, // Thursday, forward into the next week
	}
	for _, tt := range tests {
		t.Run(tt.festival, func(t *testing.T) {
			got := NearestWeekday(date(t, tt.festival), time.Sunday)
			assert.Equal(t, tt.expected, got.Format(DateLayout))
			assert.Equal(t, time.Sunday, got.Weekday())
		})
	}
}

func TestNearestWeekdayOtherEligibleDay(t *testing.T) {
	// Saturday gatherings - 2024-03-09 is a Saturday
	assert.Equal(t, "2024-03-09", NearestWeekday(date(t, "2024-03-09"), time.Saturday).Format(DateLayout))
	assert.Equal(t, "2024-03-09", NearestWeekday(date(t, "2024-03-12"), time.Saturday).Format(DateLayout))
	assert.Equal(t, "2024-03-16", NearestWeekday(date(t, "2024-03-13"), time.Saturday).Format(DateLayout))
}

func TestNearestWeekdayIgnoresTimeZones(t *testing.T) {
	// Late evening on a Wednesday in a zone far west of UTC is already Thursday in UTC. The local calendar date counts
	zone := time.FixedZone("UTC-10", -10*60*60)
	festival := time.Date(2024, 3, 13, 22, 30, 0, 0, zone)
	got := NearestWeekday(festival, time.Sunday)
	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), got)

	// Across a daylight saving change the result is still a whole number of days away
	berlin, err := time.LoadLocation("Europe/Berlin")
	if err == nil {
		festival = time.Date(2024, 3, 28, 0, 30, 0, 0, berlin)
		assert.Equal(t, "2024-03-31", NearestWeekday(festival, time.Sunday).Format(DateLayout))
	}
}

func TestParseDateRejectsGarbage(t *testing.T) {
	_, err := ParseDate("10.03.2024")
	assert.Error(t, err)
}
