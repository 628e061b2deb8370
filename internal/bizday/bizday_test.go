package bizday

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyIgnoresHostTimezone(t *testing.T) {
	hosts := []string{"UTC", "America/Los_Angeles", "Asia/Tokyo", "Pacific/Kiritimati"}
	instant := time.Date(2025, 8, 21, 17, 30, 0, 0, time.UTC) // 00:30 on the 22nd in UTC+7

	for _, name := range hosts {
		loc, err := time.LoadLocation(name)
		if err != nil {
			t.Skipf("tzdata for %s unavailable: %v", name, err)
		}
		assert.Equal(t, "2025-08-22", Key(instant.In(loc)), name)
	}
}

func TestParseIsMidnightInBusinessZone(t *testing.T) {
	day, err := Parse("2025-08-21")
	require.NoError(t, err)

	assert.Equal(t, time.Date(2025, 8, 20, 17, 0, 0, 0, time.UTC), day.UTC())
	assert.Equal(t, "2025-08-21", Key(day))
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, raw := range []string{"", "2025-8-21", "21-08-2025", "2025-02-30", "2025-08-21T00:00:00Z"} {
		_, err := Parse(raw)
		assert.ErrorIs(t, err, ErrInvalidDate, raw)
	}
}

func TestContainsDayBoundary(t *testing.T) {
	day, err := Parse("2025-08-21")
	require.NoError(t, err)

	lastSecond, err := time.Parse(time.RFC3339, "2025-08-21T23:59:59+07:00")
	require.NoError(t, err)
	nextMidnight, err := time.Parse(time.RFC3339, "2025-08-22T00:00:00+07:00")
	require.NoError(t, err)
	firstInstant, err := time.Parse(time.RFC3339, "2025-08-21T00:00:00+07:00")
	require.NoError(t, err)

	assert.True(t, Contains(day, lastSecond))
	assert.True(t, Contains(day, firstInstant))
	assert.False(t, Contains(day, nextMidnight))
	assert.Equal(t, "2025-08-21", Key(lastSecond))
	assert.Equal(t, "2025-08-22", Key(nextMidnight))
}

func TestBounds(t *testing.T) {
	noon := time.Date(2025, 8, 21, 5, 0, 0, 0, time.UTC)
	from, to := Bounds(noon)

	assert.Equal(t, "2025-08-21T00:00:00+07:00", from.Format(time.RFC3339))
	assert.Equal(t, 24*time.Hour-time.Nanosecond, to.Sub(from))
}
