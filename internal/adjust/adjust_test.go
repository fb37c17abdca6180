package adjust

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHalfRound(t *testing.T) {
	assert.Equal(t, 5, HalfRound(10, 50))  // (10*50+50)/100 = 5.5 -> 5
	assert.Equal(t, 6, HalfRound(11, 50))  // (11*50+50)/100 = 600/100 = 6
	assert.Equal(t, 0, HalfRound(0, 100))
	assert.Equal(t, 100, HalfRound(100, 100))
}

func TestClampBoundsAdjustedValue(t *testing.T) {
	// raw percent above max clamps to max.
	assert.Equal(t, HalfRound(100, 80), Clamp(100, 150, 0, 80))
	// raw percent below min clamps to min.
	assert.Equal(t, HalfRound(100, 20), Clamp(100, 5, 20, 100))
	// within bounds passes through.
	assert.Equal(t, HalfRound(100, 60), Clamp(100, 60, 0, 100))
}

func TestParseScheduleAcceptsHourOnlyAndHHMM(t *testing.T) {
	slots := ParseSchedule([]string{"6", "14:30", "bogus"})
	if assert.Len(t, slots, 2) {
		assert.Equal(t, Slot{Hour: 6, Minute: 0, Armed: true}, slots[0])
		assert.Equal(t, Slot{Hour: 14, Minute: 30, Armed: true}, slots[1])
	}
}

func TestDueFallsBackToSixHoursWithNoSchedule(t *testing.T) {
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	assert.True(t, Due(now, nil, time.Time{}))
	assert.False(t, Due(now, nil, now.Add(-1*time.Hour)))
	assert.True(t, Due(now, nil, now.Add(-6*time.Hour)))
}

func TestDueFiresOncePerHourAtSlot(t *testing.T) {
	slots := []Slot{{Hour: 6, Minute: 30, Armed: true}}

	before := time.Date(2026, 7, 29, 6, 15, 0, 0, time.UTC)
	assert.False(t, Due(before, slots, time.Time{}))
	assert.True(t, slots[0].Armed, "not yet due, stays armed")

	atSlot := time.Date(2026, 7, 29, 6, 30, 0, 0, time.UTC)
	assert.True(t, Due(atSlot, slots, time.Time{}))
	assert.False(t, slots[0].Armed)

	stillSameHour := time.Date(2026, 7, 29, 6, 45, 0, 0, time.UTC)
	assert.False(t, Due(stillSameHour, slots, time.Time{}), "already fired this hour")

	nextHour := time.Date(2026, 7, 29, 7, 0, 0, 0, time.UTC)
	assert.False(t, Due(nextHour, slots, time.Time{}))
	assert.True(t, slots[0].Armed, "re-armed once the hour has moved on")
}
