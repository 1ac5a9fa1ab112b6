package cooldown

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRemainingWithoutLastEvent(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	r := Remaining(nil, time.Hour, now)
	assert.False(t, r.Active())
	assert.Equal(t, time.Duration(0), r.Remaining)
	assert.Equal(t, int64(0), r.SecondsRemaining())
	assert.Equal(t, now, NextEligibleAt(nil, time.Hour, now))
}

func TestRemainingInsideWindow(t *testing.T) {
	last := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	now := last.Add(1800 * time.Second)

	r := Remaining(&last, time.Hour, now)
	assert.True(t, r.Active())
	assert.Equal(t, 30*time.Minute, r.Elapsed)
	assert.Equal(t, int64(1800), r.SecondsRemaining())
	assert.Equal(t, last.Add(time.Hour), NextEligibleAt(&last, time.Hour, now))
}

func TestRemainingAfterWindow(t *testing.T) {
	last := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	now := last.Add(3601 * time.Second)

	r := Remaining(&last, time.Hour, now)
	assert.False(t, r.Active())
	assert.Equal(t, now, NextEligibleAt(&last, time.Hour, now))
}

func TestSecondsRemainingRoundsUp(t *testing.T) {
	last := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	now := last.Add(10*time.Second + 250*time.Millisecond)

	r := Remaining(&last, time.Minute, now)
	assert.Equal(t, int64(50), r.SecondsRemaining())
}

func TestSecondsRemainingDecreasesOverTime(t *testing.T) {
	last := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	prev := int64(1 << 62)
	for _, offset := range []time.Duration{time.Second, 10 * time.Minute, 30 * time.Minute, 59 * time.Minute} {
		got := Remaining(&last, time.Hour, last.Add(offset)).SecondsRemaining()
		assert.Greater(t, got, int64(0))
		assert.Less(t, got, prev)
		prev = got
	}
}

func TestRemainingClampsFutureTimestamps(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	last := now.Add(5 * time.Second)

	r := Remaining(&last, time.Hour, now)
	assert.Equal(t, time.Duration(0), r.Elapsed)
	assert.Equal(t, time.Hour, r.Remaining)
}
