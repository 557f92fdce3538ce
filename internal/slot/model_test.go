package slot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDayBoundsInZone(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	day, err := ParseDay("2025-04-10", loc)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2025, 4, 10, 5, 0, 0, 0, time.UTC), day.Start())
	assert.Equal(t, time.Date(2025, 4, 11, 5, 0, 0, 0, time.UTC), day.End())
	assert.Equal(t, "2025-04-10", day.String())

	assert.True(t, day.Contains(time.Date(2025, 4, 11, 4, 59, 59, 0, time.UTC)))
	assert.False(t, day.Contains(time.Date(2025, 4, 11, 5, 0, 0, 0, time.UTC)))
}

func TestParseDayRejectsGarbage(t *testing.T) {
	_, err := ParseDay("10/04/2025", time.UTC)
	require.Error(t, err)
}

func TestCanonicalDropsZoneAndFraction(t *testing.T) {
	in := time.Date(2025, 4, 10, 12, 0, 0, 500_000_000, time.FixedZone("UTC+3", 3*3600))
	got := Canonical(in)

	assert.Equal(t, time.UTC, got.Location())
	assert.Equal(t, time.Date(2025, 4, 10, 9, 0, 0, 0, time.UTC), got)
}

func TestLabelIsDisplayOnly(t *testing.T) {
	s := Slot{DateTime: time.Date(2025, 4, 10, 14, 30, 0, 0, time.UTC)}
	assert.Equal(t, "02:30 PM", s.Label(nil))
	assert.Equal(t, "04:30 PM", s.Label(time.FixedZone("UTC+2", 2*3600)))
}

func TestInvalidSlotErrorMessage(t *testing.T) {
	err := &InvalidSlotError{Rejected: []Rejection{
		{DateTime: time.Date(2025, 4, 10, 9, 0, 0, 0, time.UTC), Reason: ReasonPast},
	}}
	assert.Contains(t, err.Error(), "2025-04-10T09:00:00Z (in_past)")
	assert.ErrorIs(t, err, ErrInvalidSlot)
}
