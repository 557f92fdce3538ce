package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkingHours(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	cfg := seedConfig{Days: 2, FirstHour: 9, LastHour: 11, Step: 30 * time.Minute, Location: loc}

	got := workingHours(time.Date(2025, 4, 10, 22, 0, 0, 0, loc), cfg)
	require.Len(t, got, 8)

	assert.True(t, got[0].Equal(time.Date(2025, 4, 10, 9, 0, 0, 0, loc)))
	assert.True(t, got[3].Equal(time.Date(2025, 4, 10, 10, 30, 0, 0, loc)))
	assert.True(t, got[4].Equal(time.Date(2025, 4, 11, 9, 0, 0, 0, loc)))
	assert.Equal(t, "03:30", got[0].UTC().Format("15:04"))
}
