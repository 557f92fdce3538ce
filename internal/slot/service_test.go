package slot

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/care-scheduling/internal/logging"
	"github.com/hackgods/care-scheduling/internal/metrics"
)

func newTestService(now Clock) (*Service, *MemoryStore) {
	store := NewMemoryStore(now)
	svc := NewService(store,
		WithClock(now),
		WithLogger(logging.Discard()),
		WithMetrics(metrics.New(prometheus.NewRegistry())),
	)
	return svc, store
}

func TestAvailableFiltersBookedAndPast(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 4, 10, 8, 0, 0, 0, time.UTC)
	svc, store := newTestService(func() time.Time { return now })
	doctor := uuid.New()

	nine := time.Date(2025, 4, 10, 9, 0, 0, 0, time.UTC)
	ten := time.Date(2025, 4, 10, 10, 0, 0, 0, time.UTC)
	eleven := time.Date(2025, 4, 10, 11, 0, 0, 0, time.UTC)
	_, err := svc.Publish(ctx, doctor, []time.Time{nine, ten, eleven})
	require.NoError(t, err)

	_, err = store.MarkBooked(ctx, doctor, ten)
	require.NoError(t, err)

	day := NewDay(2025, time.April, 10, time.UTC)
	free, err := svc.Available(ctx, doctor, day)
	require.NoError(t, err)
	require.Len(t, free, 2)
	assert.True(t, free[0].DateTime.Equal(nine))
	assert.True(t, free[1].DateTime.Equal(eleven))

	// Time moves past nine: it drops out even though it is still free.
	now = time.Date(2025, 4, 10, 9, 30, 0, 0, time.UTC)
	free, err = svc.Available(ctx, doctor, day)
	require.NoError(t, err)
	require.Len(t, free, 1)
	assert.True(t, free[0].DateTime.Equal(eleven))

	all, err := svc.Slots(ctx, doctor, day)
	require.NoError(t, err)
	assert.Len(t, all, 3, "Slots returns booked and past slots too")
}

func TestAvailableEmptyIsNotAnError(t *testing.T) {
	svc, _ := newTestService(fixedClock)

	free, err := svc.Available(context.Background(), uuid.New(), NewDay(2025, time.April, 10, time.UTC))
	require.NoError(t, err)
	assert.NotNil(t, free)
	assert.Empty(t, free)
}

func TestServicePublishPassesThroughInvalidSlot(t *testing.T) {
	svc, _ := newTestService(fixedClock)

	_, err := svc.Publish(context.Background(), uuid.New(), []time.Time{fixedNow.Add(-time.Minute)})
	var invalid *InvalidSlotError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, ReasonPast, invalid.Rejected[0].Reason)
}
