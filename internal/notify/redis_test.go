package notify

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisPublisherAndRelay(t *testing.T) {
	client := newTestRedis(t)
	sink := &recordingPublisher{}
	relay := NewRedisRelay(client, "appointments", sink, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ready := make(chan struct{})
	done := make(chan struct{})
	go func() {
		relay.Run(ctx, ready)
		close(done)
	}()

	select {
	case <-ready:
	case <-time.After(2 * time.Second):
		t.Fatal("relay never subscribed")
	}

	msg := NewBuilder(nil, nil).Build(ctx, newEvent(EventNewAppointment))
	require.NoError(t, NewRedisPublisher(client, "appointments").Publish(ctx, msg))

	require.Eventually(t, func() bool { return len(sink.received()) == 1 }, 2*time.Second, 10*time.Millisecond)
	got := sink.received()[0]
	assert.Equal(t, msg.ID, got.ID)
	assert.Equal(t, msg.AppointmentID, got.AppointmentID)
	assert.True(t, msg.Appointment.SlotDateTime.Equal(got.Appointment.SlotDateTime))

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop")
	}
}

func TestRelaySkipsUndecodableMessages(t *testing.T) {
	client := newTestRedis(t)
	sink := &recordingPublisher{}
	relay := NewRedisRelay(client, "appointments", sink, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ready := make(chan struct{})
	go relay.Run(ctx, ready)
	<-ready

	require.NoError(t, client.Publish(ctx, "appointments", "garbage").Err())
	msg := NewBuilder(nil, nil).Build(ctx, newEvent(EventAppointmentUpdate))
	require.NoError(t, NewRedisPublisher(client, "appointments").Publish(ctx, msg))

	require.Eventually(t, func() bool { return len(sink.received()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, msg.ID, sink.received()[0].ID)
}

func TestRelayResubscribesAfterFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	mr.SetError("LOADING Redis is loading the dataset in memory")

	sink := &recordingPublisher{}
	relay := NewRedisRelay(client, "appointments", sink, nil).WithBackoff(10*time.Millisecond, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ready := make(chan struct{})
	done := make(chan struct{})
	go func() {
		relay.Run(ctx, ready)
		close(done)
	}()

	select {
	case <-ready:
		t.Fatal("relay reported ready while redis was failing")
	case <-time.After(100 * time.Millisecond):
	}

	mr.SetError("")
	select {
	case <-ready:
	case <-time.After(2 * time.Second):
		t.Fatal("relay never recovered")
	}

	msg := NewBuilder(nil, nil).Build(ctx, newEvent(EventNewAppointment))
	require.Eventually(t, func() bool {
		_ = NewRedisPublisher(client, "appointments").Publish(ctx, msg)
		return len(sink.received()) > 0
	}, 2*time.Second, 20*time.Millisecond)
	assert.Equal(t, msg.ID, sink.received()[0].ID)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop")
	}
}
