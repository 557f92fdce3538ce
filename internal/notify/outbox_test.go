package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutboxStorePublishInsertsPayload(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := newOutboxStoreWithPool(mock)
	msg := NewBuilder(nil, nil).Build(context.Background(), newEvent(EventNewAppointment))

	mock.ExpectExec("INSERT INTO notification_outbox").
		WithArgs(msg.ID, string(EventNewAppointment), msg.AppointmentID, pgxmock.AnyArg(), msg.OccurredAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Publish(context.Background(), msg))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxStoreFetchAndMark(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := newOutboxStoreWithPool(mock)
	msg := NewBuilder(nil, nil).Build(context.Background(), newEvent(EventAppointmentUpdate))
	payload, err := json.Marshal(msg)
	require.NoError(t, err)

	rows := pgxmock.NewRows([]string{"id", "event_type", "appointment_id", "payload", "created_at"}).
		AddRow(msg.ID, string(msg.Type), msg.AppointmentID, payload, msg.OccurredAt)
	mock.ExpectQuery("SELECT id, event_type, appointment_id, payload, created_at").
		WithArgs(10).
		WillReturnRows(rows)
	mock.ExpectExec("UPDATE notification_outbox").
		WithArgs(msg.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE notification_outbox").
		WithArgs(msg.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	entries, err := store.FetchPending(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, EventAppointmentUpdate, entries[0].EventType)
	assert.JSONEq(t, string(payload), string(entries[0].Payload))

	ok, err := store.MarkDelivered(context.Background(), msg.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.MarkDelivered(context.Background(), msg.ID)
	require.NoError(t, err)
	assert.False(t, ok, "second mark is a no-op")

	require.NoError(t, mock.ExpectationsWereMet())
}

type fakeOutbox struct {
	mu        sync.Mutex
	pending   []OutboxEntry
	delivered map[uuid.UUID]bool
	fetchErr  error
}

func (f *fakeOutbox) FetchPending(_ context.Context, limit int) ([]OutboxEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	var out []OutboxEntry
	for _, e := range f.pending {
		if f.delivered[e.ID] {
			continue
		}
		out = append(out, e)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeOutbox) MarkDelivered(_ context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.delivered[id] {
		return false, nil
	}
	f.delivered[id] = true
	return true, nil
}

func outboxEntry(t *testing.T, ev Event) OutboxEntry {
	t.Helper()
	msg := NewBuilder(nil, nil).Build(context.Background(), ev)
	payload, err := json.Marshal(msg)
	require.NoError(t, err)
	return OutboxEntry{ID: msg.ID, EventType: msg.Type, AppointmentID: msg.AppointmentID, Payload: payload, CreatedAt: msg.OccurredAt}
}

func TestDispatcherDrainDeliversAndMarks(t *testing.T) {
	box := &fakeOutbox{delivered: map[uuid.UUID]bool{}}
	for i := 0; i < 3; i++ {
		box.pending = append(box.pending, outboxEntry(t, newEvent(EventNewAppointment)))
	}
	pub := &recordingPublisher{}
	d := newDispatcher(box, pub, nil).WithBatchSize(2)

	assert.Equal(t, 2, d.Drain(context.Background()))
	assert.Equal(t, 1, d.Drain(context.Background()))
	assert.Equal(t, 0, d.Drain(context.Background()))
	assert.Len(t, pub.received(), 3)
}

func TestDispatcherKeepsFailedEntriesPending(t *testing.T) {
	log, hook := test.NewNullLogger()
	box := &fakeOutbox{delivered: map[uuid.UUID]bool{}}
	entry := outboxEntry(t, newEvent(EventAppointmentUpdate))
	box.pending = append(box.pending, entry)

	failing := PublisherFunc(func(context.Context, Message) error { return errors.New("redis down") })
	d := newDispatcher(box, failing, log)

	assert.Equal(t, 0, d.Drain(context.Background()))
	assert.False(t, box.delivered[entry.ID])
	assert.Equal(t, "outbox delivery failed", hook.LastEntry().Message)

	pub := &recordingPublisher{}
	d = newDispatcher(box, pub, log)
	assert.Equal(t, 1, d.Drain(context.Background()))
	require.Len(t, pub.received(), 1)
	assert.Equal(t, entry.AppointmentID, pub.received()[0].AppointmentID)
}

func TestDispatcherRetiresCorruptPayload(t *testing.T) {
	log, _ := test.NewNullLogger()
	id := uuid.New()
	box := &fakeOutbox{
		delivered: map[uuid.UUID]bool{},
		pending:   []OutboxEntry{{ID: id, EventType: EventNewAppointment, Payload: []byte("{not json")}},
	}
	pub := &recordingPublisher{}

	assert.Equal(t, 0, newDispatcher(box, pub, log).Drain(context.Background()))
	assert.True(t, box.delivered[id])
	assert.Empty(t, pub.received())
}

func TestDispatcherStartStopsWithContext(t *testing.T) {
	box := &fakeOutbox{delivered: map[uuid.UUID]bool{}}
	box.pending = append(box.pending, outboxEntry(t, newEvent(EventNewAppointment)))
	pub := &recordingPublisher{}
	d := newDispatcher(box, pub, nil).WithInterval(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(pub.received()) == 1 }, time.Second, 10*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop")
	}
}
