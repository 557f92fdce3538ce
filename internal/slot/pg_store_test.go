package slot

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var slotCols = []string{"doctor_id", "date_time", "is_booked", "booked_at", "created_at"}

func newMockStore(t *testing.T) (*PgStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return newPgStoreWithPool(mock, fixedClock), mock
}

func TestPgPublishInsertsInOneTransaction(t *testing.T) {
	store, mock := newMockStore(t)
	doctor := uuid.New()
	nine := time.Date(2025, 4, 10, 9, 0, 0, 0, time.UTC)
	ten := time.Date(2025, 4, 10, 10, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT date_time").
		WithArgs(doctor, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"date_time"}))
	mock.ExpectQuery("INSERT INTO slots").
		WithArgs(doctor, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(slotCols).AddRow(doctor, nine, false, (*time.Time)(nil), fixedNow))
	mock.ExpectQuery("INSERT INTO slots").
		WithArgs(doctor, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(slotCols).AddRow(doctor, ten, false, (*time.Time)(nil), fixedNow))
	mock.ExpectCommit()

	slots, err := store.Publish(context.Background(), doctor, []time.Time{ten, nine})
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.True(t, slots[0].DateTime.Equal(nine))
	assert.Nil(t, slots[0].BookedAt)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgPublishRejectsExistingWithoutInsert(t *testing.T) {
	store, mock := newMockStore(t)
	doctor := uuid.New()
	nine := time.Date(2025, 4, 10, 9, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT date_time").
		WithArgs(doctor, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"date_time"}).AddRow(nine))
	mock.ExpectRollback()

	_, err := store.Publish(context.Background(), doctor, []time.Time{nine, nine.Add(time.Hour)})
	var invalid *InvalidSlotError
	require.ErrorAs(t, err, &invalid)
	require.Len(t, invalid.Rejected, 1)
	assert.Equal(t, ReasonDuplicate, invalid.Rejected[0].Reason)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgPublishConcurrentDuplicateRollsBack(t *testing.T) {
	store, mock := newMockStore(t)
	doctor := uuid.New()
	nine := time.Date(2025, 4, 10, 9, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT date_time").
		WithArgs(doctor, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"date_time"}))
	mock.ExpectQuery("INSERT INTO slots").
		WithArgs(doctor, pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, err := store.Publish(context.Background(), doctor, []time.Time{nine})
	require.ErrorIs(t, err, ErrInvalidSlot)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgMarkBooked(t *testing.T) {
	store, mock := newMockStore(t)
	doctor := uuid.New()
	at := time.Date(2025, 4, 10, 9, 0, 0, 0, time.UTC)
	bookedAt := fixedNow

	mock.ExpectQuery("UPDATE slots").
		WithArgs(doctor, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(slotCols).AddRow(doctor, at, true, &bookedAt, fixedNow))

	s, err := store.MarkBooked(context.Background(), doctor, at)
	require.NoError(t, err)
	assert.True(t, s.IsBooked)
	require.NotNil(t, s.BookedAt)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgMarkBookedDistinguishesLossFromMissing(t *testing.T) {
	store, mock := newMockStore(t)
	doctor := uuid.New()
	at := time.Date(2025, 4, 10, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery("UPDATE slots").
		WithArgs(doctor, pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("SELECT is_booked").
		WithArgs(doctor, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"is_booked"}).AddRow(true))

	_, err := store.MarkBooked(context.Background(), doctor, at)
	require.ErrorIs(t, err, ErrSlotAlreadyBooked)

	mock.ExpectQuery("UPDATE slots").
		WithArgs(doctor, pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("SELECT is_booked").
		WithArgs(doctor, pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)

	_, err = store.MarkBooked(context.Background(), doctor, at)
	require.ErrorIs(t, err, ErrSlotNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgMarkFree(t *testing.T) {
	store, mock := newMockStore(t)
	doctor := uuid.New()
	at := time.Date(2025, 4, 10, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec("UPDATE slots").
		WithArgs(doctor, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, store.MarkFree(context.Background(), doctor, at))

	mock.ExpectExec("UPDATE slots").
		WithArgs(doctor, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	require.ErrorIs(t, store.MarkFree(context.Background(), doctor, at), ErrSlotNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgMarkFreeIfBookedAt(t *testing.T) {
	store, mock := newMockStore(t)
	doctor := uuid.New()
	at := time.Date(2025, 4, 10, 9, 0, 0, 0, time.UTC)
	bookedAt := fixedNow.Add(-time.Hour)

	mock.ExpectExec(`(?s)UPDATE slots.*AND is_booked\s+AND booked_at = \$3`).
		WithArgs(doctor, at, bookedAt).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	released, err := store.MarkFreeIfBookedAt(context.Background(), doctor, at, bookedAt)
	require.NoError(t, err)
	assert.True(t, released)

	mock.ExpectExec("UPDATE slots").
		WithArgs(doctor, at, bookedAt).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	released, err = store.MarkFreeIfBookedAt(context.Background(), doctor, at, bookedAt)
	require.NoError(t, err)
	assert.False(t, released, "a rebooked slot matches no row")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgQueryUsesDayBounds(t *testing.T) {
	store, mock := newMockStore(t)
	doctor := uuid.New()
	day := NewDay(2025, time.April, 10, time.UTC)
	nine := time.Date(2025, 4, 10, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT doctor_id").
		WithArgs(doctor, day.Start(), day.End()).
		WillReturnRows(pgxmock.NewRows(slotCols).AddRow(doctor, nine, false, (*time.Time)(nil), fixedNow))

	slots, err := store.Query(context.Background(), doctor, day)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.True(t, slots[0].DateTime.Equal(nine))

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgListBookedBetween(t *testing.T) {
	store, mock := newMockStore(t)
	doctor := uuid.New()
	at := time.Date(2025, 4, 10, 9, 0, 0, 0, time.UTC)
	bookedAt := fixedNow.Add(-time.Hour)
	cutoff := fixedNow.Add(-time.Minute)

	mock.ExpectQuery("booked_at > \\$1").
		WithArgs(time.Time{}, cutoff, 50).
		WillReturnRows(pgxmock.NewRows(slotCols).AddRow(doctor, at, true, &bookedAt, fixedNow))

	slots, err := store.ListBookedBetween(context.Background(), time.Time{}, cutoff, 50)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.True(t, slots[0].IsBooked)
	require.NotNil(t, slots[0].BookedAt)
	assert.True(t, slots[0].BookedAt.Equal(bookedAt))

	require.NoError(t, mock.ExpectationsWereMet())
}
