package slot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/care-scheduling/internal/db"
)

type PgStore struct {
	pool db.Pool
	now  Clock
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	if pool == nil {
		panic("slot: pgx pool required")
	}
	return &PgStore{pool: pool, now: time.Now}
}

func newPgStoreWithPool(pool db.Pool, now Clock) *PgStore {
	if now == nil {
		now = time.Now
	}
	return &PgStore{pool: pool, now: now}
}

const slotColumns = `doctor_id, date_time, is_booked, booked_at, created_at`

func scanSlot(row pgx.Row) (*Slot, error) {
	var s Slot
	var bookedAt *time.Time

	err := row.Scan(
		&s.DoctorID,
		&s.DateTime,
		&s.IsBooked,
		&bookedAt,
		&s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}

	s.DateTime = s.DateTime.UTC()
	s.BookedAt = bookedAt
	return &s, nil
}

func scanSlots(rows pgx.Rows) ([]Slot, error) {
	defer rows.Close()

	var result []Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Publish runs in one transaction. Existing rows are read first so every
// offender can be reported; ON CONFLICT catches a concurrent publish that
// slipped in between the read and the insert.
func (p *PgStore) Publish(ctx context.Context, doctorID uuid.UUID, instants []time.Time) ([]Slot, error) {
	var out []Slot
	err := db.InTx(ctx, p.pool, func(tx pgx.Tx) error {
		existing, err := existingInstants(ctx, tx, doctorID, instants)
		if err != nil {
			return err
		}

		accepted, err := validatePublish(doctorID, instants, p.now(), func(at time.Time) bool {
			_, ok := existing[at.Unix()]
			return ok
		})
		if err != nil {
			return err
		}

		out = make([]Slot, 0, len(accepted))
		var raced []Rejection
		for _, at := range accepted {
			row := tx.QueryRow(ctx, `
				INSERT INTO slots (doctor_id, date_time, is_booked, created_at)
				VALUES ($1, $2, false, now())
				ON CONFLICT (doctor_id, date_time) DO NOTHING
				RETURNING `+slotColumns, doctorID, at)
			s, err := scanSlot(row)
			if errors.Is(err, ErrSlotNotFound) {
				raced = append(raced, Rejection{DateTime: at, Reason: ReasonDuplicate})
				continue
			}
			if err != nil {
				return fmt.Errorf("insert slot: %w", err)
			}
			out = append(out, *s)
		}
		if len(raced) > 0 {
			return &InvalidSlotError{DoctorID: doctorID, Rejected: raced}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func existingInstants(ctx context.Context, tx pgx.Tx, doctorID uuid.UUID, instants []time.Time) (map[int64]struct{}, error) {
	candidates := make([]time.Time, 0, len(instants))
	for _, t := range instants {
		if !t.IsZero() {
			candidates = append(candidates, Canonical(t))
		}
	}

	rows, err := tx.Query(ctx, `
		SELECT date_time
		FROM slots
		WHERE doctor_id = $1
		  AND date_time = ANY($2)
	`, doctorID, candidates)
	if err != nil {
		return nil, fmt.Errorf("load existing slots: %w", err)
	}
	defer rows.Close()

	existing := make(map[int64]struct{})
	for rows.Next() {
		var at time.Time
		if err := rows.Scan(&at); err != nil {
			return nil, fmt.Errorf("scan existing slot: %w", err)
		}
		existing[at.Unix()] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load existing slots: %w", err)
	}
	return existing, nil
}

func (p *PgStore) Query(ctx context.Context, doctorID uuid.UUID, day Day) ([]Slot, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+slotColumns+`
		FROM slots
		WHERE doctor_id = $1
		  AND date_time >= $2
		  AND date_time < $3
		ORDER BY date_time ASC
	`, doctorID, day.Start(), day.End())
	if err != nil {
		return nil, fmt.Errorf("query slots: %w", err)
	}
	return scanSlots(rows)
}

// MarkBooked is a conditional update keyed on is_booked = false, so Postgres
// row locking decides the winner between concurrent bookers.
func (p *PgStore) MarkBooked(ctx context.Context, doctorID uuid.UUID, at time.Time) (*Slot, error) {
	at = Canonical(at)
	row := p.pool.QueryRow(ctx, `
		UPDATE slots
		SET is_booked = true,
		    booked_at = now()
		WHERE doctor_id = $1
		  AND date_time = $2
		  AND is_booked = false
		RETURNING `+slotColumns, doctorID, at)

	s, err := scanSlot(row)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, ErrSlotNotFound) {
		return nil, fmt.Errorf("mark slot booked: %w", err)
	}

	// No row updated: either the slot does not exist or someone holds it.
	var booked bool
	err = p.pool.QueryRow(ctx, `
		SELECT is_booked
		FROM slots
		WHERE doctor_id = $1
		  AND date_time = $2
	`, doctorID, at).Scan(&booked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, fmt.Errorf("check slot: %w", err)
	}
	return nil, ErrSlotAlreadyBooked
}

func (p *PgStore) MarkFree(ctx context.Context, doctorID uuid.UUID, at time.Time) error {
	tag, err := p.pool.Exec(ctx, `
		UPDATE slots
		SET is_booked = false,
		    booked_at = NULL
		WHERE doctor_id = $1
		  AND date_time = $2
	`, doctorID, Canonical(at))
	if err != nil {
		return fmt.Errorf("mark slot free: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotNotFound
	}
	return nil
}

func (p *PgStore) MarkFreeIfBookedAt(ctx context.Context, doctorID uuid.UUID, at, bookedAt time.Time) (bool, error) {
	tag, err := p.pool.Exec(ctx, `
		UPDATE slots
		SET is_booked = false,
		    booked_at = NULL
		WHERE doctor_id = $1
		  AND date_time = $2
		  AND is_booked
		  AND booked_at = $3
	`, doctorID, Canonical(at), bookedAt)
	if err != nil {
		return false, fmt.Errorf("release slot: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (p *PgStore) ListBookedBetween(ctx context.Context, after, before time.Time, limit int) ([]Slot, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+slotColumns+`
		FROM slots
		WHERE is_booked
		  AND booked_at > $1
		  AND booked_at < $2
		ORDER BY booked_at ASC
		LIMIT $3
	`, after, before, limit)
	if err != nil {
		return nil, fmt.Errorf("list booked slots: %w", err)
	}
	return scanSlots(rows)
}
