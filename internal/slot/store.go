package slot

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store is the durable record of published slots. It is the only place
// booked state changes, and MarkBooked is its single atomic check-and-set.
type Store interface {
	// Publish stores every instant as a free slot, or none of them.
	// Offending instants come back in an *InvalidSlotError.
	Publish(ctx context.Context, doctorID uuid.UUID, instants []time.Time) ([]Slot, error)

	// Query returns all slots for the doctor on day, ascending by DateTime.
	Query(ctx context.Context, doctorID uuid.UUID, day Day) ([]Slot, error)

	// MarkBooked flips a free slot to booked. Exactly one of several concurrent
	// callers for the same slot succeeds; the rest get ErrSlotAlreadyBooked.
	MarkBooked(ctx context.Context, doctorID uuid.UUID, at time.Time) (*Slot, error)

	// MarkFree releases a slot. Releasing a free slot is a no-op.
	MarkFree(ctx context.Context, doctorID uuid.UUID, at time.Time) error

	// MarkFreeIfBookedAt releases a slot only while it still carries the
	// booking stamped at bookedAt, and reports whether it did. A slot that was
	// freed or rebooked since is left alone.
	MarkFreeIfBookedAt(ctx context.Context, doctorID uuid.UUID, at, bookedAt time.Time) (bool, error)

	// ListBookedBetween returns booked slots with after < BookedAt < before,
	// oldest booking first. A zero after means no lower bound.
	ListBookedBetween(ctx context.Context, after, before time.Time, limit int) ([]Slot, error)
}
