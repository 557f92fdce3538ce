package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrSlotUnavailable     = errors.New("slot no longer available, please pick another")
	ErrInvalidTransition   = errors.New("invalid status transition")

	// ErrStatusChanged is returned by UpdateStatus when the stored status no
	// longer matches the expected one.
	ErrStatusChanged = errors.New("appointment status changed concurrently")
)

// TransitionError describes a refused lifecycle move.
type TransitionError struct {
	ID   uuid.UUID
	From Status
	To   Status
	Role Role
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid status transition for appointment %s: %s -> %s by %s", e.ID, e.From, e.To, e.Role)
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// Repository persists appointment records. Records are never deleted.
type Repository interface {
	// Create stores a new appointment. It returns ErrSlotUnavailable if a
	// non-cancelled appointment already holds the same slot.
	Create(ctx context.Context, a *Appointment) error
	Get(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// UpdateStatus moves the appointment from -> to only if it is still in from.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error)

	List(ctx context.Context, f Filter, limit, offset int) ([]Appointment, error)

	// HasActive reports whether a non-cancelled appointment holds the slot.
	HasActive(ctx context.Context, doctorID uuid.UUID, at time.Time) (bool, error)
}
