package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hackgods/care-scheduling/internal/metrics"
	"github.com/hackgods/care-scheduling/internal/notify"
	redisclient "github.com/hackgods/care-scheduling/internal/redis"
	"github.com/hackgods/care-scheduling/internal/slot"
)

// Book claims the doctor's slot at the given instant for the patient and
// creates a pending appointment. A slot that is already taken, or is no
// longer in the future, yields ErrSlotUnavailable; the caller should re-read
// availability and pick again.
func (s *Service) Book(ctx context.Context, doctorID, patientID uuid.UUID, at time.Time, reason string) (*Appointment, error) {
	at = slot.Canonical(at)
	ctx, span := tracer.Start(ctx, "appointment.Book", trace.WithAttributes(
		attribute.String("doctor_id", doctorID.String()),
		attribute.String("slot_date_time", at.Format(time.RFC3339)),
	))
	defer span.End()

	start := time.Now()
	appt, err := s.book(ctx, doctorID, patientID, at, reason)
	s.metrics.ObserveBooking(bookingResult(err), time.Since(start).Seconds())

	fields := logrus.Fields{
		"doctor_id":      doctorID,
		"patient_id":     patientID,
		"slot_date_time": at,
	}
	if err != nil {
		if !errors.Is(err, ErrSlotUnavailable) && !errors.Is(err, slot.ErrSlotNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			s.log.WithError(err).WithFields(fields).Error("booking failed")
		} else {
			s.log.WithError(err).WithFields(fields).Info("booking refused")
		}
		return nil, err
	}

	s.log.WithFields(fields).WithField("appointment_id", appt.ID).Info("appointment booked")
	s.emitter.Emit(ctx, s.event(notify.EventNewAppointment, appt))
	return appt, nil
}

func (s *Service) book(ctx context.Context, doctorID, patientID uuid.UUID, at time.Time, reason string) (*Appointment, error) {
	if at.IsZero() {
		return nil, slot.ErrSlotNotFound
	}
	if !at.After(s.now()) {
		return nil, ErrSlotUnavailable
	}

	var created *Appointment
	commit := func(ctx context.Context) error {
		a, err := s.commit(ctx, doctorID, patientID, at, reason)
		created = a
		return err
	}

	if s.locker == nil {
		return created, commit(ctx)
	}

	ran := false
	err := s.locker.WithSlotLock(ctx, doctorID, at, func(lockCtx context.Context) error {
		ran = true
		return commit(lockCtx)
	})
	switch {
	case errors.Is(err, redisclient.ErrLockNotAcquired):
		return nil, ErrSlotUnavailable
	case err != nil && !ran:
		// lock backend down; markBooked alone still guarantees a single winner
		s.log.WithError(err).Warn("slot lock unavailable, booking without it")
		return created, commit(ctx)
	}
	return created, err
}

// commit is markBooked followed by the appointment insert, with markFree as
// the rollback when the insert fails.
func (s *Service) commit(ctx context.Context, doctorID, patientID uuid.UUID, at time.Time, reason string) (*Appointment, error) {
	if _, err := s.slots.MarkBooked(ctx, doctorID, at); err != nil {
		if errors.Is(err, slot.ErrSlotAlreadyBooked) {
			return nil, ErrSlotUnavailable
		}
		return nil, err
	}

	now := s.now().UTC()
	appt := &Appointment{
		ID:           uuid.New(),
		DoctorID:     doctorID,
		PatientID:    patientID,
		SlotDateTime: at,
		Status:       StatusPending,
		Reason:       reason,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.repo.Create(ctx, appt); err != nil {
		if errors.Is(err, ErrSlotUnavailable) {
			// a live appointment already holds the slot, so booked is correct
			return nil, err
		}
		if freeErr := s.slots.MarkFree(context.WithoutCancel(ctx), doctorID, at); freeErr != nil {
			s.log.WithError(freeErr).WithFields(logrus.Fields{
				"doctor_id":      doctorID,
				"slot_date_time": at,
			}).Error("failed to release slot after appointment insert failed")
		}
		return nil, fmt.Errorf("create appointment: %w", err)
	}
	return appt, nil
}

func bookingResult(err error) string {
	switch {
	case err == nil:
		return metrics.BookingSuccess
	case errors.Is(err, ErrSlotUnavailable):
		return metrics.BookingUnavailable
	case errors.Is(err, slot.ErrSlotNotFound):
		return metrics.BookingNotFound
	default:
		return metrics.BookingError
	}
}
