package appointment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/hackgods/care-scheduling/internal/notify"
	"github.com/hackgods/care-scheduling/internal/slot"
)

// Transition moves the appointment to status to on behalf of role. A refused
// move returns a *TransitionError and leaves the stored status unchanged.
// Cancelling releases the slot.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, role Role, to Status) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "appointment.Transition", trace.WithAttributes(
		attribute.String("appointment_id", id.String()),
		attribute.String("role", string(role)),
		attribute.String("to", string(to)),
	))
	defer span.End()

	current, err := s.repo.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrAppointmentNotFound) {
			span.RecordError(err)
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	if !CanTransition(current.Status, to, role) {
		s.metrics.ObserveTransition(string(current.Status), string(to), "rejected")
		return nil, &TransitionError{ID: id, From: current.Status, To: to, Role: role}
	}

	updated, err := s.repo.UpdateStatus(ctx, id, current.Status, to)
	if err != nil {
		if errors.Is(err, ErrStatusChanged) {
			s.metrics.ObserveTransition(string(current.Status), string(to), "conflict")
			return nil, &TransitionError{ID: id, From: current.Status, To: to, Role: role}
		}
		span.RecordError(err)
		s.metrics.ObserveTransition(string(current.Status), string(to), "error")
		return nil, fmt.Errorf("update appointment status: %w", err)
	}
	s.metrics.ObserveTransition(string(current.Status), string(to), "ok")

	fields := logrus.Fields{
		"appointment_id": id,
		"from":           current.Status,
		"to":             to,
		"role":           role,
	}

	if to == StatusCancelled {
		s.releaseSlot(ctx, updated)
	}

	s.log.WithFields(fields).Info("appointment transitioned")
	s.emitter.Emit(ctx, s.event(notify.EventAppointmentUpdate, updated))
	return updated, nil
}

// releaseSlot frees a cancelled appointment's slot. The cancellation has
// already committed, so a failure here is logged and left to the reconciler.
func (s *Service) releaseSlot(ctx context.Context, a *Appointment) {
	err := s.slots.MarkFree(context.WithoutCancel(ctx), a.DoctorID, a.SlotDateTime)
	if err == nil {
		return
	}
	entry := s.log.WithError(err).WithFields(logrus.Fields{
		"appointment_id": a.ID,
		"doctor_id":      a.DoctorID,
		"slot_date_time": a.SlotDateTime,
	})
	if errors.Is(err, slot.ErrSlotNotFound) {
		entry.Warn("cancelled appointment references a missing slot")
		return
	}
	entry.Error("failed to release slot after cancellation")
}
