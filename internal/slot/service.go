package slot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/hackgods/care-scheduling/internal/metrics"
)

var tracer = otel.Tracer("github.com/hackgods/care-scheduling/internal/slot")

// Service is what doctors and patients talk to: doctors publish, patients
// read availability. Booking goes through the appointment package.
type Service struct {
	store   Store
	now     Clock
	log     logrus.FieldLogger
	metrics *metrics.Metrics
}

type Option func(*Service)

func WithClock(now Clock) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store: store,
		now:   time.Now,
		log:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Publish adds the doctor's availability. All-or-nothing.
func (s *Service) Publish(ctx context.Context, doctorID uuid.UUID, instants []time.Time) ([]Slot, error) {
	ctx, span := tracer.Start(ctx, "slot.Publish")
	defer span.End()
	span.SetAttributes(
		attribute.String("doctor_id", doctorID.String()),
		attribute.Int("instants", len(instants)),
	)

	slots, err := s.store.Publish(ctx, doctorID, instants)
	if err != nil {
		var invalid *InvalidSlotError
		if errors.As(err, &invalid) {
			s.metrics.ObservePublish(0, len(invalid.Rejected))
			s.log.WithFields(logrus.Fields{
				"doctor_id": doctorID,
				"rejected":  len(invalid.Rejected),
			}).Info("slot publish rejected")
			return nil, err
		}
		span.RecordError(err)
		return nil, fmt.Errorf("publish slots: %w", err)
	}

	s.metrics.ObservePublish(len(slots), 0)
	s.log.WithFields(logrus.Fields{
		"doctor_id": doctorID,
		"published": len(slots),
	}).Info("slots published")
	return slots, nil
}

// Slots returns every slot (free and booked) for the doctor on day.
func (s *Service) Slots(ctx context.Context, doctorID uuid.UUID, day Day) ([]Slot, error) {
	slots, err := s.store.Query(ctx, doctorID, day)
	if err != nil {
		return nil, fmt.Errorf("query slots: %w", err)
	}
	return slots, nil
}

// Available returns the bookable slots for the doctor on day: free and
// strictly in the future. No slots is an empty, non-nil slice.
func (s *Service) Available(ctx context.Context, doctorID uuid.UUID, day Day) ([]Slot, error) {
	ctx, span := tracer.Start(ctx, "slot.Available")
	defer span.End()

	all, err := s.store.Query(ctx, doctorID, day)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("query slots: %w", err)
	}

	now := s.now()
	free := make([]Slot, 0, len(all))
	for _, sl := range all {
		if sl.IsBooked || !sl.DateTime.After(now) {
			continue
		}
		free = append(free, sl)
	}
	return free, nil
}
