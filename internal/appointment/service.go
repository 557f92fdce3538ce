package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"github.com/hackgods/care-scheduling/internal/metrics"
	"github.com/hackgods/care-scheduling/internal/notify"
	redisclient "github.com/hackgods/care-scheduling/internal/redis"
	"github.com/hackgods/care-scheduling/internal/slot"
)

var tracer = otel.Tracer("github.com/hackgods/care-scheduling/internal/appointment")

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// SlotBooker is the part of the slot store the booking engine and the
// lifecycle manager write through.
type SlotBooker interface {
	MarkBooked(ctx context.Context, doctorID uuid.UUID, at time.Time) (*slot.Slot, error)
	MarkFree(ctx context.Context, doctorID uuid.UUID, at time.Time) error
}

// Service is the booking engine and lifecycle manager. It is the only writer
// of appointments and the only caller that books slots.
type Service struct {
	repo    Repository
	slots   SlotBooker
	locker  redisclient.Locker
	emitter notify.Emitter
	now     slot.Clock
	log     logrus.FieldLogger
	metrics *metrics.Metrics
}

type Option func(*Service)

// WithLocker puts a per-slot lock in front of markBooked so racing bookers
// are turned away before they reach the store.
func WithLocker(l redisclient.Locker) Option {
	return func(s *Service) { s.locker = l }
}

func WithEmitter(e notify.Emitter) Option {
	return func(s *Service) {
		if e != nil {
			s.emitter = e
		}
	}
}

func WithClock(now slot.Clock) Option {
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

func NewService(repo Repository, slots SlotBooker, opts ...Option) *Service {
	s := &Service{
		repo:    repo,
		slots:   slots,
		emitter: notify.Nop{},
		now:     time.Now,
		log:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns a single appointment.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return a, nil
}

// NormalizePage returns the limit and offset List actually applies.
func NormalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// List returns appointments matching f ordered by slot time.
func (s *Service) List(ctx context.Context, f Filter, limit, offset int) ([]Appointment, error) {
	limit, offset = NormalizePage(limit, offset)
	list, err := s.repo.List(ctx, f, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return list, nil
}

func (s *Service) event(t notify.EventType, a *Appointment) notify.Event {
	return notify.Event{
		Type:          t,
		AppointmentID: a.ID,
		DoctorID:      a.DoctorID,
		PatientID:     a.PatientID,
		Status:        string(a.Status),
		SlotDateTime:  a.SlotDateTime,
		OccurredAt:    s.now().UTC(),
	}
}
