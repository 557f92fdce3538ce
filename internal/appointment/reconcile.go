package appointment

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/hackgods/care-scheduling/internal/metrics"
	"github.com/hackgods/care-scheduling/internal/slot"
)

// SlotScanner lists booked slots for the reconciler.
type SlotScanner interface {
	ListBookedBetween(ctx context.Context, after, before time.Time, limit int) ([]slot.Slot, error)
	MarkFreeIfBookedAt(ctx context.Context, doctorID uuid.UUID, at, bookedAt time.Time) (bool, error)
}

// Reconciler frees slots left booked with no live appointment, which happens
// when a process dies between markBooked and the insert, or between a
// cancellation and its markFree.
type Reconciler struct {
	slots     SlotScanner
	repo      Repository
	grace     time.Duration
	batchSize int
	now       slot.Clock
	log       logrus.FieldLogger
	metrics   *metrics.Metrics

	mu     sync.Mutex
	cursor time.Time
}

func NewReconciler(slots SlotScanner, repo Repository, grace time.Duration, log logrus.FieldLogger, m *metrics.Metrics) *Reconciler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if grace <= 0 {
		grace = time.Minute
	}
	return &Reconciler{
		slots:     slots,
		repo:      repo,
		grace:     grace,
		batchSize: 100,
		now:       time.Now,
		log:       log,
		metrics:   m,
	}
}

// RunOnce checks one batch of slots booked before now-grace and returns how
// many it released. Successive calls walk forward through older bookings and
// start over once a short batch shows the end was reached.
func (r *Reconciler) RunOnce(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-r.grace)
	booked, err := r.slots.ListBookedBetween(ctx, r.cursor, cutoff, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("list booked slots: %w", err)
	}
	if len(booked) < r.batchSize {
		r.cursor = time.Time{}
	} else if last := booked[len(booked)-1].BookedAt; last != nil {
		r.cursor = *last
	}

	released := 0
	for _, sl := range booked {
		if sl.BookedAt == nil {
			continue
		}
		active, err := r.repo.HasActive(ctx, sl.DoctorID, sl.DateTime)
		if err != nil {
			r.log.WithError(err).WithField("doctor_id", sl.DoctorID).Error("reconcile: active check failed")
			continue
		}
		if active {
			continue
		}
		// The booking may have been cancelled and the slot rebooked since it
		// was listed; only the booking seen here is released.
		ok, err := r.slots.MarkFreeIfBookedAt(ctx, sl.DoctorID, sl.DateTime, *sl.BookedAt)
		if err != nil {
			r.log.WithError(err).WithField("doctor_id", sl.DoctorID).Error("reconcile: release failed")
			continue
		}
		if !ok {
			continue
		}
		released++
		r.log.WithFields(logrus.Fields{
			"doctor_id":      sl.DoctorID,
			"slot_date_time": sl.DateTime,
		}).Warn("released orphaned slot")
	}

	r.metrics.ObserveReconciled(released)
	return released, nil
}

// Start runs RunOnce every interval until ctx is done.
func (r *Reconciler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil {
				r.log.WithError(err).Error("reconcile pass failed")
			}
		}
	}
}
