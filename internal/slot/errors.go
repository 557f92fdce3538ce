package slot

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidSlot       = errors.New("invalid slot")
	ErrSlotNotFound      = errors.New("slot not found")
	ErrSlotAlreadyBooked = errors.New("slot already booked")
)

// Rejection reasons reported by InvalidSlotError.
const (
	ReasonMissing   = "missing_time"
	ReasonPast      = "in_past"
	ReasonDuplicate = "duplicate"
)

type Rejection struct {
	DateTime time.Time
	Reason   string
}

// InvalidSlotError lists every instant refused by a publish call.
// Nothing from the call was stored.
type InvalidSlotError struct {
	DoctorID uuid.UUID
	Rejected []Rejection
}

func (e *InvalidSlotError) Error() string {
	parts := make([]string, 0, len(e.Rejected))
	for _, r := range e.Rejected {
		parts = append(parts, fmt.Sprintf("%s (%s)", r.DateTime.Format(time.RFC3339), r.Reason))
	}
	return fmt.Sprintf("invalid slot for doctor %s: %s", e.DoctorID, strings.Join(parts, ", "))
}

func (e *InvalidSlotError) Is(target error) bool {
	return target == ErrInvalidSlot
}

// validatePublish canonicalises the requested instants and checks each against now,
// against the rest of the request and against exists. It returns the accepted
// instants in ascending order, or an *InvalidSlotError naming every offender.
func validatePublish(doctorID uuid.UUID, instants []time.Time, now time.Time, exists func(time.Time) bool) ([]time.Time, error) {
	seen := make(map[int64]struct{}, len(instants))
	accepted := make([]time.Time, 0, len(instants))
	var rejected []Rejection

	for _, raw := range instants {
		if raw.IsZero() {
			rejected = append(rejected, Rejection{DateTime: raw, Reason: ReasonMissing})
			continue
		}
		at := Canonical(raw)
		if !at.After(now) {
			rejected = append(rejected, Rejection{DateTime: at, Reason: ReasonPast})
			continue
		}
		if _, dup := seen[at.Unix()]; dup {
			rejected = append(rejected, Rejection{DateTime: at, Reason: ReasonDuplicate})
			continue
		}
		seen[at.Unix()] = struct{}{}
		if exists != nil && exists(at) {
			rejected = append(rejected, Rejection{DateTime: at, Reason: ReasonDuplicate})
			continue
		}
		accepted = append(accepted, at)
	}

	if len(rejected) > 0 {
		return nil, &InvalidSlotError{DoctorID: doctorID, Rejected: rejected}
	}

	sort.Slice(accepted, func(i, j int) bool { return accepted[i].Before(accepted[j]) })
	return accepted, nil
}
