package slot

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type slotKey struct {
	doctorID uuid.UUID
	unix     int64
}

func keyOf(doctorID uuid.UUID, at time.Time) slotKey {
	return slotKey{doctorID: doctorID, unix: Canonical(at).Unix()}
}

// MemoryStore keeps slots in process. Used by the memory storage driver and tests.
type MemoryStore struct {
	mu    sync.Mutex
	slots map[slotKey]*Slot
	now   Clock
}

func NewMemoryStore(now Clock) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		slots: make(map[slotKey]*Slot),
		now:   now,
	}
}

func (m *MemoryStore) Publish(ctx context.Context, doctorID uuid.UUID, instants []time.Time) ([]Slot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	accepted, err := validatePublish(doctorID, instants, now, func(at time.Time) bool {
		_, ok := m.slots[keyOf(doctorID, at)]
		return ok
	})
	if err != nil {
		return nil, err
	}

	out := make([]Slot, 0, len(accepted))
	for _, at := range accepted {
		s := &Slot{DoctorID: doctorID, DateTime: at, CreatedAt: now}
		m.slots[keyOf(doctorID, at)] = s
		out = append(out, *s)
	}
	return out, nil
}

func (m *MemoryStore) Query(ctx context.Context, doctorID uuid.UUID, day Day) ([]Slot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Slot
	for k, s := range m.slots {
		if k.doctorID == doctorID && day.Contains(s.DateTime) {
			out = append(out, copySlot(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DateTime.Before(out[j].DateTime) })
	return out, nil
}

func (m *MemoryStore) MarkBooked(ctx context.Context, doctorID uuid.UUID, at time.Time) (*Slot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.slots[keyOf(doctorID, at)]
	if !ok {
		return nil, ErrSlotNotFound
	}
	if s.IsBooked {
		return nil, ErrSlotAlreadyBooked
	}
	bookedAt := m.now()
	s.IsBooked = true
	s.BookedAt = &bookedAt

	out := copySlot(s)
	return &out, nil
}

func (m *MemoryStore) MarkFree(ctx context.Context, doctorID uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.slots[keyOf(doctorID, at)]
	if !ok {
		return ErrSlotNotFound
	}
	s.IsBooked = false
	s.BookedAt = nil
	return nil
}

func (m *MemoryStore) MarkFreeIfBookedAt(ctx context.Context, doctorID uuid.UUID, at, bookedAt time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.slots[keyOf(doctorID, at)]
	if !ok || !s.IsBooked || s.BookedAt == nil || !s.BookedAt.Equal(bookedAt) {
		return false, nil
	}
	s.IsBooked = false
	s.BookedAt = nil
	return true, nil
}

func (m *MemoryStore) ListBookedBetween(ctx context.Context, after, before time.Time, limit int) ([]Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Slot
	for _, s := range m.slots {
		if !s.IsBooked || s.BookedAt == nil {
			continue
		}
		if s.BookedAt.After(after) && s.BookedAt.Before(before) {
			out = append(out, copySlot(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BookedAt.Before(*out[j].BookedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func copySlot(s *Slot) Slot {
	out := *s
	if s.BookedAt != nil {
		t := *s.BookedAt
		out.BookedAt = &t
	}
	return out
}
