package appointment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type slotRef struct {
	doctorID uuid.UUID
	unix     int64
}

// MemoryRepository keeps appointments in process. The active index enforces
// one non-cancelled appointment per slot, like the partial unique index does
// in Postgres.
type MemoryRepository struct {
	mu     sync.RWMutex
	byID   map[uuid.UUID]*Appointment
	active map[slotRef]uuid.UUID
	now    func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:   make(map[uuid.UUID]*Appointment),
		active: make(map[slotRef]uuid.UUID),
		now:    time.Now,
	}
}

func refOf(doctorID uuid.UUID, at time.Time) slotRef {
	return slotRef{doctorID: doctorID, unix: at.Unix()}
}

func (m *MemoryRepository) Create(ctx context.Context, a *Appointment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	ref := refOf(a.DoctorID, a.SlotDateTime)
	if a.Active() {
		if _, taken := m.active[ref]; taken {
			return ErrSlotUnavailable
		}
		m.active[ref] = a.ID
	}
	stored := *a
	m.byID[a.ID] = &stored
	return nil
}

func (m *MemoryRepository) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.byID[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	out := *a
	return &out, nil
}

func (m *MemoryRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.byID[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if a.Status != from {
		return nil, ErrStatusChanged
	}

	ref := refOf(a.DoctorID, a.SlotDateTime)
	if a.Active() && to == StatusCancelled {
		delete(m.active, ref)
	}
	a.Status = to
	a.UpdatedAt = m.now().UTC()

	out := *a
	return &out, nil
}

func (m *MemoryRepository) List(ctx context.Context, f Filter, limit, offset int) ([]Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	matched := make([]Appointment, 0)
	for _, a := range m.byID {
		if f.matches(a) {
			matched = append(matched, *a)
		}
	}
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].SlotDateTime.Equal(matched[j].SlotDateTime) {
			return matched[i].SlotDateTime.Before(matched[j].SlotDateTime)
		}
		return matched[i].ID.String() < matched[j].ID.String()
	})

	if offset >= len(matched) {
		return []Appointment{}, nil
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, nil
}

func (m *MemoryRepository) HasActive(ctx context.Context, doctorID uuid.UUID, at time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.active[refOf(doctorID, at)]
	return ok, nil
}
