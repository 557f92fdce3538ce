// Package directory reads display names from the identity service's tables.
// Scheduling never writes here.
package directory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrDoctorNotFound  = errors.New("doctor not found")
	ErrPatientNotFound = errors.New("patient not found")
)

type Doctor struct {
	ID        uuid.UUID
	Name      string
	Specialty *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Directory resolves ids to display names.
type Directory interface {
	DoctorName(ctx context.Context, id uuid.UUID) (string, error)
	PatientName(ctx context.Context, id uuid.UUID) (string, error)
}

// Memory is an in-process directory for the memory storage driver and tests.
type Memory struct {
	mu       sync.RWMutex
	doctors  map[uuid.UUID]string
	patients map[uuid.UUID]string
}

func NewMemory() *Memory {
	return &Memory{
		doctors:  make(map[uuid.UUID]string),
		patients: make(map[uuid.UUID]string),
	}
}

func (m *Memory) AddDoctor(id uuid.UUID, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.doctors[id] = name
}

func (m *Memory) AddPatient(id uuid.UUID, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patients[id] = name
}

func (m *Memory) DoctorName(_ context.Context, id uuid.UUID) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	name, ok := m.doctors[id]
	if !ok {
		return "", ErrDoctorNotFound
	}
	return name, nil
}

func (m *Memory) PatientName(_ context.Context, id uuid.UUID) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	name, ok := m.patients[id]
	if !ok {
		return "", ErrPatientNotFound
	}
	return name, nil
}
