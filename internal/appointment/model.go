package appointment

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusDelayed   Status = "delayed"
	StatusCompleted Status = "completed"
)

func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusDelayed, StatusCompleted:
		return st, nil
	}
	return "", fmt.Errorf("unknown appointment status %q", s)
}

// Terminal statuses accept no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

// Role is the kind of actor requesting a transition.
type Role string

const (
	RoleDoctor  Role = "doctor"
	RoleStaff   Role = "staff"
	RolePatient Role = "patient"
	RoleSystem  Role = "system"
)

func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleDoctor, RoleStaff, RolePatient, RoleSystem:
		return r, nil
	}
	return "", fmt.Errorf("unknown actor role %q", s)
}

type Appointment struct {
	ID           uuid.UUID
	DoctorID     uuid.UUID
	PatientID    uuid.UUID
	SlotDateTime time.Time
	Status       Status
	Reason       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Active reports whether the appointment still holds its slot.
func (a Appointment) Active() bool {
	return a.Status != StatusCancelled
}

// Filter narrows List. Zero fields match everything.
type Filter struct {
	DoctorID  uuid.UUID
	PatientID uuid.UUID
	Status    Status
}

func (f Filter) matches(a *Appointment) bool {
	if f.DoctorID != uuid.Nil && a.DoctorID != f.DoctorID {
		return false
	}
	if f.PatientID != uuid.Nil && a.PatientID != f.PatientID {
		return false
	}
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	return true
}

var staffRoles = []Role{RoleDoctor, RoleStaff}

// transitions maps from -> to -> roles allowed to make the move.
var transitions = map[Status]map[Status][]Role{
	StatusPending: {
		StatusConfirmed: staffRoles,
		StatusCancelled: staffRoles,
		StatusDelayed:   staffRoles,
	},
	StatusConfirmed: {
		StatusCompleted: {RoleSystem},
		StatusCancelled: staffRoles,
	},
	StatusDelayed: {
		StatusConfirmed: staffRoles,
		StatusCancelled: staffRoles,
	},
}

// CanTransition reports whether role may move an appointment from one status to another.
func CanTransition(from, to Status, role Role) bool {
	for _, r := range transitions[from][to] {
		if r == role {
			return true
		}
	}
	return false
}
