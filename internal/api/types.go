package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/care-scheduling/internal/appointment"
	"github.com/hackgods/care-scheduling/internal/slot"
)

type PublishSlotsRequest struct {
	DateTimes []string `json:"date_times"`
}

type SlotResponse struct {
	DoctorID uuid.UUID `json:"doctor_id"`
	DateTime time.Time `json:"date_time"`
	Label    string    `json:"label"`
	IsBooked bool      `json:"is_booked"`
}

type SlotsResponse struct {
	DoctorID uuid.UUID      `json:"doctor_id"`
	Date     string         `json:"date,omitempty"`
	Slots    []SlotResponse `json:"slots"`
}

type RejectionResponse struct {
	DateTime string `json:"date_time"`
	Reason   string `json:"reason"`
}

type CreateAppointmentRequest struct {
	DoctorID     string `json:"doctor_id"`
	PatientID    string `json:"patient_id"`
	SlotDateTime string `json:"slot_date_time"`
	Reason       string `json:"reason"`
}

type TransitionRequest struct {
	ActorRole string `json:"actor_role"`
	Status    string `json:"status"`
}

type AppointmentResponse struct {
	ID           uuid.UUID `json:"id"`
	DoctorID     uuid.UUID `json:"doctor_id"`
	PatientID    uuid.UUID `json:"patient_id"`
	SlotDateTime time.Time `json:"slot_date_time"`
	Status       string    `json:"status"`
	Reason       string    `json:"reason,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type AppointmentListResponse struct {
	Appointments []AppointmentResponse `json:"appointments"`
	Limit        int                   `json:"limit"`
	Offset       int                   `json:"offset"`
}

type ErrorResponse struct {
	Error    string              `json:"error"`
	Details  string              `json:"details,omitempty"`
	Rejected []RejectionResponse `json:"rejected,omitempty"`
}

func toSlotResponses(slots []slot.Slot, loc *time.Location) []SlotResponse {
	out := make([]SlotResponse, 0, len(slots))
	for _, s := range slots {
		out = append(out, SlotResponse{
			DoctorID: s.DoctorID,
			DateTime: s.DateTime,
			Label:    s.Label(loc),
			IsBooked: s.IsBooked,
		})
	}
	return out
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:           a.ID,
		DoctorID:     a.DoctorID,
		PatientID:    a.PatientID,
		SlotDateTime: a.SlotDateTime,
		Status:       string(a.Status),
		Reason:       a.Reason,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}
