package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/hackgods/care-scheduling/internal/slot"
)

func publishSlotsHandler(svc *slot.Service, loc *time.Location) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, err := uuidParam(r, "doctorID")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", err.Error())
			return
		}

		var req PublishSlotsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if len(req.DateTimes) == 0 {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "date_times must not be empty")
			return
		}

		instants := make([]time.Time, 0, len(req.DateTimes))
		for _, raw := range req.DateTimes {
			at, err := parseInstant(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_date_time", err.Error())
				return
			}
			instants = append(instants, at)
		}

		slots, err := svc.Publish(r.Context(), doctorID, instants)
		if err != nil {
			handlePublishError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, SlotsResponse{
			DoctorID: doctorID,
			Slots:    toSlotResponses(slots, loc),
		})
	}
}

func handlePublishError(w http.ResponseWriter, r *http.Request, err error) {
	var invalid *slot.InvalidSlotError
	if errors.As(err, &invalid) {
		rejected := make([]RejectionResponse, 0, len(invalid.Rejected))
		for _, rj := range invalid.Rejected {
			rejected = append(rejected, RejectionResponse{
				DateTime: rj.DateTime.Format(time.RFC3339),
				Reason:   rj.Reason,
			})
		}
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:    "invalid_slot",
			Details:  "no slots were published",
			Rejected: rejected,
		})
		return
	}
	writeInternal(w, r, err)
}

// dayHandler serves the per-day slot reads. all selects the full listing
// instead of availability.
func dayHandler(svc *slot.Service, loc *time.Location, all bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, err := uuidParam(r, "doctorID")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", err.Error())
			return
		}

		date := r.URL.Query().Get("date")
		if date == "" {
			writeError(w, http.StatusBadRequest, "invalid_date", "date query parameter is required (YYYY-MM-DD)")
			return
		}
		day, err := slot.ParseDay(date, loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
			return
		}

		var slots []slot.Slot
		if all {
			slots, err = svc.Slots(r.Context(), doctorID, day)
		} else {
			slots, err = svc.Available(r.Context(), doctorID, day)
		}
		if err != nil {
			writeInternal(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, SlotsResponse{
			DoctorID: doctorID,
			Date:     day.String(),
			Slots:    toSlotResponses(slots, loc),
		})
	}
}

func listSlotsHandler(svc *slot.Service, loc *time.Location) http.HandlerFunc {
	return dayHandler(svc, loc, true)
}

func availabilityHandler(svc *slot.Service, loc *time.Location) http.HandlerFunc {
	return dayHandler(svc, loc, false)
}
