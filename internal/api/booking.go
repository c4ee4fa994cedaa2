package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/tfwellfare/clinic-booking/internal/appointment"
	"github.com/tfwellfare/clinic-booking/internal/availability"
)

func bookAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		date, err := parseDate(req.ScheduledDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_scheduled_date", "scheduled_date must be YYYY-MM-DD")
			return
		}
		start, err := availability.ParseTimeOfDay(req.ScheduledTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_scheduled_time", "scheduled_time must be HH:MM")
			return
		}

		appt, err := svc.Book(r.Context(), appointment.BookingRequest{
			ScheduledDate: date,
			ScheduledTime: start,
			Modality:      availability.Modality(req.Modality),
			PatientType:   appointment.PatientType(req.PatientType),
			PatientDetails: appointment.PatientDetails{
				Name:  req.PatientDetails.Name,
				Email: req.PatientDetails.Email,
				Phone: req.PatientDetails.Phone,
			},
			ServiceID: req.ServiceID,
			Reason:    req.Reason,
			Timezone:  req.Timezone,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func lookupAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref := chi.URLParam(r, "referenceID")

		appt, err := svc.Lookup(r.Context(), ref)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func cancelAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref := chi.URLParam(r, "referenceID")

		var req CancelRequest
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&req)
		}

		appt, err := svc.CancelByReference(r.Context(), ref, req.Reason)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}
