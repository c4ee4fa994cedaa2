package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/tfwellfare/clinic-booking/internal/appointment"
	"github.com/tfwellfare/clinic-booking/internal/availability"
	"github.com/tfwellfare/clinic-booking/internal/catalog"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// writeServiceError maps domain errors to HTTP responses. Availability and
// lock conflicts are recoverable at the caller (pick another slot); store
// timeouts are surfaced as retryable; the rest is internal.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, appointment.ErrInvalidBooking):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, availability.ErrOutOfHorizon):
		writeError(w, http.StatusBadRequest, "out_of_horizon", "requested date is outside the booking horizon")
	case errors.Is(err, availability.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "slot_unavailable", "this time slot is no longer available, please select another time")
	case errors.Is(err, appointment.ErrLockTimeout):
		writeError(w, http.StatusServiceUnavailable, "transient_error", "could not reserve the slot in time, please retry")
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, catalog.ErrServiceNotFound):
		writeError(w, http.StatusNotFound, "service_not_found", err.Error())
	case errors.Is(err, appointment.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, appointment.ErrCannotCancel):
		writeError(w, http.StatusBadRequest, "cannot_cancel", "this appointment can no longer be cancelled")
	case errors.Is(err, availability.ErrRuleNotFound):
		writeError(w, http.StatusNotFound, "rule_not_found", err.Error())
	case errors.Is(err, availability.ErrExceptionNotFound):
		writeError(w, http.StatusNotFound, "exception_not_found", err.Error())
	case errors.Is(err, availability.ErrInvalidRule):
		writeError(w, http.StatusBadRequest, "invalid_rule", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "transient_error", "store operation timed out, please retry")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func parseDate(s string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", s, time.UTC)
}
