package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tfwellfare/clinic-booking/internal/appointment"
	"github.com/tfwellfare/clinic-booking/internal/availability"
)

// Appointment administration

func adminListAppointmentsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		f := appointment.ListFilter{
			Status: appointment.Status(q.Get("status")),
		}
		if v := q.Get("from"); v != "" {
			d, err := parseDate(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_from", "from must be YYYY-MM-DD")
				return
			}
			f.ScheduledFrom = d
		}
		if v := q.Get("to"); v != "" {
			d, err := parseDate(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_to", "to must be YYYY-MM-DD")
				return
			}
			f.ScheduledTo = d
		}
		if v := q.Get("limit"); v != "" {
			f.Limit, _ = strconv.Atoi(v)
		}
		if v := q.Get("offset"); v != "" {
			f.Offset, _ = strconv.Atoi(v)
		}

		appts, err := svc.List(r.Context(), f)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		out := make([]AdminAppointmentResponse, len(appts))
		for i := range appts {
			out[i] = toAdminAppointmentResponse(&appts[i])
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func adminGetAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		appt, err := svc.Get(r.Context(), id)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAdminAppointmentResponse(appt))
	}
}

// appointmentAction wraps the shared decode/respond plumbing around one
// lifecycle transition.
func appointmentAction(apply func(r *http.Request, id uuid.UUID, req AppointmentActionRequest) (*appointment.Appointment, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req AppointmentActionRequest
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&req)
		}

		appt, err := apply(r, id, req)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toAdminAppointmentResponse(appt))
	}
}

// Weekly rule administration

func listRulesHandler(store availability.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rules, err := store.ListRules(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}

		out := make([]WeeklyRuleResponse, len(rules))
		for i := range rules {
			out[i] = toRuleResponse(&rules[i])
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func decodeRule(r *http.Request) (*availability.WeeklyRule, string) {
	var req WeeklyRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, "could not parse JSON"
	}
	if req.DayOfWeek < 0 || req.DayOfWeek > 6 {
		return nil, "day_of_week must be between 0 (Monday) and 6 (Sunday)"
	}

	start, err := availability.ParseTimeOfDay(req.StartTime)
	if err != nil {
		return nil, "start_time must be HH:MM"
	}
	end, err := availability.ParseTimeOfDay(req.EndTime)
	if err != nil {
		return nil, "end_time must be HH:MM"
	}

	rule := &availability.WeeklyRule{
		DayOfWeek:      req.DayOfWeek,
		StartTime:      start,
		EndTime:        end,
		IsActive:       true,
		AllowsVirtual:  true,
		AllowsInPerson: true,
	}
	if req.IsActive != nil {
		rule.IsActive = *req.IsActive
	}
	if req.AllowsVirtual != nil {
		rule.AllowsVirtual = *req.AllowsVirtual
	}
	if req.AllowsInPerson != nil {
		rule.AllowsInPerson = *req.AllowsInPerson
	}
	return rule, ""
}

func createRuleHandler(store availability.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rule, problem := decodeRule(r)
		if problem != "" {
			writeError(w, http.StatusBadRequest, "invalid_request", problem)
			return
		}

		if err := store.CreateRule(r.Context(), rule); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toRuleResponse(rule))
	}
}

func updateRuleHandler(store availability.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_rule_id", "id must be an integer")
			return
		}

		rule, problem := decodeRule(r)
		if problem != "" {
			writeError(w, http.StatusBadRequest, "invalid_request", problem)
			return
		}
		rule.ID = id

		if err := store.UpdateRule(r.Context(), rule); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toRuleResponse(rule))
	}
}

func deleteRuleHandler(store availability.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_rule_id", "id must be an integer")
			return
		}

		if err := store.DeleteRule(r.Context(), id); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// Exception date administration

func listExceptionsHandler(store availability.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		from, err := parseDate(q.Get("from"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_from", "from must be YYYY-MM-DD")
			return
		}
		to, err := parseDate(q.Get("to"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_to", "to must be YYYY-MM-DD")
			return
		}

		exceptions, err := store.ListExceptions(r.Context(), from, to)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		out := make([]ExceptionDateResponse, len(exceptions))
		for i := range exceptions {
			out[i] = toExceptionResponse(&exceptions[i])
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func upsertExceptionHandler(store availability.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ExceptionDateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		date, err := parseDate(req.Date)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		excType := availability.ExceptionType(req.Type)
		if excType != availability.ExceptionBlocked && excType != availability.ExceptionModified {
			writeError(w, http.StatusBadRequest, "invalid_exception_type", "exception_type must be blocked or modified")
			return
		}

		exc := &availability.ExceptionDate{
			Date:   date,
			Type:   excType,
			Reason: req.Reason,
		}
		if req.StartTime != "" {
			t, err := availability.ParseTimeOfDay(req.StartTime)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_start_time", "start_time must be HH:MM")
				return
			}
			exc.StartTime = &t
		}
		if req.EndTime != "" {
			t, err := availability.ParseTimeOfDay(req.EndTime)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_end_time", "end_time must be HH:MM")
				return
			}
			exc.EndTime = &t
		}

		if err := store.UpsertException(r.Context(), exc); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toExceptionResponse(exc))
	}
}

func deleteExceptionHandler(store availability.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date, err := parseDate(chi.URLParam(r, "date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		if err := store.DeleteException(r.Context(), date); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
