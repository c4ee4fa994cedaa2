package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/tfwellfare/clinic-booking/internal/availability"
	"github.com/tfwellfare/clinic-booking/internal/catalog"
)

func availableSlotsHandler(engine *availability.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		var from, to time.Time
		var err error
		if v := q.Get("start_date"); v != "" {
			if from, err = parseDate(v); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_start_date", "start_date must be YYYY-MM-DD")
				return
			}
		}
		if v := q.Get("end_date"); v != "" {
			if to, err = parseDate(v); err != nil {
				writeError(w, http.StatusBadRequest, "invalid_end_date", "end_date must be YYYY-MM-DD")
				return
			}
		}

		modality := availability.Modality(q.Get("modality"))
		if modality != "" && !modality.Valid() {
			writeError(w, http.StatusBadRequest, "invalid_modality", "modality must be virtual, in_person, or phone")
			return
		}

		slots, err := engine.AvailableSlots(r.Context(), from, to, modality)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		grouped := make(map[string][]SlotPayload)
		for _, slot := range slots {
			key := availability.DateKey(slot.Date)
			modalities := make([]string, len(slot.Modalities))
			for i, m := range slot.Modalities {
				modalities[i] = string(m)
			}
			grouped[key] = append(grouped[key], SlotPayload{
				StartTime: slot.StartTime.String(),
				EndTime:   slot.EndTime.String(),
				Modality:  modalities,
			})
		}

		writeJSON(w, http.StatusOK, SlotsResponse{
			Slots:      grouped,
			TotalSlots: len(slots),
		})
	}
}

func availableDatesHandler(engine *availability.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		days := 30
		if v := r.URL.Query().Get("days"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				writeError(w, http.StatusBadRequest, "invalid_days", "days must be a positive integer")
				return
			}
			days = n
		}

		dates, err := engine.AvailableDates(r.Context(), days)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		out := make([]string, len(dates))
		for i, d := range dates {
			out[i] = availability.DateKey(d)
		}
		writeJSON(w, http.StatusOK, AvailableDatesResponse{Dates: out})
	}
}

func listServicesHandler(store catalog.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		services, err := store.ListActive(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}

		out := make([]ServiceResponse, len(services))
		for i := range services {
			out[i] = toServiceResponse(&services[i])
		}
		writeJSON(w, http.StatusOK, out)
	}
}
