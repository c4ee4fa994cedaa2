package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/tfwellfare/clinic-booking/internal/appointment"
	"github.com/tfwellfare/clinic-booking/internal/availability"
	"github.com/tfwellfare/clinic-booking/internal/catalog"
)

type RouterConfig struct {
	Appointments *appointment.Service
	Engine       *availability.Engine
	Availability availability.Store
	Catalog      catalog.Store
	PgPool       *pgxpool.Pool
	Redis        *redis.Client
	Env          string
	Version      string
}

// NewRouter wires the public booking API and the admin surface. Admin
// routes expect an authentication layer in front of them; auth is handled
// outside this service.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Public booking surface
	r.Get("/slots", availableSlotsHandler(cfg.Engine))
	r.Get("/slots/dates", availableDatesHandler(cfg.Engine))
	r.Get("/services", listServicesHandler(cfg.Catalog))
	r.Post("/appointments", bookAppointmentHandler(cfg.Appointments))
	r.Get("/appointments/{referenceID}", lookupAppointmentHandler(cfg.Appointments))
	r.Post("/appointments/{referenceID}/cancel", cancelAppointmentHandler(cfg.Appointments))

	// Admin surface
	r.Route("/admin", func(r chi.Router) {
		r.Get("/appointments", adminListAppointmentsHandler(cfg.Appointments))
		r.Get("/appointments/{id}", adminGetAppointmentHandler(cfg.Appointments))
		r.Post("/appointments/{id}/approve", appointmentAction(
			func(req *http.Request, id uuid.UUID, body AppointmentActionRequest) (*appointment.Appointment, error) {
				return cfg.Appointments.Approve(req.Context(), id, body.MeetingLink)
			}))
		r.Post("/appointments/{id}/reject", appointmentAction(
			func(req *http.Request, id uuid.UUID, body AppointmentActionRequest) (*appointment.Appointment, error) {
				return cfg.Appointments.Reject(req.Context(), id, body.Reason)
			}))
		r.Post("/appointments/{id}/cancel", appointmentAction(
			func(req *http.Request, id uuid.UUID, body AppointmentActionRequest) (*appointment.Appointment, error) {
				return cfg.Appointments.Cancel(req.Context(), id, body.Reason)
			}))
		r.Post("/appointments/{id}/complete", appointmentAction(
			func(req *http.Request, id uuid.UUID, body AppointmentActionRequest) (*appointment.Appointment, error) {
				return cfg.Appointments.Complete(req.Context(), id)
			}))
		r.Post("/appointments/{id}/no-show", appointmentAction(
			func(req *http.Request, id uuid.UUID, body AppointmentActionRequest) (*appointment.Appointment, error) {
				return cfg.Appointments.MarkNoShow(req.Context(), id)
			}))

		r.Get("/availability/rules", listRulesHandler(cfg.Availability))
		r.Post("/availability/rules", createRuleHandler(cfg.Availability))
		r.Put("/availability/rules/{id}", updateRuleHandler(cfg.Availability))
		r.Delete("/availability/rules/{id}", deleteRuleHandler(cfg.Availability))

		r.Get("/availability/exceptions", listExceptionsHandler(cfg.Availability))
		r.Put("/availability/exceptions", upsertExceptionHandler(cfg.Availability))
		r.Delete("/availability/exceptions/{date}", deleteExceptionHandler(cfg.Availability))
	})

	return r
}
