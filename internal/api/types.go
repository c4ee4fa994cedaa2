package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/tfwellfare/clinic-booking/internal/appointment"
	"github.com/tfwellfare/clinic-booking/internal/availability"
	"github.com/tfwellfare/clinic-booking/internal/catalog"
)

type PatientDetailsPayload struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

type BookAppointmentRequest struct {
	ScheduledDate  string                `json:"scheduled_date"` // YYYY-MM-DD
	ScheduledTime  string                `json:"scheduled_time"` // HH:MM
	Modality       string                `json:"modality"`
	PatientType    string                `json:"patient_type,omitempty"`
	PatientDetails PatientDetailsPayload `json:"patient_details"`
	ServiceID      *uuid.UUID            `json:"service_id,omitempty"`
	Reason         string                `json:"reason,omitempty"`
	Timezone       string                `json:"timezone,omitempty"`
}

type CancelRequest struct {
	Reason string `json:"reason,omitempty"`
}

type AppointmentActionRequest struct {
	Reason      string `json:"reason,omitempty"`
	MeetingLink string `json:"meeting_link,omitempty"`
}

type AppointmentResponse struct {
	ReferenceID     string                `json:"reference_id"`
	Status          string                `json:"status"`
	ScheduledDate   string                `json:"scheduled_date"`
	ScheduledTime   string                `json:"scheduled_time"`
	DurationMinutes int                   `json:"duration_minutes"`
	Timezone        string                `json:"timezone"`
	Modality        string                `json:"modality"`
	PatientType     string                `json:"patient_type"`
	PatientDetails  PatientDetailsPayload `json:"patient_details"`
	ServiceID       *uuid.UUID            `json:"service_id,omitempty"`
	Reason          string                `json:"reason,omitempty"`
	MeetingLink     string                `json:"meeting_link,omitempty"`
	CreatedAt       time.Time             `json:"created_at"`
}

type AdminAppointmentResponse struct {
	ID uuid.UUID `json:"id"`
	AppointmentResponse
	Notes        string `json:"notes,omitempty"`
	ReminderSent bool   `json:"reminder_sent"`
}

type SlotPayload struct {
	StartTime  string   `json:"start_time"`
	EndTime    string   `json:"end_time"`
	Modality   []string `json:"modality"`
}

type SlotsResponse struct {
	Slots      map[string][]SlotPayload `json:"slots"`
	TotalSlots int                      `json:"total_slots"`
}

type AvailableDatesResponse struct {
	Dates []string `json:"dates"`
}

type WeeklyRuleRequest struct {
	DayOfWeek      int    `json:"day_of_week"`
	StartTime      string `json:"start_time"`
	EndTime        string `json:"end_time"`
	IsActive       *bool  `json:"is_active,omitempty"`
	AllowsVirtual  *bool  `json:"allows_virtual,omitempty"`
	AllowsInPerson *bool  `json:"allows_in_person,omitempty"`
}

type WeeklyRuleResponse struct {
	ID             int64  `json:"id"`
	DayOfWeek      int    `json:"day_of_week"`
	StartTime      string `json:"start_time"`
	EndTime        string `json:"end_time"`
	IsActive       bool   `json:"is_active"`
	AllowsVirtual  bool   `json:"allows_virtual"`
	AllowsInPerson bool   `json:"allows_in_person"`
}

type ExceptionDateRequest struct {
	Date      string `json:"date"` // YYYY-MM-DD
	Type      string `json:"exception_type"`
	Reason    string `json:"reason,omitempty"`
	StartTime string `json:"start_time,omitempty"` // modified hours only
	EndTime   string `json:"end_time,omitempty"`
}

type ExceptionDateResponse struct {
	ID        int64  `json:"id"`
	Date      string `json:"date"`
	Type      string `json:"exception_type"`
	Reason    string `json:"reason,omitempty"`
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`
}

type ServiceResponse struct {
	ID              uuid.UUID `json:"id"`
	Slug            string    `json:"slug"`
	Title           string    `json:"title"`
	Description     string    `json:"description,omitempty"`
	DurationMinutes int       `json:"duration_minutes"`
	PriceCents      int       `json:"price_cents"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Response builders

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ReferenceID:     a.ReferenceID,
		Status:          string(a.Status),
		ScheduledDate:   availability.DateKey(a.ScheduledDate),
		ScheduledTime:   a.ScheduledTime.String(),
		DurationMinutes: a.DurationMinutes,
		Timezone:        a.Timezone,
		Modality:        string(a.Modality),
		PatientType:     string(a.PatientType),
		PatientDetails: PatientDetailsPayload{
			Name:  a.PatientDetails.Name,
			Email: a.PatientDetails.Email,
			Phone: a.PatientDetails.Phone,
		},
		ServiceID:   a.ServiceID,
		Reason:      a.Reason,
		MeetingLink: a.MeetingLink,
		CreatedAt:   a.CreatedAt,
	}
}

func toAdminAppointmentResponse(a *appointment.Appointment) AdminAppointmentResponse {
	return AdminAppointmentResponse{
		ID:                  a.ID,
		AppointmentResponse: toAppointmentResponse(a),
		Notes:               a.Notes,
		ReminderSent:        a.ReminderSent,
	}
}

func toRuleResponse(r *availability.WeeklyRule) WeeklyRuleResponse {
	return WeeklyRuleResponse{
		ID:             r.ID,
		DayOfWeek:      r.DayOfWeek,
		StartTime:      r.StartTime.String(),
		EndTime:        r.EndTime.String(),
		IsActive:       r.IsActive,
		AllowsVirtual:  r.AllowsVirtual,
		AllowsInPerson: r.AllowsInPerson,
	}
}

func toExceptionResponse(e *availability.ExceptionDate) ExceptionDateResponse {
	resp := ExceptionDateResponse{
		ID:     e.ID,
		Date:   availability.DateKey(e.Date),
		Type:   string(e.Type),
		Reason: e.Reason,
	}
	if e.StartTime != nil {
		resp.StartTime = e.StartTime.String()
	}
	if e.EndTime != nil {
		resp.EndTime = e.EndTime.String()
	}
	return resp
}

func toServiceResponse(s *catalog.Service) ServiceResponse {
	return ServiceResponse{
		ID:              s.ID,
		Slug:            s.Slug,
		Title:           s.Title,
		Description:     s.Description,
		DurationMinutes: s.DurationMinutes,
		PriceCents:      s.PriceCents,
	}
}
