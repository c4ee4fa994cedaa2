package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tfwellfare/clinic-booking/internal/availability"
	"github.com/tfwellfare/clinic-booking/internal/catalog"
	"github.com/tfwellfare/clinic-booking/internal/config"
	"github.com/tfwellfare/clinic-booking/internal/notify"
	redisclient "github.com/tfwellfare/clinic-booking/internal/redis"
)

const (
	EventAppointmentCreated   = "APPOINTMENT_CREATED"
	EventAppointmentApproved  = "APPOINTMENT_APPROVED"
	EventAppointmentRejected  = "APPOINTMENT_REJECTED"
	EventAppointmentCancelled = "APPOINTMENT_CANCELLED"
	EventAppointmentCompleted = "APPOINTMENT_COMPLETED"
	EventAppointmentNoShow    = "APPOINTMENT_NO_SHOW"
	EventReminderSent         = "APPOINTMENT_REMINDER_SENT"
)

var (
	// ErrReferenceIDExhausted means every generated reference ID collided.
	// Fatal for the request; never retried further.
	ErrReferenceIDExhausted = errors.New("could not generate unique reference id")

	// ErrLockTimeout means the slot lock could not be acquired before the
	// lock TTL elapsed. Transient; the caller may retry.
	ErrLockTimeout = errors.New("timed out waiting for slot lock")

	ErrInvalidTransition = errors.New("invalid status transition")
	ErrCannotCancel      = errors.New("appointment can no longer be cancelled")
	ErrInvalidBooking    = errors.New("invalid booking request")
)

type BookingRequest struct {
	ScheduledDate  time.Time
	ScheduledTime  availability.TimeOfDay
	Modality       availability.Modality
	PatientType    PatientType
	PatientDetails PatientDetails
	ServiceID      *uuid.UUID
	Reason         string
	Timezone       string
}

type Service struct {
	repo     Repository
	engine   *availability.Engine
	catalog  catalog.Store
	locker   redisclient.Locker
	notifier notify.Notifier
	cfg      config.Config
	now      func() time.Time
}

func NewService(repo Repository, engine *availability.Engine, cat catalog.Store, locker redisclient.Locker, notifier notify.Notifier, cfg config.Config) *Service {
	return &Service{
		repo:     repo,
		engine:   engine,
		catalog:  cat,
		locker:   locker,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
	}
}

// WithNow overrides the clock, for tests.
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

// Book reserves a slot and creates a pending appointment. The availability
// check runs twice: once up front for a fast answer, then again inside the
// slot lock and the reservation transaction, so that concurrent requests
// for the same slot cannot both commit.
func (s *Service) Book(ctx context.Context, req BookingRequest) (*Appointment, error) {
	if err := validateBooking(&req); err != nil {
		return nil, err
	}

	if err := s.engine.CheckBookable(ctx, req.ScheduledDate, req.ScheduledTime, req.Modality); err != nil {
		return nil, err
	}

	duration := s.cfg.Booking.SlotDurationMinutes
	serviceTitle := ""
	if req.ServiceID != nil {
		svc, err := s.catalog.GetByID(ctx, *req.ServiceID)
		if err != nil {
			return nil, fmt.Errorf("load service: %w", err)
		}
		if svc.DurationMinutes > 0 {
			duration = svc.DurationMinutes
		}
		serviceTitle = svc.Title
	}

	ref, err := s.uniqueReferenceID(ctx)
	if err != nil {
		return nil, err
	}

	appt := &Appointment{
		ReferenceID:     ref,
		ServiceID:       req.ServiceID,
		ScheduledDate:   req.ScheduledDate,
		ScheduledTime:   req.ScheduledTime,
		DurationMinutes: duration,
		Timezone:        req.Timezone,
		Modality:        req.Modality,
		PatientType:     req.PatientType,
		PatientDetails:  req.PatientDetails,
		Reason:          req.Reason,
	}

	dateKey := availability.DateKey(req.ScheduledDate)
	err = s.locker.WithSlotLock(ctx, dateKey, req.ScheduledTime.String(), func(lockCtx context.Context) error {
		return s.repo.ReserveAndCreate(lockCtx, appt)
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrSlotTaken):
			return nil, availability.ErrSlotUnavailable
		case errors.Is(err, redisclient.ErrLockNotAcquired):
			return nil, ErrLockTimeout
		default:
			return nil, err
		}
	}

	s.logEvent(ctx, appt.ID, EventAppointmentCreated, map[string]any{
		"reference_id": appt.ReferenceID,
		"date":         dateKey,
		"time":         appt.ScheduledTime.String(),
		"modality":     string(appt.Modality),
	})
	s.dispatch(s.notifier.BookingReceived, appt, serviceTitle)

	return appt, nil
}

func validateBooking(req *BookingRequest) error {
	if !req.Modality.Valid() {
		return fmt.Errorf("%w: unknown modality %q", ErrInvalidBooking, req.Modality)
	}
	if strings.TrimSpace(req.PatientDetails.Name) == "" {
		return fmt.Errorf("%w: patient name is required", ErrInvalidBooking)
	}
	if strings.TrimSpace(req.PatientDetails.Email) == "" {
		return fmt.Errorf("%w: patient email is required", ErrInvalidBooking)
	}
	if req.PatientType == "" {
		req.PatientType = PatientNew
	}
	if req.Timezone == "" {
		req.Timezone = "UTC"
	}
	return nil
}

func (s *Service) uniqueReferenceID(ctx context.Context) (string, error) {
	for i := 0; i < MaxReferenceIDAttempts; i++ {
		ref, err := NewReferenceID()
		if err != nil {
			return "", err
		}
		exists, err := s.repo.ReferenceIDExists(ctx, ref)
		if err != nil {
			return "", fmt.Errorf("check reference id: %w", err)
		}
		if !exists {
			return ref, nil
		}
	}
	return "", ErrReferenceIDExhausted
}

// Lookup finds an appointment by its public reference ID.
func (s *Service) Lookup(ctx context.Context, ref string) (*Appointment, error) {
	return s.repo.GetByReferenceID(ctx, strings.ToUpper(strings.TrimSpace(ref)))
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]Appointment, error) {
	return s.repo.List(ctx, f)
}

// Approve moves a pending appointment to approved, optionally attaching a
// meeting link for virtual visits.
func (s *Service) Approve(ctx context.Context, id uuid.UUID, meetingLink string) (*Appointment, error) {
	updated, err := s.transition(ctx, id, []Status{StatusPending}, StatusApproved)
	if err != nil {
		return nil, err
	}

	if meetingLink != "" {
		if err := s.repo.SetMeetingLink(ctx, id, meetingLink); err != nil {
			log.Printf("failed to set meeting link for %s: %v", id, err)
		} else {
			updated.MeetingLink = meetingLink
		}
	}

	s.logEvent(ctx, id, EventAppointmentApproved, map[string]any{})
	s.dispatch(s.notifier.AppointmentApproved, updated, s.serviceTitle(ctx, updated))
	return updated, nil
}

func (s *Service) Reject(ctx context.Context, id uuid.UUID, reason string) (*Appointment, error) {
	updated, err := s.transition(ctx, id, []Status{StatusPending}, StatusRejected)
	if err != nil {
		return nil, err
	}

	if reason != "" {
		if err := s.repo.PrependNote(ctx, id, "Rejected: "+reason); err != nil {
			log.Printf("failed to note rejection for %s: %v", id, err)
		}
	}

	s.logEvent(ctx, id, EventAppointmentRejected, map[string]any{"reason": reason})
	s.dispatch(s.notifier.AppointmentRejected, updated, s.serviceTitle(ctx, updated))
	return updated, nil
}

// Cancel is the admin path; it is valid from pending or approved.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string) (*Appointment, error) {
	updated, err := s.transition(ctx, id, []Status{StatusPending, StatusApproved}, StatusCancelled)
	if err != nil {
		return nil, err
	}

	if reason != "" {
		if err := s.repo.PrependNote(ctx, id, "Cancelled: "+reason); err != nil {
			log.Printf("failed to note cancellation for %s: %v", id, err)
		}
	}

	s.logEvent(ctx, id, EventAppointmentCancelled, map[string]any{"reason": reason})
	s.dispatch(s.notifier.AppointmentCancelled, updated, s.serviceTitle(ctx, updated))
	return updated, nil
}

// CancelByReference is the guest path: only upcoming, non-terminal
// appointments may be cancelled.
func (s *Service) CancelByReference(ctx context.Context, ref, reason string) (*Appointment, error) {
	appt, err := s.Lookup(ctx, ref)
	if err != nil {
		return nil, err
	}
	if !appt.CanCancel(s.now()) {
		return nil, ErrCannotCancel
	}
	if reason == "" {
		reason = "Cancelled by patient"
	}
	return s.Cancel(ctx, appt.ID, reason)
}

func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	updated, err := s.transition(ctx, id, []Status{StatusApproved}, StatusCompleted)
	if err != nil {
		return nil, err
	}
	s.logEvent(ctx, id, EventAppointmentCompleted, map[string]any{})
	return updated, nil
}

func (s *Service) MarkNoShow(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	updated, err := s.transition(ctx, id, []Status{StatusApproved}, StatusNoShow)
	if err != nil {
		return nil, err
	}
	s.logEvent(ctx, id, EventAppointmentNoShow, map[string]any{})
	return updated, nil
}

// transition loads the appointment, verifies the move, then applies it as a
// compare-and-swap so a racing transition cannot double-apply.
func (s *Service) transition(ctx context.Context, id uuid.UUID, from []Status, to Status) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	allowed := false
	for _, st := range from {
		if appt.Status == st {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, appt.Status, to)
	}

	updated, err := s.repo.UpdateStatus(ctx, id, from, to)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// Lost a race with another transition.
			return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, appt.Status, to)
		}
		return nil, fmt.Errorf("update status: %w", err)
	}
	return updated, nil
}

// SendDueReminders notifies approved appointments starting inside the
// reminder lead window and marks them so they are reminded once.
func (s *Service) SendDueReminders(ctx context.Context) error {
	now := s.now()
	due, err := s.repo.FindDueReminders(ctx, now, now.Add(s.cfg.ReminderLead))
	if err != nil {
		return fmt.Errorf("find due reminders: %w", err)
	}

	for _, appt := range due {
		a := appt
		if err := s.repo.MarkReminderSent(ctx, a.ID); err != nil {
			log.Printf("failed to mark reminder sent for %s: %v", a.ID, err)
			continue
		}
		s.logEvent(ctx, a.ID, EventReminderSent, map[string]any{
			"reference_id": a.ReferenceID,
		})
		s.dispatch(s.notifier.AppointmentReminder, &a, s.serviceTitle(ctx, &a))
	}

	return nil
}

func (s *Service) serviceTitle(ctx context.Context, appt *Appointment) string {
	if appt.ServiceID == nil {
		return ""
	}
	svc, err := s.catalog.GetByID(ctx, *appt.ServiceID)
	if err != nil {
		return ""
	}
	return svc.Title
}

// dispatch hands a notification to the collaborator without tying it to the
// request: it runs on its own context and failures are only logged.
func (s *Service) dispatch(fn func(context.Context, notify.Notification), appt *Appointment, serviceTitle string) {
	n := notify.Notification{
		ReferenceID:   appt.ReferenceID,
		PatientEmail:  appt.PatientDetails.Email,
		ServiceTitle:  serviceTitle,
		Modality:      appt.Modality,
		ScheduledDate: appt.ScheduledDate,
		ScheduledTime: appt.ScheduledTime,
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		fn(ctx, n)
	}()
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("failed to marshal event payload for %s: %v", eventType, err)
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     time.Now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		log.Printf("failed to insert event log %s for appointment %s: %v", eventType, appointmentID, err)
	}
}
