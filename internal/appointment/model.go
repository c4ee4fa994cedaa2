package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/tfwellfare/clinic-booking/internal/availability"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no_show"
)

// Occupies reports whether an appointment in this status holds its slot.
// Rejected, cancelled, completed, and no-show appointments never block a
// new booking at the same date+time.
func (s Status) Occupies() bool {
	return s == StatusPending || s == StatusApproved
}

func (s Status) Terminal() bool {
	switch s {
	case StatusRejected, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

type PatientType string

const (
	PatientNew       PatientType = "new"
	PatientReturning PatientType = "returning"
	PatientDiscovery PatientType = "discovery"
)

// PatientDetails is the guest checkout identity, embedded in the
// appointment row rather than linked to an account.
type PatientDetails struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

type Appointment struct {
	ID              uuid.UUID
	ReferenceID     string // immutable once set
	Status          Status
	ServiceID       *uuid.UUID
	ScheduledDate   time.Time // civil date
	ScheduledTime   availability.TimeOfDay
	DurationMinutes int
	Timezone        string // passthrough only, no conversion
	Modality        availability.Modality
	PatientType     PatientType
	PatientDetails  PatientDetails
	Reason          string
	Notes           string // internal, admin only
	MeetingLink     string
	ConfirmationSent bool
	ReminderSent    bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Upcoming reports whether the appointment's start lies in the future.
func (a *Appointment) Upcoming(now time.Time) bool {
	scheduled := a.ScheduledDate.Add(time.Duration(a.ScheduledTime) * time.Minute)
	return scheduled.After(now)
}

// CanCancel mirrors the guest cancellation rule: not terminal, still upcoming.
func (a *Appointment) CanCancel(now time.Time) bool {
	return !a.Status.Terminal() && a.Upcoming(now)
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
