package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/tfwellfare/clinic-booking/internal/availability"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrSlotTaken is returned by ReserveAndCreate when the transactional
	// re-check finds the slot no longer bookable.
	ErrSlotTaken = errors.New("slot already taken")
)

// ListFilter narrows admin appointment listings.
type ListFilter struct {
	Status        Status    // empty = all
	ScheduledFrom time.Time // zero = unbounded
	ScheduledTo   time.Time // zero = unbounded
	Limit         int
	Offset        int
}

// Repository contains all DB interactions needed by the booking service.
// It also implements availability.BookingSource so the slot engine can
// subtract booked times.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	GetByReferenceID(ctx context.Context, ref string) (*Appointment, error)
	ReferenceIDExists(ctx context.Context, ref string) (bool, error)
	List(ctx context.Context, f ListFilter) ([]Appointment, error)

	// ReserveAndCreate re-runs the slot availability predicate inside one
	// transaction, locking any conflicting appointment rows, and inserts
	// the appointment only if the slot is still free. All-or-nothing.
	ReserveAndCreate(ctx context.Context, appt *Appointment) error

	// UpdateStatus is a compare-and-swap: the update applies only while
	// the current status is one of `from`.
	UpdateStatus(ctx context.Context, id uuid.UUID, from []Status, to Status) (*Appointment, error)
	SetMeetingLink(ctx context.Context, id uuid.UUID, link string) error
	PrependNote(ctx context.Context, id uuid.UUID, note string) error

	// Reminder worker
	FindDueReminders(ctx context.Context, from, to time.Time) ([]Appointment, error)
	MarkReminderSent(ctx context.Context, id uuid.UUID) error

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error

	// availability.BookingSource
	BookedTimesByDate(ctx context.Context, from, to time.Time) (map[string][]availability.TimeOfDay, error)
	IsTimeBooked(ctx context.Context, date time.Time, t availability.TimeOfDay) (bool, error)
}
