package notify

import (
	"context"
	"log"
	"time"

	"github.com/tfwellfare/clinic-booking/internal/availability"
)

// Notification is the payload handed to collaborators when an appointment
// changes state. Delivery is fire-and-forget; booking correctness never
// depends on it.
type Notification struct {
	ReferenceID   string
	PatientEmail  string
	ServiceTitle  string
	Modality      availability.Modality
	ScheduledDate time.Time
	ScheduledTime availability.TimeOfDay
}

type Notifier interface {
	BookingReceived(ctx context.Context, n Notification)
	AppointmentApproved(ctx context.Context, n Notification)
	AppointmentRejected(ctx context.Context, n Notification)
	AppointmentCancelled(ctx context.Context, n Notification)
	AppointmentReminder(ctx context.Context, n Notification)
}

// LogNotifier writes notifications to the process log. It stands in for the
// email/calendar dispatcher, which consumes the same interface.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (ln *LogNotifier) emit(kind string, n Notification) {
	log.Printf("notify %s ref=%s email=%s service=%q modality=%s date=%s time=%s",
		kind, n.ReferenceID, n.PatientEmail, n.ServiceTitle, n.Modality,
		availability.DateKey(n.ScheduledDate), n.ScheduledTime)
}

func (ln *LogNotifier) BookingReceived(_ context.Context, n Notification) {
	ln.emit("booking_received", n)
}

func (ln *LogNotifier) AppointmentApproved(_ context.Context, n Notification) {
	ln.emit("appointment_approved", n)
}

func (ln *LogNotifier) AppointmentRejected(_ context.Context, n Notification) {
	ln.emit("appointment_rejected", n)
}

func (ln *LogNotifier) AppointmentCancelled(_ context.Context, n Notification) {
	ln.emit("appointment_cancelled", n)
}

func (ln *LogNotifier) AppointmentReminder(_ context.Context, n Notification) {
	ln.emit("appointment_reminder", n)
}
