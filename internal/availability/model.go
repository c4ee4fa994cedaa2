package availability

import (
	"fmt"
	"time"
)

// Modality is how an appointment is held.
type Modality string

const (
	ModalityVirtual  Modality = "virtual"
	ModalityInPerson Modality = "in_person"
	ModalityPhone    Modality = "phone"
)

func (m Modality) Valid() bool {
	switch m {
	case ModalityVirtual, ModalityInPerson, ModalityPhone:
		return true
	}
	return false
}

// TimeOfDay is a wall-clock time stored as minutes since midnight.
// It travels over the wire and into TIME columns as "HH:MM".
type TimeOfDay int

func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("parse time of day %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("time of day %q out of range", s)
	}
	return TimeOfDay(h*60 + m), nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

func (t TimeOfDay) AddMinutes(m int) TimeOfDay {
	return t + TimeOfDay(m)
}

// WeeklyRule is a recurring open-hours block. Several rules may cover the
// same weekday (split morning/afternoon blocks).
type WeeklyRule struct {
	ID             int64
	DayOfWeek      int // Monday=0 .. Sunday=6
	StartTime      TimeOfDay
	EndTime        TimeOfDay
	IsActive       bool
	AllowsVirtual  bool
	AllowsInPerson bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// AllowsModality reports whether the rule permits booking with the given
// modality. Phone bookings are not gated by rule flags.
func (r WeeklyRule) AllowsModality(m Modality) bool {
	switch m {
	case ModalityVirtual:
		return r.AllowsVirtual
	case ModalityInPerson:
		return r.AllowsInPerson
	default:
		return true
	}
}

// Modalities lists what the rule advertises on generated slots.
func (r WeeklyRule) Modalities() []Modality {
	var out []Modality
	if r.AllowsVirtual {
		out = append(out, ModalityVirtual)
	}
	if r.AllowsInPerson {
		out = append(out, ModalityInPerson)
	}
	return out
}

type ExceptionType string

const (
	ExceptionBlocked  ExceptionType = "blocked"
	ExceptionModified ExceptionType = "modified"
)

// ExceptionDate overrides the weekly schedule for one calendar date.
// At most one exception exists per date (enforced by the store).
type ExceptionDate struct {
	ID        int64
	Date      time.Time // civil date, midnight UTC
	Type      ExceptionType
	Reason    string
	StartTime *TimeOfDay // modified hours, stored but not consulted in generation
	EndTime   *TimeOfDay
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TimeSlot is a bookable interval on one date. Slots are derived on every
// query and never persisted.
type TimeSlot struct {
	Date       time.Time
	StartTime  TimeOfDay
	EndTime    TimeOfDay
	Modalities []Modality
}

// DayOfWeek converts a date to the Monday=0 numbering used by weekly rules.
func DayOfWeek(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// DateKey renders a civil date for map keys, lock keys, and SQL date params.
func DateKey(t time.Time) string {
	return t.Format("2006-01-02")
}
