package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tfwellfare/clinic-booking/internal/config"
)

var (
	// ErrOutOfHorizon means the requested date falls outside the booking
	// horizon. Distinct from unavailability so callers can report it as a
	// validation failure rather than a conflict.
	ErrOutOfHorizon = errors.New("date outside booking horizon")

	// ErrSlotUnavailable means the slot is blocked, uncovered by any rule,
	// or already taken by a pending/approved appointment.
	ErrSlotUnavailable = errors.New("slot unavailable")
)

// Engine derives bookable slots from weekly rules, exception dates, and
// existing appointments. It holds no state of its own; every answer is
// recomputed from the stores so it is always consistent with what is
// persisted.
//
// Only blocked exceptions are enforced. Modified-hours exceptions are kept
// as data for the admin calendar but do not alter generation. Booked times
// are subtracted by exact start-time equality, not interval overlap, so an
// appointment with a non-standard duration does not hide later slots it
// spills into.
type Engine struct {
	store    Store
	bookings BookingSource
	cfg      config.Booking
	now      func() time.Time
}

func NewEngine(store Store, bookings BookingSource, cfg config.Booking) *Engine {
	return &Engine{
		store:    store,
		bookings: bookings,
		cfg:      cfg,
		now:      time.Now,
	}
}

// WithNow overrides the clock, for tests.
func (e *Engine) WithNow(now func() time.Time) *Engine {
	e.now = now
	return e
}

func normalizeDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// horizon returns the inclusive [min, max] bookable date range.
func (e *Engine) horizon() (minDate, maxDate time.Time) {
	today := normalizeDate(e.now())
	return today.AddDate(0, 0, e.cfg.MinAdvanceDays), today.AddDate(0, 0, e.cfg.MaxAdvanceDays)
}

// AvailableSlots generates every bookable slot in [from, to], clamped to the
// booking horizon. A zero `from` or `to` defaults to the horizon edge. An
// empty modality means no filter. Output is ordered by date, then rule,
// then start time, and is identical across calls given identical state.
func (e *Engine) AvailableSlots(ctx context.Context, from, to time.Time, modality Modality) ([]TimeSlot, error) {
	minDate, maxDate := e.horizon()

	if from.IsZero() {
		from = minDate
	}
	if to.IsZero() {
		to = maxDate
	}
	from = normalizeDate(from)
	to = normalizeDate(to)

	// Clamp, never reject: a window partially outside the horizon keeps
	// its overlapping part, one entirely outside comes back empty.
	if from.Before(minDate) {
		from = minDate
	}
	if to.After(maxDate) {
		to = maxDate
	}
	if from.After(to) {
		return []TimeSlot{}, nil
	}

	rules, err := e.store.ListActiveRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("load weekly rules: %w", err)
	}

	exceptions, err := e.store.ListExceptions(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("load exception dates: %w", err)
	}
	blocked := make(map[string]bool, len(exceptions))
	for _, exc := range exceptions {
		if exc.Type == ExceptionBlocked {
			blocked[DateKey(exc.Date)] = true
		}
	}

	booked, err := e.bookings.BookedTimesByDate(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("load booked times: %w", err)
	}

	slots := []TimeSlot{}
	for date := from; !date.After(to); date = date.AddDate(0, 0, 1) {
		key := DateKey(date)
		if blocked[key] {
			continue
		}

		dow := DayOfWeek(date)
		for _, rule := range rules {
			if rule.DayOfWeek != dow {
				continue
			}
			if modality != "" && !rule.AllowsModality(modality) {
				continue
			}
			slots = append(slots, e.slotsForRule(date, rule, booked[key], modality)...)
		}
	}

	return slots, nil
}

// slotsForRule walks one rule's open block in fixed-size increments.
// A trailing remainder shorter than one slot is dropped, never emitted.
func (e *Engine) slotsForRule(date time.Time, rule WeeklyRule, bookedTimes []TimeOfDay, modality Modality) []TimeSlot {
	taken := make(map[TimeOfDay]bool, len(bookedTimes))
	for _, t := range bookedTimes {
		taken[t] = true
	}

	var out []TimeSlot
	duration := e.cfg.SlotDurationMinutes
	for start := rule.StartTime; start.AddMinutes(duration) <= rule.EndTime; start = start.AddMinutes(duration) {
		if taken[start] {
			continue
		}

		modalities := rule.Modalities()
		if modality != "" {
			modalities = []Modality{modality}
		}

		out = append(out, TimeSlot{
			Date:       date,
			StartTime:  start,
			EndTime:    start.AddMinutes(duration),
			Modalities: modalities,
		})
	}
	return out
}

// SlotsForDate generates slots for a single date.
func (e *Engine) SlotsForDate(ctx context.Context, date time.Time, modality Modality) ([]TimeSlot, error) {
	return e.AvailableSlots(ctx, date, date, modality)
}

// AvailableDates lists the distinct dates with at least one open slot in the
// next `days` days, for calendar highlighting.
func (e *Engine) AvailableDates(ctx context.Context, days int) ([]time.Time, error) {
	today := normalizeDate(e.now())
	slots, err := e.AvailableSlots(ctx, today.AddDate(0, 0, 1), today.AddDate(0, 0, days), "")
	if err != nil {
		return nil, err
	}

	var dates []time.Time
	seen := make(map[string]bool)
	for _, slot := range slots {
		key := DateKey(slot.Date)
		if !seen[key] {
			seen[key] = true
			dates = append(dates, slot.Date)
		}
	}
	return dates, nil
}

// CheckBookable re-derives the single-slot availability predicate from
// persisted state. It returns nil when the slot can be booked,
// ErrOutOfHorizon or ErrSlotUnavailable when it cannot.
func (e *Engine) CheckBookable(ctx context.Context, date time.Time, start TimeOfDay, modality Modality) error {
	date = normalizeDate(date)

	minDate, maxDate := e.horizon()
	if date.Before(minDate) || date.After(maxDate) {
		return ErrOutOfHorizon
	}

	exceptions, err := e.store.ListExceptions(ctx, date, date)
	if err != nil {
		return fmt.Errorf("load exception dates: %w", err)
	}
	for _, exc := range exceptions {
		if exc.Type == ExceptionBlocked {
			return ErrSlotUnavailable
		}
	}

	rules, err := e.store.ListActiveRules(ctx)
	if err != nil {
		return fmt.Errorf("load weekly rules: %w", err)
	}

	dow := DayOfWeek(date)
	covered := false
	for _, rule := range rules {
		if rule.DayOfWeek != dow {
			continue
		}
		if rule.StartTime <= start && start < rule.EndTime && rule.AllowsModality(modality) {
			covered = true
			break
		}
	}
	if !covered {
		return ErrSlotUnavailable
	}

	taken, err := e.bookings.IsTimeBooked(ctx, date, start)
	if err != nil {
		return fmt.Errorf("check booked time: %w", err)
	}
	if taken {
		return ErrSlotUnavailable
	}

	return nil
}

// IsSlotAvailable is the boolean form of CheckBookable.
func (e *Engine) IsSlotAvailable(ctx context.Context, date time.Time, start TimeOfDay, modality Modality) (bool, error) {
	err := e.CheckBookable(ctx, date, start, modality)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrOutOfHorizon), errors.Is(err, ErrSlotUnavailable):
		return false, nil
	default:
		return false, err
	}
}
