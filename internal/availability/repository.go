package availability

import (
	"context"
	"errors"
	"time"
)

var (
	ErrRuleNotFound      = errors.New("weekly rule not found")
	ErrExceptionNotFound = errors.New("exception date not found")
	ErrInvalidRule       = errors.New("rule start_time must be before end_time")
)

// Store contains all DB interactions for the weekly schedule and its
// calendar exceptions.
type Store interface {
	ListRules(ctx context.Context) ([]WeeklyRule, error)
	ListActiveRules(ctx context.Context) ([]WeeklyRule, error)
	GetRule(ctx context.Context, id int64) (*WeeklyRule, error)
	CreateRule(ctx context.Context, rule *WeeklyRule) error
	UpdateRule(ctx context.Context, rule *WeeklyRule) error
	DeleteRule(ctx context.Context, id int64) error

	// Exceptions are keyed uniquely by date; writes are upserts.
	ListExceptions(ctx context.Context, from, to time.Time) ([]ExceptionDate, error)
	UpsertException(ctx context.Context, exc *ExceptionDate) error
	DeleteException(ctx context.Context, date time.Time) error
}

// BookingSource exposes the booked start times the engine subtracts from
// generated slots. Only pending and approved appointments count.
type BookingSource interface {
	BookedTimesByDate(ctx context.Context, from, to time.Time) (map[string][]TimeOfDay, error)
	IsTimeBooked(ctx context.Context, date time.Time, t TimeOfDay) (bool, error)
}
