package appointment

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tfwellfare/clinic-booking/internal/availability"
	"github.com/tfwellfare/clinic-booking/internal/catalog"
	"github.com/tfwellfare/clinic-booking/internal/config"
	"github.com/tfwellfare/clinic-booking/internal/notify"
)

// Fakes

type fakeRepo struct {
	mu              sync.Mutex
	byID            map[uuid.UUID]*Appointment
	events          []EventLog
	refExistsAlways bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{byID: make(map[uuid.UUID]*Appointment)}
}

func (r *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.byID[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, ErrAppointmentNotFound
}

func (r *fakeRepo) GetByReferenceID(_ context.Context, ref string) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.byID {
		if a.ReferenceID == ref {
			cp := *a
			return &cp, nil
		}
	}
	return nil, ErrAppointmentNotFound
}

func (r *fakeRepo) ReferenceIDExists(_ context.Context, ref string) (bool, error) {
	if r.refExistsAlways {
		return true, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.byID {
		if a.ReferenceID == ref {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeRepo) List(_ context.Context, f ListFilter) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Appointment
	for _, a := range r.byID {
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		out = append(out, *a)
	}
	return out, nil
}

func (r *fakeRepo) ReserveAndCreate(_ context.Context, appt *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.byID {
		if existing.Status.Occupies() &&
			availability.DateKey(existing.ScheduledDate) == availability.DateKey(appt.ScheduledDate) &&
			existing.ScheduledTime == appt.ScheduledTime {
			return ErrSlotTaken
		}
	}

	appt.ID = uuid.New()
	appt.Status = StatusPending
	appt.CreatedAt = time.Now()
	appt.UpdatedAt = appt.CreatedAt
	cp := *appt
	r.byID[appt.ID] = &cp
	return nil
}

func (r *fakeRepo) UpdateStatus(_ context.Context, id uuid.UUID, from []Status, to Status) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	for _, st := range from {
		if a.Status == st {
			a.Status = to
			a.UpdatedAt = time.Now()
			cp := *a
			return &cp, nil
		}
	}
	return nil, ErrAppointmentNotFound
}

func (r *fakeRepo) SetMeetingLink(_ context.Context, id uuid.UUID, link string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return ErrAppointmentNotFound
	}
	a.MeetingLink = link
	return nil
}

func (r *fakeRepo) PrependNote(_ context.Context, id uuid.UUID, note string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return ErrAppointmentNotFound
	}
	a.Notes = note + "\n" + a.Notes
	return nil
}

func (r *fakeRepo) FindDueReminders(_ context.Context, from, to time.Time) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Appointment
	for _, a := range r.byID {
		if a.Status != StatusApproved || a.ReminderSent {
			continue
		}
		at := a.ScheduledDate.Add(time.Duration(a.ScheduledTime) * time.Minute)
		if !at.Before(from) && !at.After(to) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *fakeRepo) MarkReminderSent(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return ErrAppointmentNotFound
	}
	a.ReminderSent = true
	return nil
}

func (r *fakeRepo) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *fakeRepo) eventTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.EventType
	}
	return out
}

func (r *fakeRepo) BookedTimesByDate(_ context.Context, from, to time.Time) (map[string][]availability.TimeOfDay, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string][]availability.TimeOfDay)
	for _, a := range r.byID {
		if a.Status.Occupies() && !a.ScheduledDate.Before(from) && !a.ScheduledDate.After(to) {
			key := availability.DateKey(a.ScheduledDate)
			out[key] = append(out[key], a.ScheduledTime)
		}
	}
	return out, nil
}

func (r *fakeRepo) IsTimeBooked(_ context.Context, date time.Time, t availability.TimeOfDay) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.byID {
		if a.Status.Occupies() &&
			availability.DateKey(a.ScheduledDate) == availability.DateKey(date) &&
			a.ScheduledTime == t {
			return true, nil
		}
	}
	return false, nil
}

type fakeRuleStore struct {
	rules []availability.WeeklyRule
}

func (f *fakeRuleStore) ListActiveRules(_ context.Context) ([]availability.WeeklyRule, error) {
	return f.rules, nil
}
func (f *fakeRuleStore) ListRules(_ context.Context) ([]availability.WeeklyRule, error) {
	return f.rules, nil
}
func (f *fakeRuleStore) GetRule(_ context.Context, _ int64) (*availability.WeeklyRule, error) {
	return nil, availability.ErrRuleNotFound
}
func (f *fakeRuleStore) CreateRule(_ context.Context, _ *availability.WeeklyRule) error { return nil }
func (f *fakeRuleStore) UpdateRule(_ context.Context, _ *availability.WeeklyRule) error { return nil }
func (f *fakeRuleStore) DeleteRule(_ context.Context, _ int64) error                    { return nil }
func (f *fakeRuleStore) ListExceptions(_ context.Context, _, _ time.Time) ([]availability.ExceptionDate, error) {
	return nil, nil
}
func (f *fakeRuleStore) UpsertException(_ context.Context, _ *availability.ExceptionDate) error {
	return nil
}
func (f *fakeRuleStore) DeleteException(_ context.Context, _ time.Time) error { return nil }

// fakeLocker serializes critical sections on a single mutex, so racing
// bookings line up the same way they do behind the redis lock.
type fakeLocker struct {
	mu sync.Mutex
}

func (l *fakeLocker) WithSlotLock(ctx context.Context, _, _ string, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fn(ctx)
}

type fakeCatalog struct {
	services map[uuid.UUID]*catalog.Service
}

func (f *fakeCatalog) GetByID(_ context.Context, id uuid.UUID) (*catalog.Service, error) {
	if s, ok := f.services[id]; ok {
		return s, nil
	}
	return nil, catalog.ErrServiceNotFound
}

func (f *fakeCatalog) ListActive(_ context.Context) ([]catalog.Service, error) {
	return nil, nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	kinds []string
}

func (n *fakeNotifier) record(kind string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.kinds = append(n.kinds, kind)
}

func (n *fakeNotifier) received() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.kinds))
	copy(out, n.kinds)
	return out
}

func (n *fakeNotifier) BookingReceived(_ context.Context, _ notify.Notification) {
	n.record("booking_received")
}
func (n *fakeNotifier) AppointmentApproved(_ context.Context, _ notify.Notification) {
	n.record("approved")
}
func (n *fakeNotifier) AppointmentRejected(_ context.Context, _ notify.Notification) {
	n.record("rejected")
}
func (n *fakeNotifier) AppointmentCancelled(_ context.Context, _ notify.Notification) {
	n.record("cancelled")
}
func (n *fakeNotifier) AppointmentReminder(_ context.Context, _ notify.Notification) {
	n.record("reminder")
}

// Fixture

var testNow = time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC) // a Tuesday

type fixture struct {
	svc      *Service
	repo     *fakeRepo
	notifier *fakeNotifier
	catalog  *fakeCatalog
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	repo := newFakeRepo()
	notifier := &fakeNotifier{}
	cat := &fakeCatalog{services: make(map[uuid.UUID]*catalog.Service)}

	var rules []availability.WeeklyRule
	for day := 0; day < 7; day++ {
		start, err := availability.ParseTimeOfDay("09:00")
		require.NoError(t, err)
		end, err := availability.ParseTimeOfDay("17:00")
		require.NoError(t, err)
		rules = append(rules, availability.WeeklyRule{
			ID: int64(day + 1), DayOfWeek: day, StartTime: start, EndTime: end,
			IsActive: true, AllowsVirtual: true, AllowsInPerson: true,
		})
	}

	cfg := config.Config{
		Booking:      config.Booking{SlotDurationMinutes: 30, MinAdvanceDays: 1, MaxAdvanceDays: 60},
		ReminderLead: 24 * time.Hour,
	}

	engine := availability.NewEngine(&fakeRuleStore{rules: rules}, repo, cfg.Booking).
		WithNow(func() time.Time { return testNow })
	svc := NewService(repo, engine, cat, &fakeLocker{}, notifier, cfg).
		WithNow(func() time.Time { return testNow })

	return &fixture{svc: svc, repo: repo, notifier: notifier, catalog: cat}
}

func validRequest(t *testing.T) BookingRequest {
	t.Helper()
	start, err := availability.ParseTimeOfDay("09:30")
	require.NoError(t, err)
	return BookingRequest{
		ScheduledDate: testNow.AddDate(0, 0, 6).Truncate(24 * time.Hour), // next Monday
		ScheduledTime: start,
		Modality:      availability.ModalityVirtual,
		PatientDetails: PatientDetails{
			Name:  "Ada Osei",
			Email: "ada@example.com",
			Phone: "555-0101",
		},
		Reason: "first visit",
	}
}

// Tests

func TestBookCreatesPendingAppointment(t *testing.T) {
	fx := newFixture(t)

	appt, err := fx.svc.Book(context.Background(), validRequest(t))
	require.NoError(t, err)

	assert.Equal(t, StatusPending, appt.Status)
	assert.NotEqual(t, uuid.Nil, appt.ID)
	assert.Regexp(t, `^TFW-[A-HJKMNP-Z2-9]{8}$`, appt.ReferenceID)
	assert.Equal(t, 30, appt.DurationMinutes)
	assert.Equal(t, "UTC", appt.Timezone)
	assert.Equal(t, PatientNew, appt.PatientType)

	assert.Contains(t, fx.repo.eventTypes(), EventAppointmentCreated)
	assert.Eventually(t, func() bool {
		kinds := fx.notifier.received()
		return len(kinds) == 1 && kinds[0] == "booking_received"
	}, time.Second, 10*time.Millisecond)
}

func TestBookTakenSlotIsUnavailable(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	_, err := fx.svc.Book(ctx, validRequest(t))
	require.NoError(t, err)

	req := validRequest(t)
	req.PatientDetails.Email = "other@example.com"
	_, err = fx.svc.Book(ctx, req)
	assert.ErrorIs(t, err, availability.ErrSlotUnavailable)
}

func TestBookOutOfHorizon(t *testing.T) {
	fx := newFixture(t)

	req := validRequest(t)
	req.ScheduledDate = testNow // today is inside min_advance_days
	_, err := fx.svc.Book(context.Background(), req)
	assert.ErrorIs(t, err, availability.ErrOutOfHorizon)

	req = validRequest(t)
	req.ScheduledDate = testNow.AddDate(0, 0, 61)
	_, err = fx.svc.Book(context.Background(), req)
	assert.ErrorIs(t, err, availability.ErrOutOfHorizon)
}

func TestBookValidation(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	req := validRequest(t)
	req.PatientDetails.Email = ""
	_, err := fx.svc.Book(ctx, req)
	assert.ErrorIs(t, err, ErrInvalidBooking)

	req = validRequest(t)
	req.Modality = "telepathy"
	_, err = fx.svc.Book(ctx, req)
	assert.ErrorIs(t, err, ErrInvalidBooking)
}

func TestBookUsesServiceDuration(t *testing.T) {
	fx := newFixture(t)

	svcID := uuid.New()
	fx.catalog.services[svcID] = &catalog.Service{
		ID: svcID, Title: "Initial Consultation", DurationMinutes: 60,
	}

	req := validRequest(t)
	req.ServiceID = &svcID
	appt, err := fx.svc.Book(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 60, appt.DurationMinutes)
}

func TestBookUnknownService(t *testing.T) {
	fx := newFixture(t)

	svcID := uuid.New()
	req := validRequest(t)
	req.ServiceID = &svcID
	_, err := fx.svc.Book(context.Background(), req)
	assert.ErrorIs(t, err, catalog.ErrServiceNotFound)
}

func TestBookReferenceIDExhaustion(t *testing.T) {
	fx := newFixture(t)
	fx.repo.refExistsAlways = true

	_, err := fx.svc.Book(context.Background(), validRequest(t))
	assert.ErrorIs(t, err, ErrReferenceIDExhausted)
}

func TestConcurrentBookingsSingleWinner(t *testing.T) {
	fx := newFixture(t)
	const attempts = 20

	base := validRequest(t)

	var wg sync.WaitGroup
	errs := make([]error, attempts)
	start := make(chan struct{})

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			<-start
			req := base
			req.PatientDetails.Email = fmt.Sprintf("racer%d@example.com", n)
			_, errs[n] = fx.svc.Book(context.Background(), req)
		}(i)
	}
	close(start)
	wg.Wait()

	won, lost := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case assert.ErrorIs(t, err, availability.ErrSlotUnavailable):
			lost++
		}
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, attempts-1, lost)
}

func TestRebookingFreedSlot(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	appt, err := fx.svc.Book(ctx, validRequest(t))
	require.NoError(t, err)

	// A cancelled appointment no longer occupies the slot.
	_, err = fx.svc.Cancel(ctx, appt.ID, "schedule change")
	require.NoError(t, err)

	req := validRequest(t)
	req.PatientDetails.Email = "second@example.com"
	_, err = fx.svc.Book(ctx, req)
	assert.NoError(t, err)
}

func TestApproveTransition(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	appt, err := fx.svc.Book(ctx, validRequest(t))
	require.NoError(t, err)

	updated, err := fx.svc.Approve(ctx, appt.ID, "https://meet.example.com/abc")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, updated.Status)
	assert.Equal(t, "https://meet.example.com/abc", updated.MeetingLink)

	// Approving twice is an invalid transition.
	_, err = fx.svc.Approve(ctx, appt.ID, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestRejectOnlyFromPending(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	appt, err := fx.svc.Book(ctx, validRequest(t))
	require.NoError(t, err)

	_, err = fx.svc.Approve(ctx, appt.ID, "")
	require.NoError(t, err)

	_, err = fx.svc.Reject(ctx, appt.ID, "overbooked")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCompleteAndNoShowRequireApproved(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	appt, err := fx.svc.Book(ctx, validRequest(t))
	require.NoError(t, err)

	_, err = fx.svc.Complete(ctx, appt.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = fx.svc.Approve(ctx, appt.ID, "")
	require.NoError(t, err)

	updated, err := fx.svc.Complete(ctx, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, updated.Status)

	// Completed is terminal.
	_, err = fx.svc.MarkNoShow(ctx, appt.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCancelByReference(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	appt, err := fx.svc.Book(ctx, validRequest(t))
	require.NoError(t, err)

	updated, err := fx.svc.CancelByReference(ctx, appt.ReferenceID, "")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, updated.Status)

	// Terminal appointments cannot be cancelled again.
	_, err = fx.svc.CancelByReference(ctx, appt.ReferenceID, "")
	assert.ErrorIs(t, err, ErrCannotCancel)
}

func TestCancelByReferencePastAppointment(t *testing.T) {
	fx := newFixture(t)

	// Insert a past approved appointment directly.
	start, err := availability.ParseTimeOfDay("09:00")
	require.NoError(t, err)
	past := &Appointment{
		ID:            uuid.New(),
		ReferenceID:   "TFW-PASTPAST",
		Status:        StatusApproved,
		ScheduledDate: testNow.AddDate(0, 0, -7),
		ScheduledTime: start,
		Modality:      availability.ModalityVirtual,
	}
	fx.repo.byID[past.ID] = past

	_, err = fx.svc.CancelByReference(context.Background(), past.ReferenceID, "")
	assert.ErrorIs(t, err, ErrCannotCancel)
}

func TestLookupNormalizesReference(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	appt, err := fx.svc.Book(ctx, validRequest(t))
	require.NoError(t, err)

	found, err := fx.svc.Lookup(ctx, "  "+strings.ToLower(appt.ReferenceID)+" ")
	require.NoError(t, err)
	assert.Equal(t, appt.ID, found.ID)
}

func TestSendDueReminders(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	appt, err := fx.svc.Book(ctx, validRequest(t))
	require.NoError(t, err)
	_, err = fx.svc.Approve(ctx, appt.ID, "")
	require.NoError(t, err)

	// Outside the 24h lead window: nothing due.
	require.NoError(t, fx.svc.SendDueReminders(ctx))
	stored, err := fx.repo.GetByID(ctx, appt.ID)
	require.NoError(t, err)
	assert.False(t, stored.ReminderSent)

	// Move the appointment to tomorrow 09:30, inside the 24h window.
	fx.repo.mu.Lock()
	fx.repo.byID[appt.ID].ScheduledDate = testNow.AddDate(0, 0, 1).Truncate(24 * time.Hour)
	fx.repo.mu.Unlock()

	require.NoError(t, fx.svc.SendDueReminders(ctx))
	stored, err = fx.repo.GetByID(ctx, appt.ID)
	require.NoError(t, err)
	assert.True(t, stored.ReminderSent)
	assert.Contains(t, fx.repo.eventTypes(), EventReminderSent)

	// Already reminded: a second run is a no-op.
	require.NoError(t, fx.svc.SendDueReminders(ctx))
	count := 0
	for _, ev := range fx.repo.eventTypes() {
		if ev == EventReminderSent {
			count++
		}
	}
	assert.Equal(t, 1, count)
}
