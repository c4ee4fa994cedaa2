package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tfwellfare/clinic-booking/internal/availability"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const apptColumns = `id, reference_id, status, service_id, scheduled_date,
		      to_char(scheduled_time, 'HH24:MI'), duration_minutes, timezone,
		      modality, patient_type, patient_details, reason, notes,
		      meeting_link, confirmation_sent, reminder_sent, created_at, updated_at`

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var scheduledTime string
	var details []byte

	err := row.Scan(
		&a.ID,
		&a.ReferenceID,
		&a.Status,
		&a.ServiceID,
		&a.ScheduledDate,
		&scheduledTime,
		&a.DurationMinutes,
		&a.Timezone,
		&a.Modality,
		&a.PatientType,
		&details,
		&a.Reason,
		&a.Notes,
		&a.MeetingLink,
		&a.ConfirmationSent,
		&a.ReminderSent,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	if a.ScheduledTime, err = availability.ParseTimeOfDay(scheduledTime); err != nil {
		return nil, err
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &a.PatientDetails); err != nil {
			return nil, fmt.Errorf("decode patient details: %w", err)
		}
	}
	return &a, nil
}

func scanAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}

// Interface methods

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) GetByReferenceID(ctx context.Context, ref string) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE reference_id = $1
	`, ref)
	return scanAppointment(row)
}

func (r *PgRepository) ReferenceIDExists(ctx context.Context, ref string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM appointments WHERE reference_id = $1)
	`, ref).Scan(&exists)
	return exists, err
}

func (r *PgRepository) List(ctx context.Context, f ListFilter) ([]Appointment, error) {
	query := `
		SELECT ` + apptColumns + `
		FROM appointments
		WHERE ($1 = '' OR status = $1)
		  AND ($2::date IS NULL OR scheduled_date >= $2)
		  AND ($3::date IS NULL OR scheduled_date <= $3)
		ORDER BY scheduled_date DESC, scheduled_time DESC
		LIMIT $4 OFFSET $5
	`

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var from, to *time.Time
	if !f.ScheduledFrom.IsZero() {
		from = &f.ScheduledFrom
	}
	if !f.ScheduledTo.IsZero() {
		to = &f.ScheduledTo
	}

	rows, err := r.pool.Query(ctx, query, string(f.Status), from, to, limit, offset)
	if err != nil {
		return nil, err
	}
	return scanAppointments(rows)
}

// ReserveAndCreate checks the slot inside one transaction and inserts the
// appointment only if the check passes. Conflicting pending/approved rows at
// the same date+time are read FOR UPDATE, so a racing transaction that
// already reserved the slot must commit or roll back before this check can
// read them; after its commit the conflict is visible here and the insert is
// refused. The partial unique index on (scheduled_date, scheduled_time) is
// kept as defense in depth.
func (r *PgRepository) ReserveAndCreate(ctx context.Context, appt *Appointment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin booking tx: %w", err)
	}
	defer tx.Rollback(ctx)

	timeStr := appt.ScheduledTime.String()

	var dateBlocked bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM exception_dates
			WHERE date = $1 AND exception_type = 'blocked'
		)
	`, appt.ScheduledDate).Scan(&dateBlocked)
	if err != nil {
		return fmt.Errorf("check blocked date: %w", err)
	}
	if dateBlocked {
		return ErrSlotTaken
	}

	ruleQuery := `
		SELECT EXISTS (
			SELECT 1 FROM weekly_rules
			WHERE is_active
			  AND day_of_week = $1
			  AND start_time <= $2::time
			  AND end_time > $2::time
	`
	switch appt.Modality {
	case availability.ModalityVirtual:
		ruleQuery += ` AND allows_virtual`
	case availability.ModalityInPerson:
		ruleQuery += ` AND allows_in_person`
	}
	ruleQuery += `)`

	var covered bool
	err = tx.QueryRow(ctx, ruleQuery, availability.DayOfWeek(appt.ScheduledDate), timeStr).Scan(&covered)
	if err != nil {
		return fmt.Errorf("check rule coverage: %w", err)
	}
	if !covered {
		return ErrSlotTaken
	}

	rows, err := tx.Query(ctx, `
		SELECT id
		FROM appointments
		WHERE scheduled_date = $1
		  AND scheduled_time = $2::time
		  AND status IN ('pending', 'approved')
		FOR UPDATE
	`, appt.ScheduledDate, timeStr)
	if err != nil {
		return fmt.Errorf("lock conflicting appointments: %w", err)
	}
	conflict := rows.Next()
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("lock conflicting appointments: %w", err)
	}
	if conflict {
		return ErrSlotTaken
	}

	details, err := json.Marshal(appt.PatientDetails)
	if err != nil {
		return fmt.Errorf("encode patient details: %w", err)
	}

	appt.ID = uuid.New()
	appt.Status = StatusPending

	row := tx.QueryRow(ctx, `
		INSERT INTO appointments
			(id, reference_id, status, service_id, scheduled_date, scheduled_time,
			 duration_minutes, timezone, modality, patient_type, patient_details,
			 reason, notes, meeting_link, confirmation_sent, reminder_sent,
			 created_at, updated_at)
		VALUES ($1, $2, 'pending', $3, $4, $5::time, $6, $7, $8, $9, $10, $11, '', '', false, false, now(), now())
		RETURNING created_at, updated_at
	`, appt.ID, appt.ReferenceID, appt.ServiceID, appt.ScheduledDate, timeStr,
		appt.DurationMinutes, appt.Timezone, appt.Modality, appt.PatientType,
		details, appt.Reason)

	if err := row.Scan(&appt.CreatedAt, &appt.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrSlotTaken
		}
		return fmt.Errorf("insert appointment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit booking tx: %w", err)
	}
	return nil
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from []Status, to Status) (*Appointment, error) {
	fromStrs := make([]string, len(from))
	for i, s := range from {
		fromStrs[i] = string(s)
	}

	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = ANY($3)
		RETURNING `+apptColumns+`
	`, id, to, fromStrs)

	return scanAppointment(row)
}

func (r *PgRepository) SetMeetingLink(ctx context.Context, id uuid.UUID, link string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET meeting_link = $2,
		    updated_at = now()
		WHERE id = $1
	`, id, link)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *PgRepository) PrependNote(ctx context.Context, id uuid.UUID, note string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET notes = $2 || E'\n' || notes,
		    updated_at = now()
		WHERE id = $1
	`, id, note)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *PgRepository) FindDueReminders(ctx context.Context, from, to time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE status = 'approved'
		  AND NOT reminder_sent
		  AND scheduled_date + scheduled_time >= $1
		  AND scheduled_date + scheduled_time <= $2
		ORDER BY scheduled_date, scheduled_time
	`, from, to)
	if err != nil {
		return nil, err
	}
	return scanAppointments(rows)
}

func (r *PgRepository) MarkReminderSent(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET reminder_sent = true,
		    updated_at = now()
		WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// availability.BookingSource

func (r *PgRepository) BookedTimesByDate(ctx context.Context, from, to time.Time) (map[string][]availability.TimeOfDay, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT scheduled_date, to_char(scheduled_time, 'HH24:MI')
		FROM appointments
		WHERE scheduled_date >= $1
		  AND scheduled_date <= $2
		  AND status IN ('pending', 'approved')
		ORDER BY scheduled_date, scheduled_time
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string][]availability.TimeOfDay)
	for rows.Next() {
		var date time.Time
		var timeStr string
		if err := rows.Scan(&date, &timeStr); err != nil {
			return nil, err
		}
		t, err := availability.ParseTimeOfDay(timeStr)
		if err != nil {
			return nil, err
		}
		key := availability.DateKey(date)
		result[key] = append(result[key], t)
	}
	return result, rows.Err()
}

func (r *PgRepository) IsTimeBooked(ctx context.Context, date time.Time, t availability.TimeOfDay) (bool, error) {
	var booked bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE scheduled_date = $1
			  AND scheduled_time = $2::time
			  AND status IN ('pending', 'approved')
		)
	`, date, t.String()).Scan(&booked)
	return booked, err
}
