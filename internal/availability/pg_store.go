package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

// Helpers

func scanRule(row pgx.Row) (*WeeklyRule, error) {
	var r WeeklyRule
	var start, end string

	err := row.Scan(
		&r.ID,
		&r.DayOfWeek,
		&start,
		&end,
		&r.IsActive,
		&r.AllowsVirtual,
		&r.AllowsInPerson,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRuleNotFound
		}
		return nil, err
	}

	if r.StartTime, err = ParseTimeOfDay(start); err != nil {
		return nil, err
	}
	if r.EndTime, err = ParseTimeOfDay(end); err != nil {
		return nil, err
	}
	return &r, nil
}

func scanException(row pgx.Row) (*ExceptionDate, error) {
	var e ExceptionDate
	var start, end *string

	err := row.Scan(
		&e.ID,
		&e.Date,
		&e.Type,
		&e.Reason,
		&start,
		&end,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExceptionNotFound
		}
		return nil, err
	}

	if start != nil {
		t, err := ParseTimeOfDay(*start)
		if err != nil {
			return nil, err
		}
		e.StartTime = &t
	}
	if end != nil {
		t, err := ParseTimeOfDay(*end)
		if err != nil {
			return nil, err
		}
		e.EndTime = &t
	}
	return &e, nil
}

const ruleColumns = `id, day_of_week, to_char(start_time, 'HH24:MI'), to_char(end_time, 'HH24:MI'),
		       is_active, allows_virtual, allows_in_person, created_at, updated_at`

const exceptionColumns = `id, date, exception_type, reason,
			    to_char(start_time, 'HH24:MI'), to_char(end_time, 'HH24:MI'),
			    created_at, updated_at`

// Interface methods

func (s *PgStore) listRules(ctx context.Context, activeOnly bool) ([]WeeklyRule, error) {
	query := `
		SELECT ` + ruleColumns + `
		FROM weekly_rules
		ORDER BY day_of_week, start_time, id
	`
	if activeOnly {
		query = `
			SELECT ` + ruleColumns + `
			FROM weekly_rules
			WHERE is_active
			ORDER BY day_of_week, start_time, id
		`
	}

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []WeeklyRule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *r)
	}
	return result, rows.Err()
}

func (s *PgStore) ListRules(ctx context.Context) ([]WeeklyRule, error) {
	return s.listRules(ctx, false)
}

func (s *PgStore) ListActiveRules(ctx context.Context) ([]WeeklyRule, error) {
	return s.listRules(ctx, true)
}

func (s *PgStore) GetRule(ctx context.Context, id int64) (*WeeklyRule, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+ruleColumns+`
		FROM weekly_rules
		WHERE id = $1
	`, id)
	return scanRule(row)
}

func (s *PgStore) CreateRule(ctx context.Context, rule *WeeklyRule) error {
	if rule.StartTime >= rule.EndTime {
		return ErrInvalidRule
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO weekly_rules (day_of_week, start_time, end_time, is_active, allows_virtual, allows_in_person, created_at, updated_at)
		VALUES ($1, $2::time, $3::time, $4, $5, $6, now(), now())
		RETURNING id, created_at, updated_at
	`, rule.DayOfWeek, rule.StartTime.String(), rule.EndTime.String(),
		rule.IsActive, rule.AllowsVirtual, rule.AllowsInPerson)

	return row.Scan(&rule.ID, &rule.CreatedAt, &rule.UpdatedAt)
}

func (s *PgStore) UpdateRule(ctx context.Context, rule *WeeklyRule) error {
	if rule.StartTime >= rule.EndTime {
		return ErrInvalidRule
	}

	row := s.pool.QueryRow(ctx, `
		UPDATE weekly_rules
		SET day_of_week = $2,
		    start_time = $3::time,
		    end_time = $4::time,
		    is_active = $5,
		    allows_virtual = $6,
		    allows_in_person = $7,
		    updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`, rule.ID, rule.DayOfWeek, rule.StartTime.String(), rule.EndTime.String(),
		rule.IsActive, rule.AllowsVirtual, rule.AllowsInPerson)

	if err := row.Scan(&rule.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrRuleNotFound
		}
		return err
	}
	return nil
}

func (s *PgStore) DeleteRule(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM weekly_rules WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRuleNotFound
	}
	return nil
}

func (s *PgStore) ListExceptions(ctx context.Context, from, to time.Time) ([]ExceptionDate, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+exceptionColumns+`
		FROM exception_dates
		WHERE date >= $1 AND date <= $2
		ORDER BY date, id
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ExceptionDate
	for rows.Next() {
		e, err := scanException(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *e)
	}
	return result, rows.Err()
}

// UpsertException writes the exception for its date, replacing any existing
// row. The UNIQUE constraint on date makes "one exception per date" a
// structural property rather than a read-time tie-break.
func (s *PgStore) UpsertException(ctx context.Context, exc *ExceptionDate) error {
	var start, end *string
	if exc.StartTime != nil {
		v := exc.StartTime.String()
		start = &v
	}
	if exc.EndTime != nil {
		v := exc.EndTime.String()
		end = &v
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO exception_dates (date, exception_type, reason, start_time, end_time, created_at, updated_at)
		VALUES ($1, $2, $3, $4::time, $5::time, now(), now())
		ON CONFLICT (date) DO UPDATE
		SET exception_type = EXCLUDED.exception_type,
		    reason = EXCLUDED.reason,
		    start_time = EXCLUDED.start_time,
		    end_time = EXCLUDED.end_time,
		    updated_at = now()
		RETURNING id, created_at, updated_at
	`, exc.Date, exc.Type, exc.Reason, start, end)

	if err := row.Scan(&exc.ID, &exc.CreatedAt, &exc.UpdatedAt); err != nil {
		return fmt.Errorf("upsert exception date: %w", err)
	}
	return nil
}

func (s *PgStore) DeleteException(ctx context.Context, date time.Time) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM exception_dates WHERE date = $1`, date)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrExceptionNotFound
	}
	return nil
}
