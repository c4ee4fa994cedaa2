package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrServiceNotFound = errors.New("service not found")

// Store contains the DB interactions for the service catalog.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Service, error)
	ListActive(ctx context.Context) ([]Service, error)
}

type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

func scanService(row pgx.Row) (*Service, error) {
	var s Service

	err := row.Scan(
		&s.ID,
		&s.Slug,
		&s.Title,
		&s.Description,
		&s.DurationMinutes,
		&s.PriceCents,
		&s.IsActive,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrServiceNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (s *PgStore) GetByID(ctx context.Context, id uuid.UUID) (*Service, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, slug, title, description, duration_minutes, price_cents, is_active, created_at, updated_at
		FROM services
		WHERE id = $1
	`, id)
	return scanService(row)
}

func (s *PgStore) ListActive(ctx context.Context) ([]Service, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, slug, title, description, duration_minutes, price_cents, is_active, created_at, updated_at
		FROM services
		WHERE is_active
		ORDER BY title
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Service
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *svc)
	}
	return result, rows.Err()
}
